package model

import "time"

// Wallet holds one party's available balance in minor currency units.
// Wallets are created lazily on first reference.
type Wallet struct {
	ID        int64                  `json:"-"`
	WalletID  string                 `json:"wallet_id"`
	OwnerID   string                 `json:"owner_id"`
	OwnerType string                 `json:"owner_type"`
	Balance   int64                  `json:"balance"`
	Currency  string                 `json:"currency"`
	Version   int64                  `json:"version"`
	CreatedAt time.Time              `json:"created_at"`
	MetaData  map[string]interface{} `json:"meta_data"`
}

// Owner types attached to wallets.
const (
	OwnerBrand    = "brand"
	OwnerShopper  = "shopper"
	OwnerMediator = "mediator"
	OwnerAgency   = "agency"
)
