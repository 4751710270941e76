package model

import (
	"fmt"
	"time"
)

// EntryType classifies a ledger entry's direction relative to the owner's
// wallet.
type EntryType string

const (
	EntryCredit EntryType = "CREDIT"
	EntryDebit  EntryType = "DEBIT"
)

// LedgerEntry is an immutable record of a single balance movement. The
// idempotency key is unique; replaying a key is a no-op, which makes
// settlement safe to retry wholesale.
type LedgerEntry struct {
	ID             int64     `json:"-"`
	EntryID        string    `json:"entry_id"`
	IdempotencyKey string    `json:"idempotency_key"`
	Type           EntryType `json:"type"`
	OwnerID        string    `json:"owner_id"`
	OwnerType      string    `json:"owner_type,omitempty"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	// EnforceBalance makes a debit fail on insufficient funds. Settlement
	// transfers that create the brand's obligation leave it off.
	EnforceBalance bool                   `json:"-"`
	FromOwnerID    string                 `json:"from_owner_id,omitempty"`
	ToOwnerID      string                 `json:"to_owner_id,omitempty"`
	OrderID        string                 `json:"order_id,omitempty"`
	CampaignID     string                 `json:"campaign_id,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	MetaData       map[string]interface{} `json:"meta_data"`
}

// Reversed builds the exact inverse entry under a fresh idempotency key
// scoped to unsettlement. Credits become debits and vice versa.
func (e *LedgerEntry) Reversed() *LedgerEntry {
	reversed := &LedgerEntry{
		EntryID:        GenerateUUIDWithPrefix("lde"),
		IdempotencyKey: UnsettleKey(e.IdempotencyKey),
		OwnerID:        e.OwnerID,
		OwnerType:      e.OwnerType,
		Amount:         e.Amount,
		Currency:       e.Currency,
		FromOwnerID:    e.ToOwnerID,
		ToOwnerID:      e.FromOwnerID,
		OrderID:        e.OrderID,
		CampaignID:     e.CampaignID,
		CreatedAt:      time.Now(),
		MetaData:       map[string]interface{}{"reverses": e.EntryID},
	}
	if e.Type == EntryCredit {
		reversed.Type = EntryDebit
	} else {
		reversed.Type = EntryCredit
	}
	return reversed
}

// UnsettleKey derives the reversal idempotency key for a settlement entry
// key. Deriving instead of generating keeps retried unsettlements idempotent
// too.
func UnsettleKey(settleKey string) string {
	return fmt.Sprintf("unsettle:%s", settleKey)
}

// SettlementKey builds the idempotency key for one leg of an order's
// settlement. The key is stable across retries within a cycle; unsettlement
// bumps the order's cycle, so a later re-settlement dedupes against nothing
// and moves money again.
func SettlementKey(orderID string, cycle int64, leg string) string {
	return fmt.Sprintf("settle:%s:%d:%s", orderID, cycle, leg)
}

// Settlement legs keyed by SettlementKey.
const (
	LegBrandPayout     = "brand_payout"
	LegBuyerCommission = "buyer_commission"
	LegMediatorMargin  = "mediator_margin"
)
