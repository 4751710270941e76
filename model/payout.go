package model

import "time"

type PayoutStatus string

const (
	PayoutRecorded PayoutStatus = "recorded"
	PayoutPaid     PayoutStatus = "paid"
)

// Payout records money leaving the platform to a mediator, independent from
// order-level settlement. It links to zero or more ledger entries.
type Payout struct {
	ID             int64                  `json:"-"`
	PayoutID       string                 `json:"payout_id"`
	IdempotencyKey string                 `json:"idempotency_key"`
	MediatorID     string                 `json:"mediator_id"`
	Amount         int64                  `json:"amount"`
	Status         PayoutStatus           `json:"status"`
	EntryIDs       []string               `json:"entry_ids,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	MetaData       map[string]interface{} `json:"meta_data"`
}
