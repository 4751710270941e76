package model

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// GenerateUUIDWithPrefix generates a UUID prefixed with a short module tag,
// e.g. "ord_3f2...". Prefixed IDs make mixed-up references obvious in logs.
func GenerateUUIDWithPrefix(module string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%s", module, id.String())
}

// SettlementSplit is the computed three-way division of a conversion's value.
// All amounts are in minor currency units.
type SettlementSplit struct {
	Payout          int64 `json:"payout"`
	BuyerCommission int64 `json:"buyer_commission"`
	MediatorMargin  int64 `json:"mediator_margin"`
}

// ErrInvalidEconomics is returned when a split would pay the buyer more than
// the brand owes. It must never be coerced into a zero margin.
var ErrInvalidEconomics = errors.New("buyer commission exceeds payout")

// ComputeSplit derives the settlement split from the payout the brand owes
// and the buyer commission snapshotted at order creation.
func ComputeSplit(payout, buyerCommission int64) (SettlementSplit, error) {
	if buyerCommission > payout {
		return SettlementSplit{}, ErrInvalidEconomics
	}
	return SettlementSplit{
		Payout:          payout,
		BuyerCommission: buyerCommission,
		MediatorMargin:  payout - buyerCommission,
	}, nil
}
