package mobo

import (
	"context"
	"fmt"
	"time"

	"github.com/chetanchaudhari789/MOBO-sub001/config"
	"github.com/chetanchaudhari789/MOBO-sub001/internal/apierror"
	"github.com/chetanchaudhari789/MOBO-sub001/model"
)

// RecordPayout moves money off-platform to a mediator: it debits the
// mediator's wallet with balance enforcement and records a payout linked to
// the debit entry, in one transaction. The caller-supplied idempotency key
// makes a retried call return the original payout with no second debit.
// Unlike settlement debits, a payout can never push a wallet negative.
func (m *Mobo) RecordPayout(ctx context.Context, mediatorID string, amount int64, idempotencyKey string, metadata map[string]interface{}) (*model.Payout, error) {
	ctx, span := tracer.Start(ctx, "Recording payout")
	defer span.End()

	if amount <= 0 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Payout amount must be positive", nil)
	}

	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	payoutID := model.GenerateUUIDWithPrefix("pyt")
	if idempotencyKey == "" {
		// Caller opted out of retry safety; the payout still dedupes against
		// itself.
		idempotencyKey = payoutID
	}

	entry := &model.LedgerEntry{
		EntryID:        model.GenerateUUIDWithPrefix("lde"),
		IdempotencyKey: fmt.Sprintf("payout:%s", idempotencyKey),
		Type:           model.EntryDebit,
		OwnerID:        mediatorID,
		OwnerType:      model.OwnerMediator,
		Amount:         amount,
		Currency:       conf.Settlement.Currency,
		EnforceBalance: true,
		FromOwnerID:    mediatorID,
		CreatedAt:      time.Now(),
		MetaData:       map[string]interface{}{"payout_id": payoutID},
	}

	payout, err := m.datasource.CommitPayout(ctx, &model.Payout{
		PayoutID:       payoutID,
		IdempotencyKey: idempotencyKey,
		MediatorID:     mediatorID,
		Amount:         amount,
		Status:         model.PayoutRecorded,
		EntryIDs:       []string{entry.EntryID},
		CreatedAt:      time.Now(),
		MetaData:       metadata,
	}, entry)
	if err != nil {
		return nil, logAndRecordError(span, "payout commit error: ", err)
	}
	return payout, nil
}

// MarkPayoutPaid marks a recorded payout as paid out on the external rail.
func (m *Mobo) MarkPayoutPaid(ctx context.Context, payoutID string) (*model.Payout, error) {
	ctx, span := tracer.Start(ctx, "Marking payout paid")
	defer span.End()

	payout, err := m.datasource.GetPayoutByID(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if payout.Status == model.PayoutPaid {
		return payout, nil
	}

	if err := m.datasource.UpdatePayoutStatus(ctx, payoutID, model.PayoutPaid); err != nil {
		return nil, logAndRecordError(span, "payout status error: ", err)
	}
	payout.Status = model.PayoutPaid
	return payout, nil
}

// GetPayout retrieves a payout by its ID.
func (m *Mobo) GetPayout(ctx context.Context, payoutID string) (*model.Payout, error) {
	ctx, span := tracer.Start(ctx, "Getting payout")
	defer span.End()
	return m.datasource.GetPayoutByID(ctx, payoutID)
}
