package mobo

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/chetanchaudhari789/MOBO-sub001/model"
)

func TestRecordPayoutDebitsAndRecords(t *testing.T) {
	service, mock := newTestMobo(t)

	// Debit and payout row land in the same transaction.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO mobo.ledger_entries").
		WithArgs(sqlmock.AnyArg(), "payout:med1-2024-08", sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO mobo.wallets").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE mobo.wallets").
		WithArgs("med_1", int64(50000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO mobo.payouts").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	payout, err := service.RecordPayout(context.Background(), "med_1", 50000, "med1-2024-08", nil)
	assert.NoError(t, err)
	assert.Equal(t, "med1-2024-08", payout.IdempotencyKey)
	assert.Equal(t, model.PayoutRecorded, payout.Status)
	assert.Len(t, payout.EntryIDs, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPayoutReplayReturnsOriginal(t *testing.T) {
	service, mock := newTestMobo(t)

	// The key was already used: the entry dedupes, no balance moves, and the
	// payout recorded the first time comes back.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO mobo.ledger_entries").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO mobo.payouts").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT .* FROM mobo.payouts").
		WithArgs("med1-2024-08").
		WillReturnRows(sqlmock.NewRows([]string{
			"payout_id", "idempotency_key", "mediator_id", "amount", "status", "entry_ids", "created_at", "meta_data",
		}).AddRow("pyt_first", "med1-2024-08", "med_1", int64(50000), model.PayoutRecorded, "{lde_first}", time.Now(), []byte(`{}`)))
	mock.ExpectCommit()

	payout, err := service.RecordPayout(context.Background(), "med_1", 50000, "med1-2024-08", nil)
	assert.NoError(t, err)
	assert.Equal(t, "pyt_first", payout.PayoutID)
	assert.Equal(t, []string{"lde_first"}, payout.EntryIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPayoutRejectsNonPositiveAmount(t *testing.T) {
	service, _ := newTestMobo(t)

	_, err := service.RecordPayout(context.Background(), "med_1", 0, "med1-2024-08", nil)
	assert.Error(t, err)
}
