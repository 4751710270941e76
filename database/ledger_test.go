package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/chetanchaudhari789/MOBO-sub001/internal/apierror"
	"github.com/chetanchaudhari789/MOBO-sub001/model"
)

func newTestEntry(entryType model.EntryType, ownerID string, amount int64) *model.LedgerEntry {
	return &model.LedgerEntry{
		EntryID:        model.GenerateUUIDWithPrefix("lde"),
		IdempotencyKey: model.SettlementKey("ord_123", 0, model.LegBrandPayout),
		Type:           entryType,
		OwnerID:        ownerID,
		OwnerType:      model.OwnerMediator,
		Amount:         amount,
		Currency:       "INR",
		OrderID:        "ord_123",
		CampaignID:     "cmp_1",
		CreatedAt:      time.Now(),
	}
}

func TestApplyEntries_CreditMovesBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	entry := newTestEntry(model.EntryCredit, "med_1", 12000)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO mobo.ledger_entries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO mobo.wallets").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE mobo.wallets").
		WithArgs("med_1", int64(12000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = ds.ApplyEntries(context.Background(), []*model.LedgerEntry{entry})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyEntries_ReplaySkipsBalanceDelta(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	entry := newTestEntry(model.EntryCredit, "med_1", 12000)

	// ON CONFLICT DO NOTHING matched an existing key: no wallet update follows.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO mobo.ledger_entries").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err = ds.ApplyEntries(context.Background(), []*model.LedgerEntry{entry})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyEntries_EnforcedDebitInsufficientFunds(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	entry := newTestEntry(model.EntryDebit, "med_1", 12000)
	entry.EnforceBalance = true

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO mobo.ledger_entries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO mobo.wallets").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE mobo.wallets").
		WithArgs("med_1", int64(12000)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = ds.ApplyEntries(context.Background(), []*model.LedgerEntry{entry})
	assert.Error(t, err)
	assert.True(t, apierror.HasReason(err, apierror.ReasonInsufficientFunds))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyEntries_UnenforcedDebitGoesNegative(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	entry := newTestEntry(model.EntryDebit, "brd_1", 17000)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO mobo.ledger_entries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO mobo.wallets").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE mobo.wallets").
		WithArgs("brd_1", int64(17000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = ds.ApplyEntries(context.Background(), []*model.LedgerEntry{entry})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitSettlement_SingleTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	debit := newTestEntry(model.EntryDebit, "brd_1", 17000)
	credit := newTestEntry(model.EntryCredit, "med_1", 12000)
	credit.IdempotencyKey = model.SettlementKey("ord_123", 0, model.LegMediatorMargin)

	mock.ExpectBegin()
	// brand debit leg
	mock.ExpectExec("INSERT INTO mobo.ledger_entries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO mobo.wallets").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE mobo.wallets").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// mediator credit leg
	mock.ExpectExec("INSERT INTO mobo.ledger_entries").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("INSERT INTO mobo.wallets").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE mobo.wallets").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// order finalization and event log
	mock.ExpectExec("UPDATE mobo.orders").
		WithArgs("ord_123", model.StateCompleted, model.AffiliateSettled, model.PaymentPaid, "auto", model.StateApproved, model.StateRewardPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO mobo.order_events").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err = ds.CommitSettlement(context.Background(), "ord_123", []*model.LedgerEntry{debit, credit},
		model.StateCompleted, model.AffiliateSettled, model.PaymentPaid, "auto",
		[]model.OrderEvent{{OrderID: "ord_123", Type: model.EventSettled, ActorID: "adm_1"}})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitSettlement_AlreadySettled(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	entry := newTestEntry(model.EntryCredit, "med_1", 12000)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO mobo.ledger_entries").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE mobo.orders").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = ds.CommitSettlement(context.Background(), "ord_123", []*model.LedgerEntry{entry},
		model.StateCompleted, model.AffiliateSettled, model.PaymentPaid, "auto", nil)
	assert.Error(t, err)
	assert.True(t, apierror.HasReason(err, apierror.ReasonAlreadySettled))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitUnsettlement_NotSettled(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	entry := newTestEntry(model.EntryCredit, "brd_1", 17000)
	entry.IdempotencyKey = model.UnsettleKey(entry.IdempotencyKey)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO mobo.ledger_entries").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE mobo.orders").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = ds.CommitUnsettlement(context.Background(), "ord_123", []*model.LedgerEntry{entry}, nil)
	assert.Error(t, err)
	assert.True(t, apierror.HasReason(err, apierror.ReasonNotSettled))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateWallet_FirstTouch(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("INSERT INTO mobo.wallets").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT .* FROM mobo.wallets").
		WithArgs("med_1").
		WillReturnRows(sqlmock.NewRows([]string{"wallet_id", "owner_id", "owner_type", "balance", "currency", "version", "created_at", "meta_data"}).
			AddRow("wlt_1", "med_1", model.OwnerMediator, int64(0), "INR", int64(0), time.Now(), []byte(`{}`)))

	wallet, err := ds.GetOrCreateWallet(context.Background(), "med_1", model.OwnerMediator, "INR")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), wallet.Balance)
	assert.Equal(t, model.OwnerMediator, wallet.OwnerType)
	assert.NoError(t, mock.ExpectationsWereMet())
}
