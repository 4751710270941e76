package database

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"

	"github.com/chetanchaudhari789/MOBO-sub001/internal/apierror"
	"github.com/chetanchaudhari789/MOBO-sub001/model"
)

func newTestOrder() *model.Order {
	return &model.Order{
		OrderID:          model.GenerateUUIDWithPrefix("ord"),
		MerchantOrderRef: gofakeit.UUID(),
		CampaignID:       "cmp_" + gofakeit.UUID(),
		BuyerID:          "byr_" + gofakeit.UUID(),
		MediatorCode:     "MED01",
		WorkflowState:    model.StateCreated,
		AffiliateStatus:  model.AffiliateUnchecked,
		PaymentStatus:    model.PaymentPending,
		TotalPrice:       149900,
		Payout:           12000,
		BuyerCommission:  5000,
		LineItems: []model.LineItem{
			{ProductID: "prd_1", DealType: model.DealTypeReview, Price: 149900, BuyerCommission: 5000},
		},
		Verifications: model.VerificationMap{},
		CreatedAt:     time.Now(),
	}
}

func TestCreateOrder_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	order := newTestOrder()

	mock.ExpectExec("INSERT INTO mobo.orders").
		WithArgs(order.OrderID, order.MerchantOrderRef, order.PlatformOrderID, order.CampaignID, order.BuyerID, order.MediatorCode, order.WorkflowState, order.AffiliateStatus, order.PaymentStatus, order.TotalPrice, order.Payout, order.BuyerCommission, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), order.Frozen, order.Version, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := ds.CreateOrder(context.Background(), order)
	assert.NoError(t, err)
	assert.Equal(t, order.OrderID, created.OrderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderByID_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	order := newTestOrder()
	order.WorkflowState = model.StateUnderReview
	order.Verifications = model.VerificationMap{
		model.StepOrder: {VerifiedBy: "adm_1", VerifiedAt: time.Now()},
	}

	lineItemsJSON, _ := json.Marshal(order.LineItems)
	proofsJSON, _ := json.Marshal(order.Proofs)
	verificationsJSON, _ := json.Marshal(order.Verifications)
	metaDataJSON, _ := json.Marshal(map[string]interface{}{"source": "test"})

	rows := sqlmock.NewRows([]string{
		"order_id", "merchant_order_ref", "platform_order_id", "campaign_id", "buyer_id", "mediator_code",
		"workflow_state", "affiliate_status", "payment_status", "settlement_mode", "total_price", "payout",
		"buyer_commission", "line_items", "proofs", "verifications", "frozen", "expected_settlement_date",
		"settlement_cycle", "version", "created_at", "deleted_at", "meta_data",
	}).AddRow(
		order.OrderID, order.MerchantOrderRef, "", order.CampaignID, order.BuyerID, order.MediatorCode,
		order.WorkflowState, order.AffiliateStatus, order.PaymentStatus, "", order.TotalPrice, order.Payout,
		order.BuyerCommission, lineItemsJSON, proofsJSON, verificationsJSON, false, nil,
		int64(0), int64(3), order.CreatedAt, nil, metaDataJSON,
	)

	mock.ExpectQuery("SELECT .* FROM mobo.orders").
		WithArgs(order.OrderID).
		WillReturnRows(rows)

	got, err := ds.GetOrderByID(context.Background(), order.OrderID)
	assert.NoError(t, err)
	assert.Equal(t, model.StateUnderReview, got.WorkflowState)
	assert.Len(t, got.LineItems, 1)
	assert.True(t, got.Verified(model.StepOrder))
	assert.Equal(t, int64(3), got.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT .* FROM mobo.orders").
		WithArgs("ord_missing").
		WillReturnRows(sqlmock.NewRows([]string{"order_id"}))

	_, err = ds.GetOrderByID(context.Background(), "ord_missing")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestTransitionOrderState_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	orderID := "ord_123"

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE mobo.orders").
		WithArgs(orderID, model.StateCreated, model.StateRedirected).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO mobo.order_events").
		WithArgs(orderID, model.EventWorkflowTransition, "usr_1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err = ds.TransitionOrderState(context.Background(), orderID, model.StateCreated, model.StateRedirected, model.OrderEvent{
		OrderID: orderID,
		Type:    model.EventWorkflowTransition,
		ActorID: "usr_1",
		MetaData: map[string]interface{}{
			"from": string(model.StateCreated),
			"to":   string(model.StateRedirected),
		},
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionOrderState_StaleState(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	orderID := "ord_123"

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE mobo.orders").
		WithArgs(orderID, model.StateOrdered, model.StateProofSubmitted).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = ds.TransitionOrderState(context.Background(), orderID, model.StateOrdered, model.StateProofSubmitted, model.OrderEvent{OrderID: orderID, Type: model.EventWorkflowTransition})
	assert.Error(t, err)
	assert.True(t, apierror.HasReason(err, apierror.ReasonInvalidTransition))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveOrder_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	orderID := "ord_123"
	settlementDate := time.Now().AddDate(0, 0, 14)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE mobo.orders").
		WithArgs(orderID, model.StateApproved, model.AffiliatePendingCooling, settlementDate, model.StateUnderReview).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO mobo.order_events").
		WithArgs(orderID, model.EventVerified, "adm_1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO mobo.order_events").
		WithArgs(orderID, model.EventWorkflowTransition, "adm_1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err = ds.ApproveOrder(context.Background(), orderID, settlementDate, []model.OrderEvent{
		{OrderID: orderID, Type: model.EventVerified, ActorID: "adm_1"},
		{OrderID: orderID, Type: model.EventWorkflowTransition, ActorID: "adm_1"},
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveOrder_NotUnderReview(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE mobo.orders").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = ds.ApproveOrder(context.Background(), "ord_123", time.Now(), []model.OrderEvent{{OrderID: "ord_123"}})
	assert.True(t, apierror.HasReason(err, apierror.ReasonInvalidTransition))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFreezeOrder_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	orderID := "ord_123"

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE mobo.orders").
		WithArgs(orderID, model.AffiliateFrozenDisputed).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO mobo.order_events").
		WithArgs(orderID, model.EventFrozen, "adm_1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err = ds.FreezeOrder(context.Background(), orderID, model.AffiliateFrozenDisputed, model.OrderEvent{OrderID: orderID, Type: model.EventFrozen, ActorID: "adm_1"})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderEvents_OrderedBySeq(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	orderID := "ord_123"

	rows := sqlmock.NewRows([]string{"order_id", "seq", "event_type", "actor_id", "meta_data", "created_at"}).
		AddRow(orderID, int64(1), model.EventWorkflowTransition, "usr_1", []byte(`{"to":"REDIRECTED"}`), time.Now()).
		AddRow(orderID, int64(2), model.EventWorkflowTransition, "usr_1", []byte(`{"to":"ORDERED"}`), time.Now())

	mock.ExpectQuery("SELECT .* FROM mobo.order_events").
		WithArgs(orderID).
		WillReturnRows(rows)

	events, err := ds.GetOrderEvents(context.Background(), orderID)
	assert.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, int64(1), events[0].Seq)
	assert.Equal(t, int64(2), events[1].Seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}
