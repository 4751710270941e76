package mobo

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chetanchaudhari789/MOBO-sub001/config"
	"github.com/chetanchaudhari789/MOBO-sub001/database"
	"github.com/chetanchaudhari789/MOBO-sub001/internal/apierror"
	"github.com/chetanchaudhari789/MOBO-sub001/model"
)

func newTestMobo(t *testing.T) (*Mobo, sqlmock.Sqlmock) {
	t.Helper()
	mr := miniredis.RunT(t)
	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
	})

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	service, err := NewMobo(&database.Datasource{Conn: db})
	require.NoError(t, err)
	return service, mock
}

var orderColumns = []string{
	"order_id", "merchant_order_ref", "platform_order_id", "campaign_id", "buyer_id",
	"mediator_code", "workflow_state", "affiliate_status", "payment_status", "settlement_mode",
	"total_price", "payout", "buyer_commission", "line_items", "proofs", "verifications",
	"frozen", "expected_settlement_date", "settlement_cycle", "version", "created_at", "deleted_at", "meta_data",
}

func orderRows(t *testing.T, order *model.Order) *sqlmock.Rows {
	t.Helper()
	lineItemsJSON, err := json.Marshal(order.LineItems)
	require.NoError(t, err)
	proofsJSON, err := json.Marshal(order.Proofs)
	require.NoError(t, err)
	verificationsJSON, err := json.Marshal(order.Verifications)
	require.NoError(t, err)

	var settlementDate interface{}
	if order.ExpectedSettlementDate != nil {
		settlementDate = *order.ExpectedSettlementDate
	}
	return sqlmock.NewRows(orderColumns).AddRow(
		order.OrderID, order.MerchantOrderRef, order.PlatformOrderID, order.CampaignID, order.BuyerID,
		order.MediatorCode, order.WorkflowState, order.AffiliateStatus, order.PaymentStatus, order.SettlementMode,
		order.TotalPrice, order.Payout, order.BuyerCommission, lineItemsJSON, proofsJSON, verificationsJSON,
		order.Frozen, settlementDate, order.SettlementCycle, order.Version, order.CreatedAt, nil, []byte(`{}`),
	)
}

var campaignColumns = []string{
	"campaign_id", "brand_id", "name", "status", "total_slots", "used_slots", "payout",
	"commission", "deal_types", "assignments", "locked", "version", "created_at", "deleted_at", "meta_data",
}

func campaignRows(t *testing.T, campaign *model.Campaign) *sqlmock.Rows {
	t.Helper()
	assignmentsJSON, err := json.Marshal(campaign.Assignments)
	require.NoError(t, err)

	dealTypes := "{"
	for i, dt := range campaign.DealTypes {
		if i > 0 {
			dealTypes += ","
		}
		dealTypes += string(dt)
	}
	dealTypes += "}"

	return sqlmock.NewRows(campaignColumns).AddRow(
		campaign.CampaignID, campaign.BrandID, campaign.Name, campaign.Status, campaign.TotalSlots,
		campaign.UsedSlots, campaign.Payout, campaign.Commission, dealTypes, assignmentsJSON,
		campaign.Locked, campaign.Version, campaign.CreatedAt, nil, []byte(`{}`),
	)
}

func testCampaign() *model.Campaign {
	return &model.Campaign{
		CampaignID: "cmp_" + gofakeit.UUID(),
		BrandID:    "brd_" + gofakeit.UUID(),
		Name:       gofakeit.Company(),
		Status:     model.CampaignActive,
		TotalSlots: 10,
		UsedSlots:  3,
		Payout:     10000,
		Commission: 3000,
		DealTypes:  []model.DealType{model.DealTypeReview},
		Locked:     true,
		Version:    2,
		CreatedAt:  time.Now(),
	}
}

func TestClaimOrder(t *testing.T) {
	service, mock := newTestMobo(t)
	campaign := testCampaign()

	order := &model.Order{
		MerchantOrderRef: gofakeit.UUID(),
		CampaignID:       campaign.CampaignID,
		BuyerID:          "shp_" + gofakeit.UUID(),
		MediatorCode:     "MED01",
		LineItems: []model.LineItem{
			{ProductID: gofakeit.UUID(), DealType: model.DealTypeReview, Price: 49900},
		},
	}

	mock.ExpectQuery("SELECT .* FROM mobo.campaigns WHERE campaign_id = ").
		WithArgs(campaign.CampaignID).
		WillReturnRows(campaignRows(t, campaign))

	mock.ExpectExec("UPDATE mobo.campaigns SET used_slots = used_slots \\+ 1").
		WithArgs(campaign.CampaignID, model.CampaignActive).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec("INSERT INTO mobo.orders").
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO mobo.order_events").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	created, err := service.ClaimOrder(context.Background(), order)
	assert.NoError(t, err)
	assert.Contains(t, created.OrderID, "ord_")
	assert.Equal(t, model.StateCreated, created.WorkflowState)
	assert.Equal(t, model.AffiliateUnchecked, created.AffiliateStatus)
	assert.Equal(t, model.PaymentPending, created.PaymentStatus)
	// Economics snapshotted from the campaign at claim time.
	assert.Equal(t, int64(10000), created.Payout)
	assert.Equal(t, int64(3000), created.LineItems[0].BuyerCommission)
	assert.Equal(t, int64(49900), created.TotalPrice)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimOrderSoldOut(t *testing.T) {
	service, mock := newTestMobo(t)
	campaign := testCampaign()
	campaign.UsedSlots = campaign.TotalSlots

	mock.ExpectQuery("SELECT .* FROM mobo.campaigns WHERE campaign_id = ").
		WithArgs(campaign.CampaignID).
		WillReturnRows(campaignRows(t, campaign))

	mock.ExpectExec("UPDATE mobo.campaigns SET used_slots = used_slots \\+ 1").
		WithArgs(campaign.CampaignID, model.CampaignActive).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := service.ClaimOrder(context.Background(), &model.Order{
		MerchantOrderRef: gofakeit.UUID(),
		CampaignID:       campaign.CampaignID,
		BuyerID:          "shp_1",
		MediatorCode:     "MED01",
	})
	assert.Error(t, err)
	assert.True(t, apierror.HasReason(err, apierror.ReasonSoldOut))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimOrderPartnerCapReached(t *testing.T) {
	service, mock := newTestMobo(t)
	campaign := testCampaign()
	campaign.Assignments = map[string]model.Assignment{
		"MED01": {Limit: 2},
	}

	mock.ExpectQuery("SELECT .* FROM mobo.campaigns WHERE campaign_id = ").
		WithArgs(campaign.CampaignID).
		WillReturnRows(campaignRows(t, campaign))

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM mobo.orders").
		WithArgs(campaign.CampaignID, "MED01", model.StateRejected, model.StateFailed).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	_, err := service.ClaimOrder(context.Background(), &model.Order{
		MerchantOrderRef: gofakeit.UUID(),
		CampaignID:       campaign.CampaignID,
		BuyerID:          "shp_1",
		MediatorCode:     "MED01",
	})
	assert.Error(t, err)
	assert.True(t, apierror.HasReason(err, apierror.ReasonSoldOutForPartner))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimOrderLocksCampaignTerms(t *testing.T) {
	service, mock := newTestMobo(t)
	campaign := testCampaign()
	campaign.Locked = false

	mock.ExpectQuery("SELECT .* FROM mobo.campaigns WHERE campaign_id = ").
		WithArgs(campaign.CampaignID).
		WillReturnRows(campaignRows(t, campaign))
	mock.ExpectExec("UPDATE mobo.campaigns SET used_slots = used_slots \\+ 1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO mobo.orders").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO mobo.order_events").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectExec("UPDATE mobo.campaigns SET locked = TRUE").
		WithArgs(campaign.CampaignID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := service.ClaimOrder(context.Background(), &model.Order{
		MerchantOrderRef: gofakeit.UUID(),
		CampaignID:       campaign.CampaignID,
		BuyerID:          "shp_1",
		MediatorCode:     "MED01",
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionRejectsIllegalEdge(t *testing.T) {
	service, mock := newTestMobo(t)

	order := &model.Order{
		OrderID:         "ord_1",
		CampaignID:      "cmp_1",
		WorkflowState:   model.StateCreated,
		AffiliateStatus: model.AffiliateUnchecked,
		PaymentStatus:   model.PaymentPending,
		CreatedAt:       time.Now(),
	}
	mock.ExpectQuery("SELECT .* FROM mobo.orders").
		WithArgs("ord_1").
		WillReturnRows(orderRows(t, order))

	_, err := service.Transition(context.Background(), "ord_1", model.StateCreated, model.StateCompleted, "ops_1", nil)
	assert.Error(t, err)
	assert.True(t, apierror.HasReason(err, apierror.ReasonInvalidTransition))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionRejectsUnsettleEdge(t *testing.T) {
	service, mock := newTestMobo(t)

	order := &model.Order{
		OrderID:         "ord_1",
		CampaignID:      "cmp_1",
		WorkflowState:   model.StateCompleted,
		AffiliateStatus: model.AffiliateSettled,
		PaymentStatus:   model.PaymentPaid,
		CreatedAt:       time.Now(),
	}
	mock.ExpectQuery("SELECT .* FROM mobo.orders").
		WithArgs("ord_1").
		WillReturnRows(orderRows(t, order))

	// COMPLETED -> APPROVED only exists for the settlement coordinator.
	_, err := service.Transition(context.Background(), "ord_1", model.StateCompleted, model.StateApproved, "ops_1", nil)
	assert.Error(t, err)
	assert.True(t, apierror.HasReason(err, apierror.ReasonInvalidTransition))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionFrozenOrder(t *testing.T) {
	service, mock := newTestMobo(t)

	order := &model.Order{
		OrderID:         "ord_1",
		CampaignID:      "cmp_1",
		WorkflowState:   model.StateOrdered,
		AffiliateStatus: model.AffiliateFrozenDisputed,
		PaymentStatus:   model.PaymentPending,
		Frozen:          true,
		CreatedAt:       time.Now(),
	}
	mock.ExpectQuery("SELECT .* FROM mobo.orders").
		WithArgs("ord_1").
		WillReturnRows(orderRows(t, order))

	_, err := service.Transition(context.Background(), "ord_1", model.StateOrdered, model.StateProofSubmitted, "ops_1", nil)
	assert.Error(t, err)
	assert.True(t, apierror.HasReason(err, apierror.ReasonOrderFrozen))
	assert.NoError(t, mock.ExpectationsWereMet())
}
