package mobo

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"

	"github.com/chetanchaudhari789/MOBO-sub001/internal/apierror"
	"github.com/chetanchaudhari789/MOBO-sub001/model"
)

func underReviewOrder() *model.Order {
	return &model.Order{
		OrderID:          "ord_" + gofakeit.UUID(),
		MerchantOrderRef: gofakeit.UUID(),
		CampaignID:       "cmp_1",
		BuyerID:          "shp_1",
		MediatorCode:     "MED01",
		WorkflowState:    model.StateUnderReview,
		AffiliateStatus:  model.AffiliateUnchecked,
		PaymentStatus:    model.PaymentPending,
		TotalPrice:       49900,
		Payout:           10000,
		BuyerCommission:  3000,
		LineItems: []model.LineItem{
			{ProductID: gofakeit.UUID(), DealType: model.DealTypeDiscount, Price: 49900, BuyerCommission: 3000},
		},
		Proofs:    model.ProofBundle{PurchaseScreenshot: "proofs/purchase.png"},
		CreatedAt: time.Now(),
	}
}

func TestVerifyOrderStepApproves(t *testing.T) {
	service, mock := newTestMobo(t)
	order := underReviewOrder()

	mock.ExpectQuery("SELECT .* FROM mobo.orders").
		WithArgs(order.OrderID).
		WillReturnRows(orderRows(t, order))

	// Persist the verification map plus the VERIFIED event.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE mobo.orders SET verifications = ").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO mobo.order_events").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	// A discount-only order needs no further steps, so finalize approves and
	// writes the whole-order VERIFIED event next to the transition.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE mobo.orders SET workflow_state = ").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO mobo.order_events").
		WithArgs(order.OrderID, model.EventVerified, "ops_1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO mobo.order_events").
		WithArgs(order.OrderID, model.EventWorkflowTransition, "ops_1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result, err := service.Verify(context.Background(), order.OrderID, model.StepOrder, "ops_1")
	assert.NoError(t, err)
	assert.True(t, result.Approved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyMissingProof(t *testing.T) {
	service, mock := newTestMobo(t)
	order := underReviewOrder()
	order.Proofs = model.ProofBundle{}

	mock.ExpectQuery("SELECT .* FROM mobo.orders").
		WithArgs(order.OrderID).
		WillReturnRows(orderRows(t, order))

	_, err := service.Verify(context.Background(), order.OrderID, model.StepOrder, "ops_1")
	assert.Error(t, err)
	assert.True(t, apierror.HasReason(err, apierror.ReasonMissingProof))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyStepBeforePurchaseVerified(t *testing.T) {
	service, mock := newTestMobo(t)
	order := underReviewOrder()
	order.LineItems[0].DealType = model.DealTypeRating
	order.Proofs.RatingScreenshot = "proofs/rating.png"

	mock.ExpectQuery("SELECT .* FROM mobo.orders").
		WithArgs(order.OrderID).
		WillReturnRows(orderRows(t, order))

	_, err := service.Verify(context.Background(), order.OrderID, model.StepRating, "ops_1")
	assert.Error(t, err)
	assert.True(t, apierror.HasReason(err, apierror.ReasonPurchaseNotVerified))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyStepNotRequired(t *testing.T) {
	service, mock := newTestMobo(t)
	order := underReviewOrder()
	order.Verifications = model.VerificationMap{
		model.StepOrder: {VerifiedAt: time.Now(), VerifiedBy: "ops_1"},
	}
	order.Proofs.RatingScreenshot = "proofs/rating.png"

	mock.ExpectQuery("SELECT .* FROM mobo.orders").
		WithArgs(order.OrderID).
		WillReturnRows(orderRows(t, order))

	// Discount deals never require a rating step.
	_, err := service.Verify(context.Background(), order.OrderID, model.StepRating, "ops_1")
	assert.Error(t, err)
	assert.True(t, apierror.HasReason(err, apierror.ReasonNotRequired))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyAlreadyVerified(t *testing.T) {
	service, mock := newTestMobo(t)
	order := underReviewOrder()
	order.Verifications = model.VerificationMap{
		model.StepOrder: {VerifiedAt: time.Now(), VerifiedBy: "ops_1"},
	}

	mock.ExpectQuery("SELECT .* FROM mobo.orders").
		WithArgs(order.OrderID).
		WillReturnRows(orderRows(t, order))

	result, err := service.Verify(context.Background(), order.OrderID, model.StepOrder, "ops_2")
	assert.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Equal(t, VerifyReasonAlreadyVerified, result.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyOrderStepWithOutstandingProofs(t *testing.T) {
	service, mock := newTestMobo(t)
	order := underReviewOrder()
	order.LineItems[0].DealType = model.DealTypeReview

	mock.ExpectQuery("SELECT .* FROM mobo.orders").
		WithArgs(order.OrderID).
		WillReturnRows(orderRows(t, order))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE mobo.orders SET verifications = ").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO mobo.order_events").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result, err := service.Verify(context.Background(), order.OrderID, model.StepOrder, "ops_1")
	assert.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Equal(t, VerifyReasonMissingProofs, result.Reason)
	// A review deal still owes the review and return-window proofs.
	assert.Contains(t, result.Missing, model.StepReview)
	assert.Contains(t, result.Missing, model.StepReturnWindow)
	assert.Equal(t, model.StateUnderReview, order.WorkflowState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyFrozenOrder(t *testing.T) {
	service, mock := newTestMobo(t)
	order := underReviewOrder()
	order.Frozen = true

	mock.ExpectQuery("SELECT .* FROM mobo.orders").
		WithArgs(order.OrderID).
		WillReturnRows(orderRows(t, order))

	_, err := service.Verify(context.Background(), order.OrderID, model.StepOrder, "ops_1")
	assert.Error(t, err)
	assert.True(t, apierror.HasReason(err, apierror.ReasonOrderFrozen))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeMissingVerifications(t *testing.T) {
	service, _ := newTestMobo(t)
	order := underReviewOrder()
	order.LineItems[0].DealType = model.DealTypeReview
	order.Proofs = model.ProofBundle{
		PurchaseScreenshot:     "proofs/purchase.png",
		ReviewScreenshot:       "proofs/review.png",
		ReturnWindowScreenshot: "proofs/return.png",
	}
	order.Verifications = model.VerificationMap{
		model.StepOrder:  {VerifiedAt: time.Now(), VerifiedBy: "ops_1"},
		model.StepReview: {VerifiedAt: time.Now(), VerifiedBy: "ops_1"},
	}

	// Every proof is present, but the return window still needs sign-off.
	result, err := service.Finalize(context.Background(), order, "ops_1")
	assert.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Equal(t, VerifyReasonMissingVerifications, result.Reason)
	assert.Equal(t, []model.ProofStep{model.StepReturnWindow}, result.Missing)
}

func TestFinalizeNotUnderReview(t *testing.T) {
	service, _ := newTestMobo(t)
	order := underReviewOrder()
	order.WorkflowState = model.StateOrdered

	result, err := service.Finalize(context.Background(), order, "ops_1")
	assert.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Equal(t, VerifyReasonNotUnderReview, result.Reason)
}
