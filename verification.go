package mobo

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chetanchaudhari789/MOBO-sub001/config"
	"github.com/chetanchaudhari789/MOBO-sub001/internal/apierror"
	"github.com/chetanchaudhari789/MOBO-sub001/model"
)

// VerificationResult is the outcome of a verification attempt or a finalize
// pass. Approved is true only when the whole order cleared review.
type VerificationResult struct {
	Approved bool              `json:"approved"`
	Reason   string            `json:"reason,omitempty"`
	Missing  []model.ProofStep `json:"missing,omitempty"`
}

const (
	VerifyReasonAlreadyVerified      = "ALREADY_VERIFIED"
	VerifyReasonMissingProofs        = "MISSING_PROOFS"
	VerifyReasonMissingVerifications = "MISSING_VERIFICATIONS"
	VerifyReasonNotUnderReview       = "NOT_UNDER_REVIEW"
	VerifyReasonNoLineItems          = "NO_LINE_ITEMS"
	VerifyReasonOrderStepUnverified  = "ORDER_STEP_UNVERIFIED"
)

// Verify records one proof-step verification and then attempts to finalize
// the order. Verifying an already-verified step reports ALREADY_VERIFIED
// without error, so review tooling can re-submit safely.
func (m *Mobo) Verify(ctx context.Context, orderID string, step model.ProofStep, actorID string) (*VerificationResult, error) {
	ctx, span := tracer.Start(ctx, "Verifying proof step")
	defer span.End()

	order, err := m.datasource.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Frozen {
		return nil, apierror.Precondition(apierror.ReasonOrderFrozen, fmt.Sprintf("Order '%s' is frozen", orderID))
	}
	if order.WorkflowState != model.StateUnderReview {
		return nil, apierror.Conflict(apierror.ReasonInvalidWorkflowState, fmt.Sprintf("Order '%s' is in state '%s', verification requires UNDER_REVIEW", orderID, order.WorkflowState))
	}
	if step != model.StepOrder && !order.Verified(model.StepOrder) {
		return nil, apierror.Precondition(apierror.ReasonPurchaseNotVerified, "The order step must be verified before any other step")
	}
	if step != model.StepOrder && !order.RequiresStep(step) {
		return nil, apierror.Unprocessable(apierror.ReasonNotRequired, fmt.Sprintf("Step '%s' is not required for order '%s'", step, orderID))
	}
	if !order.HasProof(step) {
		return nil, apierror.Unprocessable(apierror.ReasonMissingProof, fmt.Sprintf("Order '%s' has no proof for step '%s'", orderID, step))
	}
	if order.Verified(step) {
		return &VerificationResult{Approved: false, Reason: VerifyReasonAlreadyVerified}, nil
	}

	order.MarkVerified(step, actorID, time.Now())
	err = m.datasource.UpdateOrderVerifications(ctx, orderID, order.Verifications, model.OrderEvent{
		OrderID: orderID,
		Type:    model.EventVerified,
		ActorID: actorID,
		MetaData: map[string]interface{}{
			"step": string(step),
		},
	})
	if err != nil {
		return nil, logAndRecordError(span, "persisting verification error: ", err)
	}

	return m.Finalize(ctx, order, actorID)
}

// Finalize decides whether the order clears review. Safe to call after every
// single-step verification; it only moves the order when everything required
// is present and verified.
func (m *Mobo) Finalize(ctx context.Context, order *model.Order, actorID string) (*VerificationResult, error) {
	if order.WorkflowState != model.StateUnderReview {
		return &VerificationResult{Approved: false, Reason: VerifyReasonNotUnderReview}, nil
	}
	if !order.Verified(model.StepOrder) {
		return &VerificationResult{Approved: false, Reason: VerifyReasonOrderStepUnverified}, nil
	}
	if len(order.LineItems) == 0 {
		return &VerificationResult{Approved: false, Reason: VerifyReasonNoLineItems}, nil
	}
	if missing := order.MissingProofs(); len(missing) > 0 {
		return &VerificationResult{Approved: false, Reason: VerifyReasonMissingProofs, Missing: missing}, nil
	}
	if missing := order.MissingVerifications(); len(missing) > 0 {
		return &VerificationResult{Approved: false, Reason: VerifyReasonMissingVerifications, Missing: missing}, nil
	}

	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	settlementDate := time.Now().AddDate(0, 0, conf.Settlement.CoolingPeriodDays)

	// Whole-order approval records its own VERIFIED event alongside the
	// transition, on top of the per-step events written during review.
	err = m.datasource.ApproveOrder(ctx, order.OrderID, settlementDate, []model.OrderEvent{
		{
			OrderID: order.OrderID,
			Type:    model.EventVerified,
			ActorID: actorID,
			MetaData: map[string]interface{}{
				"order_approved": true,
			},
		},
		{
			OrderID: order.OrderID,
			Type:    model.EventWorkflowTransition,
			ActorID: actorID,
			MetaData: map[string]interface{}{
				"from":                     string(model.StateUnderReview),
				"to":                       string(model.StateApproved),
				"expected_settlement_date": settlementDate.Format(time.RFC3339),
			},
		},
	})
	if err != nil {
		logrus.Errorf("approving order %s: %v", order.OrderID, err)
		return nil, err
	}

	order.WorkflowState = model.StateApproved
	order.AffiliateStatus = model.AffiliatePendingCooling
	order.ExpectedSettlementDate = &settlementDate
	if err := m.queue.queueSettlementDue(order.OrderID, settlementDate); err != nil {
		logrus.Errorf("queueing settlement for order %s: %v", order.OrderID, err)
	}
	m.postWorkflowActions(ctx, order)

	return &VerificationResult{Approved: true}, nil
}
