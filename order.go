package mobo

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/chetanchaudhari789/MOBO-sub001/internal/apierror"
	"github.com/chetanchaudhari789/MOBO-sub001/model"
)

// ClaimOrder claims a campaign slot and creates the order against it. The
// slot claim is the only atomic capacity check; the partner cap is a soft
// pre-check and may be breached under heavy contention, which settlement
// later surfaces as CAP_EXCEEDED.
func (m *Mobo) ClaimOrder(ctx context.Context, order *model.Order) (*model.Order, error) {
	ctx, span := tracer.Start(ctx, "Claiming campaign slot")
	defer span.End()

	campaign, err := m.datasource.GetCampaignByID(ctx, order.CampaignID)
	if err != nil {
		return nil, err
	}

	if assignment, ok := campaign.AssignmentFor(order.MediatorCode); ok && assignment.Limit > 0 {
		count, err := m.datasource.CountPartnerOrders(ctx, campaign.CampaignID, order.MediatorCode)
		if err != nil {
			return nil, logAndRecordError(span, "partner cap count error: ", err)
		}
		if count >= assignment.Limit {
			return nil, apierror.Conflict(apierror.ReasonSoldOutForPartner, fmt.Sprintf("Mediator '%s' reached its limit of %d orders on campaign '%s'", order.MediatorCode, assignment.Limit, campaign.CampaignID))
		}
	}

	if err := m.datasource.ClaimSlot(ctx, campaign.CampaignID); err != nil {
		return nil, err
	}

	m.snapshotEconomics(order, campaign)
	order.OrderID = model.GenerateUUIDWithPrefix("ord")
	order.WorkflowState = model.StateCreated
	order.AffiliateStatus = model.AffiliateUnchecked
	order.PaymentStatus = model.PaymentPending
	order.CreatedAt = time.Now()

	created, err := m.datasource.CreateOrder(ctx, order)
	if err != nil {
		// Slot was claimed but the order never landed; hand the slot back.
		if releaseErr := m.datasource.ReleaseSlot(ctx, campaign.CampaignID); releaseErr != nil {
			logrus.Errorf("releasing slot after failed order create on %s: %v", campaign.CampaignID, releaseErr)
		}
		return nil, errors.Wrap(err, "creating order after slot claim")
	}

	if err := m.datasource.AppendOrderEvent(ctx, model.OrderEvent{
		OrderID: created.OrderID,
		Type:    model.EventSlotClaimed,
		ActorID: created.BuyerID,
		MetaData: map[string]interface{}{
			"campaign_id":   campaign.CampaignID,
			"mediator_code": created.MediatorCode,
		},
	}); err != nil {
		logrus.Errorf("recording slot claim for order %s: %v", created.OrderID, err)
	}

	// Terms are locked once the first slot is consumed.
	if !campaign.Locked {
		if err := m.lockCampaignTerms(ctx, campaign); err != nil {
			logrus.Errorf("locking campaign %s terms: %v", campaign.CampaignID, err)
		}
	}

	m.postWorkflowActions(ctx, created)
	return created, nil
}

// snapshotEconomics copies campaign terms onto the order at creation time.
// Settlement never recomputes these.
func (m *Mobo) snapshotEconomics(order *model.Order, campaign *model.Campaign) {
	if order.Payout == 0 {
		order.Payout = campaign.PayoutFor(order.MediatorCode)
	}
	var totalPrice, totalCommission int64
	for i := range order.LineItems {
		if order.LineItems[i].BuyerCommission == 0 {
			order.LineItems[i].BuyerCommission = campaign.CommissionFor(order.MediatorCode)
		}
		totalPrice += order.LineItems[i].Price
		totalCommission += order.LineItems[i].BuyerCommission
	}
	if order.TotalPrice == 0 {
		order.TotalPrice = totalPrice
	}
	if order.BuyerCommission == 0 {
		order.BuyerCommission = totalCommission
	}
}

func (m *Mobo) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	return m.datasource.GetOrderByID(ctx, orderID)
}

func (m *Mobo) GetOrderByMerchantRef(ctx context.Context, ref string) (*model.Order, error) {
	return m.datasource.GetOrderByMerchantRef(ctx, ref)
}

func (m *Mobo) GetAllOrders(ctx context.Context, limit, offset int) ([]*model.Order, error) {
	return m.datasource.GetAllOrders(ctx, limit, offset)
}

func (m *Mobo) GetOrderEvents(ctx context.Context, orderID string) ([]model.OrderEvent, error) {
	return m.datasource.GetOrderEvents(ctx, orderID)
}

// SubmitProofs stores the proof bundle and advances ORDERED -> PROOF_SUBMITTED.
func (m *Mobo) SubmitProofs(ctx context.Context, orderID string, proofs model.ProofBundle, actorID string) (*model.Order, error) {
	ctx, span := tracer.Start(ctx, "Submitting order proofs")
	defer span.End()

	order, err := m.datasource.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Frozen {
		return nil, apierror.Precondition(apierror.ReasonOrderFrozen, fmt.Sprintf("Order '%s' is frozen", orderID))
	}
	if order.WorkflowState != model.StateOrdered {
		return nil, apierror.Conflict(apierror.ReasonInvalidTransition, fmt.Sprintf("Order '%s' in state '%s' cannot accept proofs", orderID, order.WorkflowState))
	}

	if err := m.datasource.UpdateOrderProofs(ctx, orderID, proofs); err != nil {
		return nil, logAndRecordError(span, "storing proofs error: ", err)
	}
	order.Proofs = proofs

	return m.Transition(ctx, orderID, model.StateOrdered, model.StateProofSubmitted, actorID, nil)
}

// DeleteOrder soft-deletes; the row and its ledger trail stay queryable by
// the database owner forever.
func (m *Mobo) DeleteOrder(ctx context.Context, orderID string) error {
	return m.datasource.SoftDeleteOrder(ctx, orderID)
}

func (m *Mobo) lockCampaignTerms(ctx context.Context, campaign *model.Campaign) error {
	return m.datasource.LockCampaign(ctx, campaign.CampaignID)
}
