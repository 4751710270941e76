package mobo

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/chetanchaudhari789/MOBO-sub001/internal/apierror"
	"github.com/chetanchaudhari789/MOBO-sub001/internal/search"
	"github.com/chetanchaudhari789/MOBO-sub001/model"
)

var tracer = otel.Tracer("mobo.settlement")

func logAndRecordError(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	logrus.Error(msg, err)
	return err
}

// Transition moves an order along one legal workflow edge. The caller states
// the edge explicitly; a stale `from` loses against the conditional update in
// the datasource and surfaces as InvalidTransition.
func (m *Mobo) Transition(ctx context.Context, orderID string, from, to model.WorkflowState, actorID string, metadata map[string]interface{}) (*model.Order, error) {
	ctx, span := tracer.Start(ctx, "Transitioning order workflow")
	defer span.End()

	order, err := m.datasource.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Frozen {
		return nil, apierror.Precondition(apierror.ReasonOrderFrozen, fmt.Sprintf("Order '%s' is frozen", orderID))
	}
	if order.WorkflowState != from {
		return nil, apierror.Conflict(apierror.ReasonInvalidTransition, fmt.Sprintf("Order '%s' is in state '%s', not '%s'", orderID, order.WorkflowState, from))
	}
	if !model.CanTransition(from, to) {
		return nil, apierror.Conflict(apierror.ReasonInvalidTransition, fmt.Sprintf("No edge from '%s' to '%s'", from, to))
	}
	// The reverse edges exist only for the settlement coordinator.
	if model.IsUnsettleEdge(from, to) {
		return nil, apierror.Conflict(apierror.ReasonInvalidTransition, fmt.Sprintf("Edge '%s' to '%s' is reserved for unsettlement", from, to))
	}

	eventMeta := map[string]interface{}{
		"from": string(from),
		"to":   string(to),
	}
	for k, v := range metadata {
		eventMeta[k] = v
	}

	err = m.datasource.TransitionOrderState(ctx, orderID, from, to, model.OrderEvent{
		OrderID:  orderID,
		Type:     model.EventWorkflowTransition,
		ActorID:  actorID,
		MetaData: eventMeta,
	})
	if err != nil {
		return nil, logAndRecordError(span, "workflow transition error: ", err)
	}

	order.WorkflowState = to
	order.Version++
	m.postWorkflowActions(ctx, order)
	return order, nil
}

// Reject moves an order under verification to the REJECTED terminal state and
// mirrors the decision on the affiliate status.
func (m *Mobo) Reject(ctx context.Context, orderID, actorID, reason string) (*model.Order, error) {
	ctx, span := tracer.Start(ctx, "Rejecting order")
	defer span.End()

	order, err := m.datasource.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Frozen {
		return nil, apierror.Precondition(apierror.ReasonOrderFrozen, fmt.Sprintf("Order '%s' is frozen", orderID))
	}
	if order.WorkflowState != model.StateProofSubmitted && order.WorkflowState != model.StateUnderReview {
		return nil, apierror.Conflict(apierror.ReasonInvalidTransition, fmt.Sprintf("Order '%s' in state '%s' cannot be rejected", orderID, order.WorkflowState))
	}

	err = m.datasource.TransitionOrderState(ctx, orderID, order.WorkflowState, model.StateRejected, model.OrderEvent{
		OrderID: orderID,
		Type:    model.EventWorkflowTransition,
		ActorID: actorID,
		MetaData: map[string]interface{}{
			"from":   string(order.WorkflowState),
			"to":     string(model.StateRejected),
			"reason": reason,
		},
	})
	if err != nil {
		return nil, logAndRecordError(span, "reject order error: ", err)
	}

	// Rejection releases the campaign slot the order was holding.
	if err := m.datasource.ReleaseSlot(ctx, order.CampaignID); err != nil {
		logrus.Errorf("releasing slot for rejected order %s: %v", orderID, err)
	}

	order.WorkflowState = model.StateRejected
	order.AffiliateStatus = model.AffiliateRejected
	m.postWorkflowActions(ctx, order)
	return order, nil
}

// Freeze marks the order disputed and blocks every downstream mutation until
// an operator resolves it.
func (m *Mobo) Freeze(ctx context.Context, orderID, actorID, reason string) error {
	ctx, span := tracer.Start(ctx, "Freezing order")
	defer span.End()

	err := m.datasource.FreezeOrder(ctx, orderID, model.AffiliateFrozenDisputed, model.OrderEvent{
		OrderID: orderID,
		Type:    model.EventFrozen,
		ActorID: actorID,
		MetaData: map[string]interface{}{
			"reason": reason,
		},
	})
	if err != nil {
		return logAndRecordError(span, "freeze order error: ", err)
	}
	return nil
}

// postWorkflowActions fans out the webhook and search indexing for a
// state change. Both are asynchronous and best-effort.
func (m *Mobo) postWorkflowActions(_ context.Context, order *model.Order) {
	go func() {
		if err := SendWebhook(NewWebhook{
			Event:   getEventFromState(order.WorkflowState),
			Payload: order,
		}); err != nil {
			logrus.Errorf("webhook enqueue error for order %s: %v", order.OrderID, err)
		}
	}()
	if err := m.queue.queueIndexData(order.OrderID, search.CollectionOrders, order); err != nil {
		logrus.Errorf("index enqueue error for order %s: %v", order.OrderID, err)
	}
}
