package mobo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chetanchaudhari789/MOBO-sub001/config"
	"github.com/chetanchaudhari789/MOBO-sub001/internal/apierror"
	redlock "github.com/chetanchaudhari789/MOBO-sub001/internal/lock"
	"github.com/chetanchaudhari789/MOBO-sub001/internal/search"
	"github.com/chetanchaudhari789/MOBO-sub001/model"
)

// Settlement modes. Wallet settlements move money through the internal
// ledger; external settlements are paid by an outside rail and only recorded.
const (
	ModeWallet   = "wallet"
	ModeExternal = "external"
)

func (m *Mobo) acquireOrderLock(ctx context.Context, orderID string) (*redlock.Locker, error) {
	locker := redlock.NewLocker(m.redis, orderID, model.GenerateUUIDWithPrefix("loc"))
	if err := locker.Lock(ctx, 5*time.Minute); err != nil {
		return nil, err
	}
	return locker, nil
}

// Settle pays out an approved order. The whole operation runs under a
// per-order redis lock, and all ledger entries plus the final order update
// commit in one database transaction, so a retried settlement replays as a
// no-op instead of double-paying.
func (m *Mobo) Settle(ctx context.Context, orderID, actorID, mode string) (*model.Order, error) {
	ctx, span := tracer.Start(ctx, "Settling order")
	defer span.End()

	if mode == "" {
		mode = ModeWallet
	}
	if mode != ModeWallet && mode != ModeExternal {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("Unknown settlement mode '%s'", mode), nil)
	}

	locker, err := m.acquireOrderLock(ctx, orderID)
	if err != nil {
		return nil, logAndRecordError(span, "settlement lock error: ", err)
	}
	defer func(locker *redlock.Locker, ctx context.Context) {
		if err := locker.Unlock(ctx); err != nil {
			logrus.Error("settlement unlock error ", err)
		}
	}(locker, ctx)

	order, err := m.datasource.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := m.checkSettlementEligibility(ctx, order, actorID); err != nil {
		return nil, err
	}

	split, err := model.ComputeSplit(order.Payout, order.BuyerCommission)
	if err != nil {
		return nil, apierror.Unprocessable(apierror.ReasonInvalidEconomics, err.Error())
	}

	campaign, err := m.datasource.GetCampaignByID(ctx, order.CampaignID)
	if err != nil {
		return nil, err
	}

	// The partner cap is re-checked at settlement time. A breach does not
	// block the terminal transition; it settles the order as CAP_EXCEEDED
	// with no money movement.
	if capped, capErr := m.partnerCapBreached(ctx, order, campaign); capErr != nil {
		return nil, capErr
	} else if capped {
		return m.settleCapExceeded(ctx, order, actorID, mode)
	}

	var entries []*model.LedgerEntry
	if mode == ModeWallet {
		entries = m.buildSettlementEntries(order, campaign, split)
	}

	// The REWARD_PENDING walk commits together with the terminal state, so a
	// failed settlement leaves the order in APPROVED and fully retryable.
	err = m.datasource.CommitSettlement(ctx, orderID, entries, model.StateCompleted, model.AffiliateSettled, model.PaymentPaid, mode, []model.OrderEvent{
		{
			OrderID: orderID,
			Type:    model.EventWorkflowTransition,
			ActorID: actorID,
			MetaData: map[string]interface{}{
				"from": string(model.StateApproved),
				"to":   string(model.StateRewardPending),
			},
		},
		{
			OrderID: orderID,
			Type:    model.EventWorkflowTransition,
			ActorID: actorID,
			MetaData: map[string]interface{}{
				"from": string(model.StateRewardPending),
				"to":   string(model.StateCompleted),
			},
		},
		{
			OrderID: orderID,
			Type:    model.EventSettled,
			ActorID: actorID,
			MetaData: map[string]interface{}{
				"mode":             mode,
				"payout":           split.Payout,
				"buyer_commission": split.BuyerCommission,
				"mediator_margin":  split.MediatorMargin,
			},
		},
	})
	if err != nil {
		return nil, logAndRecordError(span, "settlement commit error: ", err)
	}

	order.WorkflowState = model.StateCompleted
	order.AffiliateStatus = model.AffiliateSettled
	order.PaymentStatus = model.PaymentPaid
	order.SettlementMode = mode
	m.postSettlementActions(ctx, order, entries)
	return order, nil
}

// checkSettlementEligibility runs the settle-time guards in a fixed order:
// frozen, open dispute, party standing, workflow state, cooling window.
func (m *Mobo) checkSettlementEligibility(ctx context.Context, order *model.Order, actorID string) error {
	if order.Frozen {
		return apierror.Precondition(apierror.ReasonOrderFrozen, fmt.Sprintf("Order '%s' is frozen", order.OrderID))
	}

	disputed, err := m.eligibility.HasOpenDispute(ctx, order.OrderID)
	if err != nil {
		return err
	}
	if disputed {
		if freezeErr := m.Freeze(ctx, order.OrderID, actorID, "open dispute at settlement"); freezeErr != nil {
			logrus.Errorf("freezing disputed order %s: %v", order.OrderID, freezeErr)
		}
		return apierror.Precondition(apierror.ReasonFrozenDispute, fmt.Sprintf("Order '%s' has an open dispute and has been frozen", order.OrderID))
	}

	active, err := m.eligibility.MediatorActive(ctx, order.MediatorCode)
	if err != nil {
		return err
	}
	if !active {
		return apierror.Precondition(apierror.ReasonMediatorInactive, fmt.Sprintf("Mediator '%s' is not active", order.MediatorCode))
	}

	active, err = m.eligibility.BuyerActive(ctx, order.BuyerID)
	if err != nil {
		return err
	}
	if !active {
		return apierror.Precondition(apierror.ReasonBuyerInactive, fmt.Sprintf("Buyer '%s' is not active", order.BuyerID))
	}

	// An unpaid REWARD_PENDING order is a settlement that died mid-flight;
	// it stays eligible so the next attempt can finish the job.
	resumable := order.WorkflowState == model.StateRewardPending && order.PaymentStatus == model.PaymentPending
	if order.WorkflowState != model.StateApproved && !resumable {
		if order.PaymentStatus == model.PaymentPaid {
			return apierror.Conflict(apierror.ReasonAlreadySettled, fmt.Sprintf("Order '%s' is already settled", order.OrderID))
		}
		return apierror.Conflict(apierror.ReasonInvalidWorkflowState, fmt.Sprintf("Order '%s' is in state '%s', settlement requires APPROVED", order.OrderID, order.WorkflowState))
	}

	if order.ExpectedSettlementDate != nil && time.Now().Before(*order.ExpectedSettlementDate) {
		return apierror.Precondition(apierror.ReasonCoolingPeriodActive, fmt.Sprintf("Order '%s' is cooling until %s", order.OrderID, order.ExpectedSettlementDate.Format(time.RFC3339)))
	}
	return nil
}

// partnerCapBreached re-counts the mediator's live orders against the
// campaign assignment limit. The check is soft by design; the claim-time
// check may have raced.
func (m *Mobo) partnerCapBreached(ctx context.Context, order *model.Order, campaign *model.Campaign) (bool, error) {
	assignment, ok := campaign.AssignmentFor(order.MediatorCode)
	if !ok || assignment.Limit <= 0 {
		return false, nil
	}
	count, err := m.datasource.CountPartnerOrders(ctx, campaign.CampaignID, order.MediatorCode)
	if err != nil {
		return false, err
	}
	return count > assignment.Limit, nil
}

// settleCapExceeded terminates the order in FAILED with no money movement.
func (m *Mobo) settleCapExceeded(ctx context.Context, order *model.Order, actorID, mode string) (*model.Order, error) {
	err := m.datasource.CommitSettlement(ctx, order.OrderID, nil, model.StateFailed, model.AffiliateCapExceeded, model.PaymentFailed, mode, []model.OrderEvent{
		{
			OrderID: order.OrderID,
			Type:    model.EventWorkflowTransition,
			ActorID: actorID,
			MetaData: map[string]interface{}{
				"from": string(model.StateApproved),
				"to":   string(model.StateRewardPending),
			},
		},
		{
			OrderID: order.OrderID,
			Type:    model.EventWorkflowTransition,
			ActorID: actorID,
			MetaData: map[string]interface{}{
				"from": string(model.StateRewardPending),
				"to":   string(model.StateFailed),
			},
		},
		{
			OrderID: order.OrderID,
			Type:    model.EventSettled,
			ActorID: actorID,
			MetaData: map[string]interface{}{
				"mode":   mode,
				"reason": string(apierror.ReasonSoldOutForPartner),
			},
		},
	})
	if err != nil {
		return nil, err
	}

	order.WorkflowState = model.StateFailed
	order.AffiliateStatus = model.AffiliateCapExceeded
	order.PaymentStatus = model.PaymentFailed
	order.SettlementMode = mode
	m.postSettlementActions(ctx, order, nil)
	return order, nil
}

// buildSettlementEntries produces the three legs of a wallet settlement under
// idempotency keys scoped to the order's current settlement cycle. The brand
// debit is unenforced: settlement creates the brand's obligation even when
// its wallet lacks cover.
func (m *Mobo) buildSettlementEntries(order *model.Order, campaign *model.Campaign, split model.SettlementSplit) []*model.LedgerEntry {
	currency := "INR"
	if conf, err := config.Fetch(); err == nil {
		currency = conf.Settlement.Currency
	}
	now := time.Now()

	entries := []*model.LedgerEntry{
		{
			EntryID:        model.GenerateUUIDWithPrefix("lde"),
			IdempotencyKey: model.SettlementKey(order.OrderID, order.SettlementCycle, model.LegBrandPayout),
			Type:           model.EntryDebit,
			OwnerID:        campaign.BrandID,
			OwnerType:      model.OwnerBrand,
			Amount:         split.Payout,
			Currency:       currency,
			FromOwnerID:    campaign.BrandID,
			OrderID:        order.OrderID,
			CampaignID:     campaign.CampaignID,
			CreatedAt:      now,
		},
		{
			EntryID:        model.GenerateUUIDWithPrefix("lde"),
			IdempotencyKey: model.SettlementKey(order.OrderID, order.SettlementCycle, model.LegBuyerCommission),
			Type:           model.EntryCredit,
			OwnerID:        order.BuyerID,
			OwnerType:      model.OwnerShopper,
			Amount:         split.BuyerCommission,
			Currency:       currency,
			FromOwnerID:    campaign.BrandID,
			ToOwnerID:      order.BuyerID,
			OrderID:        order.OrderID,
			CampaignID:     campaign.CampaignID,
			CreatedAt:      now,
		},
	}

	if split.MediatorMargin > 0 && order.MediatorCode != "" {
		entries = append(entries, &model.LedgerEntry{
			EntryID:        model.GenerateUUIDWithPrefix("lde"),
			IdempotencyKey: model.SettlementKey(order.OrderID, order.SettlementCycle, model.LegMediatorMargin),
			Type:           model.EntryCredit,
			OwnerID:        order.MediatorCode,
			OwnerType:      model.OwnerMediator,
			Amount:         split.MediatorMargin,
			Currency:       currency,
			FromOwnerID:    campaign.BrandID,
			ToOwnerID:      order.MediatorCode,
			OrderID:        order.OrderID,
			CampaignID:     campaign.CampaignID,
			CreatedAt:      now,
		})
	}
	return entries
}

// Unsettle reverses a settled order back to APPROVED, restoring every wallet
// balance through inverse ledger entries under derived idempotency keys.
// Running it twice produces no extra movement. The order's settlement cycle
// is bumped on the way back, so a later re-settlement issues fresh entry
// keys and moves money again.
func (m *Mobo) Unsettle(ctx context.Context, orderID, actorID string) (*model.Order, error) {
	ctx, span := tracer.Start(ctx, "Unsettling order")
	defer span.End()

	locker, err := m.acquireOrderLock(ctx, orderID)
	if err != nil {
		return nil, logAndRecordError(span, "unsettlement lock error: ", err)
	}
	defer func(locker *redlock.Locker, ctx context.Context) {
		if err := locker.Unlock(ctx); err != nil {
			logrus.Error("unsettlement unlock error ", err)
		}
	}(locker, ctx)

	order, err := m.datasource.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Frozen {
		return nil, apierror.Precondition(apierror.ReasonOrderFrozen, fmt.Sprintf("Order '%s' is frozen", orderID))
	}

	settled := order.WorkflowState == model.StateCompleted ||
		order.WorkflowState == model.StateFailed ||
		order.WorkflowState == model.StateRewardPending
	paid := order.PaymentStatus == model.PaymentPaid || order.AffiliateStatus == model.AffiliateCapExceeded
	if !settled || !paid {
		return nil, apierror.Conflict(apierror.ReasonNotSettled, fmt.Sprintf("Order '%s' is not settled", orderID))
	}

	// CAP_EXCEEDED and external settlements moved no money; only statuses are
	// walked back for those.
	var reversals []*model.LedgerEntry
	if order.PaymentStatus == model.PaymentPaid && order.SettlementMode == ModeWallet {
		entries, err := m.datasource.GetEntriesByOrderID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if strings.HasPrefix(entry.IdempotencyKey, "unsettle:") {
				continue
			}
			reversals = append(reversals, entry.Reversed())
		}
	}

	err = m.datasource.CommitUnsettlement(ctx, orderID, reversals, []model.OrderEvent{
		{
			OrderID: orderID,
			Type:    model.EventWorkflowTransition,
			ActorID: actorID,
			MetaData: map[string]interface{}{
				"from": string(order.WorkflowState),
				"to":   string(model.StateApproved),
			},
		},
		{
			OrderID: orderID,
			Type:    model.EventUnsettled,
			ActorID: actorID,
			MetaData: map[string]interface{}{
				"reversed_entries": len(reversals),
			},
		},
	})
	if err != nil {
		return nil, logAndRecordError(span, "unsettlement commit error: ", err)
	}

	order.WorkflowState = model.StateApproved
	order.AffiliateStatus = model.AffiliatePendingCooling
	order.PaymentStatus = model.PaymentPending
	order.SettlementCycle++
	m.postSettlementActions(ctx, order, reversals)
	return order, nil
}

// GetOrderLedger returns every ledger entry recorded against the order,
// settlement and reversal legs alike.
func (m *Mobo) GetOrderLedger(ctx context.Context, orderID string) ([]*model.LedgerEntry, error) {
	return m.datasource.GetEntriesByOrderID(ctx, orderID)
}

func (m *Mobo) postSettlementActions(ctx context.Context, order *model.Order, entries []*model.LedgerEntry) {
	m.postWorkflowActions(ctx, order)
	for _, entry := range entries {
		if err := m.queue.queueIndexData(entry.EntryID, search.CollectionLedgerEntries, entry); err != nil {
			logrus.Errorf("index enqueue error for entry %s: %v", entry.EntryID, err)
		}
	}
}
