package database

import (
	"context"
	"time"

	"github.com/chetanchaudhari789/MOBO-sub001/model"
)

type IDataSource interface {
	order
	campaign
	wallet
	ledger
	payout
}

type order interface {
	CreateOrder(ctx context.Context, order *model.Order) (*model.Order, error)
	GetOrderByID(ctx context.Context, orderID string) (*model.Order, error)
	GetOrderByMerchantRef(ctx context.Context, ref string) (*model.Order, error)
	GetAllOrders(ctx context.Context, limit, offset int) ([]*model.Order, error)
	TransitionOrderState(ctx context.Context, orderID string, from, to model.WorkflowState, event model.OrderEvent) error
	UpdateOrderVerifications(ctx context.Context, orderID string, verifications model.VerificationMap, event model.OrderEvent) error
	ApproveOrder(ctx context.Context, orderID string, settlementDate time.Time, events []model.OrderEvent) error
	FreezeOrder(ctx context.Context, orderID string, status model.AffiliateStatus, event model.OrderEvent) error
	UpdateOrderProofs(ctx context.Context, orderID string, proofs model.ProofBundle) error
	SoftDeleteOrder(ctx context.Context, orderID string) error
	AppendOrderEvent(ctx context.Context, event model.OrderEvent) error
	GetOrderEvents(ctx context.Context, orderID string) ([]model.OrderEvent, error)
}

type campaign interface {
	CreateCampaign(ctx context.Context, campaign *model.Campaign) (*model.Campaign, error)
	GetCampaignByID(ctx context.Context, campaignID string) (*model.Campaign, error)
	GetAllCampaigns(ctx context.Context, limit, offset int) ([]*model.Campaign, error)
	ClaimSlot(ctx context.Context, campaignID string) error
	ReleaseSlot(ctx context.Context, campaignID string) error
	UpdateCampaignAssignments(ctx context.Context, campaignID string, assignments map[string]model.Assignment, version int64) error
	UpdateCampaignStatus(ctx context.Context, campaignID string, status model.CampaignStatus) error
	UpdateCampaignTerms(ctx context.Context, campaignID string, totalSlots int, payout, commission int64) error
	LockCampaign(ctx context.Context, campaignID string) error
	CountPartnerOrders(ctx context.Context, campaignID, mediatorCode string) (int, error)
	SoftDeleteCampaign(ctx context.Context, campaignID string) error
}

type wallet interface {
	GetOrCreateWallet(ctx context.Context, ownerID, ownerType, currency string) (*model.Wallet, error)
	GetWallet(ctx context.Context, ownerID string) (*model.Wallet, error)
}

type ledger interface {
	GetEntriesByOrderID(ctx context.Context, orderID string) ([]*model.LedgerEntry, error)
	CommitSettlement(ctx context.Context, orderID string, entries []*model.LedgerEntry, finalState model.WorkflowState, affiliate model.AffiliateStatus, payment model.PaymentStatus, mode string, events []model.OrderEvent) error
	CommitUnsettlement(ctx context.Context, orderID string, entries []*model.LedgerEntry, events []model.OrderEvent) error
}

type payout interface {
	CommitPayout(ctx context.Context, payout *model.Payout, entry *model.LedgerEntry) (*model.Payout, error)
	GetPayoutByID(ctx context.Context, payoutID string) (*model.Payout, error)
	UpdatePayoutStatus(ctx context.Context, payoutID string, status model.PayoutStatus) error
}
