package model

import (
	"time"
)

// WorkflowState is the authoritative lifecycle state of an order. Transitions
// are only legal along the chain validated by CanTransition.
type WorkflowState string

const (
	StateCreated        WorkflowState = "CREATED"
	StateRedirected     WorkflowState = "REDIRECTED"
	StateOrdered        WorkflowState = "ORDERED"
	StateProofSubmitted WorkflowState = "PROOF_SUBMITTED"
	StateUnderReview    WorkflowState = "UNDER_REVIEW"
	StateApproved       WorkflowState = "APPROVED"
	StateRewardPending  WorkflowState = "REWARD_PENDING"
	StateCompleted      WorkflowState = "COMPLETED"
	StateFailed         WorkflowState = "FAILED"
	StateRejected       WorkflowState = "REJECTED"
)

// AffiliateStatus is the business-facing mirror of the workflow state.
type AffiliateStatus string

const (
	AffiliateUnchecked      AffiliateStatus = "Unchecked"
	AffiliatePendingCooling AffiliateStatus = "Pending_Cooling"
	AffiliateSettled        AffiliateStatus = "Approved_Settled"
	AffiliateRejected       AffiliateStatus = "Rejected"
	AffiliateCapExceeded    AffiliateStatus = "Cap_Exceeded"
	AffiliateFrozenDisputed AffiliateStatus = "Frozen_Disputed"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
	PaymentFailed  PaymentStatus = "Failed"
)

// DealType classifies a line item and drives which proof steps are mandatory.
type DealType string

const (
	DealTypeDiscount DealType = "Discount"
	DealTypeReview   DealType = "Review"
	DealTypeRating   DealType = "Rating"
)

// ProofStep is a fixed-key verification category. Using a closed enum instead
// of free-form strings removes the case-mismatch lookups the old flows allowed.
type ProofStep string

const (
	StepOrder        ProofStep = "order"
	StepReview       ProofStep = "review"
	StepRating       ProofStep = "rating"
	StepReturnWindow ProofStep = "returnWindow"
)

// AllProofSteps lists every step in verification order. StepOrder must always
// come first; VerificationGate relies on this sequencing.
var AllProofSteps = []ProofStep{StepOrder, StepReview, StepRating, StepReturnWindow}

// VerificationRecord marks a single proof step as verified.
type VerificationRecord struct {
	VerifiedAt time.Time `json:"verified_at"`
	VerifiedBy string    `json:"verified_by"`
}

// VerificationMap holds one optional record per proof step.
type VerificationMap map[ProofStep]VerificationRecord

// LineItem is one purchased product inside an order. Amounts are in minor
// currency units; BuyerCommission is snapshotted from the deal at creation
// time and never recomputed.
type LineItem struct {
	ProductID       string   `json:"product_id"`
	DealType        DealType `json:"deal_type"`
	Price           int64    `json:"price"`
	BuyerCommission int64    `json:"buyer_commission"`
}

// ProofBundle holds opaque references into the external proof store. The
// settlement core only checks presence, never content.
type ProofBundle struct {
	ReviewLink             string `json:"review_link,omitempty"`
	PurchaseScreenshot     string `json:"purchase_screenshot,omitempty"`
	ReviewScreenshot       string `json:"review_screenshot,omitempty"`
	RatingScreenshot       string `json:"rating_screenshot,omitempty"`
	ReturnWindowScreenshot string `json:"return_window_screenshot,omitempty"`
}

// Order represents one shopper's claim against one campaign.
type Order struct {
	ID               int64           `json:"-"`
	OrderID          string          `json:"order_id"`
	MerchantOrderRef string          `json:"merchant_order_ref"`
	PlatformOrderID  string          `json:"platform_order_id,omitempty"`
	CampaignID       string          `json:"campaign_id"`
	BuyerID          string          `json:"buyer_id"`
	MediatorCode     string          `json:"mediator_code"`
	WorkflowState    WorkflowState   `json:"workflow_state"`
	AffiliateStatus  AffiliateStatus `json:"affiliate_status"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	SettlementMode   string          `json:"settlement_mode,omitempty"`
	// SettlementCycle counts completed unsettlements. Ledger idempotency keys
	// embed it, scoping retry dedupe to one settle attempt.
	SettlementCycle        int64                  `json:"settlement_cycle"`
	TotalPrice             int64                  `json:"total_price"`
	Payout                 int64                  `json:"payout"`
	BuyerCommission        int64                  `json:"buyer_commission"`
	LineItems              []LineItem             `json:"line_items"`
	Proofs                 ProofBundle            `json:"proofs"`
	Verifications          VerificationMap        `json:"verifications"`
	Frozen                 bool                   `json:"frozen"`
	ExpectedSettlementDate *time.Time             `json:"expected_settlement_date,omitempty"`
	Version                int64                  `json:"version"`
	CreatedAt              time.Time              `json:"created_at"`
	DeletedAt              *time.Time             `json:"deleted_at,omitempty"`
	MetaData               map[string]interface{} `json:"meta_data"`
}

// OrderEvent is one row of the append-only per-order audit log.
type OrderEvent struct {
	OrderID   string                 `json:"order_id"`
	Seq       int64                  `json:"seq"`
	Type      string                 `json:"type"`
	ActorID   string                 `json:"actor_id"`
	MetaData  map[string]interface{} `json:"meta_data"`
	CreatedAt time.Time              `json:"created_at"`
}

// Event types recorded in the order event log.
const (
	EventWorkflowTransition = "WORKFLOW_TRANSITION"
	EventVerified           = "VERIFIED"
	EventSettled            = "SETTLED"
	EventUnsettled          = "UNSETTLED"
	EventSlotClaimed        = "SLOT_CLAIMED"
	EventSlotReleased       = "SLOT_RELEASED"
	EventFrozen             = "FROZEN"
)

// transitions is the full table of legal forward edges. The unsettle edges
// back to APPROVED are listed too; they are only reachable through
// the settlement coordinator.
var transitions = map[WorkflowState][]WorkflowState{
	StateCreated:        {StateRedirected},
	StateRedirected:     {StateOrdered},
	StateOrdered:        {StateProofSubmitted},
	StateProofSubmitted: {StateUnderReview, StateRejected},
	StateUnderReview:    {StateApproved, StateRejected},
	StateApproved:       {StateRewardPending},
	StateRewardPending:  {StateCompleted, StateFailed, StateApproved},
	StateCompleted:      {StateApproved},
	StateFailed:         {StateApproved},
}

// CanTransition reports whether from -> to is a legal workflow edge.
func CanTransition(from, to WorkflowState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsUnsettleEdge reports whether from -> to is the dedicated reverse edge used
// by unsettlement. Callers other than the settlement coordinator must reject
// these pairs.
func IsUnsettleEdge(from, to WorkflowState) bool {
	if to != StateApproved {
		return false
	}
	return from == StateCompleted || from == StateFailed || from == StateRewardPending
}

// IsTerminal reports whether the state ends the order lifecycle (barring
// unsettlement).
func (s WorkflowState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateRejected
}

// Verified reports whether the given proof step has been verified.
func (o *Order) Verified(step ProofStep) bool {
	_, ok := o.Verifications[step]
	return ok
}

// MarkVerified records a verification for the step. The map is created lazily
// so orders loaded from older rows stay usable.
func (o *Order) MarkVerified(step ProofStep, actorID string, at time.Time) {
	if o.Verifications == nil {
		o.Verifications = make(VerificationMap)
	}
	o.Verifications[step] = VerificationRecord{VerifiedAt: at, VerifiedBy: actorID}
}
