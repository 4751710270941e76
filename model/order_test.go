package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionForwardChain(t *testing.T) {
	chain := []WorkflowState{
		StateCreated, StateRedirected, StateOrdered, StateProofSubmitted,
		StateUnderReview, StateApproved, StateRewardPending, StateCompleted,
	}
	for i := 0; i < len(chain)-1; i++ {
		assert.True(t, CanTransition(chain[i], chain[i+1]), "expected %s -> %s to be legal", chain[i], chain[i+1])
	}
}

func TestCanTransitionRejectsSkips(t *testing.T) {
	assert.False(t, CanTransition(StateCreated, StateCompleted))
	assert.False(t, CanTransition(StateCreated, StateOrdered))
	assert.False(t, CanTransition(StateOrdered, StateApproved))
	assert.False(t, CanTransition(StateApproved, StateCompleted))
}

func TestCanTransitionRejectsBackward(t *testing.T) {
	assert.False(t, CanTransition(StateOrdered, StateRedirected))
	assert.False(t, CanTransition(StateUnderReview, StateProofSubmitted))
	assert.False(t, CanTransition(StateApproved, StateUnderReview))
}

func TestRejectionEdges(t *testing.T) {
	assert.True(t, CanTransition(StateProofSubmitted, StateRejected))
	assert.True(t, CanTransition(StateUnderReview, StateRejected))
	assert.False(t, CanTransition(StateApproved, StateRejected))
	assert.False(t, CanTransition(StateOrdered, StateRejected))
}

func TestUnsettleEdges(t *testing.T) {
	assert.True(t, IsUnsettleEdge(StateCompleted, StateApproved))
	assert.True(t, IsUnsettleEdge(StateFailed, StateApproved))
	assert.True(t, IsUnsettleEdge(StateRewardPending, StateApproved))
	assert.False(t, IsUnsettleEdge(StateRejected, StateApproved))
	assert.False(t, IsUnsettleEdge(StateCompleted, StateUnderReview))
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, StateCompleted.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.True(t, StateRejected.IsTerminal())
	assert.False(t, StateApproved.IsTerminal())
	assert.False(t, StateRewardPending.IsTerminal())
}

func TestRequiredStepsRatingOnly(t *testing.T) {
	order := &Order{LineItems: []LineItem{{ProductID: "p1", DealType: DealTypeRating}}}
	assert.Equal(t, []ProofStep{StepRating, StepReturnWindow}, order.RequiredSteps())
}

func TestRequiredStepsReviewAndRating(t *testing.T) {
	order := &Order{LineItems: []LineItem{
		{ProductID: "p1", DealType: DealTypeReview},
		{ProductID: "p2", DealType: DealTypeRating},
	}}
	assert.Equal(t, []ProofStep{StepReview, StepRating, StepReturnWindow}, order.RequiredSteps())
}

func TestRequiredStepsDiscountOnly(t *testing.T) {
	order := &Order{LineItems: []LineItem{{ProductID: "p1", DealType: DealTypeDiscount}}}
	assert.Empty(t, order.RequiredSteps())
	assert.False(t, order.RequiresStep(StepReview))
}

func TestHasProof(t *testing.T) {
	order := &Order{Proofs: ProofBundle{PurchaseScreenshot: "proof://p1"}}
	assert.True(t, order.HasProof(StepOrder))
	assert.False(t, order.HasProof(StepReview))

	order.Proofs.ReviewLink = "https://example.com/review/1"
	assert.True(t, order.HasProof(StepReview))

	assert.False(t, order.HasProof(StepRating))
	order.Proofs.RatingScreenshot = "proof://r1"
	assert.True(t, order.HasProof(StepRating))

	assert.False(t, order.HasProof(StepReturnWindow))
	order.Proofs.ReturnWindowScreenshot = "proof://rw1"
	assert.True(t, order.HasProof(StepReturnWindow))
}

func TestMissingProofsAndVerifications(t *testing.T) {
	order := &Order{
		LineItems: []LineItem{{ProductID: "p1", DealType: DealTypeRating}},
		Proofs:    ProofBundle{RatingScreenshot: "proof://r1"},
	}
	assert.Equal(t, []ProofStep{StepReturnWindow}, order.MissingProofs())
	assert.Equal(t, []ProofStep{StepRating, StepReturnWindow}, order.MissingVerifications())

	order.MarkVerified(StepRating, "ops_1", time.Now())
	assert.Equal(t, []ProofStep{StepReturnWindow}, order.MissingVerifications())
	assert.True(t, order.Verified(StepRating))
}
