package model

// RequiredSteps computes which proof steps beyond the purchase itself are
// mandatory for the order. A Review line item requires a review step, a
// Rating line item a rating step, and either requires confirming the return
// window passed before payout. Pure function of the line items.
func (o *Order) RequiredSteps() []ProofStep {
	var hasReview, hasRating bool
	for _, item := range o.LineItems {
		switch item.DealType {
		case DealTypeReview:
			hasReview = true
		case DealTypeRating:
			hasRating = true
		}
	}

	var steps []ProofStep
	if hasReview {
		steps = append(steps, StepReview)
	}
	if hasRating {
		steps = append(steps, StepRating)
	}
	if hasReview || hasRating {
		steps = append(steps, StepReturnWindow)
	}
	return steps
}

// RequiresStep reports whether the step is in RequiredSteps.
func (o *Order) RequiresStep(step ProofStep) bool {
	for _, s := range o.RequiredSteps() {
		if s == step {
			return true
		}
	}
	return false
}

// HasProof reports whether the buyer has submitted proof material for the
// step. Only presence is checked here; content verification is owned by the
// external proof service.
func (o *Order) HasProof(step ProofStep) bool {
	switch step {
	case StepOrder:
		return o.Proofs.ReviewLink != "" || o.Proofs.PurchaseScreenshot != ""
	case StepReview:
		return o.Proofs.ReviewLink != "" || o.Proofs.ReviewScreenshot != ""
	case StepRating:
		return o.Proofs.RatingScreenshot != ""
	case StepReturnWindow:
		return o.Proofs.ReturnWindowScreenshot != ""
	}
	return false
}

// MissingProofs returns the required steps for which no proof material has
// been submitted yet.
func (o *Order) MissingProofs() []ProofStep {
	var missing []ProofStep
	for _, step := range o.RequiredSteps() {
		if !o.HasProof(step) {
			missing = append(missing, step)
		}
	}
	return missing
}

// MissingVerifications returns the required steps that have proof material
// but no verification record yet.
func (o *Order) MissingVerifications() []ProofStep {
	var missing []ProofStep
	for _, step := range o.RequiredSteps() {
		if !o.Verified(step) {
			missing = append(missing, step)
		}
	}
	return missing
}
