package mobo

import (
	"context"
	"fmt"
	"time"

	"github.com/chetanchaudhari789/MOBO-sub001/internal/apierror"
	"github.com/chetanchaudhari789/MOBO-sub001/internal/notification"
	"github.com/chetanchaudhari789/MOBO-sub001/internal/search"
	"github.com/chetanchaudhari789/MOBO-sub001/model"
)

// CreateCampaign registers new campaign inventory. Campaigns start in draft
// unless the caller asks for another status; slots open for claiming only
// once the campaign is activated.
func (m *Mobo) CreateCampaign(ctx context.Context, campaign *model.Campaign) (*model.Campaign, error) {
	ctx, span := tracer.Start(ctx, "Creating campaign")
	defer span.End()

	if campaign.TotalSlots <= 0 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Campaign must offer at least one slot", nil)
	}
	if campaign.Commission > campaign.Payout {
		return nil, apierror.Unprocessable(apierror.ReasonInvalidEconomics, fmt.Sprintf("Commission %d exceeds payout %d", campaign.Commission, campaign.Payout))
	}

	campaign.CampaignID = model.GenerateUUIDWithPrefix("cmp")
	if campaign.Status == "" {
		campaign.Status = model.CampaignDraft
	}
	campaign.UsedSlots = 0
	campaign.Locked = false
	campaign.CreatedAt = time.Now()

	created, err := m.datasource.CreateCampaign(ctx, campaign)
	if err != nil {
		return nil, logAndRecordError(span, "campaign create error: ", err)
	}

	if err := m.queue.queueIndexData(created.CampaignID, search.CollectionCampaigns, created); err != nil {
		notification.NotifyError(err)
	}
	return created, nil
}

// GetCampaign retrieves a campaign by its ID.
func (m *Mobo) GetCampaign(ctx context.Context, campaignID string) (*model.Campaign, error) {
	ctx, span := tracer.Start(ctx, "Getting campaign")
	defer span.End()
	return m.datasource.GetCampaignByID(ctx, campaignID)
}

// GetAllCampaigns retrieves a page of campaigns.
func (m *Mobo) GetAllCampaigns(ctx context.Context, limit, offset int) ([]*model.Campaign, error) {
	ctx, span := tracer.Start(ctx, "Listing campaigns")
	defer span.End()
	return m.datasource.GetAllCampaigns(ctx, limit, offset)
}

// UpdateCampaignStatus moves a campaign along draft -> active -> paused or
// completed. Reopening a completed campaign is not allowed.
func (m *Mobo) UpdateCampaignStatus(ctx context.Context, campaignID string, status model.CampaignStatus) (*model.Campaign, error) {
	ctx, span := tracer.Start(ctx, "Updating campaign status")
	defer span.End()

	campaign, err := m.datasource.GetCampaignByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !campaignStatusChangeAllowed(campaign.Status, status) {
		return nil, apierror.Conflict(apierror.ReasonInvalidWorkflowState, fmt.Sprintf("Campaign cannot move from %s to %s", campaign.Status, status))
	}

	if err := m.datasource.UpdateCampaignStatus(ctx, campaignID, status); err != nil {
		return nil, logAndRecordError(span, "campaign status update error: ", err)
	}
	campaign.Status = status

	if err := m.queue.queueIndexData(campaign.CampaignID, search.CollectionCampaigns, campaign); err != nil {
		notification.NotifyError(err)
	}
	return campaign, nil
}

func campaignStatusChangeAllowed(from, to model.CampaignStatus) bool {
	switch from {
	case model.CampaignDraft:
		return to == model.CampaignActive
	case model.CampaignActive:
		return to == model.CampaignPaused || to == model.CampaignCompleted
	case model.CampaignPaused:
		return to == model.CampaignActive || to == model.CampaignCompleted
	default:
		return false
	}
}

// UpdateCampaignAssignments replaces the per-partner slot sub-allocations.
// The write is conditioned on the version the caller last read; a mismatch
// means another agency got there first and the caller must re-read.
func (m *Mobo) UpdateCampaignAssignments(ctx context.Context, campaignID string, assignments map[string]model.Assignment, version int64) (*model.Campaign, error) {
	ctx, span := tracer.Start(ctx, "Updating campaign assignments")
	defer span.End()

	totalLimit := 0
	for code, assignment := range assignments {
		if assignment.Limit < 0 {
			return nil, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("Negative limit for partner '%s'", code), nil)
		}
		totalLimit += assignment.Limit
	}

	campaign, err := m.datasource.GetCampaignByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if totalLimit > campaign.TotalSlots {
		return nil, apierror.Unprocessable(apierror.ReasonInvalidEconomics, fmt.Sprintf("Partner limits sum to %d, above the %d campaign slots", totalLimit, campaign.TotalSlots))
	}

	if err := m.datasource.UpdateCampaignAssignments(ctx, campaignID, assignments, version); err != nil {
		return nil, err
	}
	campaign.Assignments = assignments
	campaign.Version = version + 1

	if err := m.queue.queueIndexData(campaign.CampaignID, search.CollectionCampaigns, campaign); err != nil {
		notification.NotifyError(err)
	}
	return campaign, nil
}

// UpdateCampaignTerms changes slot count and pricing. Terms freeze once the
// first slot is consumed, so this only succeeds on unlocked campaigns.
func (m *Mobo) UpdateCampaignTerms(ctx context.Context, campaignID string, totalSlots int, payout, commission int64) (*model.Campaign, error) {
	ctx, span := tracer.Start(ctx, "Updating campaign terms")
	defer span.End()

	if totalSlots <= 0 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Campaign must offer at least one slot", nil)
	}
	if commission > payout {
		return nil, apierror.Unprocessable(apierror.ReasonInvalidEconomics, fmt.Sprintf("Commission %d exceeds payout %d", commission, payout))
	}

	if err := m.datasource.UpdateCampaignTerms(ctx, campaignID, totalSlots, payout, commission); err != nil {
		return nil, err
	}

	campaign, err := m.datasource.GetCampaignByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if err := m.queue.queueIndexData(campaign.CampaignID, search.CollectionCampaigns, campaign); err != nil {
		notification.NotifyError(err)
	}
	return campaign, nil
}

// ReleaseSlot hands a claimed slot back to the pool, typically after a
// rejected proof. Releasing at zero used slots is a no-op.
func (m *Mobo) ReleaseSlot(ctx context.Context, campaignID string) error {
	ctx, span := tracer.Start(ctx, "Releasing campaign slot")
	defer span.End()
	return m.datasource.ReleaseSlot(ctx, campaignID)
}

// DeleteCampaign soft-deletes a campaign that has no live orders.
func (m *Mobo) DeleteCampaign(ctx context.Context, campaignID string) error {
	ctx, span := tracer.Start(ctx, "Deleting campaign")
	defer span.End()
	return m.datasource.SoftDeleteCampaign(ctx, campaignID)
}
