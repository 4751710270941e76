package model

import "time"

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
)

// Assignment is a per-partner sub-allocation of the campaign's slot pool.
// Limit of zero means no cap is configured for the partner. Payout and
// commission overrides are in minor units; zero means inherit the campaign
// defaults.
type Assignment struct {
	Limit              int   `json:"limit"`
	PayoutOverride     int64 `json:"payout_override,omitempty"`
	CommissionOverride int64 `json:"commission_override,omitempty"`
}

// Campaign is finite inventory a brand offers. UsedSlots never exceeds
// TotalSlots; the invariant is enforced only by the conditional claim update
// in the datasource, never by read-then-write.
type Campaign struct {
	ID          int64                  `json:"-"`
	CampaignID  string                 `json:"campaign_id"`
	BrandID     string                 `json:"brand_id"`
	Name        string                 `json:"name"`
	Status      CampaignStatus         `json:"status"`
	TotalSlots  int                    `json:"total_slots"`
	UsedSlots   int                    `json:"used_slots"`
	Payout      int64                  `json:"payout"`
	Commission  int64                  `json:"commission"`
	DealTypes   []DealType             `json:"deal_types"`
	Assignments map[string]Assignment  `json:"assignments"`
	Locked      bool                   `json:"locked"`
	Version     int64                  `json:"version"`
	CreatedAt   time.Time              `json:"created_at"`
	DeletedAt   *time.Time             `json:"deleted_at,omitempty"`
	MetaData    map[string]interface{} `json:"meta_data"`
}

// AssignmentFor looks up the partner's sub-allocation by exact mediator code.
// Lookups are deliberately case-sensitive.
func (c *Campaign) AssignmentFor(code string) (Assignment, bool) {
	a, ok := c.Assignments[code]
	return a, ok
}

// PayoutFor returns the payout owed for a conversion attributed to the
// partner, honoring any per-partner override.
func (c *Campaign) PayoutFor(code string) int64 {
	if a, ok := c.AssignmentFor(code); ok && a.PayoutOverride > 0 {
		return a.PayoutOverride
	}
	return c.Payout
}

// CommissionFor returns the buyer commission for a conversion attributed to
// the partner, honoring any per-partner override.
func (c *Campaign) CommissionFor(code string) int64 {
	if a, ok := c.AssignmentFor(code); ok && a.CommissionOverride > 0 {
		return a.CommissionOverride
	}
	return c.Commission
}
