package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/chetanchaudhari789/MOBO-sub001/internal/apierror"
	"github.com/chetanchaudhari789/MOBO-sub001/model"
)

const campaignColumns = `
	campaign_id, brand_id, name, status, total_slots, used_slots, payout, commission,
	deal_types, assignments, locked, version, created_at, deleted_at, meta_data`

func (d Datasource) CreateCampaign(ctx context.Context, campaign *model.Campaign) (*model.Campaign, error) {
	assignmentsJSON, err := json.Marshal(campaign.Assignments)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal assignments", err)
	}
	metaDataJSON, err := json.Marshal(campaign.MetaData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}
	dealTypes := make([]string, len(campaign.DealTypes))
	for i, dt := range campaign.DealTypes {
		dealTypes[i] = string(dt)
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO mobo.campaigns (campaign_id, brand_id, name, status, total_slots, used_slots, payout, commission, deal_types, assignments, locked, version, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, campaign.CampaignID, campaign.BrandID, campaign.Name, campaign.Status, campaign.TotalSlots, campaign.UsedSlots, campaign.Payout, campaign.Commission, pq.Array(dealTypes), assignmentsJSON, campaign.Locked, campaign.Version, campaign.CreatedAt, metaDataJSON)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create campaign", err)
	}
	return campaign, nil
}

func scanCampaignRow(scan func(dest ...interface{}) error) (*model.Campaign, error) {
	campaign := &model.Campaign{}
	var assignmentsJSON, metaDataJSON []byte
	var dealTypes pq.StringArray
	var deletedAt sql.NullTime

	err := scan(
		&campaign.CampaignID, &campaign.BrandID, &campaign.Name, &campaign.Status, &campaign.TotalSlots,
		&campaign.UsedSlots, &campaign.Payout, &campaign.Commission, &dealTypes, &assignmentsJSON,
		&campaign.Locked, &campaign.Version, &campaign.CreatedAt, &deletedAt, &metaDataJSON,
	)
	if err != nil {
		return nil, err
	}

	campaign.DealTypes = make([]model.DealType, len(dealTypes))
	for i, dt := range dealTypes {
		campaign.DealTypes[i] = model.DealType(dt)
	}
	if deletedAt.Valid {
		campaign.DeletedAt = &deletedAt.Time
	}
	if len(assignmentsJSON) > 0 {
		if err := json.Unmarshal(assignmentsJSON, &campaign.Assignments); err != nil {
			return nil, err
		}
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &campaign.MetaData); err != nil {
			return nil, err
		}
	}
	return campaign, nil
}

func (d Datasource) GetCampaignByID(ctx context.Context, campaignID string) (*model.Campaign, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+campaignColumns+`
		FROM mobo.campaigns
		WHERE campaign_id = $1 AND deleted_at IS NULL
	`, campaignID)

	campaign, err := scanCampaignRow(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NotFound(fmt.Sprintf("Campaign with ID '%s' not found", campaignID))
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve campaign", err)
	}
	return campaign, nil
}

func (d Datasource) GetAllCampaigns(ctx context.Context, limit, offset int) ([]*model.Campaign, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+campaignColumns+`
		FROM mobo.campaigns
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve campaigns", err)
	}
	defer rows.Close()

	var campaigns []*model.Campaign
	for rows.Next() {
		campaign, err := scanCampaignRow(rows.Scan)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan campaign data", err)
		}
		campaigns = append(campaigns, campaign)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over campaigns", err)
	}
	return campaigns, nil
}

// ClaimSlot increments used_slots only while capacity remains. The guard lives
// in the WHERE clause so two concurrent claims for the last slot cannot both
// succeed: the second update matches zero rows and the claim fails as sold out.
func (d Datasource) ClaimSlot(ctx context.Context, campaignID string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE mobo.campaigns
		SET used_slots = used_slots + 1, version = version + 1
		WHERE campaign_id = $1 AND used_slots < total_slots AND status = $2 AND deleted_at IS NULL
	`, campaignID, model.CampaignActive)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to claim slot", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.Conflict(apierror.ReasonSoldOut, fmt.Sprintf("Campaign '%s' has no slots left or is not active", campaignID))
	}
	return nil
}

// ReleaseSlot returns a slot to the pool, floored at zero so a double release
// can never drive the counter negative.
func (d Datasource) ReleaseSlot(ctx context.Context, campaignID string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE mobo.campaigns
		SET used_slots = used_slots - 1, version = version + 1
		WHERE campaign_id = $1 AND used_slots > 0 AND deleted_at IS NULL
	`, campaignID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to release slot", err)
	}
	// Releasing when the counter is already zero matches no rows; that is a
	// no-op, not an error.
	_, _ = result.RowsAffected()
	return nil
}

// UpdateCampaignAssignments replaces the partner assignment map. The update is
// conditioned on the version the caller read, so a stale write loses cleanly.
// Reassignment stays possible after the campaign's terms lock.
func (d Datasource) UpdateCampaignAssignments(ctx context.Context, campaignID string, assignments map[string]model.Assignment, version int64) error {
	assignmentsJSON, err := json.Marshal(assignments)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal assignments", err)
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE mobo.campaigns
		SET assignments = $2, version = version + 1
		WHERE campaign_id = $1 AND version = $3 AND deleted_at IS NULL
	`, campaignID, assignmentsJSON, version)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update assignments", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		var exists bool
		err := d.Conn.QueryRowContext(ctx, `
			SELECT TRUE FROM mobo.campaigns WHERE campaign_id = $1 AND deleted_at IS NULL
		`, campaignID).Scan(&exists)
		if err != nil {
			if err == sql.ErrNoRows {
				return apierror.NotFound(fmt.Sprintf("Campaign with ID '%s' not found", campaignID))
			}
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check campaign state", err)
		}
		return apierror.Conflict(apierror.ReasonConcurrentModification, fmt.Sprintf("Campaign '%s' was modified concurrently", campaignID))
	}
	return nil
}

// UpdateCampaignTerms changes the economic terms. Blocked once the campaign is
// locked by its first consumed slot.
func (d Datasource) UpdateCampaignTerms(ctx context.Context, campaignID string, totalSlots int, payout, commission int64) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE mobo.campaigns
		SET total_slots = $2, payout = $3, commission = $4, version = version + 1
		WHERE campaign_id = $1 AND locked = FALSE AND deleted_at IS NULL
	`, campaignID, totalSlots, payout, commission)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update campaign terms", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		var locked bool
		err := d.Conn.QueryRowContext(ctx, `
			SELECT locked FROM mobo.campaigns WHERE campaign_id = $1 AND deleted_at IS NULL
		`, campaignID).Scan(&locked)
		if err != nil {
			if err == sql.ErrNoRows {
				return apierror.NotFound(fmt.Sprintf("Campaign with ID '%s' not found", campaignID))
			}
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check campaign state", err)
		}
		if locked {
			return apierror.Precondition(apierror.ReasonCampaignLocked, fmt.Sprintf("Campaign '%s' terms are locked", campaignID))
		}
		return apierror.Conflict(apierror.ReasonConcurrentModification, fmt.Sprintf("Campaign '%s' was modified concurrently", campaignID))
	}
	return nil
}

func (d Datasource) UpdateCampaignStatus(ctx context.Context, campaignID string, status model.CampaignStatus) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE mobo.campaigns
		SET status = $2, version = version + 1
		WHERE campaign_id = $1 AND deleted_at IS NULL
	`, campaignID, status)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update campaign status", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NotFound(fmt.Sprintf("Campaign with ID '%s' not found", campaignID))
	}
	return nil
}

// LockCampaign freezes the campaign's economic terms. Set once the first slot
// is consumed; only partner reassignment stays possible afterwards.
func (d Datasource) LockCampaign(ctx context.Context, campaignID string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE mobo.campaigns
		SET locked = TRUE, version = version + 1
		WHERE campaign_id = $1 AND locked = FALSE AND deleted_at IS NULL
	`, campaignID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to lock campaign", err)
	}
	return nil
}

// CountPartnerOrders counts the campaign's live orders tied to one mediator
// code. Rejected and failed orders release their claim on the partner cap.
func (d Datasource) CountPartnerOrders(ctx context.Context, campaignID, mediatorCode string) (int, error) {
	var count int
	err := d.Conn.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM mobo.orders
		WHERE campaign_id = $1 AND mediator_code = $2
		  AND workflow_state NOT IN ($3, $4)
		  AND deleted_at IS NULL
	`, campaignID, mediatorCode, model.StateRejected, model.StateFailed).Scan(&count)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to count partner orders", err)
	}
	return count, nil
}

// SoftDeleteCampaign hides a campaign that has no live orders against it.
func (d Datasource) SoftDeleteCampaign(ctx context.Context, campaignID string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE mobo.campaigns
		SET deleted_at = NOW(), version = version + 1
		WHERE campaign_id = $1 AND deleted_at IS NULL
		  AND NOT EXISTS (
			SELECT 1 FROM mobo.orders o
			WHERE o.campaign_id = $1 AND o.deleted_at IS NULL
			  AND o.workflow_state NOT IN ($2, $3, $4)
		  )
	`, campaignID, model.StateRejected, model.StateFailed, model.StateCompleted)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete campaign", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.Conflict(apierror.ReasonConcurrentModification, fmt.Sprintf("Campaign '%s' not found or still has live orders", campaignID))
	}
	return nil
}
