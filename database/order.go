package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/chetanchaudhari789/MOBO-sub001/internal/apierror"
	"github.com/chetanchaudhari789/MOBO-sub001/model"
)

const orderColumns = `
	order_id, merchant_order_ref, COALESCE(platform_order_id, ''), campaign_id, buyer_id, mediator_code,
	workflow_state, affiliate_status, payment_status, COALESCE(settlement_mode, ''), total_price, payout,
	buyer_commission, line_items, proofs, verifications, frozen, expected_settlement_date,
	settlement_cycle, version, created_at, deleted_at, meta_data`

// CreateOrder persists a new order. The merchant order reference is unique;
// a duplicate claim for the same external order fails with a conflict.
func (d Datasource) CreateOrder(ctx context.Context, order *model.Order) (*model.Order, error) {
	lineItemsJSON, err := json.Marshal(order.LineItems)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal line items", err)
	}
	proofsJSON, err := json.Marshal(order.Proofs)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal proofs", err)
	}
	verificationsJSON, err := json.Marshal(order.Verifications)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal verifications", err)
	}
	metaDataJSON, err := json.Marshal(order.MetaData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO mobo.orders (order_id, merchant_order_ref, platform_order_id, campaign_id, buyer_id, mediator_code, workflow_state, affiliate_status, payment_status, total_price, payout, buyer_commission, line_items, proofs, verifications, frozen, version, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`, order.OrderID, order.MerchantOrderRef, order.PlatformOrderID, order.CampaignID, order.BuyerID, order.MediatorCode, order.WorkflowState, order.AffiliateStatus, order.PaymentStatus, order.TotalPrice, order.Payout, order.BuyerCommission, lineItemsJSON, proofsJSON, verificationsJSON, order.Frozen, order.Version, order.CreatedAt, metaDataJSON)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, apierror.Conflict(apierror.ReasonDuplicateOrder, fmt.Sprintf("Order with merchant reference '%s' already exists", order.MerchantOrderRef))
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create order", err)
	}

	return order, nil
}

func scanOrderRow(scan func(dest ...interface{}) error) (*model.Order, error) {
	order := &model.Order{}
	var lineItemsJSON, proofsJSON, verificationsJSON, metaDataJSON []byte
	var expectedSettlement, deletedAt sql.NullTime

	err := scan(
		&order.OrderID, &order.MerchantOrderRef, &order.PlatformOrderID, &order.CampaignID, &order.BuyerID,
		&order.MediatorCode, &order.WorkflowState, &order.AffiliateStatus, &order.PaymentStatus,
		&order.SettlementMode, &order.TotalPrice, &order.Payout, &order.BuyerCommission, &lineItemsJSON,
		&proofsJSON, &verificationsJSON, &order.Frozen, &expectedSettlement, &order.SettlementCycle,
		&order.Version, &order.CreatedAt, &deletedAt, &metaDataJSON,
	)
	if err != nil {
		return nil, err
	}

	if expectedSettlement.Valid {
		order.ExpectedSettlementDate = &expectedSettlement.Time
	}
	if deletedAt.Valid {
		order.DeletedAt = &deletedAt.Time
	}
	if err := json.Unmarshal(lineItemsJSON, &order.LineItems); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(proofsJSON, &order.Proofs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(verificationsJSON, &order.Verifications); err != nil {
		return nil, err
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &order.MetaData); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (d Datasource) GetOrderByID(ctx context.Context, orderID string) (*model.Order, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM mobo.orders
		WHERE order_id = $1 AND deleted_at IS NULL
	`, orderID)

	order, err := scanOrderRow(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NotFound(fmt.Sprintf("Order with ID '%s' not found", orderID))
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve order", err)
	}
	return order, nil
}

func (d Datasource) GetOrderByMerchantRef(ctx context.Context, ref string) (*model.Order, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM mobo.orders
		WHERE merchant_order_ref = $1 AND deleted_at IS NULL
	`, ref)

	order, err := scanOrderRow(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NotFound(fmt.Sprintf("Order with merchant reference '%s' not found", ref))
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve order", err)
	}
	return order, nil
}

func (d Datasource) GetAllOrders(ctx context.Context, limit, offset int) ([]*model.Order, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM mobo.orders
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve orders", err)
	}
	defer rows.Close()

	var orders []*model.Order
	for rows.Next() {
		order, err := scanOrderRow(rows.Scan)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan order data", err)
		}
		orders = append(orders, order)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over orders", err)
	}
	return orders, nil
}

// appendOrderEvent inserts the next row of the order's append-only event log
// inside the given transaction. The sequence number is derived in the insert
// itself; the UNIQUE (order_id, seq) constraint catches concurrent appends.
func appendOrderEvent(ctx context.Context, tx *sql.Tx, event model.OrderEvent) error {
	metaDataJSON, err := json.Marshal(event.MetaData)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal event metadata", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO mobo.order_events (order_id, seq, event_type, actor_id, meta_data, created_at)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, NOW()
		FROM mobo.order_events WHERE order_id = $1
	`, event.OrderID, event.Type, event.ActorID, metaDataJSON)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to append order event", err)
	}
	return nil
}

// TransitionOrderState atomically moves the order from one workflow state to
// another and appends the transition event. The update is conditioned on the
// current state; zero rows affected means another writer got there first.
func (d Datasource) TransitionOrderState(ctx context.Context, orderID string, from, to model.WorkflowState, event model.OrderEvent) error {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	result, err := tx.ExecContext(ctx, `
		UPDATE mobo.orders
		SET workflow_state = $3, version = version + 1
		WHERE order_id = $1 AND workflow_state = $2 AND deleted_at IS NULL
	`, orderID, from, to)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update workflow state", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.Conflict(apierror.ReasonInvalidTransition, fmt.Sprintf("Order '%s' is no longer in state '%s'", orderID, from))
	}

	if err := appendOrderEvent(ctx, tx, event); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return nil
}

// UpdateOrderVerifications persists the verification map and appends the
// VERIFIED event in one transaction.
func (d Datasource) UpdateOrderVerifications(ctx context.Context, orderID string, verifications model.VerificationMap, event model.OrderEvent) error {
	verificationsJSON, err := json.Marshal(verifications)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal verifications", err)
	}

	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	result, err := tx.ExecContext(ctx, `
		UPDATE mobo.orders
		SET verifications = $2, version = version + 1
		WHERE order_id = $1 AND deleted_at IS NULL
	`, orderID, verificationsJSON)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update verifications", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NotFound(fmt.Sprintf("Order with ID '%s' not found", orderID))
	}

	if err := appendOrderEvent(ctx, tx, event); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return nil
}

// ApproveOrder finishes verification: moves UNDER_REVIEW to APPROVED, stamps
// the expected settlement date, flips the affiliate status and appends the
// approval events, atomically.
func (d Datasource) ApproveOrder(ctx context.Context, orderID string, settlementDate time.Time, events []model.OrderEvent) error {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	result, err := tx.ExecContext(ctx, `
		UPDATE mobo.orders
		SET workflow_state = $2, affiliate_status = $3, expected_settlement_date = $4, version = version + 1
		WHERE order_id = $1 AND workflow_state = $5 AND deleted_at IS NULL
	`, orderID, model.StateApproved, model.AffiliatePendingCooling, settlementDate, model.StateUnderReview)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to approve order", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.Conflict(apierror.ReasonInvalidTransition, fmt.Sprintf("Order '%s' is no longer under review", orderID))
	}

	for _, event := range events {
		if err := appendOrderEvent(ctx, tx, event); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return nil
}

// FreezeOrder sets the lockout flag. Every mutating operation checks the flag
// first, so freezing is the per-order circuit breaker.
func (d Datasource) FreezeOrder(ctx context.Context, orderID string, status model.AffiliateStatus, event model.OrderEvent) error {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	result, err := tx.ExecContext(ctx, `
		UPDATE mobo.orders
		SET frozen = TRUE, affiliate_status = $2, version = version + 1
		WHERE order_id = $1 AND deleted_at IS NULL
	`, orderID, status)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to freeze order", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NotFound(fmt.Sprintf("Order with ID '%s' not found", orderID))
	}

	if err := appendOrderEvent(ctx, tx, event); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return nil
}

// UpdateOrderProofs replaces the proof bundle references on the order.
func (d Datasource) UpdateOrderProofs(ctx context.Context, orderID string, proofs model.ProofBundle) error {
	proofsJSON, err := json.Marshal(proofs)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal proofs", err)
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE mobo.orders
		SET proofs = $2, version = version + 1
		WHERE order_id = $1 AND deleted_at IS NULL
	`, orderID, proofsJSON)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update proofs", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NotFound(fmt.Sprintf("Order with ID '%s' not found", orderID))
	}
	return nil
}

// SoftDeleteOrder hides the order from reads. The row, its events and ledger
// entries stay reconstructable forever.
func (d Datasource) SoftDeleteOrder(ctx context.Context, orderID string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE mobo.orders
		SET deleted_at = NOW(), version = version + 1
		WHERE order_id = $1 AND deleted_at IS NULL
	`, orderID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete order", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NotFound(fmt.Sprintf("Order with ID '%s' not found", orderID))
	}
	return nil
}

// AppendOrderEvent writes a standalone audit event outside any state change,
// such as the slot claim at creation time.
func (d Datasource) AppendOrderEvent(ctx context.Context, event model.OrderEvent) error {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if err := appendOrderEvent(ctx, tx, event); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return nil
}

func (d Datasource) GetOrderEvents(ctx context.Context, orderID string) ([]model.OrderEvent, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT order_id, seq, event_type, actor_id, meta_data, created_at
		FROM mobo.order_events
		WHERE order_id = $1
		ORDER BY seq ASC
	`, orderID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve order events", err)
	}
	defer rows.Close()

	var events []model.OrderEvent
	for rows.Next() {
		event := model.OrderEvent{}
		var metaDataJSON []byte
		if err := rows.Scan(&event.OrderID, &event.Seq, &event.Type, &event.ActorID, &metaDataJSON, &event.CreatedAt); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan order event", err)
		}
		if len(metaDataJSON) > 0 {
			if err := json.Unmarshal(metaDataJSON, &event.MetaData); err != nil {
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal event metadata", err)
			}
		}
		events = append(events, event)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over order events", err)
	}
	return events, nil
}
