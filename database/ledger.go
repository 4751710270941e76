package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/chetanchaudhari789/MOBO-sub001/internal/apierror"
	"github.com/chetanchaudhari789/MOBO-sub001/model"
)

// applyEntryTx records one ledger entry and moves the owner's balance, inside
// the caller's transaction. Replayed idempotency keys insert nothing and move
// nothing; the bool reports whether the entry was actually applied.
func applyEntryTx(ctx context.Context, tx *sql.Tx, entry *model.LedgerEntry) (bool, error) {
	metaDataJSON, err := json.Marshal(entry.MetaData)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal entry metadata", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO mobo.ledger_entries (entry_id, idempotency_key, entry_type, owner_id, owner_type, amount, currency, from_owner_id, to_owner_id, order_id, campaign_id, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, entry.EntryID, entry.IdempotencyKey, entry.Type, entry.OwnerID, entry.OwnerType, entry.Amount, entry.Currency, entry.FromOwnerID, entry.ToOwnerID, entry.OrderID, entry.CampaignID, entry.CreatedAt, metaDataJSON)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to insert ledger entry", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		// Key already applied. The balance delta happened the first time.
		return false, nil
	}

	if err := ensureWalletTx(ctx, tx, entry.OwnerID, entry.OwnerType, entry.Currency); err != nil {
		return false, err
	}

	if entry.Type == model.EntryCredit {
		_, err = tx.ExecContext(ctx, `
			UPDATE mobo.wallets
			SET balance = balance + $2, version = version + 1
			WHERE owner_id = $1
		`, entry.OwnerID, entry.Amount)
		if err != nil {
			return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to credit wallet", err)
		}
		return true, nil
	}

	query := `
		UPDATE mobo.wallets
		SET balance = balance - $2, version = version + 1
		WHERE owner_id = $1
	`
	if entry.EnforceBalance {
		query += ` AND balance >= $2`
	}
	result, err = tx.ExecContext(ctx, query, entry.OwnerID, entry.Amount)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to debit wallet", err)
	}
	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return false, apierror.Precondition(apierror.ReasonInsufficientFunds, fmt.Sprintf("Wallet for owner '%s' has insufficient funds for %d", entry.OwnerID, entry.Amount))
	}
	return true, nil
}

// ApplyEntries records a batch of entries and their balance deltas in one
// transaction. Either the whole batch lands or none of it does.
func (d Datasource) ApplyEntries(ctx context.Context, entries []*model.LedgerEntry) error {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	for _, entry := range entries {
		if _, err := applyEntryTx(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return nil
}

func (d Datasource) GetEntriesByOrderID(ctx context.Context, orderID string) ([]*model.LedgerEntry, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, entry_id, idempotency_key, entry_type, owner_id, owner_type, amount, currency, from_owner_id, to_owner_id, order_id, campaign_id, created_at, meta_data
		FROM mobo.ledger_entries
		WHERE order_id = $1
		ORDER BY id ASC
	`, orderID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve ledger entries", err)
	}
	defer rows.Close()

	var entries []*model.LedgerEntry
	for rows.Next() {
		entry := &model.LedgerEntry{}
		var metaDataJSON []byte
		err := rows.Scan(&entry.ID, &entry.EntryID, &entry.IdempotencyKey, &entry.Type, &entry.OwnerID, &entry.OwnerType, &entry.Amount, &entry.Currency, &entry.FromOwnerID, &entry.ToOwnerID, &entry.OrderID, &entry.CampaignID, &entry.CreatedAt, &metaDataJSON)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan ledger entry", err)
		}
		if len(metaDataJSON) > 0 {
			if err := json.Unmarshal(metaDataJSON, &entry.MetaData); err != nil {
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal entry metadata", err)
			}
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over ledger entries", err)
	}
	return entries, nil
}

// CommitSettlement applies the settlement legs, moves the order into its final
// state and appends the settlement events, all inside a single transaction.
// Retries replay cleanly: entry keys dedupe on insert and the state update is
// conditioned on the order still being settleable.
func (d Datasource) CommitSettlement(ctx context.Context, orderID string, entries []*model.LedgerEntry, finalState model.WorkflowState, affiliate model.AffiliateStatus, payment model.PaymentStatus, mode string, events []model.OrderEvent) error {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	for _, entry := range entries {
		if _, err := applyEntryTx(ctx, tx, entry); err != nil {
			return err
		}
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE mobo.orders
		SET workflow_state = $2, affiliate_status = $3, payment_status = $4, settlement_mode = $5, version = version + 1
		WHERE order_id = $1 AND workflow_state IN ($6, $7) AND deleted_at IS NULL
	`, orderID, finalState, affiliate, payment, mode, model.StateApproved, model.StateRewardPending)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to finalize order settlement", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.Conflict(apierror.ReasonAlreadySettled, fmt.Sprintf("Order '%s' is not in a settleable state", orderID))
	}

	for _, event := range events {
		if err := appendOrderEvent(ctx, tx, event); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit settlement", err)
	}
	return nil
}

// CommitUnsettlement applies the reversal legs and walks the order back to
// APPROVED in the same transaction. It also bumps the order's settlement
// cycle, which rotates the idempotency keys a re-settlement will use.
func (d Datasource) CommitUnsettlement(ctx context.Context, orderID string, entries []*model.LedgerEntry, events []model.OrderEvent) error {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	for _, entry := range entries {
		if _, err := applyEntryTx(ctx, tx, entry); err != nil {
			return err
		}
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE mobo.orders
		SET workflow_state = $2, affiliate_status = $3, payment_status = $4, settlement_cycle = settlement_cycle + 1, version = version + 1
		WHERE order_id = $1 AND workflow_state IN ($5, $6, $7) AND deleted_at IS NULL
	`, orderID, model.StateApproved, model.AffiliatePendingCooling, model.PaymentPending, model.StateCompleted, model.StateFailed, model.StateRewardPending)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to revert order settlement", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.Conflict(apierror.ReasonNotSettled, fmt.Sprintf("Order '%s' is not in a settled state", orderID))
	}

	for _, event := range events {
		if err := appendOrderEvent(ctx, tx, event); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit unsettlement", err)
	}
	return nil
}
