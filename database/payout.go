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

const payoutColumns = `payout_id, idempotency_key, mediator_id, amount, status, entry_ids, created_at, meta_data`

// CommitPayout applies the wallet debit and records the payout row in one
// transaction. A replayed idempotency key inserts nothing, moves nothing and
// returns the payout recorded the first time.
func (d Datasource) CommitPayout(ctx context.Context, payout *model.Payout, entry *model.LedgerEntry) (*model.Payout, error) {
	metaDataJSON, err := json.Marshal(payout.MetaData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal payout metadata", err)
	}

	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err := applyEntryTx(ctx, tx, entry); err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO mobo.payouts (payout_id, idempotency_key, mediator_id, amount, status, entry_ids, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, payout.PayoutID, payout.IdempotencyKey, payout.MediatorID, payout.Amount, payout.Status, pq.Array(payout.EntryIDs), payout.CreatedAt, metaDataJSON)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create payout", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}

	recorded := payout
	if rowsAffected == 0 {
		// Replay. The debit deduped on its own key; hand back the original row.
		recorded, err = scanPayout(tx.QueryRowContext(ctx, `
			SELECT `+payoutColumns+`
			FROM mobo.payouts
			WHERE idempotency_key = $1
		`, payout.IdempotencyKey))
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve recorded payout", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit payout", err)
	}
	return recorded, nil
}

func scanPayout(row *sql.Row) (*model.Payout, error) {
	payout := &model.Payout{}
	var entryIDs pq.StringArray
	var metaDataJSON []byte
	err := row.Scan(&payout.PayoutID, &payout.IdempotencyKey, &payout.MediatorID, &payout.Amount, &payout.Status, &entryIDs, &payout.CreatedAt, &metaDataJSON)
	if err != nil {
		return nil, err
	}
	payout.EntryIDs = entryIDs
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &payout.MetaData); err != nil {
			return nil, err
		}
	}
	return payout, nil
}

func (d Datasource) GetPayoutByID(ctx context.Context, payoutID string) (*model.Payout, error) {
	payout, err := scanPayout(d.Conn.QueryRowContext(ctx, `
		SELECT `+payoutColumns+`
		FROM mobo.payouts
		WHERE payout_id = $1
	`, payoutID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NotFound(fmt.Sprintf("Payout with ID '%s' not found", payoutID))
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve payout", err)
	}
	return payout, nil
}

func (d Datasource) UpdatePayoutStatus(ctx context.Context, payoutID string, status model.PayoutStatus) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE mobo.payouts
		SET status = $2
		WHERE payout_id = $1
	`, payoutID, status)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update payout status", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NotFound(fmt.Sprintf("Payout with ID '%s' not found", payoutID))
	}
	return nil
}
