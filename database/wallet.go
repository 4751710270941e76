package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chetanchaudhari789/MOBO-sub001/internal/apierror"
	"github.com/chetanchaudhari789/MOBO-sub001/model"
)

// GetOrCreateWallet returns the owner's wallet, creating a zero-balance one on
// first touch. The insert races with itself safely: ON CONFLICT DO NOTHING
// and the follow-up select make the winner irrelevant.
func (d Datasource) GetOrCreateWallet(ctx context.Context, ownerID, ownerType, currency string) (*model.Wallet, error) {
	walletID := model.GenerateUUIDWithPrefix("wlt")
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO mobo.wallets (wallet_id, owner_id, owner_type, balance, currency, version, created_at, meta_data)
		VALUES ($1, $2, $3, 0, $4, 0, NOW(), '{}')
		ON CONFLICT (owner_id) DO NOTHING
	`, walletID, ownerID, ownerType, currency)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create wallet", err)
	}
	return d.GetWallet(ctx, ownerID)
}

func (d Datasource) GetWallet(ctx context.Context, ownerID string) (*model.Wallet, error) {
	wallet := &model.Wallet{}
	var metaDataJSON []byte
	err := d.Conn.QueryRowContext(ctx, `
		SELECT wallet_id, owner_id, owner_type, balance, currency, version, created_at, meta_data
		FROM mobo.wallets
		WHERE owner_id = $1
	`, ownerID).Scan(&wallet.WalletID, &wallet.OwnerID, &wallet.OwnerType, &wallet.Balance, &wallet.Currency, &wallet.Version, &wallet.CreatedAt, &metaDataJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NotFound(fmt.Sprintf("Wallet for owner '%s' not found", ownerID))
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve wallet", err)
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &wallet.MetaData); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal wallet metadata", err)
		}
	}
	return wallet, nil
}

// ensureWalletTx creates the owner's wallet inside the transaction if it does
// not exist yet. Settlement legs credit owners that may never have been seen.
func ensureWalletTx(ctx context.Context, tx *sql.Tx, ownerID, ownerType, currency string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO mobo.wallets (wallet_id, owner_id, owner_type, balance, currency, version, created_at, meta_data)
		VALUES ($1, $2, $3, 0, $4, 0, $5, '{}')
		ON CONFLICT (owner_id) DO NOTHING
	`, model.GenerateUUIDWithPrefix("wlt"), ownerID, ownerType, currency, time.Now())
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to ensure wallet", err)
	}
	return nil
}
