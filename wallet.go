package mobo

import (
	"context"

	"github.com/chetanchaudhari789/MOBO-sub001/config"
	"github.com/chetanchaudhari789/MOBO-sub001/model"
)

// GetWallet retrieves a party's wallet by owner ID.
func (m *Mobo) GetWallet(ctx context.Context, ownerID string) (*model.Wallet, error) {
	ctx, span := tracer.Start(ctx, "Getting wallet")
	defer span.End()
	return m.datasource.GetWallet(ctx, ownerID)
}

// GetOrCreateWallet retrieves a party's wallet, lazily creating an empty one
// in the configured currency on first reference.
func (m *Mobo) GetOrCreateWallet(ctx context.Context, ownerID, ownerType string) (*model.Wallet, error) {
	ctx, span := tracer.Start(ctx, "Getting or creating wallet")
	defer span.End()

	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	return m.datasource.GetOrCreateWallet(ctx, ownerID, ownerType, conf.Settlement.Currency)
}
