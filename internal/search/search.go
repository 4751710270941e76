package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/typesense/typesense-go/typesense"
	"github.com/typesense/typesense-go/typesense/api"
)

const (
	CollectionOrders        = "orders"
	CollectionCampaigns     = "campaigns"
	CollectionLedgerEntries = "ledger_entries"
)

// CollectionConfig holds the schema and field mapping for one collection.
type CollectionConfig struct {
	Schema     *api.CollectionSchema
	IDField    string
	TimeFields []string
}

var collectionConfigs map[string]CollectionConfig

func init() {
	collectionConfigs = map[string]CollectionConfig{
		CollectionOrders: {
			Schema:     getOrderSchema(),
			IDField:    "order_id",
			TimeFields: []string{"created_at", "expected_settlement_date"},
		},
		CollectionCampaigns: {
			Schema:     getCampaignSchema(),
			IDField:    "campaign_id",
			TimeFields: []string{"created_at"},
		},
		CollectionLedgerEntries: {
			Schema:     getLedgerEntrySchema(),
			IDField:    "entry_id",
			TimeFields: []string{"created_at"},
		},
	}
}

// getOrderSchema returns the schema for the "orders" collection.
func getOrderSchema() *api.CollectionSchema {
	facet := true
	optional := true
	sortBy := "created_at"
	return &api.CollectionSchema{
		Name: CollectionOrders,
		Fields: []api.Field{
			{Name: "order_id", Type: "string"},
			{Name: "merchant_order_ref", Type: "string"},
			{Name: "campaign_id", Type: "string", Facet: &facet},
			{Name: "buyer_id", Type: "string", Facet: &facet},
			{Name: "mediator_code", Type: "string", Facet: &facet},
			{Name: "workflow_state", Type: "string", Facet: &facet},
			{Name: "affiliate_status", Type: "string", Facet: &facet},
			{Name: "payment_status", Type: "string", Facet: &facet},
			{Name: "total_price", Type: "int64"},
			{Name: "payout", Type: "int64"},
			{Name: "buyer_commission", Type: "int64"},
			{Name: "created_at", Type: "int64"},
			{Name: "expected_settlement_date", Type: "int64", Optional: &optional},
		},
		DefaultSortingField: &sortBy,
	}
}

// getCampaignSchema returns the schema for the "campaigns" collection.
func getCampaignSchema() *api.CollectionSchema {
	facet := true
	sortBy := "created_at"
	return &api.CollectionSchema{
		Name: CollectionCampaigns,
		Fields: []api.Field{
			{Name: "campaign_id", Type: "string"},
			{Name: "brand_id", Type: "string", Facet: &facet},
			{Name: "name", Type: "string"},
			{Name: "status", Type: "string", Facet: &facet},
			{Name: "total_slots", Type: "int64"},
			{Name: "used_slots", Type: "int64"},
			{Name: "created_at", Type: "int64"},
		},
		DefaultSortingField: &sortBy,
	}
}

// getLedgerEntrySchema returns the schema for the "ledger_entries" collection.
func getLedgerEntrySchema() *api.CollectionSchema {
	facet := true
	sortBy := "created_at"
	return &api.CollectionSchema{
		Name: CollectionLedgerEntries,
		Fields: []api.Field{
			{Name: "entry_id", Type: "string"},
			{Name: "idempotency_key", Type: "string"},
			{Name: "entry_type", Type: "string", Facet: &facet},
			{Name: "owner_id", Type: "string", Facet: &facet},
			{Name: "order_id", Type: "string", Facet: &facet},
			{Name: "campaign_id", Type: "string", Facet: &facet},
			{Name: "amount", Type: "int64"},
			{Name: "created_at", Type: "int64"},
		},
		DefaultSortingField: &sortBy,
	}
}

// TypesenseClient wraps the Typesense client for the settlement collections.
type TypesenseClient struct {
	Client *typesense.Client
}

func NewTypesenseClient(apiKey string, hosts []string) *TypesenseClient {
	client := typesense.NewClient(
		typesense.WithServer(hosts[0]),
		typesense.WithAPIKey(apiKey),
		typesense.WithConnectionTimeout(5*time.Second),
		typesense.WithCircuitBreakerMaxRequests(50),
		typesense.WithCircuitBreakerInterval(2*time.Minute),
		typesense.WithCircuitBreakerTimeout(1*time.Minute),
	)
	return &TypesenseClient{Client: client}
}

// EnsureCollectionsExist creates every settlement collection that is missing.
func (t *TypesenseClient) EnsureCollectionsExist(ctx context.Context) error {
	for name, config := range collectionConfigs {
		if _, err := t.CreateCollection(ctx, config.Schema); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
	}
	return nil
}

// CreateCollection creates a collection; an already-existing collection is not
// an error.
func (t *TypesenseClient) CreateCollection(ctx context.Context, schema *api.CollectionSchema) (*api.CollectionResponse, error) {
	resp, err := t.Client.Collections().Create(ctx, schema)
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return nil, nil
		}
		return nil, err
	}
	return resp, nil
}

func (t *TypesenseClient) Search(ctx context.Context, collection string, searchParams *api.SearchCollectionParams) (*api.SearchResult, error) {
	return t.Client.Collection(collection).Documents().Search(ctx, searchParams)
}

// HandleNotification upserts one document coming off the index queue. Time
// fields arrive as RFC3339 strings from json marshaling and are normalized to
// unix seconds for Typesense sorting.
func (t *TypesenseClient) HandleNotification(ctx context.Context, collection string, data map[string]interface{}) error {
	config, ok := collectionConfigs[collection]
	if !ok {
		return fmt.Errorf("unknown collection: %s", collection)
	}

	normalizeTimeFields(config, data)

	idValue, ok := data[config.IDField].(string)
	if !ok || idValue == "" {
		return fmt.Errorf("document for %s is missing %s", collection, config.IDField)
	}
	data["id"] = idValue

	_, err := t.Client.Collection(collection).Documents().Upsert(ctx, data)
	return err
}

func normalizeTimeFields(config CollectionConfig, data map[string]interface{}) {
	for _, field := range config.TimeFields {
		value, ok := data[field]
		if !ok || value == nil {
			delete(data, field)
			continue
		}
		if s, ok := value.(string); ok {
			parsed, err := time.Parse(time.RFC3339, s)
			if err != nil {
				delete(data, field)
				continue
			}
			data[field] = parsed.Unix()
		}
	}
}
