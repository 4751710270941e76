package mobo

import (
	"context"
	"embed"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/typesense/typesense-go/typesense/api"

	"github.com/chetanchaudhari789/MOBO-sub001/config"
	"github.com/chetanchaudhari789/MOBO-sub001/database"
	redis_db "github.com/chetanchaudhari789/MOBO-sub001/internal/redis-db"
	"github.com/chetanchaudhari789/MOBO-sub001/internal/search"
)

// Mobo is the order settlement core: workflow transitions, proof
// verification, slot allocation, the wallet ledger and the settlement
// coordinator all hang off this struct.
type Mobo struct {
	queue       *Queue
	search      *search.TypesenseClient
	redis       redis.UniversalClient
	datasource  database.IDataSource
	eligibility EligibilityChecker
}

//go:embed sql/*.sql
var SQLFiles embed.FS

// NewMobo initializes the service layer on top of the provided datasource.
// Redis, the task queue and the search client come from configuration.
func NewMobo(db database.IDataSource) (*Mobo, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)})
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)
	newSearch := search.NewTypesenseClient(configuration.TypeSense.Key, []string{configuration.TypeSense.Dns})

	return &Mobo{
		datasource:  db,
		queue:       newQueue,
		redis:       redisClient.Client(),
		search:      newSearch,
		eligibility: allowAll{},
	}, nil
}

// SetEligibilityChecker swaps the settlement eligibility hooks. Party and
// dispute management live outside this service; callers wire in their own
// checker when they have one.
func (m *Mobo) SetEligibilityChecker(checker EligibilityChecker) {
	if checker != nil {
		m.eligibility = checker
	}
}

// Search performs a search on the specified collection.
func (m *Mobo) Search(collection string, query *api.SearchCollectionParams) (interface{}, error) {
	return m.search.Search(context.Background(), collection, query)
}

// EligibilityChecker answers the settlement-time questions the core does not
// own: dispute tickets and party standing.
type EligibilityChecker interface {
	HasOpenDispute(ctx context.Context, orderID string) (bool, error)
	MediatorActive(ctx context.Context, mediatorCode string) (bool, error)
	BuyerActive(ctx context.Context, buyerID string) (bool, error)
}

type allowAll struct{}

func (allowAll) HasOpenDispute(context.Context, string) (bool, error) { return false, nil }
func (allowAll) MediatorActive(context.Context, string) (bool, error) { return true, nil }
func (allowAll) BuyerActive(context.Context, string) (bool, error)    { return true, nil }
