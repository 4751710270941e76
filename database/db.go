package database

import (
	"database/sql"
	"sync"

	_ "github.com/lib/pq"

	"github.com/chetanchaudhari789/MOBO-sub001/config"
	"github.com/chetanchaudhari789/MOBO-sub001/internal/cache"
)

// Datasource is the single Postgres-backed store for orders, campaigns,
// wallets, ledger entries and payouts. All atomic-update primitives the
// settlement core relies on live here.
type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

var (
	instance *Datasource
	once     sync.Once
)

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	return getDBConnection(configuration)
}

// getDBConnection initializes the singleton datasource on first use.
func getDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		newCache, errCache := cache.NewCache()
		if errCache != nil {
			err = errCache
			return
		}
		instance = &Datasource{Conn: con, Cache: newCache}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}
