package db

import (
	"database/sql"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// NewBunPostgresClient opens the shared bun handle used by the user
// repository and the quota/entitlement store.
func NewBunPostgresClient(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))

	client := bun.NewDB(sqldb, pgdialect.New())

	client.SetMaxOpenConns(10)
	client.SetMaxIdleConns(2)
	return client
}
