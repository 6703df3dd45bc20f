package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-events/internal/models"
)

// CreateSchema creates the events table from the model. Postgres deployments
// use the SQL migrations instead; this covers SQLite and tests.
func CreateSchema(ctx context.Context, bunDB *bun.DB) error {
	_, err := bunDB.NewCreateTable().
		Model((*models.Event)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create events table: %w", err)
	}
	return nil
}

// OpenSQLite opens a SQLite database and ensures the schema. A single
// connection keeps in-memory databases from splitting across the pool.
func OpenSQLite(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	if err := bunDB.PingContext(ctx); err != nil {
		bunDB.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := CreateSchema(ctx, bunDB); err != nil {
		bunDB.Close()
		return nil, err
	}
	return bunDB, nil
}
