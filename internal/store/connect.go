// Package store keeps a history of evaluation runs in SQL.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures the schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite"
		if dsn == "" {
			dsn = "file:segeval.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/segeval?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	created_at BIGINT NOT NULL,
	optimal_source TEXT NOT NULL,
	student_source TEXT NOT NULL,
	color_value_slack_range INTEGER NOT NULL,
	black_value_threshold INTEGER NOT NULL,
	pixel_range_check INTEGER NOT NULL,
	check_eight_surrounding_pixels BOOLEAN NOT NULL,
	reference_count INTEGER NOT NULL,
	aggregate DOUBLE PRECISION NOT NULL
);
CREATE TABLE IF NOT EXISTS candidate_scores (
	run_id TEXT NOT NULL REFERENCES runs(id),
	position INTEGER NOT NULL,
	candidate TEXT NOT NULL,
	score DOUBLE PRECISION NOT NULL,
	best_reference INTEGER NOT NULL,
	best_reference_name TEXT NOT NULL,
	reference_to_candidate DOUBLE PRECISION NOT NULL,
	candidate_to_reference DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, position)
);
`
