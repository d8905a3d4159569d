package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
// connectionString should be in the format: "host=localhost port=5432 user=postgres password=postgres dbname=navfolio sslmode=disable"
func NewDB(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// schema creates the tables used by the repositories. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS funds (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		fund_type       TEXT NOT NULL DEFAULT '',
		category        TEXT NOT NULL DEFAULT '',
		latest_nav      NUMERIC(20, 6),
		latest_nav_date DATE
	)`,
	`CREATE TABLE IF NOT EXISTS fund_historical_nav (
		fund_id TEXT NOT NULL REFERENCES funds (id),
		date    DATE NOT NULL,
		nav     NUMERIC(20, 6) NOT NULL,
		PRIMARY KEY (fund_id, date)
	)`,
	`CREATE TABLE IF NOT EXISTS fund_transactions (
		seq           BIGSERIAL UNIQUE,
		id            UUID PRIMARY KEY,
		user_id       UUID NOT NULL,
		account_id    UUID NOT NULL,
		fund_id       TEXT NOT NULL REFERENCES funds (id),
		tx_type       TEXT NOT NULL CHECK (tx_type IN ('BUY', 'SELL')),
		units         NUMERIC(20, 6) NOT NULL CHECK (units > 0),
		price         NUMERIC(20, 6) NOT NULL CHECK (price > 0),
		transacted_at DATE NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fund_transactions_user_fund
		ON fund_transactions (user_id, fund_id, transacted_at, seq)`,
	`CREATE TABLE IF NOT EXISTS tax_rates (
		year                   INTEGER PRIMARY KEY,
		short_term_rate        NUMERIC(6, 3) NOT NULL,
		long_term_rate         NUMERIC(6, 3) NOT NULL,
		short_term_exemption   NUMERIC(20, 2) NOT NULL DEFAULT 0,
		long_term_exemption    NUMERIC(20, 2) NOT NULL DEFAULT 0,
		long_term_holding_days INTEGER NOT NULL
	)`,
}

// Migrate creates any missing tables
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
