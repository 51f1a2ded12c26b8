package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

func Connect(postgresURL string) (*sqlx.DB, error) {
	conn, err := otelsql.Open("postgres", postgresURL,
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
	)
	if err != nil {
		return nil, fmt.Errorf("could not connect to postgres: %w", err)
	}

	return sqlx.NewDb(conn, "postgres"), nil
}

var schema = `
CREATE TABLE IF NOT EXISTS registry (
	singleton BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
	authority TEXT NOT NULL,
	organization_count BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS organization_directory (
	id BIGINT PRIMARY KEY,
	name TEXT NOT NULL,
	owner TEXT NOT NULL,
	description TEXT NOT NULL,
	kyc_verified BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS organizations (
	owner TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	metadata_uri TEXT NOT NULL,
	event_count BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS events (
	event_id TEXT PRIMARY KEY,
	organization_owner TEXT NOT NULL REFERENCES organizations (owner),
	org_event_seq BIGINT NOT NULL,
	name TEXT NOT NULL,
	description TEXT NOT NULL,
	location TEXT NOT NULL,
	start_time TIMESTAMPTZ NOT NULL,
	end_time TIMESTAMPTZ NOT NULL,
	price BIGINT NOT NULL,
	max_capacity BIGINT NOT NULL,
	remaining_tickets BIGINT NOT NULL CHECK (remaining_tickets >= 0),
	tickets_minted BIGINT NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	ticket_metadata_uri TEXT NOT NULL,
	UNIQUE (organization_owner, org_event_seq),
	CHECK (tickets_minted + remaining_tickets = max_capacity)
);

-- Bucket membership of the events index. Every registered event id is in
-- exactly one bucket; the status column here must always agree with
-- events.status (both are written in the same transaction).
CREATE TABLE IF NOT EXISTS event_index (
	event_id TEXT PRIMARY KEY REFERENCES events (event_id),
	status TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ticket_manager (
	singleton BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
	authority TEXT NOT NULL,
	ticket_count BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS tickets (
	event_id TEXT NOT NULL REFERENCES events (event_id),
	buyer TEXT NOT NULL,
	ticket_id TEXT NOT NULL UNIQUE,
	ticket_number BIGINT NOT NULL,
	price_paid BIGINT NOT NULL,
	purchased_at TIMESTAMPTZ NOT NULL,
	used BOOLEAN NOT NULL DEFAULT FALSE,
	refunded BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (event_id, buyer),
	CHECK (NOT (used AND refunded))
);

CREATE TABLE IF NOT EXISTS accounts (
	account_id TEXT PRIMARY KEY,
	balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0)
);

CREATE TABLE IF NOT EXISTS read_model_event_sales (
	event_id TEXT PRIMARY KEY,
	payload JSONB NOT NULL
);
`

func InitializeDatabaseSchema(db *sqlx.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("could not initialize database schema: %w", err)
	}
	return nil
}
