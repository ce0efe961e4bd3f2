package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	domainbooking "stayhub/internal/domain/booking"
)

const (
	exclusionViolation   = "23P01"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// Connect opens a gorm handle with driver error translation enabled.
func Connect(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true, PrepareStmt: false})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// schema is applied on startup. The exclusion constraint makes overlapping
// date-holding bookings of one property impossible at the storage level.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id                  TEXT PRIMARY KEY,
		guest_id            TEXT NOT NULL,
		guest_name          TEXT NOT NULL DEFAULT '',
		host_id             TEXT NOT NULL,
		host_name           TEXT NOT NULL DEFAULT '',
		property_id         TEXT NOT NULL,
		property_type       TEXT NOT NULL,
		property_key        TEXT NOT NULL,
		property_title      TEXT NOT NULL DEFAULT '',
		check_in            DATE NOT NULL,
		check_out           DATE NOT NULL,
		nights              INTEGER NOT NULL,
		price_per_night     BIGINT NOT NULL,
		total_price         BIGINT NOT NULL,
		currency            TEXT NOT NULL,
		guest_count         INTEGER NOT NULL,
		special_requests    TEXT NOT NULL DEFAULT '',
		status              TEXT NOT NULL,
		payment_status      TEXT NOT NULL,
		cancellation_reason TEXT NOT NULL DEFAULT '',
		created_at          TIMESTAMPTZ NOT NULL,
		confirmed_at        TIMESTAMPTZ,
		cancelled_at        TIMESTAMPTZ,
		updated_at          TIMESTAMPTZ NOT NULL,
		version             BIGINT NOT NULL,
		CHECK (check_out > check_in),
		CONSTRAINT bookings_no_overlap EXCLUDE USING gist (
			property_key WITH =,
			daterange(check_in, check_out, '[)') WITH &&
		) WHERE (status IN ('pending', 'confirmed'))
	)`,
	`CREATE INDEX IF NOT EXISTS bookings_guest_idx ON bookings (guest_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS bookings_host_idx ON bookings (host_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS properties (
		id              TEXT NOT NULL,
		type            TEXT NOT NULL,
		title           TEXT NOT NULL,
		price_per_night BIGINT NOT NULL,
		currency        TEXT NOT NULL,
		capacity        INTEGER NOT NULL DEFAULT 1,
		host_id         TEXT NOT NULL,
		host_name       TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (type, id)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		email TEXT PRIMARY KEY,
		name  TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		payload         BYTEA NOT NULL,
		occurred_at     TIMESTAMPTZ NOT NULL,
		aggregate       TEXT NOT NULL,
		headers         JSONB NOT NULL DEFAULT '{}',
		state           TEXT NOT NULL,
		attempts        INTEGER NOT NULL DEFAULT 0,
		next_attempt_at TIMESTAMPTZ NOT NULL,
		claimed_by      TEXT NOT NULL DEFAULT '',
		claimed_at      TIMESTAMPTZ,
		sent_at         TIMESTAMPTZ,
		last_error      TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS outbox_events_pending_idx ON outbox_events (state, next_attempt_at)`,
}

func Migrate(ctx context.Context, db *gorm.DB) error {
	for _, stmt := range schema {
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}

type txKey struct{}

// withTx binds a transaction handle to ctx for the repositories.
func withTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// conn returns the transaction bound to ctx, or db when there is none.
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func mapTxErr(err error) error {
	switch pgCode(err) {
	case serializationFailure, deadlockDetected:
		return fmt.Errorf("%w: %v", domainbooking.ErrConcurrentUpdate, err)
	}
	return err
}
