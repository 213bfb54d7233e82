package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store and ensures the schema exists
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Schema evolution is additive-only with defaulted fields; columns are never
// reordered or dropped.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		username TEXT NOT NULL DEFAULT '',
		age INTEGER,
		sex TEXT,
		questions TEXT,
		documents TEXT,
		document_types TEXT,
		service_type TEXT NOT NULL DEFAULT 'Не указано',
		needs_demographics BOOLEAN NOT NULL DEFAULT TRUE,
		status TEXT NOT NULL DEFAULT 'pending',
		price BIGINT NOT NULL DEFAULT 490,
		original_price BIGINT NOT NULL DEFAULT 490,
		discount_applied BIGINT NOT NULL DEFAULT 0,
		discount_kind TEXT NOT NULL DEFAULT 'none',
		promo_code TEXT,
		referrer_id BIGINT,
		payment_status TEXT NOT NULL DEFAULT 'pending',
		invoice_token TEXT UNIQUE,
		agreement_accepted BOOLEAN NOT NULL DEFAULT FALSE,
		agreement_version TEXT NOT NULL DEFAULT '2.1',
		tax_reported BOOLEAN NOT NULL DEFAULT FALSE,
		rating INTEGER,
		clarification_count INTEGER NOT NULL DEFAULT 0,
		last_clarification_at TIMESTAMPTZ,
		can_clarify_until TIMESTAMPTZ,
		admin_id BIGINT,
		answered_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS clarifications (
		id BIGSERIAL PRIMARY KEY,
		order_id BIGINT NOT NULL REFERENCES orders (id),
		user_id BIGINT NOT NULL,
		message_text TEXT NOT NULL DEFAULT '',
		message_type TEXT NOT NULL DEFAULT 'text',
		file_id TEXT,
		is_from_user BOOLEAN NOT NULL DEFAULT TRUE,
		replied_to_clarification_id BIGINT,
		is_admin_request BOOLEAN NOT NULL DEFAULT FALSE,
		sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id BIGSERIAL PRIMARY KEY,
		order_id BIGINT NOT NULL REFERENCES orders (id),
		amount BIGINT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'RUB',
		status TEXT NOT NULL,
		provider_payment_id TEXT NOT NULL DEFAULT '',
		invoice_token TEXT NOT NULL DEFAULT '',
		tax_reported BOOLEAN NOT NULL DEFAULT FALSE,
		payment_date TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS ratings (
		id BIGSERIAL PRIMARY KEY,
		order_id BIGINT UNIQUE NOT NULL REFERENCES orders (id),
		rating INTEGER NOT NULL,
		rated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS promo_codes (
		id BIGSERIAL PRIMARY KEY,
		code TEXT UNIQUE NOT NULL,
		discount_kind TEXT NOT NULL DEFAULT 'percent',
		discount_value DOUBLE PRECISION NOT NULL,
		uses_left INTEGER NOT NULL DEFAULT -1,
		valid_until TIMESTAMPTZ,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS used_promo_codes (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		promo_code TEXT NOT NULL REFERENCES promo_codes (code),
		order_id BIGINT NOT NULL REFERENCES orders (id),
		discount_amount BIGINT NOT NULL DEFAULT 0,
		used_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, promo_code)
	)`,
	`CREATE TABLE IF NOT EXISTS referrals (
		id BIGSERIAL PRIMARY KEY,
		referrer_id BIGINT NOT NULL,
		referred_id BIGINT NOT NULL,
		order_id BIGINT,
		referrer_bonus BIGINT NOT NULL DEFAULT 0,
		referred_discount BIGINT NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMPTZ,
		UNIQUE (referrer_id, referred_id)
	)`,
	`CREATE TABLE IF NOT EXISTS user_agreements (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		agreement_version TEXT NOT NULL DEFAULT '2.1',
		accepted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, agreement_version)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_order_id ON payments (order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_clarifications_order_id ON clarifications (order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_promo_codes_code ON promo_codes (code)`,
	`CREATE INDEX IF NOT EXISTS idx_referrals_referrer_id ON referrals (referrer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_referrals_referred_id ON referrals (referred_id)`,
}

func (s *Store) ensureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// RecordAgreement records that a user accepted a terms version.
// Re-acceptance of the same version is a no-op.
func (s *Store) RecordAgreement(ctx context.Context, userID int64, version string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_agreements (user_id, agreement_version)
		VALUES ($1, $2)
		ON CONFLICT (user_id, agreement_version) DO NOTHING`,
		userID, version)
	return err
}

// HasAcceptedAgreement reports whether a user accepted a terms version.
func (s *Store) HasAcceptedAgreement(ctx context.Context, userID int64, version string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM user_agreements
			WHERE user_id = $1 AND agreement_version = $2
		)`, userID, version)
	return exists, err
}
