package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS spaces (
	id UUID PRIMARY KEY,
	host_id UUID NOT NULL,
	name TEXT NOT NULL,
	hour_price BIGINT NOT NULL DEFAULT 0,
	currency TEXT NOT NULL DEFAULT 'UZS',
	working_hours JSONB NOT NULL DEFAULT '{}',
	blocked_dates JSONB NOT NULL DEFAULT '[]',
	blocked_weekdays JSONB NOT NULL DEFAULT '[]',
	min_booking_hours INT NOT NULL DEFAULT 1,
	cooldown_minutes INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bookings (
	id UUID PRIMARY KEY,
	space_id UUID NOT NULL REFERENCES spaces(id),
	user_id UUID NOT NULL,
	status TEXT NOT NULL,
	total_price BIGINT NOT NULL DEFAULT 0,
	final_total BIGINT NOT NULL DEFAULT 0,
	unique_request_id TEXT NOT NULL,
	approved_at TIMESTAMPTZ,
	paid_at TIMESTAMPTZ,
	approved_override BOOLEAN NOT NULL DEFAULT false,
	payment_response JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS booking_slots (
	booking_id UUID NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
	date DATE NOT NULL,
	start_time TEXT NOT NULL,
	end_time TEXT NOT NULL,
	day_of_week INT NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	id UUID PRIMARY KEY,
	provider TEXT NOT NULL,
	provider_tx_id TEXT NOT NULL DEFAULT '',
	state INT NOT NULL,
	booking_id UUID NOT NULL REFERENCES bookings(id),
	user_id UUID NOT NULL,
	amount BIGINT NOT NULL,
	currency TEXT NOT NULL DEFAULT 'UZS',
	provider_data JSONB,
	perform_date TIMESTAMPTZ,
	cancel_reason INT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bookings_space ON bookings(space_id, status);
CREATE INDEX IF NOT EXISTS idx_bookings_user ON bookings(user_id);
CREATE INDEX IF NOT EXISTS idx_booking_slots_booking ON booking_slots(booking_id);
CREATE INDEX IF NOT EXISTS idx_booking_slots_date ON booking_slots(date);
CREATE UNIQUE INDEX IF NOT EXISTS uq_transactions_provider_booking ON transactions(provider, booking_id);
CREATE UNIQUE INDEX IF NOT EXISTS uq_transactions_provider_tx ON transactions(provider, provider_tx_id) WHERE provider_tx_id <> '';
`

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schemaSQL)
	return err
}
