package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createPropertiesTable,
		createBookingsTable,
		createBookingsIndexes,
		createBookingsExclusion,
		createRecurringPatternsTable,
		createCalendarAvailabilityTable,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createPropertiesTable = `
CREATE TABLE IF NOT EXISTS properties (
    id BIGSERIAL PRIMARY KEY,
    owner_id VARCHAR(255) NOT NULL,
    name VARCHAR(500) NOT NULL,
    base_price NUMERIC(10,2) NOT NULL CHECK (base_price >= 0),
    max_guests INTEGER NOT NULL CHECK (max_guests >= 1),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createBookingsTable = `
CREATE TABLE IF NOT EXISTS bookings (
    id BIGSERIAL PRIMARY KEY,
    property_id BIGINT NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
    guest_id VARCHAR(255) NOT NULL,
    check_in DATE NOT NULL,
    check_out DATE NOT NULL,
    guest_count INTEGER NOT NULL,
    total_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    guest_name VARCHAR(255) NOT NULL,
    guest_email VARCHAR(255) NOT NULL,
    guest_phone VARCHAR(50),
    purpose TEXT,
    special_requests TEXT,
    idempotency_key VARCHAR(255),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (check_out > check_in),
    CHECK (guest_count >= 1),
    CHECK (status IN ('pending', 'confirmed', 'checked_in', 'checked_out', 'cancelled')),
    UNIQUE (property_id, idempotency_key)
);`

const createBookingsIndexes = `
CREATE INDEX IF NOT EXISTS bookings_property_dates_idx ON bookings (property_id, check_in, check_out);
CREATE INDEX IF NOT EXISTS bookings_guest_idx ON bookings (guest_id, check_in);`

// Last line of defence behind the advisory lock: the database itself refuses
// overlapping active stays for a property.
const createBookingsExclusion = `
CREATE EXTENSION IF NOT EXISTS btree_gist;
DO $$
BEGIN
    IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'bookings_no_active_overlap') THEN
        ALTER TABLE bookings ADD CONSTRAINT bookings_no_active_overlap
            EXCLUDE USING gist (property_id WITH =, daterange(check_in, check_out, '[)') WITH &&)
            WHERE (status IN ('pending', 'confirmed', 'checked_in'));
    END IF;
END
$$;`

const createRecurringPatternsTable = `
CREATE TABLE IF NOT EXISTS recurring_patterns (
    id BIGSERIAL PRIMARY KEY,
    property_id BIGINT NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
    name VARCHAR(255) NOT NULL,
    days_of_week INTEGER[] NOT NULL,
    start_date DATE NOT NULL,
    end_date DATE NOT NULL,
    is_available BOOLEAN NOT NULL DEFAULT TRUE,
    custom_price NUMERIC(10,2),
    notes TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_applied_at TIMESTAMPTZ,

    CHECK (end_date >= start_date),
    CHECK (custom_price IS NULL OR custom_price > 0)
);`

const createCalendarAvailabilityTable = `
CREATE TABLE IF NOT EXISTS calendar_availability (
    property_id BIGINT NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
    date DATE NOT NULL,
    is_available BOOLEAN,
    custom_price NUMERIC(10,2),
    notes TEXT,
    pattern_id BIGINT REFERENCES recurring_patterns(id) ON DELETE SET NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    PRIMARY KEY (property_id, date),
    CHECK (custom_price IS NULL OR custom_price > 0)
);`
