package postgres

import (
	"context"
	"fmt"
)

// схема реестра: abn_records + таблицы по abn. Даты хранятся как в выгрузке (yyyymmdd).
var schema = []string{
	`CREATE TABLE IF NOT EXISTS abn_records (
		abn                      TEXT PRIMARY KEY,
		abn_status               TEXT NOT NULL,
		abn_status_from_date     TEXT NOT NULL,
		record_last_updated_date TEXT NOT NULL,
		entity_type_ind          TEXT,
		entity_type_text         TEXT,
		created_at               TIMESTAMPTZ DEFAULT NOW(),
		updated_at               TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS main_entity (
		abn        TEXT PRIMARY KEY REFERENCES abn_records(abn) ON DELETE CASCADE,
		type       TEXT NOT NULL,
		text       TEXT,
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS legal_entity (
		abn          TEXT PRIMARY KEY REFERENCES abn_records(abn) ON DELETE CASCADE,
		type         TEXT NOT NULL,
		title        TEXT,
		given_name_1 TEXT,
		given_name_2 TEXT,
		family_name  TEXT,
		created_at   TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS asic_numbers (
		abn         TEXT PRIMARY KEY REFERENCES abn_records(abn) ON DELETE CASCADE,
		asic_number TEXT NOT NULL,
		created_at  TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS gst_registrations (
		abn              TEXT PRIMARY KEY REFERENCES abn_records(abn) ON DELETE CASCADE,
		status           TEXT NOT NULL,
		status_from_date TEXT NOT NULL,
		created_at       TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS business_addresses (
		abn        TEXT PRIMARY KEY REFERENCES abn_records(abn) ON DELETE CASCADE,
		state_code TEXT,
		postcode   TEXT,
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS dgr_entries (
		id               BIGSERIAL PRIMARY KEY,
		abn              TEXT NOT NULL REFERENCES abn_records(abn) ON DELETE CASCADE,
		status_from_date TEXT NOT NULL,
		status           TEXT,
		type             TEXT,
		text             TEXT,
		created_at       TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS other_entity_names (
		id         BIGSERIAL PRIMARY KEY,
		abn        TEXT NOT NULL REFERENCES abn_records(abn) ON DELETE CASCADE,
		type       TEXT NOT NULL,
		text       TEXT,
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_dgr_entries_abn ON dgr_entries(abn)`,
	`CREATE INDEX IF NOT EXISTS idx_other_entity_names_abn ON other_entity_names(abn)`,
}

// Migrate создает схему, повторный вызов ничего не ломает.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
