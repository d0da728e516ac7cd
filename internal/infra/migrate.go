package infra

import (
	"database/sql"
	"fmt"

	// Postgres driver for the migration path; the hot path uses pgx pools.
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

// migration is one ordered schema step. Steps must stay append-only; applied
// versions are recorded in schema_migrations and never re-run.
type migration struct {
	version int
	name    string
	stmt    string
}

var migrations = []migration{
	{1, "create accounts", `
create table if not exists accounts (
  id uuid primary key default gen_random_uuid(),
  display_name text not null,
  email text not null unique,
  financially_verified boolean not null default false,
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now()
);`},
	{2, "create campaigns", `
create table if not exists campaigns (
  id uuid primary key default gen_random_uuid(),
  title text not null,
  status text not null default 'DRAFT',
  creator_id uuid not null references accounts(id),
  currency char(3) not null,
  goal_amount bigint not null check (goal_amount > 0),
  current_amount bigint not null default 0 check (current_amount >= 0),
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now()
);`},
	{3, "create donations", `
create table if not exists donations (
  id uuid primary key default gen_random_uuid(),
  campaign_id uuid not null references campaigns(id),
  donor_id uuid,
  donor_email text not null default '',
  amount_int bigint not null check (amount_int > 0),
  currency char(3) not null,
  status text not null default 'PENDING',
  gateway_intent_id text,
  card_brand text not null default '',
  card_last_four text not null default '',
  message text not null default '',
  is_anonymous boolean not null default false,
  failure_reason text,
  properties jsonb not null default '{}'::jsonb,
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now(),
  processed_at timestamptz
);`},
	{4, "index donations by campaign", `
create index if not exists donations_campaign_status_idx
  on donations (campaign_id, status);`},
	{5, "index donations by gateway intent", `
create unique index if not exists donations_gateway_intent_idx
  on donations (gateway_intent_id) where gateway_intent_id is not null;`},
	{6, "index donations feed", `
create index if not exists donations_completed_feed_idx
  on donations (processed_at desc) where status = 'COMPLETED';`},
}

// Migrator applies the embedded schema through database/sql. It runs from
// cmd/migrate before the api and worker start.
type Migrator struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewMigrator opens a database/sql handle on the postgres driver.
func NewMigrator(databaseURL string, logger zerolog.Logger) (*Migrator, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("migrate: open database: %w", err)
	}
	return &Migrator{db: db, logger: logger}, nil
}

// NewMigratorWithDB wraps an existing handle; used by tests.
func NewMigratorWithDB(db *sql.DB, logger zerolog.Logger) *Migrator {
	return &Migrator{db: db, logger: logger}
}

// Up applies all pending migrations in order, each in its own transaction.
func (m *Migrator) Up() error {
	if _, err := m.db.Exec(`create table if not exists schema_migrations (
  version int primary key,
  name text not null,
  applied_at timestamptz not null default now()
)`); err != nil {
		return fmt.Errorf("migrate: ensure bookkeeping table: %w", err)
	}

	var current int
	if err := m.db.QueryRow(`select coalesce(max(version), 0) from schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}

	for _, mig := range migrations {
		if mig.version <= current {
			continue
		}
		if err := m.apply(mig); err != nil {
			return err
		}
		m.logger.Info().Int("version", mig.version).Str("name", mig.name).Msg("migration applied")
	}
	return nil
}

func (m *Migrator) apply(mig migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("migrate: begin %d: %w", mig.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(mig.stmt); err != nil {
		return fmt.Errorf("migrate: apply %d (%s): %w", mig.version, mig.name, err)
	}
	if _, err := tx.Exec(`insert into schema_migrations (version, name) values ($1, $2)`, mig.version, mig.name); err != nil {
		return fmt.Errorf("migrate: record %d: %w", mig.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit %d: %w", mig.version, err)
	}
	return nil
}

// Close releases the database handle.
func (m *Migrator) Close() error {
	return m.db.Close()
}
