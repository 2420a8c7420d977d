// Package sqlite provides SQLite-based persistent storage for Searchlight.
// Uses WAL mode for concurrent reads and crash-safe writes. The store is
// the single source of truth for samples, runs, anomalies, hypotheses,
// tickets, fix plans, and knowledge entries: no in-process caches.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/state.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Metric window store: one row per (site, source, metric, day).
		// Append-only; re-ingesting the same day is a no-op.
		`CREATE TABLE IF NOT EXISTS metric_samples (
			site_id    TEXT NOT NULL,
			source     TEXT NOT NULL,
			metric_key TEXT NOT NULL,
			day        TEXT NOT NULL,
			value      REAL NOT NULL,
			PRIMARY KEY (site_id, source, metric_key, day)
		)`,

		// Diagnostic runs. (site_id, day) is the idempotency key for
		// non-forced runs.
		`CREATE TABLE IF NOT EXISTS runs (
			id                 TEXT PRIMARY KEY,
			site_id            TEXT NOT NULL,
			day                TEXT NOT NULL,
			status             TEXT NOT NULL,
			started_at         INTEGER NOT NULL,
			finished_at        INTEGER,
			anomaly_count      INTEGER NOT NULL DEFAULT 0,
			ticket_count       INTEGER NOT NULL DEFAULT 0,
			primary_hypothesis TEXT NOT NULL DEFAULT '',
			primary_confidence TEXT NOT NULL DEFAULT '',
			failed_sources     TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_site_day ON runs(site_id, day)`,

		// Anomaly records: immutable, one per run per flagged metric.
		`CREATE TABLE IF NOT EXISTS anomalies (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id          TEXT NOT NULL,
			source          TEXT NOT NULL,
			metric_key      TEXT NOT NULL,
			current_value   REAL NOT NULL,
			baseline_mean   REAL NOT NULL,
			baseline_stddev REAL NOT NULL,
			z_score         REAL NOT NULL,
			delta_pct       REAL,
			severity        TEXT NOT NULL,
			start_date      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_anomalies_run ON anomalies(run_id)`,

		// Ranked hypotheses per run. Ranks are dense and unique.
		`CREATE TABLE IF NOT EXISTS hypotheses (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id         TEXT NOT NULL,
			rank_num       INTEGER NOT NULL,
			key            TEXT NOT NULL,
			confidence     TEXT NOT NULL,
			supporting_ids TEXT NOT NULL DEFAULT '',
			missing_data   TEXT NOT NULL DEFAULT '',
			UNIQUE (run_id, rank_num)
		)`,

		// Tickets. The partial unique index makes fingerprint dedup an
		// atomic insert-or-skip even across concurrent runs.
		`CREATE TABLE IF NOT EXISTS tickets (
			id             TEXT PRIMARY KEY,
			run_id         TEXT NOT NULL,
			site_id        TEXT NOT NULL,
			hypothesis_key TEXT NOT NULL DEFAULT '',
			fingerprint    TEXT NOT NULL,
			issue_type     TEXT NOT NULL,
			target         TEXT NOT NULL,
			title          TEXT NOT NULL,
			priority       TEXT NOT NULL,
			status         TEXT NOT NULL DEFAULT 'open',
			owner          TEXT NOT NULL DEFAULT '',
			evidence       TEXT NOT NULL DEFAULT '',
			created_at     INTEGER NOT NULL,
			last_seen_at   INTEGER NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tickets_open_fingerprint
			ON tickets(site_id, fingerprint) WHERE status = 'open'`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_site_status ON tickets(site_id, status)`,

		// Fix plans. The partial unique index enforces "at most one
		// pending plan per (site, topic)" atomically.
		`CREATE TABLE IF NOT EXISTS fix_plans (
			id                    TEXT PRIMARY KEY,
			site_id               TEXT NOT NULL,
			topic                 TEXT NOT NULL,
			generated_at          INTEGER NOT NULL,
			expires_at            INTEGER NOT NULL,
			cooldown_allowed      INTEGER NOT NULL DEFAULT 0,
			cooldown_next_allowed INTEGER NOT NULL DEFAULT 0,
			items                 TEXT NOT NULL,
			status                TEXT NOT NULL DEFAULT 'pending',
			executed_at           INTEGER,
			executed_items        INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_plans_pending
			ON fix_plans(site_id, topic) WHERE status = 'pending'`,
		`CREATE INDEX IF NOT EXISTS idx_plans_site_topic ON fix_plans(site_id, topic)`,

		// Knowledge entries: append-only learning record.
		`CREATE TABLE IF NOT EXISTS knowledge_entries (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			site_id    TEXT NOT NULL,
			type       TEXT NOT NULL,
			topic      TEXT NOT NULL,
			title      TEXT NOT NULL,
			evidence   TEXT NOT NULL DEFAULT '',
			decision   TEXT NOT NULL DEFAULT '',
			outcome    TEXT NOT NULL DEFAULT '',
			tags       TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_knowledge_site_topic
			ON knowledge_entries(site_id, topic)`,
	}

	for i, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
