package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/okian/clash/internal/domain/rules"
	"github.com/okian/clash/internal/domain/weights"
	"github.com/okian/clash/pkg/logger"
	"github.com/okian/clash/pkg/metrics"

	_ "modernc.org/sqlite"
)

// Default store configuration constants.
const (
	defaultTenant       = "default"
	defaultMaxOpenConns = 4
	defaultMaxIdleConns = 2
	connMaxLifetime     = 30 * time.Minute
	timeLayout          = time.RFC3339Nano
	dateLayout          = "2006-01-02"
)

// SQLiteStore persists the catalog, settings, groups and decisions in one
// SQLite database running in WAL mode.
type SQLiteStore struct {
	db             *sql.DB
	tenant         string
	defaultRules   rules.ConflictRule
	defaultWeights weights.ScoringWeights
	retry          retryConfig
	maxOpenConns   int
	log            logger.Logger
	now            func() time.Time
	closed         atomic.Bool
}

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		tenant:         defaultTenant,
		defaultRules:   rules.Defaults(),
		defaultWeights: weights.Defaults(),
		retry:          defaultRetryConfig,
		maxOpenConns:   defaultMaxOpenConns,
		log:            logger.Nop(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(s.maxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	s.db = db

	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s.log.Info(ctx, "repository opened", logger.String("path", path), logger.String("tenant", s.tenant))
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

// Tenant returns the tenant this store is scoped to.
func (s *SQLiteStore) Tenant() string { return s.tenant }

// Ping checks that the database answers.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		guid            TEXT PRIMARY KEY,
		title           TEXT NOT NULL DEFAULT '',
		event_date      TEXT NOT NULL,
		location_name   TEXT NOT NULL DEFAULT '',
		venue_key       TEXT NOT NULL DEFAULT '',
		lat             REAL,
		lon             REAL,
		organizer       TEXT NOT NULL DEFAULT '',
		performers      TEXT NOT NULL DEFAULT '[]',
		ticket_required INTEGER NOT NULL DEFAULT 0,
		source          TEXT NOT NULL DEFAULT '',
		updated_at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_date ON events(event_date);
	CREATE INDEX IF NOT EXISTS idx_events_source ON events(source);

	CREATE TABLE IF NOT EXISTS venues (
		name_key TEXT PRIMARY KEY,
		name     TEXT NOT NULL,
		lat      REAL NOT NULL,
		lon      REAL NOT NULL,
		quality  INTEGER
	);

	CREATE TABLE IF NOT EXISTS organizers (
		name_key   TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		reputation INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ratings (
		guid                 TEXT PRIMARY KEY,
		venue_quality        INTEGER,
		organizer_reputation INTEGER,
		performer_lineup     INTEGER,
		logistics_ease       INTEGER,
		readiness            INTEGER,
		updated_at           TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		tenant     TEXT NOT NULL,
		name       TEXT NOT NULL,
		value      TEXT NOT NULL,
		version    INTEGER NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (tenant, name)
	);

	CREATE TABLE IF NOT EXISTS conflict_groups (
		tenant     TEXT NOT NULL,
		id         TEXT NOT NULL,
		created_at TEXT NOT NULL,
		last_seen  TEXT NOT NULL,
		PRIMARY KEY (tenant, id)
	);

	CREATE TABLE IF NOT EXISTS group_members (
		tenant     TEXT NOT NULL,
		group_id   TEXT NOT NULL,
		event_guid TEXT NOT NULL,
		PRIMARY KEY (tenant, group_id, event_guid),
		FOREIGN KEY (tenant, group_id) REFERENCES conflict_groups(tenant, id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_members_event ON group_members(tenant, event_guid);

	CREATE TABLE IF NOT EXISTS decisions (
		tenant     TEXT NOT NULL,
		group_id   TEXT NOT NULL,
		event_guid TEXT NOT NULL,
		attendance TEXT NOT NULL CHECK (attendance IN ('planned', 'skipped')),
		decided_at TEXT NOT NULL,
		PRIMARY KEY (tenant, group_id, event_guid),
		FOREIGN KEY (tenant, group_id) REFERENCES conflict_groups(tenant, id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_decisions_event ON decisions(tenant, event_guid, decided_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// write runs fn with transient retries and records write latency.
func (s *SQLiteStore) write(ctx context.Context, fn func() error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	start := time.Now()
	err := retryOp(ctx, s.retry, fn)
	metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		metrics.RecordErrorByComponent("repository", "write")
	}
	return err
}

// read records query latency around fn.
func (s *SQLiteStore) read(fn func() error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	start := time.Now()
	err := fn()
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		metrics.RecordErrorByComponent("repository", "read")
	}
	return err
}

// inTx runs fn inside a transaction with transient retries.
func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return s.write(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

func (s *SQLiteStore) stamp() string {
	return s.now().UTC().Format(timeLayout)
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intFromNull(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
