package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// One connection: sqlite allows a single writer, and ":memory:" databases
	// are per-connection. Vote transactions serialize on it.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		PRAGMA foreign_keys = ON;
		PRAGMA busy_timeout = 5000;

		CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			hazard_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			center_lat REAL NOT NULL,
			center_lon REAL NOT NULL,
			radius_m INTEGER NOT NULL CHECK (radius_m > 0),
			valid_until INTEGER NOT NULL,
			source TEXT NOT NULL,
			created_by TEXT,
			status TEXT NOT NULL,
			score INTEGER NOT NULL DEFAULT 0,
			official INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			dispatched_at INTEGER
		);

		CREATE TABLE IF NOT EXISTS votes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			voter_id TEXT NOT NULL,
			alert_id TEXT NOT NULL,
			direction TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			UNIQUE (voter_id, alert_id),
			FOREIGN KEY (alert_id) REFERENCES alerts(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS devices (
			device_id TEXT PRIMARY KEY,
			push_token TEXT,
			last_lat REAL,
			last_lon REAL,
			last_seen_at INTEGER
		);

		CREATE TABLE IF NOT EXISTS shelters (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			shelter_type TEXT NOT NULL DEFAULT 'PUBLIC',
			address TEXT NOT NULL DEFAULT '',
			lat REAL NOT NULL,
			lon REAL NOT NULL,
			capacity INTEGER,
			is_verified INTEGER NOT NULL DEFAULT 0,
			is_open INTEGER NOT NULL DEFAULT 1,
			source TEXT,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_alerts_valid_until ON alerts(valid_until);
		CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status);
		CREATE INDEX IF NOT EXISTS idx_votes_alert_id ON votes(alert_id);
		CREATE INDEX IF NOT EXISTS idx_shelters_lat ON shelters(lat);
		CREATE INDEX IF NOT EXISTS idx_shelters_lon ON shelters(lon);
  	`

	_, err := s.db.Exec(schema)
	return err
}

// Ping is used by the health endpoint.
func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Timestamps are stored as unix milliseconds so range filters compare integers.
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
