package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"jarvis/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS protocols (
	id            TEXT PRIMARY KEY,
	position      INTEGER NOT NULL,
	name          TEXT NOT NULL,
	triggerPhrase TEXT NOT NULL,
	actions       TEXT NOT NULL,
	response      TEXT
);

CREATE TABLE IF NOT EXISTS facts (
	id        TEXT PRIMARY KEY,
	position  INTEGER NOT NULL,
	content   TEXT NOT NULL,
	addedAt   REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Store persists protocols, remembered facts and settings in SQLite.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the database path under the user's data directory.
func DefaultPath() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "jarvis", "jarvis.sqlite")
}

// Open opens or creates the database at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Each :memory: connection is its own database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) LoadProtocols(ctx context.Context) ([]domain.Protocol, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, triggerPhrase, actions, response
		FROM protocols
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query protocols: %w", err)
	}
	defer rows.Close()

	var out []domain.Protocol
	for rows.Next() {
		var (
			p        domain.Protocol
			actions  string
			response sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.TriggerPhrase, &actions, &response); err != nil {
			return nil, fmt.Errorf("scan protocol: %w", err)
		}
		if err := json.Unmarshal([]byte(actions), &p.Actions); err != nil {
			return nil, fmt.Errorf("decode actions of %q: %w", p.Name, err)
		}
		if response.Valid {
			r := response.String
			p.Response = &r
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveProtocols replaces the stored list with protocols, keeping their order.
func (s *Store) SaveProtocols(ctx context.Context, protocols []domain.Protocol) error {
	return s.replace(ctx, "protocols", func(tx *sql.Tx) error {
		for i, p := range protocols {
			actions, err := json.Marshal(p.Actions)
			if err != nil {
				return fmt.Errorf("encode actions of %q: %w", p.Name, err)
			}
			var response sql.NullString
			if p.Response != nil {
				response = sql.NullString{String: *p.Response, Valid: true}
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO protocols (id, position, name, triggerPhrase, actions, response)
				VALUES (?, ?, ?, ?, ?, ?)
			`, p.ID, i, p.Name, p.TriggerPhrase, string(actions), response); err != nil {
				return fmt.Errorf("insert protocol %q: %w", p.Name, err)
			}
		}
		return nil
	})
}

func (s *Store) LoadFacts(ctx context.Context) ([]domain.Fact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, addedAt
		FROM facts
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	var out []domain.Fact
	for rows.Next() {
		var (
			f       domain.Fact
			addedAt float64
		)
		if err := rows.Scan(&f.ID, &f.Content, &addedAt); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		f.AddedAt = timeFromUnix(addedAt)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) SaveFacts(ctx context.Context, facts []domain.Fact) error {
	return s.replace(ctx, "facts", func(tx *sql.Tx) error {
		for i, f := range facts {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO facts (id, position, content, addedAt)
				VALUES (?, ?, ?, ?)
			`, f.ID, i, f.Content, unixFromTime(f.AddedAt)); err != nil {
				return fmt.Errorf("insert fact: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) Setting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query setting %q: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("save setting %q: %w", key, err)
	}
	return nil
}

func (s *Store) replace(ctx context.Context, table string, fill func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	if err := fill(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", table, err)
	}
	return nil
}

func timeFromUnix(f float64) time.Time {
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9))
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
