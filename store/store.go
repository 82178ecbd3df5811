// Package store mirrors the card settings into a local SQLite database so a
// session survives restarts. The store is never authoritative while the app
// is running: it is a side-effect mirror of the in-memory card state.
//
// The adapter degrades rather than fails: an unavailable database turns every
// operation into a no-op returning false/nil/default, and corrupted persisted
// JSON is treated as absent (and deleted, so the next load starts clean).
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hazyhaar/cardgen/dbopen"
)

// DefaultKey is the single storage key holding the settings blob.
const DefaultKey = "github-card-generator-data"

// Schema creates the settings table. Pass to dbopen.WithSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// Store is the persistence adapter for the settings blob.
type Store struct {
	db        *sql.DB
	key       string
	available bool
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the storage key (for tests).
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a Store over db and probes availability once. A db that cannot
// accept writes (nil handle, read-only file, missing table) produces a Store
// whose operations all short-circuit; the condition is logged a single time.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, key: DefaultKey, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	s.available = s.probe()
	if !s.available {
		s.logger.Warn("store: unavailable, settings will not persist this session")
	}
	return s
}

// Available reports whether the backing store accepted the startup probe.
func (s *Store) Available() bool { return s.available }

// Load returns the sanitized settings blob, or nil when nothing usable is
// stored. Corrupted JSON self-heals: the bad row is deleted and nil returned.
func (s *Store) Load() map[string]any {
	if !s.available {
		return nil
	}

	var raw string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, s.key).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		s.logger.Error("store: load", "error", err)
		return nil
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		s.logger.Warn("store: corrupted settings, clearing", "error", err)
		s.Clear()
		return nil
	}

	data = migrateLegacy(data)
	return sanitize(data)
}

// Save validates, sanitizes, and writes the settings blob. Invalid fields are
// dropped rather than persisted, so the store can never round-trip a value
// the validators would reject.
func (s *Store) Save(data map[string]any) bool {
	if !s.available || data == nil {
		return false
	}

	clean := sanitize(migrateLegacy(data))
	blob, err := json.Marshal(clean)
	if err != nil {
		s.logger.Error("store: marshal", "error", err)
		return false
	}

	err = dbopen.RunTx(context.Background(), s.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO settings (key, value, updated_at) VALUES (?,?,?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			s.key, string(blob), time.Now().Unix())
		return err
	})
	if err != nil {
		s.logger.Error("store: save", "error", err)
		return false
	}
	return true
}

// SaveItem updates a single top-level key inside the blob.
func (s *Store) SaveItem(key string, value any) bool {
	if !s.available || key == "" {
		return false
	}
	data := s.Load()
	if data == nil {
		data = map[string]any{}
	}
	data[key] = value
	return s.Save(data)
}

// LoadItem returns a single top-level value, or def when absent.
func (s *Store) LoadItem(key string, def any) any {
	if !s.available || key == "" {
		return def
	}
	data := s.Load()
	if data == nil {
		return def
	}
	if v, ok := data[key]; ok {
		return v
	}
	return def
}

// Clear removes the persisted blob.
func (s *Store) Clear() bool {
	if !s.available {
		return false
	}
	if _, err := dbopen.Exec(context.Background(), s.db, `DELETE FROM settings WHERE key = ?`, s.key); err != nil {
		s.logger.Error("store: clear", "error", err)
		return false
	}
	return true
}

// probe verifies the store accepts writes. Runs once at construction.
func (s *Store) probe() bool {
	if s.db == nil {
		return false
	}
	probeKey := s.key + "__probe__"
	if _, err := s.db.Exec(`INSERT OR REPLACE INTO settings (key, value, updated_at) VALUES (?, '{}', 0)`, probeKey); err != nil {
		return false
	}
	_, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, probeKey)
	return err == nil
}
