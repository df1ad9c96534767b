/*
Package sqlite provides a SQLite-backed implementation of generic.MapStore.

PURPOSE:
  Keeps the admin override maps in one SQLite database instead of loose
  JSON files. Selected with storage.backend: sqlite.

KEY TABLES:
  overrides: (map_name, key) -> value, one row per override entry

SEMANTICS:
  Each named map behaves exactly like a JSON file store: Load returns the
  whole map, Save replaces the whole map. Save runs inside a transaction,
  so a failed rewrite leaves the previous map intact.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Readers don't block the writer
  - Single writer at a time

USAGE:
  db, err := sqlite.New("./overrides.db")
  if err != nil {
      log.Fatal(err)
  }
  defer db.Close()

  joins := generic.NewOverrideMap("join_overrides", db.Map("join_overrides"), logger)

SEE ALSO:
  - generic/store.go: MapStore contract
  - store/jsonfile: file-backed alternative
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/grade-engine/generic"
)

// Store owns the database handle; Map returns per-map views.
type Store struct {
	db *sql.DB
}

// New opens (and migrates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: keeps ":memory:" a single database and serializes writers.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS overrides (
		map_name   TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (map_name, key)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Map returns the MapStore view of one named map.
func (s *Store) Map(name string) generic.MapStore {
	return &namedMap{store: s, name: name}
}

type namedMap struct {
	store *Store
	name  string
}

func (m *namedMap) Load(ctx context.Context) (map[string]string, error) {
	rows, err := m.store.db.QueryContext(ctx,
		`SELECT key, value FROM overrides WHERE map_name = ?`, m.name)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load %s: %w", m.name, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("sqlite: scan %s: %w", m.name, err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: load %s: %w", m.name, err)
	}
	return out, nil
}

func (m *namedMap) Save(ctx context.Context, data map[string]string) error {
	tx, err := m.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM overrides WHERE map_name = ?`, m.name); err != nil {
		return fmt.Errorf("sqlite: clear %s: %w", m.name, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO overrides (map_name, key, value, updated_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for k, v := range data {
		if _, err := stmt.ExecContext(ctx, m.name, k, v, now); err != nil {
			return fmt.Errorf("sqlite: insert %s[%s]: %w", m.name, k, err)
		}
	}
	return tx.Commit()
}
