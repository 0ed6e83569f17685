package memory

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	_ "modernc.org/sqlite"             // registers the "sqlite" database/sql driver

	"github.com/nextlevelbuilder/clara/internal/store"
)

// SQLStore is a store.MemoryStore implementation backed by database/sql,
// usable against either a local SQLite file (driver "sqlite", pure Go, no
// cgo) or a Postgres server (driver "pgx" via jackc/pgx/v5's stdlib
// adapter), behind the identical interface the JSON-file-backed Store
// implements. Scope/category/key addressing matches Store's "scope ->
// category/key" layout, just persisted as rows instead of one big file.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NewSQLStore opens (and, for sqlite, creates) the backing database. driver
// must be "sqlite" or "postgres"; dsn is a sqlite file path (or ":memory:")
// or a libpq connection string respectively.
func NewSQLStore(driver, dsn string) (*SQLStore, error) {
	var sqlDriver string
	switch driver {
	case "sqlite":
		sqlDriver = "sqlite"
	case "postgres":
		sqlDriver = "pgx"
	default:
		return nil, fmt.Errorf("memory: unknown sql backend %q", driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("memory: open %s store: %w", driver, err)
	}
	s := &SQLStore{db: db, driver: driver}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS memory_facts (
			scope      TEXT NOT NULL,
			category   TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (scope, category, key)
		)
	`)
	if err != nil {
		return fmt.Errorf("memory: create memory_facts table: %w", err)
	}
	return nil
}

// Upsert implements store.MemoryStore.
func (s *SQLStore) Upsert(scope, category, key, value string) error {
	now := time.Now().UTC()
	var query string
	switch s.driver {
	case "postgres":
		query = `INSERT INTO memory_facts (scope, category, key, value, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (scope, category, key) DO UPDATE SET value = $4, updated_at = $5`
	default:
		query = `INSERT INTO memory_facts (scope, category, key, value, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (scope, category, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	}
	_, err := s.db.Exec(query, scope, category, key, value, now)
	if err != nil {
		return fmt.Errorf("memory: upsert fact: %w", err)
	}
	return nil
}

// Get implements store.MemoryStore.
func (s *SQLStore) Get(scope, category, key string) (string, bool) {
	query := "SELECT value FROM memory_facts WHERE scope = ? AND category = ? AND key = ?"
	if s.driver == "postgres" {
		query = "SELECT value FROM memory_facts WHERE scope = $1 AND category = $2 AND key = $3"
	}
	var value string
	err := s.db.QueryRow(query, scope, category, key).Scan(&value)
	if err != nil {
		return "", false
	}
	return value, true
}

// All implements store.MemoryStore, returning every fact in scope sorted by
// category then key for deterministic prompt assembly.
func (s *SQLStore) All(scope string) []store.MemoryFact {
	query := "SELECT category, key, value, updated_at FROM memory_facts WHERE scope = ?"
	if s.driver == "postgres" {
		query = "SELECT category, key, value, updated_at FROM memory_facts WHERE scope = $1"
	}
	rows, err := s.db.Query(query, scope)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var facts []store.MemoryFact
	for rows.Next() {
		var f store.MemoryFact
		if err := rows.Scan(&f.Category, &f.Key, &f.Value, &f.UpdatedAt); err != nil {
			continue
		}
		facts = append(facts, f)
	}
	sort.Slice(facts, func(i, j int) bool {
		if facts[i].Category != facts[j].Category {
			return facts[i].Category < facts[j].Category
		}
		return facts[i].Key < facts[j].Key
	})
	return facts
}

// Delete implements store.MemoryStore.
func (s *SQLStore) Delete(scope, category, key string) error {
	query := "DELETE FROM memory_facts WHERE scope = ? AND category = ? AND key = ?"
	if s.driver == "postgres" {
		query = "DELETE FROM memory_facts WHERE scope = $1 AND category = $2 AND key = $3"
	}
	_, err := s.db.Exec(query, scope, category, key)
	if err != nil {
		return fmt.Errorf("memory: delete fact: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
