// Package memory implements the keyed-fact half of memory services: a small
// JSON-file-backed MemoryStore, and a best-effort background fact extractor
// that runs an LLM over each conversation turn looking for new facts to
// remember.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/nextlevelbuilder/clara/internal/config"
	"github.com/nextlevelbuilder/clara/internal/store"
)

// Store is the default store.MemoryStore implementation: an in-memory map of
// facts mirrored to a single JSON file, keyed by scope (typically a user or
// session identifier) so multiple conversations don't bleed into each
// other's remembered facts.
type Store struct {
	mu    sync.RWMutex
	path  string
	facts map[string]map[string]store.MemoryFact // scope -> "category/key" -> fact
}

func NewStore(path string) *Store {
	s := &Store{path: path, facts: make(map[string]map[string]store.MemoryFact)}
	if path != "" {
		s.load()
	}
	return s
}

// NewStoreFromConfig selects the MemoryStore backend named by cfg.Backend:
// "" / "json" for the default JSON-file Store, "sqlite" or "postgres" for
// the database/sql-backed SQLStore against cfg.DSN.
func NewStoreFromConfig(cfg config.MemoryConfig, jsonPath string) (store.MemoryStore, error) {
	switch cfg.Backend {
	case "", "json":
		return NewStore(jsonPath), nil
	case "sqlite", "postgres":
		return NewSQLStore(cfg.Backend, cfg.DSN)
	default:
		return nil, fmt.Errorf("memory: unknown backend %q", cfg.Backend)
	}
}

func factID(category, key string) string { return category + "/" + key }

func (s *Store) Upsert(scope, category, key, value string) error {
	s.mu.Lock()
	if s.facts[scope] == nil {
		s.facts[scope] = make(map[string]store.MemoryFact)
	}
	s.facts[scope][factID(category, key)] = store.MemoryFact{
		Category:  category,
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	s.mu.Unlock()
	return s.save()
}

func (s *Store) Get(scope, category, key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scoped, ok := s.facts[scope]
	if !ok {
		return "", false
	}
	f, ok := scoped[factID(category, key)]
	return f.Value, ok
}

func (s *Store) All(scope string) []store.MemoryFact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scoped := s.facts[scope]
	out := make([]store.MemoryFact, 0, len(scoped))
	for _, f := range scoped {
		out = append(out, f)
	}
	return out
}

// Recent returns up to limit facts for scope ordered newest-first, for the
// orchestrator's "group the N most recent facts by category" prompt block.
// limit<=0 means unlimited.
func (s *Store) Recent(scope string, limit int) []store.MemoryFact {
	facts := s.All(scope)
	sort.Slice(facts, func(i, j int) bool { return facts[i].UpdatedAt.After(facts[j].UpdatedAt) })
	if limit > 0 && len(facts) > limit {
		facts = facts[:limit]
	}
	return facts
}

func (s *Store) Delete(scope, category, key string) error {
	s.mu.Lock()
	if scoped, ok := s.facts[scope]; ok {
		delete(scoped, factID(category, key))
	}
	s.mu.Unlock()
	return s.save()
}

func (s *Store) save() error {
	if s.path == "" {
		return nil
	}
	s.mu.RLock()
	data, err := json.MarshalIndent(s.facts, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var facts map[string]map[string]store.MemoryFact
	if err := json.Unmarshal(data, &facts); err != nil {
		return
	}
	s.facts = facts
}
