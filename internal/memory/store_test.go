package memory

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStore_UpsertSameKeyTwiceKeepsLatestValue(t *testing.T) {
	s := NewStore("")
	if err := s.Upsert("user1", "vorlieben", "kaffee", "schwarz"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Upsert("user1", "vorlieben", "kaffee", "mit milch"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	all := s.All("user1")
	if len(all) != 1 {
		t.Fatalf("expected exactly one row for (category,key), got %+v", all)
	}
	if all[0].Value != "mit milch" {
		t.Fatalf("expected latest value to win, got %q", all[0].Value)
	}
}

func TestStore_ScopesAreIsolated(t *testing.T) {
	s := NewStore("")
	s.Upsert("user1", "technik", "sprache", "Go")
	s.Upsert("user2", "technik", "sprache", "Python")

	v1, _ := s.Get("user1", "technik", "sprache")
	v2, _ := s.Get("user2", "technik", "sprache")
	if v1 != "Go" || v2 != "Python" {
		t.Fatalf("expected scopes not to bleed, got %q / %q", v1, v2)
	}
}

func TestStore_DeleteRemovesFact(t *testing.T) {
	s := NewStore("")
	s.Upsert("user1", "cat", "key", "val")
	s.Delete("user1", "cat", "key")
	if _, ok := s.Get("user1", "cat", "key"); ok {
		t.Fatal("expected fact to be gone after delete")
	}
}

func TestStore_RecentOrdersNewestFirstAndRespectsLimit(t *testing.T) {
	s := NewStore("")
	s.Upsert("u", "a", "k1", "v1")
	s.Upsert("u", "a", "k2", "v2")
	s.Upsert("u", "a", "k3", "v3")

	recent := s.Recent("u", 2)
	if len(recent) != 2 {
		t.Fatalf("expected limit respected, got %d", len(recent))
	}
	// k3 was written last, so must be first.
	if recent[0].Key != "k3" {
		t.Fatalf("expected newest-first ordering, got %+v", recent)
	}
}

func TestStore_PersistsAcrossReload(t *testing.T) {
	dir, err := os.MkdirTemp("", "memory-store-test-*")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "facts.json")

	s1 := NewStore(path)
	s1.Upsert("u", "technik", "editor", "vim")

	s2 := NewStore(path)
	v, ok := s2.Get("u", "technik", "editor")
	if !ok || v != "vim" {
		t.Fatalf("expected fact to survive reload, got %q, ok=%v", v, ok)
	}
}
