package store

import (
	"os"
	"path/filepath"
	"testing"
)

// newTestStore creates a Store backed by a temporary database file.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func TestNew_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "asana.db")

	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Fatal("database file should not exist before creating store")
	}

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file should exist after creating store")
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}
}

func TestNew_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	objects := []struct {
		kind, name string
	}{
		{"table", "pose_rules"},
		{"table", "sessions"},
		{"table", "settings"},
		{"index", "idx_pose_rules_updated_at"},
		{"index", "idx_sessions_pose"},
		{"index", "idx_sessions_started_at"},
	}
	for _, obj := range objects {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type=? AND name=?",
			obj.kind, obj.name,
		).Scan(&name)
		if err != nil {
			t.Errorf("%s %q should exist after migrations: %v", obj.kind, obj.name, err)
		}
	}
}

func TestNew_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "asana.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := s.Rules().Set("bridge", map[string]float64{"minHipAngle": 150}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s.Close()

	doc, err := s.Rules().Get("bridge")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if doc.Fields["minHipAngle"] != 150 {
		t.Errorf("minHipAngle = %v, want 150", doc.Fields["minHipAngle"])
	}
}

func TestStore_Close(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("close should not return error: %v", err)
	}

	if _, err := s.DB().Exec("SELECT 1"); err == nil {
		t.Error("DB operations should fail after close")
	}
}

func TestSettingRepository(t *testing.T) {
	repo := newTestStore(t).Settings()

	if _, err := repo.Get("active_pose"); err != ErrNotFound {
		t.Errorf("Get() on missing key error = %v, want ErrNotFound", err)
	}

	if err := repo.Set("active_pose", "bridge"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := repo.Set("active_pose", "plank"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}

	got, err := repo.Get("active_pose")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "plank" {
		t.Errorf("Get() = %q, want %q", got, "plank")
	}
}
