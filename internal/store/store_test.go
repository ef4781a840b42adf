package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/ledwatch/internal/decision"
	"github.com/ayusman/ledwatch/internal/ledstate"
)

// newTestStore creates a new Store backed by a temp file.
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

func TestNewStore_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

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

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"runs", "ticks"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q should exist after migrations: %v", table, err)
		}
	}

	for _, idx := range []string{"idx_ticks_run_id", "idx_runs_started_at"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='index' AND name=?",
			idx,
		).Scan(&name)
		if err != nil {
			t.Errorf("index %q should exist after migrations: %v", idx, err)
		}
	}
}

func TestNewStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 2; i++ {
		s, err := New(dbPath)
		if err != nil {
			t.Fatalf("open %d: failed to create store: %v", i, err)
		}
		s.Close()
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

func TestStore_ForeignKeysEnabled(t *testing.T) {
	s := newTestStore(t)

	var fkEnabled int
	if err := s.DB().QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		t.Fatalf("failed to check foreign keys pragma: %v", err)
	}
	if fkEnabled != 1 {
		t.Error("foreign keys should be enabled")
	}
}

func TestStore_ForeignKeysOnEveryConnection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := s.NewRecorder(newRun())
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	if err := rec.ObserveTick(decision.Tick{Index: 1, Classification: ledstate.NoLedDetected()}); err != nil {
		t.Fatalf("ObserveTick() error = %v", err)
	}

	// Pin one connection so the delete below has to use another one.
	held, err := s.DB().Conn(ctx)
	if err != nil {
		t.Fatalf("Conn() error = %v", err)
	}
	defer held.Close()

	other, err := s.DB().Conn(ctx)
	if err != nil {
		t.Fatalf("Conn() error = %v", err)
	}
	var fk int
	if err := other.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("failed to read foreign_keys: %v", err)
	}
	other.Close()
	if fk != 1 {
		t.Errorf("foreign_keys on a second connection = %d, want 1", fk)
	}

	if err := s.Runs().Delete(rec.RunID()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	var orphans int
	if err := held.QueryRowContext(ctx, "SELECT COUNT(*) FROM ticks").Scan(&orphans); err != nil {
		t.Fatalf("failed to count ticks: %v", err)
	}
	if orphans != 0 {
		t.Errorf("ticks left after deleting their run = %d, want 0", orphans)
	}
}
