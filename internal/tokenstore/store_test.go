package tokenstore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func tempStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "user_tokens.yaml")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s, path
}

func TestOpenMissingFile(t *testing.T) {
	s, _ := tempStore(t)
	if s.Count() != 0 {
		t.Errorf("new store should be empty, got %d entries", s.Count())
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	s, _ := tempStore(t)

	if err := s.Set(42, "abc123"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	token, ok := s.Get(42)
	if !ok {
		t.Fatal("Get() after Set() reported absent")
	}
	if token != "abc123" {
		t.Errorf("Get() = %q, want %q", token, "abc123")
	}
}

func TestGetAbsent(t *testing.T) {
	s, _ := tempStore(t)

	if _, ok := s.Get(99); ok {
		t.Error("Get() on empty store should report absent")
	}
}

func TestSetOverwrites(t *testing.T) {
	s, _ := tempStore(t)

	if err := s.Set(42, "old"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set(42, "new"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	token, _ := s.Get(42)
	if token != "new" {
		t.Errorf("Get() = %q, want last write %q", token, "new")
	}
	if s.Count() != 1 {
		t.Errorf("re-register created duplicate record, Count() = %d", s.Count())
	}
}

func TestSetIdempotent(t *testing.T) {
	s, _ := tempStore(t)

	for i := 0; i < 2; i++ {
		if err := s.Set(42, "abc123"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}

	token, _ := s.Get(42)
	if token != "abc123" {
		t.Errorf("Get() = %q, want %q", token, "abc123")
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1", s.Count())
	}
}

func TestDelete(t *testing.T) {
	s, _ := tempStore(t)

	if err := s.Set(42, "abc123"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Delete(42); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := s.Get(42); ok {
		t.Error("Get() after Delete() should report absent")
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	s, path := tempStore(t)

	if err := s.Set(1, "one"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set(2, "two"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open() reopen error = %v", err)
	}
	for id, want := range map[int64]string{1: "one", 2: "two"} {
		got, ok := reopened.Get(id)
		if !ok || got != want {
			t.Errorf("reopened Get(%d) = %q, %v; want %q, true", id, got, ok, want)
		}
	}
}

func TestConcurrentWritersLoseNoTokens(t *testing.T) {
	s, path := tempStore(t)

	const users = 50
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if err := s.Set(id, "token"); err != nil {
				t.Errorf("Set(%d) error = %v", id, err)
			}
		}(int64(i))
	}
	wg.Wait()

	if s.Count() != users {
		t.Errorf("Count() = %d, want %d (a concurrent write was lost)", s.Count(), users)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open() reopen error = %v", err)
	}
	if reopened.Count() != users {
		t.Errorf("persisted Count() = %d, want %d", reopened.Count(), users)
	}
}

func TestFileIsHumanInspectable(t *testing.T) {
	s, path := tempStore(t)

	if err := s.Set(42, "abc123"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	want := "\"42\": abc123\n"
	if string(b) != want {
		t.Errorf("file contents = %q, want %q", string(b), want)
	}
}
