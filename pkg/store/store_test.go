package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "bundles.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutAndGet(t *testing.T) {
	s := openTestStore(t)

	data := []byte("bundle bytes")
	if err := s.Put("math", data); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	got, err := s.Get("math")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("Get = %q, want %q", got, data)
	}
}

func TestPutReplaces(t *testing.T) {
	s := openTestStore(t)

	if err := s.Put("math", []byte("v1")); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := s.Put("math", []byte("v2")); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	got, err := s.Get("math")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("Get = %q, want %q", got, "v2")
	}
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get("absent"); !errors.Is(err, ErrBundleNotFound) {
		t.Errorf("Get(absent) error = %v, want ErrBundleNotFound", err)
	}
}

func TestGetDetectsCorruption(t *testing.T) {
	s := openTestStore(t)
	if err := s.Put("math", []byte("pristine")); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	// Flip the stored bytes behind the hash's back.
	if _, err := s.db.Exec("UPDATE bundles SET data = ? WHERE name = ?", []byte("tampered"), "math"); err != nil {
		t.Fatalf("tampering update error: %v", err)
	}

	if _, err := s.Get("math"); !errors.Is(err, ErrCorruptBundle) {
		t.Errorf("Get error = %v, want ErrCorruptBundle", err)
	}
}

func TestNames(t *testing.T) {
	s := openTestStore(t)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := s.Put(name, []byte(name)); err != nil {
			t.Fatalf("Put(%s) error: %v", name, err)
		}
	}

	names, err := s.Names()
	if err != nil {
		t.Fatalf("Names error: %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("Names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestReopenKeepsBundles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bundles.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if err := s.Put("math", []byte("persisted")); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer s2.Close()
	got, err := s2.Get("math")
	if err != nil {
		t.Fatalf("Get after reopen error: %v", err)
	}
	if string(got) != "persisted" {
		t.Errorf("Get = %q, want %q", got, "persisted")
	}
}
