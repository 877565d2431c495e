package nativelib

import (
	"errors"
	"testing"
)

func TestRegistryLookup(t *testing.T) {
	lib := NewRegistry("libtest")
	lib.Register("Java_p_C_f", func(args ...any) any { return int64(7) })

	sym, err := lib.Lookup("Java_p_C_f")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got := sym(); got != int64(7) {
		t.Errorf("symbol returned %v, want 7", got)
	}
}

func TestRegistryLookupNotFound(t *testing.T) {
	lib := NewRegistry("libtest")

	_, err := lib.Lookup("Java_p_C_missing")
	if err == nil {
		t.Fatal("Lookup of missing symbol succeeded")
	}
	if !errors.Is(err, ErrSymbolNotFound) {
		t.Errorf("error %v is not ErrSymbolNotFound", err)
	}
}

func TestLookupAndBind(t *testing.T) {
	lib := NewRegistry("libtest")
	lib.Register("Java_p_C_add", func(args ...any) any {
		return args[2].(int64) + args[3].(int64)
	})

	bound, err := LookupAndBind(lib, "Java_p_C_add", "(env, nullable, long, long): long")
	if err != nil {
		t.Fatalf("LookupAndBind failed: %v", err)
	}
	if got := bound.Signature(); got != "(env, nullable, long, long): long" {
		t.Errorf("Signature = %q", got)
	}
	if got := bound.Call(int64(0), nil, int64(2), int64(3)); got != int64(5) {
		t.Errorf("Call = %v, want 5", got)
	}
}

func TestLookupAndBindPropagatesNotFound(t *testing.T) {
	lib := NewRegistry("libtest")
	if _, err := LookupAndBind(lib, "nope", "(env, nullable): void"); !errors.Is(err, ErrSymbolNotFound) {
		t.Errorf("error %v is not ErrSymbolNotFound", err)
	}
}

func TestRegistryReplaceSymbol(t *testing.T) {
	lib := NewRegistry("libtest")
	lib.Register("f", func(args ...any) any { return 1 })
	lib.Register("f", func(args ...any) any { return 2 })

	sym, err := lib.Lookup("f")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got := sym(); got != 2 {
		t.Errorf("replaced symbol returned %v, want 2", got)
	}
	if lib.Len() != 1 {
		t.Errorf("Len = %d, want 1", lib.Len())
	}
}
