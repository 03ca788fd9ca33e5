package idgen

import (
	"strings"
	"testing"
)

func TestNanoIDLengthAndAlphabet(t *testing.T) {
	gen := NanoID(16)
	id := gen()
	if len(id) != 16 {
		t.Fatalf("expected length 16, got %d (%q)", len(id), id)
	}
	for _, r := range id {
		if !strings.ContainsRune("0123456789abcdefghijklmnopqrstuvwxyz", r) {
			t.Errorf("unexpected rune %q in %q", r, id)
		}
	}
}

func TestUUIDv7Unique(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := gen()
		if seen[id] {
			t.Fatalf("duplicate ID after %d generations: %s", i, id)
		}
		seen[id] = true
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("conn_", NanoID(8))
	id := gen()
	if !strings.HasPrefix(id, "conn_") {
		t.Errorf("expected conn_ prefix, got %q", id)
	}
	if len(id) != len("conn_")+8 {
		t.Errorf("unexpected length: %q", id)
	}
}

func TestDefaultIsUUID(t *testing.T) {
	id := Default()
	if len(id) != 36 {
		t.Errorf("expected 36-char UUID, got %q", id)
	}
}
