package ident

import (
	"testing"
	"time"
)

func TestShortIDShape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := ShortID()
		if len(id) != 8 {
			t.Fatalf("expected 8 characters, got %q", id)
		}
		for _, r := range id {
			if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'F') {
				t.Fatalf("unexpected character %q in %q", r, id)
			}
		}
		if seen[id] {
			t.Fatalf("duplicate short ID %q after %d draws", id, i)
		}
		seen[id] = true
	}
}

func TestNewIDDistinct(t *testing.T) {
	if NewID() == NewID() {
		t.Fatal("expected distinct IDs")
	}
}

func TestFixedClock(t *testing.T) {
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := FixedClock{T: want}
	if got := c.Now(); !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
