package idgen

import (
	"strings"
	"sync"
	"testing"
)

func TestSequence_Monotonic(t *testing.T) {
	gen := Sequence("veil")
	for i, want := range []string{"veil0", "veil1", "veil2", "veil3"} {
		if got := gen(); got != want {
			t.Fatalf("call %d: got %q, want %q", i, got, want)
		}
	}
}

func TestSequence_Independent(t *testing.T) {
	a := Sequence("a")
	b := Sequence("b")
	a()
	a()
	if got := b(); got != "b0" {
		t.Fatalf("second sequence: got %q, want %q", got, "b0")
	}
}

func TestSequence_ConcurrentUnique(t *testing.T) {
	gen := Sequence("x")
	var mu sync.Mutex
	seen := make(map[string]struct{}, 1000)
	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := gen()
				mu.Lock()
				if _, dup := seen[id]; dup {
					mu.Unlock()
					t.Errorf("duplicate id %q", id)
					return
				}
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != 1000 {
		t.Fatalf("unique ids: got %d, want 1000", len(seen))
	}
}

func TestUUIDv7_Format(t *testing.T) {
	gen := UUIDv7()
	id := gen()
	// UUID format: 8-4-4-4-12
	parts := strings.Split(id, "-")
	if len(parts) != 5 {
		t.Fatalf("UUIDv7: expected 5 parts, got %d in %q", len(parts), id)
	}
	if len(id) != 36 {
		t.Fatalf("UUIDv7: expected length 36, got %d", len(id))
	}
}

func TestUUIDv7_Uniqueness(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := gen()
		if _, ok := seen[id]; ok {
			t.Fatalf("UUIDv7: duplicate at iteration %d", i)
		}
		seen[id] = struct{}{}
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("ses_", Sequence(""))
	if got := gen(); got != "ses_0" {
		t.Fatalf("Prefixed: got %q, want %q", got, "ses_0")
	}
}

func TestParse(t *testing.T) {
	id := New()
	got, err := Parse(id)
	if err != nil {
		t.Fatalf("Parse(%q): %v", id, err)
	}
	if got != id {
		t.Errorf("Parse: got %q, want %q", got, id)
	}
	if _, err := Parse("not-a-uuid"); err == nil {
		t.Error("Parse: expected error for invalid input")
	}
}
