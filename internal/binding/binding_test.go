package binding

import (
	"errors"
	"sync"
	"testing"
)

func TestBindRelease(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Bind("t1", "m"); err != nil {
		t.Fatalf("first bind failed: %v", err)
	}
	if !reg.Bound("m") {
		t.Error("model should be bound")
	}
	if err := reg.Bind("t2", "m"); !errors.Is(err, ErrAlreadyBound) {
		t.Fatalf("expected ErrAlreadyBound, got %v", err)
	}
	if err := reg.Release("t1", "m"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if err := reg.Bind("t3", "m"); err != nil {
		t.Fatalf("rebind after release failed: %v", err)
	}
}

func TestReleaseMismatch(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Release("t1", "m"); !errors.Is(err, ErrNotBound) {
		t.Fatalf("expected ErrNotBound for unknown model, got %v", err)
	}
	if err := reg.Bind("t1", "m"); err != nil {
		t.Fatal(err)
	}
	if err := reg.Release("t2", "m"); !errors.Is(err, ErrNotBound) {
		t.Fatalf("expected ErrNotBound for wrong owner, got %v", err)
	}
}

// Two concurrent binders must never both observe "unbound".
func TestConcurrentSingleWriter(t *testing.T) {
	reg := NewRegistry()
	const attempts = 64

	var wg sync.WaitGroup
	wins := make(chan string, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			trainer := string(rune('a' + id%26))
			if err := reg.Bind(trainer+"-unique", "shared"); err == nil {
				wins <- trainer
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one successful bind, got %d", count)
	}
}
