package store

import (
	"context"
	"testing"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	done, err := s.IsComplete(ctx, "tok-1")
	if err != nil {
		t.Fatalf("IsComplete() error = %v", err)
	}
	if done {
		t.Error("fresh store reports complete")
	}

	if err := s.MarkComplete(ctx, "tok-1"); err != nil {
		t.Fatalf("MarkComplete() error = %v", err)
	}

	done, _ = s.IsComplete(ctx, "tok-1")
	if !done {
		t.Error("marker not visible after MarkComplete")
	}

	// Markers are per token.
	if other, _ := s.IsComplete(ctx, "tok-2"); other {
		t.Error("marker leaked across tokens")
	}

	if err := s.Clear(ctx, "tok-1"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if done, _ := s.IsComplete(ctx, "tok-1"); done {
		t.Error("marker survived Clear")
	}
}
