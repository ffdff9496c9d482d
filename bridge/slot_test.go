package bridge

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSlotResolveUnblocksAwait(t *testing.T) {
	t.Parallel()

	s := newAnswerSlot()
	go func() {
		time.Sleep(10 * time.Millisecond)
		if !s.Resolve(map[string]any{"name": "ada"}) {
			t.Error("first Resolve should win")
		}
	}()

	got, err := s.Await(t.Context())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if got["name"] != "ada" {
		t.Fatalf("got %v, want ada", got["name"])
	}
}

func TestSlotSecondResolveLoses(t *testing.T) {
	t.Parallel()

	s := newAnswerSlot()
	if !s.Resolve(map[string]any{"v": 1}) {
		t.Fatal("first Resolve should win")
	}
	if s.Resolve(map[string]any{"v": 2}) {
		t.Fatal("second Resolve should be a no-op")
	}

	got, err := s.Await(t.Context())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if got["v"] != 1 {
		t.Fatalf("answer clobbered: got %v", got["v"])
	}
}

func TestSlotAwaitHonorsContext(t *testing.T) {
	t.Parallel()

	s := newAnswerSlot()
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	if _, err := s.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
