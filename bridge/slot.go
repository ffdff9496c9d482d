package bridge

import (
	"context"
	"sync"
)

// answerSlot is a single-assignment cell delivering a human's answer back
// into a suspended elicitation handler. Exactly one Resolve wins; the value
// is read exactly once.
type answerSlot struct {
	once sync.Once
	ch   chan map[string]any
}

func newAnswerSlot() *answerSlot {
	return &answerSlot{ch: make(chan map[string]any, 1)}
}

// Resolve stores the answer and reports whether this call was the one that
// resolved the slot. Losing calls are no-ops.
func (s *answerSlot) Resolve(answer map[string]any) bool {
	won := false
	s.once.Do(func() {
		s.ch <- answer
		won = true
	})
	return won
}

// Await blocks until the slot is resolved or ctx is done.
func (s *answerSlot) Await(ctx context.Context) (map[string]any, error) {
	select {
	case v := <-s.ch:
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
