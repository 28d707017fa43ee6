package supervisor

import (
	"context"
	"sync"
)

// setupSignal is a single-shot broadcast: many dependents wait on it, one
// task fires it exactly once with the outcome of its own setup phase.
type setupSignal struct {
	ch      chan struct{}
	mu      sync.Mutex
	fired   bool
	success bool
}

func newSetupSignal() *setupSignal {
	return &setupSignal{ch: make(chan struct{})}
}

// fire broadcasts the outcome. Only the first call has any effect.
func (s *setupSignal) fire(success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fired {
		return
	}
	s.fired = true
	s.success = success
	close(s.ch)
}

// wait blocks until fire has been called or ctx is done.
func (s *setupSignal) wait(ctx context.Context) (success bool, err error) {
	select {
	case <-s.ch:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.success, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
