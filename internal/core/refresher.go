package core

import (
	"context"
	"sync"
)

// Refresher hands out contexts for refreshes of one presentation surface.
// Starting a refresh cancels the one before it.
type Refresher struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	seq    uint64
}

// Begin returns the context for a new refresh and a function to call when
// it finishes.
func (r *Refresher) Begin(ctx context.Context) (context.Context, func()) {
	refreshCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.seq++
	seq := r.seq
	r.cancel = cancel
	r.mu.Unlock()

	return refreshCtx, func() {
		r.mu.Lock()
		if r.seq == seq {
			r.cancel = nil
		}
		r.mu.Unlock()
		cancel()
	}
}

// Cancel stops the in-flight refresh, if any.
func (r *Refresher) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}
