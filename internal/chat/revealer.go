package chat

import (
	"context"
	"sync"
	"time"
)

const defaultRevealInterval = 800 * time.Millisecond

// Revealer holds assistant output that has not been shown yet and releases
// it one item per tick, so a long reply appears as a sequence of bubbles.
type Revealer struct {
	interval time.Duration

	mu      sync.Mutex
	pending []string
}

func NewRevealer(interval time.Duration) *Revealer {
	if interval <= 0 {
		interval = defaultRevealInterval
	}
	return &Revealer{interval: interval}
}

// Enqueue appends items to the pending queue.
func (r *Revealer) Enqueue(items ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, items...)
}

// Pending returns how many items are waiting.
func (r *Revealer) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Revealer) next() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) == 0 {
		return "", false
	}
	item := r.pending[0]
	r.pending = r.pending[1:]
	return item, true
}

// Run emits one pending item per tick until ctx is cancelled. Items not yet
// emitted stay queued.
func (r *Revealer) Run(ctx context.Context, emit func(string)) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if item, ok := r.next(); ok {
				emit(item)
			}
		}
	}
}
