package browser

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
)

// Lane runs units of work one at a time in submission order.
// Each submission links itself after the current tail and becomes the new tail;
// it starts once its predecessor has released, whatever the predecessor's outcome.
type Lane struct {
	name    string
	logger  arbor.ILogger
	mu      sync.Mutex
	tail    chan struct{} // closed when the most recent submission releases
	pending int64
}

// NewLane creates an empty lane
func NewLane(name string, logger arbor.ILogger) *Lane {
	tail := make(chan struct{})
	close(tail)
	return &Lane{
		name:   name,
		logger: logger,
		tail:   tail,
	}
}

// Pending returns the number of submissions that are queued or running
func (l *Lane) Pending() int {
	return int(atomic.LoadInt64(&l.pending))
}

// Run waits for every earlier submission to release, then runs fn.
// A ctx cancelled before admission returns ctx.Err() without running fn; the
// submission's slot still releases in order. Once admitted, fn runs to completion
// and ctx is only passed through to it.
func (l *Lane) Run(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	done := make(chan struct{})

	l.mu.Lock()
	prev := l.tail
	l.tail = done
	l.mu.Unlock()

	atomic.AddInt64(&l.pending, 1)
	release := func() {
		atomic.AddInt64(&l.pending, -1)
		close(done)
	}

	queuedAt := time.Now()
	select {
	case <-prev:
	case <-ctx.Done():
		go func() {
			<-prev
			release()
		}()
		l.logger.Debug().
			Str("lane", l.name).
			Str("unit", name).
			Msg("Cancelled before admission")
		return ctx.Err()
	}

	defer release()

	if waited := time.Since(queuedAt); waited > time.Second {
		l.logger.Debug().
			Str("lane", l.name).
			Str("unit", name).
			Dur("waited", waited).
			Msg("Admitted after queueing")
	}

	return fn(ctx)
}
