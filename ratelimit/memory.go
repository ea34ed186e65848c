package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int
}

// InProcessLimiter is a fixed-window limiter local to this process.
type InProcessLimiter struct {
	opts Options
	now  func() time.Time

	mu      sync.Mutex
	windows map[string]*window

	cancel context.CancelFunc
	done   chan struct{}
}

// InProcessOption defines a functional option for InProcessLimiter
type InProcessOption func(*InProcessLimiter)

// WithClock replaces time.Now
func WithClock(now func() time.Time) InProcessOption {
	return func(l *InProcessLimiter) {
		l.now = now
	}
}

// NewInProcess creates an InProcessLimiter.
func NewInProcess(opts Options, optFns ...InProcessOption) *InProcessLimiter {
	l := &InProcessLimiter{
		opts:    opts,
		now:     time.Now,
		windows: make(map[string]*window),
	}

	for _, fn := range optFns {
		fn(l)
	}

	return l
}

// Admit counts the request and reports whether it fits in the client's
// current window.
func (l *InProcessLimiter) Admit(_ context.Context, clientID string) bool {
	if !l.opts.Enabled() {
		return true
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[clientID]
	if !ok || now.Sub(w.start) >= l.opts.Window {
		w = &window{start: now}
		l.windows[clientID] = w
	}
	w.count++

	return w.count <= l.opts.MaxRequests
}

// Sweep drops windows that have elapsed.
func (l *InProcessLimiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, w := range l.windows {
		if now.Sub(w.start) >= l.opts.Window {
			delete(l.windows, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked clients.
func (l *InProcessLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Run sweeps once per window until ctx is done.
func (l *InProcessLimiter) Run(ctx context.Context) {
	if !l.opts.Enabled() {
		return
	}

	ticker := time.NewTicker(l.opts.Window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// Start launches the background sweeper.
func (l *InProcessLimiter) Start(context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})

	go func() {
		defer close(l.done)
		l.Run(ctx)
	}()
	return nil
}

// Stop halts the sweeper started by Start.
func (l *InProcessLimiter) Stop(ctx context.Context) error {
	if l.cancel == nil {
		return nil
	}
	l.cancel()
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
