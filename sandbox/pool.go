package sandbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/isdmx/pohrun/metrics"
)

// ErrAtCapacity is returned when no execution slot frees up in time.
var ErrAtCapacity = errors.New("execution capacity exhausted")

// Pool bounds the number of concurrent executions. A capacity of zero
// means unbounded.
type Pool struct {
	sem          *semaphore.Weighted
	capacity     int
	queueTimeout time.Duration
	inFlight     atomic.Int64
}

// NewPool creates a pool with capacity slots. Callers wait at most
// queueTimeout for a slot; zero means they do not wait at all.
func NewPool(capacity int, queueTimeout time.Duration) *Pool {
	p := &Pool{capacity: capacity, queueTimeout: queueTimeout}
	if capacity > 0 {
		p.sem = semaphore.NewWeighted(int64(capacity))
	}
	return p
}

// Acquire blocks until a slot is free. The returned release func is safe to
// call more than once.
func (p *Pool) Acquire(ctx context.Context) (func(), error) {
	if p.sem != nil {
		if err := p.acquire(ctx); err != nil {
			return nil, err
		}
	}

	p.inFlight.Add(1)
	metrics.ExecutionsInFlight.Inc()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.inFlight.Add(-1)
			metrics.ExecutionsInFlight.Dec()
			if p.sem != nil {
				p.sem.Release(1)
			}
		})
	}, nil
}

func (p *Pool) acquire(ctx context.Context) error {
	if p.queueTimeout <= 0 {
		if !p.sem.TryAcquire(1) {
			return ErrAtCapacity
		}
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.queueTimeout)
	defer cancel()

	if err := p.sem.Acquire(waitCtx, 1); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return ErrAtCapacity
	}
	return nil
}

// InFlight returns the number of slots currently held.
func (p *Pool) InFlight() int {
	return int(p.inFlight.Load())
}

// Capacity returns the configured slot count, zero when unbounded.
func (p *Pool) Capacity() int {
	return p.capacity
}
