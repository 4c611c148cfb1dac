// Package worker provides a generic bounded worker pool for concurrent
// task processing.
//
// The pool is sized for harness fan-out: tens of workers, each in-flight
// task holding one reply socket file. Submit blocks when the queue is
// full instead of dropping work, so every submitted exchange reaches a
// worker and is counted exactly once.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Pool is a generic worker pool processing work items of type T
type Pool[T any] struct {
	workers   int
	processor func(context.Context, T) error

	workChan chan T
	wg       sync.WaitGroup

	// Lifecycle management
	lifecycleMu sync.Mutex
	started     bool
	stopped     bool

	// Statistics (atomic)
	submitted int64
	processed int64
	failed    int64
}

// Stats represents pool counters at one point in time
type Stats struct {
	Workers   int   `json:"workers"`
	Submitted int64 `json:"submitted"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// NewPool creates a pool with the given worker count and queue size.
// A non-positive worker count defaults to 20, queue size to 2×workers.
func NewPool[T any](workers, queueSize int, processor func(context.Context, T) error) *Pool[T] {
	if processor == nil {
		panic(ErrNilProcessor)
	}
	if workers <= 0 {
		workers = 20
	}
	if queueSize <= 0 {
		queueSize = workers * 2
	}

	return &Pool[T]{
		workers:   workers,
		processor: processor,
		workChan:  make(chan T, queueSize),
	}
}

// Start launches the workers
func (p *Pool[T]) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}

	p.started = true
	return nil
}

// Submit enqueues work, blocking until a worker can take it or ctx ends.
func (p *Pool[T]) Submit(ctx context.Context, work T) error {
	p.lifecycleMu.Lock()
	if !p.started {
		p.lifecycleMu.Unlock()
		return ErrPoolNotStarted
	}
	if p.stopped {
		p.lifecycleMu.Unlock()
		return ErrPoolStopped
	}
	p.lifecycleMu.Unlock()

	select {
	case p.workChan <- work:
		atomic.AddInt64(&p.submitted, 1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain closes the queue and waits for in-flight work to finish, bounded
// by timeout. After Drain no further Submit is accepted.
func (p *Pool[T]) Drain(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	if !p.started || p.stopped {
		p.lifecycleMu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.workChan)
	p.lifecycleMu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrDrainTimeout
	}
}

// Stats returns current pool counters
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		Submitted: atomic.LoadInt64(&p.submitted),
		Processed: atomic.LoadInt64(&p.processed),
		Failed:    atomic.LoadInt64(&p.failed),
	}
}

// worker processes items until the queue closes or the context ends
func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case work, ok := <-p.workChan:
			if !ok {
				return
			}

			err := p.processor(ctx, work)
			atomic.AddInt64(&p.processed, 1)
			if err != nil {
				atomic.AddInt64(&p.failed, 1)
			}
		}
	}
}
