// Package pool bounds how much render work runs at once and how fast the
// external AI services are called.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

var ErrPoolClosed = errors.New("pool is closed")

// Task is one unit of work.
type Task func(ctx context.Context) error

// Future is the pending result of a submitted Task.
type Future struct {
	done chan struct{}
	err  error
}

// Done is closed once the task has finished.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the task finishes or ctx is done.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pool runs tasks on their own goroutines but lets at most maxWorkers of them
// execute at the same time. Excess tasks wait on the semaphore in
// submission-independent order.
type Pool struct {
	sem        *semaphore.Weighted
	maxWorkers int64
	wg         sync.WaitGroup
	closed     atomic.Bool

	active    atomic.Int64
	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// New creates a pool. maxWorkers below 1 is treated as 1.
func New(maxWorkers int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Pool{
		sem:        semaphore.NewWeighted(int64(maxWorkers)),
		maxWorkers: int64(maxWorkers),
	}
}

// Submit schedules task. The returned Future resolves with the task's error,
// with ctx.Err() if ctx ends before a worker slot frees up, or with
// ErrPoolClosed.
func (p *Pool) Submit(ctx context.Context, task Task) *Future {
	f := &Future{done: make(chan struct{})}
	if p.closed.Load() {
		f.err = ErrPoolClosed
		close(f.done)
		return f
	}

	p.submitted.Add(1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(f.done)

		if err := p.sem.Acquire(ctx, 1); err != nil {
			p.failed.Add(1)
			f.err = err
			return
		}
		defer p.sem.Release(1)

		p.active.Add(1)
		defer p.active.Add(-1)

		f.err = p.run(ctx, task)
		if f.err != nil {
			p.failed.Add(1)
		} else {
			p.completed.Add(1)
		}
	}()
	return f
}

func (p *Pool) run(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task(ctx)
}

// Close stops accepting tasks. Already submitted tasks keep running.
func (p *Pool) Close() {
	p.closed.Store(true)
}

func (p *Pool) Closed() bool {
	return p.closed.Load()
}

// Wait blocks until every submitted task has finished or ctx is done.
func (p *Pool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats is a snapshot of pool counters.
type Stats struct {
	MaxWorkers int64
	Active     int64
	Submitted  int64
	Completed  int64
	Failed     int64
}

func (p *Pool) Stats() Stats {
	return Stats{
		MaxWorkers: p.maxWorkers,
		Active:     p.active.Load(),
		Submitted:  p.submitted.Load(),
		Completed:  p.completed.Load(),
		Failed:     p.failed.Load(),
	}
}
