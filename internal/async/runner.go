// Package async runs blocking work on a fixed pool of goroutines and hands
// results back through promises that the owner polls once per tick.
package async

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/asset3d/internal/logger"
)

// ErrClosed is returned for work submitted after Close.
var ErrClosed = errors.New("async: runner closed")

type job struct {
	run func()
	// drop resolves the job's result when it is discarded unrun
	drop func()
}

// Runner executes submitted jobs on a fixed number of workers. Submission
// never blocks: jobs queue until a worker is free.
type Runner struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []job
	closed  bool
	done    chan struct{}
	workers int
	wg      sync.WaitGroup
	log     *zap.Logger
}

// NewPooled starts a runner with n workers (at least one). A nil logger
// falls back to the package logger.
func NewPooled(n int, log *zap.Logger) *Runner {
	if n < 1 {
		n = 1
	}
	if log == nil {
		log = logger.Named("async")
	}
	r := &Runner{workers: n, log: log, done: make(chan struct{})}
	r.cond = sync.NewCond(&r.mu)

	r.log.Debug("Starting worker pool", zap.Int("workers", n))
	r.wg.Add(n)
	for i := 0; i < n; i++ {
		go r.worker(i)
	}
	go func() {
		r.wg.Wait()
		close(r.done)
		r.log.Debug("Worker pool stopped")
	}()
	return r
}

// Workers returns the pool size.
func (r *Runner) Workers() int {
	return r.workers
}

// Go queues fn. It returns ErrClosed after Close.
func (r *Runner) Go(fn func()) error {
	return r.submit(job{run: fn})
}

func (r *Runner) submit(j job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.queue = append(r.queue, j)
	r.cond.Signal()
	return nil
}

// Pending returns the number of queued jobs not yet picked up.
func (r *Runner) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Close stops accepting work and discards queued jobs that no worker has
// picked up. Promises of discarded jobs resolve with ErrClosed. Close does
// not wait for running jobs; use Wait for that.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	dropped := r.queue
	r.queue = nil
	r.cond.Broadcast()
	r.mu.Unlock()

	for _, j := range dropped {
		if j.drop != nil {
			j.drop()
		}
	}
	if len(dropped) > 0 {
		r.log.Debug("Discarded queued jobs", zap.Int("count", len(dropped)))
	}
}

// Wait blocks until every worker has exited after Close, or until ctx is
// done.
func (r *Runner) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) worker(id int) {
	defer r.wg.Done()
	for {
		r.mu.Lock()
		for len(r.queue) == 0 && !r.closed {
			r.cond.Wait()
		}
		if len(r.queue) == 0 {
			r.mu.Unlock()
			return
		}
		j := r.queue[0]
		r.queue[0] = job{}
		r.queue = r.queue[1:]
		r.mu.Unlock()

		r.run(id, j.run)
	}
}

func (r *Runner) run(id int, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("Job panicked", zap.Int("worker", id), zap.Any("panic", p))
		}
	}()
	fn()
}

// Promise is the eventual result of a spawned job. It is polled from a
// single goroutine.
type Promise[T any] struct {
	ch       chan outcome[T]
	resolved bool
	out      outcome[T]
}

type outcome[T any] struct {
	value T
	err   error
}

// Spawn runs fn on r and returns a promise for its result. A panic in fn
// resolves the promise with an error, and so does Close discarding the job.
func Spawn[T any](r *Runner, fn func() (T, error)) *Promise[T] {
	p := &Promise[T]{ch: make(chan outcome[T], 1)}
	drop := func() { p.ch <- outcome[T]{err: ErrClosed} }
	err := r.submit(job{drop: drop, run: func() {
		var out outcome[T]
		defer func() {
			if rec := recover(); rec != nil {
				out = outcome[T]{err: fmt.Errorf("async: job panicked: %v", rec)}
			}
			p.ch <- out
		}()
		out.value, out.err = fn()
	}})
	if err != nil {
		p.resolved = true
		p.out.err = err
	}
	return p
}

// Resolved returns an already resolved promise.
func Resolved[T any](v T) *Promise[T] {
	return &Promise[T]{resolved: true, out: outcome[T]{value: v}}
}

// TryResolve reports whether the job has finished, without blocking.
func (p *Promise[T]) TryResolve() bool {
	if p.resolved {
		return true
	}
	select {
	case out := <-p.ch:
		p.out = out
		p.resolved = true
	default:
	}
	return p.resolved
}

// Result returns the job's value and error. It is only meaningful once
// TryResolve or Wait has reported completion.
func (p *Promise[T]) Result() (T, error) {
	return p.out.value, p.out.err
}

// Wait blocks until the job finishes.
func (p *Promise[T]) Wait() (T, error) {
	if !p.resolved {
		p.out = <-p.ch
		p.resolved = true
	}
	return p.out.value, p.out.err
}
