// Package worker runs SMP computations off the caller's goroutine.
//
// Concurrency: Pool is safe for concurrent use.
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"offrecord/internal/protocol/smp"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("worker: pool closed")

const queueDepth = 64

type job struct {
	ctx context.Context
	c   smp.Computation
	out chan smp.Result
}

// Pool is a fixed set of goroutines draining a job queue. It implements
// smp.Executor.
type Pool struct {
	jobs chan job
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// New starts n workers. n <= 0 means one per CPU.
func New(n int) *Pool {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	p := &Pool{jobs: make(chan job, queueDepth)}
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.loop()
	}
	return p
}

func (p *Pool) loop() {
	defer p.wg.Done()
	for j := range p.jobs {
		if j.ctx.Err() == nil {
			j.out <- j.c.Compute()
		}
		close(j.out)
	}
}

// Execute queues c. The channel yields its Result, or is closed empty if
// ctx ends first or the pool is closed.
func (p *Pool) Execute(ctx context.Context, c smp.Computation) <-chan smp.Result {
	out := make(chan smp.Result, 1)
	if err := p.Submit(ctx, c, out); err != nil {
		close(out)
	}
	return out
}

// Submit queues c and delivers its result on out. It blocks while the queue
// is full.
func (p *Pool) Submit(ctx context.Context, c smp.Computation, out chan smp.Result) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.jobs <- job{ctx: ctx, c: c, out: out}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work and waits for queued jobs to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
