// Package worker provides the bounded goroutine pool behind asynchronous
// store writes. Everything upstream of storage is a single ordered pass;
// this pool is the only place the pipeline fans out.
package worker

import (
	"context"
	"sync"
)

// Job is one unit of background work, typically a single document save.
type Job func(ctx context.Context) error

// Pool runs submitted jobs on a fixed number of workers and collects every
// error for the caller to inspect after Wait.
type Pool struct {
	workers int
	jobs    chan Job

	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu   sync.Mutex
	errs []error
}

// NewPool starts a pool of n workers. Jobs observe ctx through the pool;
// cancelling it makes in-flight jobs return early.
func NewPool(ctx context.Context, n int) *Pool {
	if n <= 0 {
		n = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{
		workers: n,
		jobs:    make(chan Job, n*2),
		cancel:  cancel,
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	return p
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for job := range p.jobs {
		if err := job(ctx); err != nil {
			p.mu.Lock()
			p.errs = append(p.errs, err)
			p.mu.Unlock()
		}
	}
}

// Submit queues a job. It blocks when all workers are busy and the queue is
// full, which backpressures the pipeline instead of growing memory.
func (p *Pool) Submit(job Job) {
	p.jobs <- job
}

// Wait stops accepting jobs, drains the queue and returns every job error
// in completion order.
func (p *Pool) Wait() []error {
	close(p.jobs)
	p.wg.Wait()
	p.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errs
}
