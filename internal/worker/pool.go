// Package worker provides a bounded goroutine pool so a batch resolve over
// many names doesn't spawn one goroutine (and one outstanding query) per
// name unboundedly.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrPoolClosed indicates the pool has been shut down.
	ErrPoolClosed = errors.New("worker pool closed")
)

// Job is a unit of work submitted to a Pool.
type Job interface {
	Execute(ctx context.Context) error
}

// JobFunc adapts a plain function to Job.
type JobFunc func(ctx context.Context) error

func (f JobFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Config holds worker pool configuration.
type Config struct {
	// Workers is the number of goroutines processing the queue. Values
	// <= 0 are treated as 1; ResolveAllAddresses's concurrency argument
	// feeds this directly.
	Workers int

	// QueueSize bounds how many submitted jobs may be waiting for a free
	// worker. Defaults to Workers*4.
	QueueSize int
}

// Pool runs submitted jobs on a fixed number of worker goroutines.
type Pool struct {
	queue  chan *jobWrapper
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

type jobWrapper struct {
	job      Job
	ctx      context.Context
	resultCh chan error
}

// NewPool creates a running pool. Callers must call Close when done with it.
func NewPool(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 4
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:  make(chan *jobWrapper, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case wrapper, ok := <-p.queue:
			if !ok {
				return
			}
			p.executeJob(wrapper)
		}
	}
}

func (p *Pool) executeJob(wrapper *jobWrapper) {
	defer func() {
		if r := recover(); r != nil {
			select {
			case wrapper.resultCh <- errFromPanic(r):
			default:
			}
		}
	}()
	wrapper.resultCh <- wrapper.job.Execute(wrapper.ctx)
}

func errFromPanic(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return errors.New("worker: job panicked")
}

// Submit queues job and blocks until it has run and reported a result, or
// ctx is cancelled first. It returns ErrPoolClosed if the pool has already
// been closed.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	wrapper := &jobWrapper{job: job, ctx: ctx, resultCh: make(chan error, 1)}

	select {
	case p.queue <- wrapper:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolClosed
	}

	select {
	case err := <-wrapper.resultCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the pool, waiting for in-flight jobs to finish. Jobs already
// queued are still run by the workers before Close returns. Idempotent.
func (p *Pool) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	close(p.queue)
	p.wg.Wait()
	p.cancel()
	return nil
}
