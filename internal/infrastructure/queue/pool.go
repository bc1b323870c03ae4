package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/accounts-api/internal/core/domain"
)

const (
	defaultTimeout = 5 * time.Second
	channelBuffer  = 256
)

// ErrStopped is returned by Do once Stop has been called.
var ErrStopped = errors.New("pool stopped")

type job struct {
	// ctx is the caller's deadline. Workers skip jobs whose caller has gone.
	ctx  context.Context
	fn   func() error
	done chan error
}

// Pool runs CPU-heavy work on a fixed set of workers so a burst of requests
// cannot start more computations than there are workers.
type Pool struct {
	jobs    chan job
	workers int
	timeout time.Duration
	pending atomic.Int64
	log     zerolog.Logger

	stop    context.CancelFunc
	stopped atomic.Bool
	wg      sync.WaitGroup
}

// NewPool creates a Pool with numWorkers workers. If numWorkers <= 0,
// runtime.NumCPU() is used; if timeout <= 0, defaultTimeout is used.
func NewPool(numWorkers int, timeout time.Duration, log zerolog.Logger) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Pool{
		jobs:    make(chan job, channelBuffer),
		workers: numWorkers,
		timeout: timeout,
		log:     log,
	}
}

// Start launches all worker goroutines. Workers run until ctx is cancelled
// or Stop is called, so ctx should outlive request draining.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.stop = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx, i)
	}
}

// Stop rejects new jobs, lets running jobs finish and waits for the workers
// to exit. Queued jobs are abandoned and their callers time out.
func (p *Pool) Stop() {
	p.stopped.Store(true)
	if p.stop != nil {
		p.stop()
	}
	p.wg.Wait()
}

// Pending reports how many jobs are queued or running.
func (p *Pool) Pending() int {
	return int(p.pending.Load())
}

// Do runs fn on a worker and waits for it. It gives up with
// domain.ErrHashTimeout once the pool timeout elapses, and with ctx.Err()
// when ctx is cancelled first. A queued job whose caller gave up is skipped;
// one that already started runs to completion and its result is discarded.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if p.stopped.Load() {
		return ErrStopped
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	j := job{ctx: ctx, fn: fn, done: make(chan error, 1)}

	p.pending.Add(1)
	select {
	case p.jobs <- j:
	case <-ctx.Done():
		p.pending.Add(-1)
		return p.ctxErr(ctx)
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return p.ctxErr(ctx)
	}
}

func (p *Pool) ctxErr(ctx context.Context) error {
	if ctx.Err() == context.DeadlineExceeded {
		return domain.ErrHashTimeout
	}
	return ctx.Err()
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.jobs:
			if err := j.ctx.Err(); err != nil {
				j.done <- err
			} else {
				j.done <- p.run(id, j.fn)
			}
			p.pending.Add(-1)
		}
	}
}

func (p *Pool) run(id int, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Int("worker_id", id).Msg("pool job panicked")
			err = fmt.Errorf("pool job panicked: %v", r)
		}
	}()
	return fn()
}
