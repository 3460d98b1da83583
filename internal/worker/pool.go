package worker

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned by Enqueue once the pool has stopped.
var ErrClosed = errors.New("worker pool closed")

// Handler processes one job. A returned error schedules a retry.
type Handler func(ctx context.Context, job *Job) error

// Pool runs due jobs on a fixed number of workers.
type Pool struct {
	handler  Handler
	workers  int
	now      func() time.Time
	onFailed func(*Job)

	mu     sync.Mutex
	queue  jobQueue
	closed bool
	signal chan struct{}
}

func NewPool(workers int, handler Handler) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		handler: handler,
		workers: workers,
		now:     time.Now,
		signal:  make(chan struct{}, 1),
	}
}

// OnFailed registers fn for jobs that exhausted their attempts or were still queued when
// the pool stopped. Call before Run.
func (p *Pool) OnFailed(fn func(*Job)) {
	p.onFailed = fn
}

// Enqueue schedules job. Zero MaxAttempts and nil Backoff get the defaults.
func (p *Pool) Enqueue(job *Job) error {
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = DefaultMaxAttempts
	}
	if job.Backoff == nil {
		job.Backoff = Exponential{Base: DefaultBackoffBase}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	heap.Push(&p.queue, job)
	p.notify()
	return nil
}

// Len reports the number of queued jobs, including those not yet due.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// notify wakes one waiting worker. Caller holds p.mu.
func (p *Pool) notify() {
	select {
	case p.signal <- struct{}{}:
	default:
	}
}

// Run processes jobs until ctx is done. Jobs still queued at that point, including retries
// scheduled during shutdown, are handed to the OnFailed hook with ErrClosed as their error
// unless they already carry one.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			p.work(ctx)
			return nil
		})
	}
	err := g.Wait()

	for _, job := range p.close() {
		if job.LastError == nil {
			job.LastError = ErrClosed
		}
		if p.onFailed != nil {
			p.onFailed(job)
		}
	}
	return err
}

// close marks the pool closed and returns the jobs left in the queue.
func (p *Pool) close() []*Job {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	remaining := make([]*Job, 0, len(p.queue))
	for len(p.queue) > 0 {
		remaining = append(remaining, heap.Pop(&p.queue).(*Job))
	}
	if n := len(remaining); n > 0 {
		log.Printf("[worker] stopping with %d queued jobs", n)
	}
	return remaining
}

func (p *Pool) work(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		job, wait := p.claim()
		if job != nil {
			p.process(ctx, job)
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return
		case <-p.signal:
		case <-timer.C:
		}
	}
}

// claim pops the earliest due job, or returns how long to wait for one.
func (p *Pool) claim() (*Job, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		return nil, time.Minute
	}
	next := p.queue[0]
	if wait := next.NotBefore.Sub(p.now()); wait > 0 {
		return nil, wait
	}
	job := heap.Pop(&p.queue).(*Job)
	if len(p.queue) > 0 {
		// let another worker look at the rest
		p.notify()
	}
	return job, 0
}

func (p *Pool) process(ctx context.Context, job *Job) {
	err := p.run(ctx, job)
	if err == nil {
		return
	}

	job.Attempts++
	job.LastError = err
	if job.Attempts >= job.MaxAttempts {
		log.Printf("[worker] job %s (%s) failed after %d attempts: %v", job.ID, job.Kind, job.Attempts, err)
		if p.onFailed != nil {
			p.onFailed(job)
		}
		return
	}

	delay := job.Backoff.Next(job.Attempts)
	job.NotBefore = p.now().Add(delay)
	log.Printf("[worker] job %s (%s) attempt %d failed, retrying in %s: %v", job.ID, job.Kind, job.Attempts, delay, err)

	p.mu.Lock()
	heap.Push(&p.queue, job)
	p.notify()
	p.mu.Unlock()
}

func (p *Pool) run(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.handler(ctx, job)
}
