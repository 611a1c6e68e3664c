package queue

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/observability"
)

// ErrAdmissionClosed is returned for submissions after Close and for queued
// submissions that had not started when Close was called.
var ErrAdmissionClosed = errors.New("token queue is closed")

// DefaultCapacity is the default number of mints processed at once.
const DefaultCapacity = 3

// Task processes one admitted pool end to end.
type Task func(ctx context.Context, pool domain.DetectedPool) error

// AdmissionOptions configures an AdmissionQueue.
type AdmissionOptions struct {
	Capacity int // default 3
	Logger   *log.Logger
}

// AdmissionQueue bounds the number of distinct base mints processed at once.
// Overflow waits in FIFO order and at most one task per mint runs at a time.
type AdmissionQueue struct {
	capacity int
	sem      *semaphore.Weighted
	logger   *log.Logger

	closing context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	active  map[string]struct{} // base mint -> running
	waiting map[string]struct{} // base mint -> queued
}

// NewAdmissionQueue creates an admission queue.
func NewAdmissionQueue(opts AdmissionOptions) *AdmissionQueue {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	closing, cancel := context.WithCancel(context.Background())
	return &AdmissionQueue{
		capacity: opts.Capacity,
		sem:      semaphore.NewWeighted(int64(opts.Capacity)),
		logger:   opts.Logger,
		closing:  closing,
		cancel:   cancel,
		active:   make(map[string]struct{}),
		waiting:  make(map[string]struct{}),
	}
}

// Submit runs task for pool once a slot is free and returns the task's error.
// A mint that is already queued or running is acknowledged with nil, as is a
// pool not quoted in WSOL.
func (q *AdmissionQueue) Submit(ctx context.Context, pool domain.DetectedPool, task Task) error {
	if !pool.HasWSOLQuote() {
		q.logger.Printf("[admission] skip %s: quote mint %s is not WSOL", pool.PoolID, pool.QuoteMint)
		return nil
	}
	mint := pool.BaseMint

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrAdmissionClosed
	}
	if _, ok := q.active[mint]; ok {
		q.mu.Unlock()
		return nil
	}
	if _, ok := q.waiting[mint]; ok {
		q.mu.Unlock()
		return nil
	}
	q.waiting[mint] = struct{}{}
	q.reportLocked()
	q.mu.Unlock()

	acquireCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(q.closing, cancel)
	err := q.sem.Acquire(acquireCtx, 1)
	stop()
	cancel()

	q.mu.Lock()
	delete(q.waiting, mint)
	if err != nil {
		closed := q.closed
		q.reportLocked()
		q.mu.Unlock()
		if closed {
			return ErrAdmissionClosed
		}
		return err
	}
	if q.closed {
		q.reportLocked()
		q.mu.Unlock()
		q.sem.Release(1)
		return ErrAdmissionClosed
	}
	q.active[mint] = struct{}{}
	q.wg.Add(1)
	q.reportLocked()
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		delete(q.active, mint)
		q.reportLocked()
		q.mu.Unlock()
		q.sem.Release(1)
		q.wg.Done()
	}()

	return task(ctx, pool)
}

// Active returns the number of running tasks.
func (q *AdmissionQueue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active)
}

// Waiting returns the number of queued submissions.
func (q *AdmissionQueue) Waiting() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// IsActive reports whether a task for mint is running.
func (q *AdmissionQueue) IsActive(mint string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.active[mint]
	return ok
}

// Close stops admissions. Queued submissions fail with ErrAdmissionClosed.
// Running tasks get up to grace to finish, after which the active set is
// cleared regardless.
func (q *AdmissionQueue) Close(grace time.Duration) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.cancel()

	finished := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(finished)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-finished:
	case <-timer.C:
		q.logger.Printf("[admission] grace period %v elapsed with %d tasks running", grace, q.Active())
	}

	q.mu.Lock()
	q.active = make(map[string]struct{})
	q.reportLocked()
	q.mu.Unlock()
}

func (q *AdmissionQueue) reportLocked() {
	observability.UpdateAdmission(len(q.active), len(q.waiting))
}
