// Package queue holds the two serialization points of the bot: the admission
// queue bounding concurrently processed mints and the call queue spacing out
// requests to rate-limited backends.
package queue

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"solana-pool-sniper/internal/observability"
)

// ErrCallQueueClosed is returned for submissions after Close.
var ErrCallQueueClosed = errors.New("queue is closed")

// Call queue defaults.
const (
	DefaultSpacing      = 1 * time.Second
	DefaultDrainTimeout = 5 * time.Second
	drainPollInterval   = 100 * time.Millisecond
)

// CallQueueOptions configures a CallQueue.
type CallQueueOptions struct {
	Spacing      time.Duration // minimum gap between dispatches, default 1s
	DrainTimeout time.Duration // default 5s
	Logger       *log.Logger
}

type call struct {
	ctx      context.Context
	task     func(context.Context) error
	enqueued time.Time
	result   chan error
}

// CallQueue runs tasks one at a time, in submission order, with a fixed
// minimum spacing between dispatches.
type CallQueue struct {
	spacing      time.Duration
	drainTimeout time.Duration
	logger       *log.Logger

	mu      sync.Mutex
	tasks   []*call
	running bool
	closed  bool

	wake chan struct{}
	quit chan struct{}
}

// NewCallQueue creates a queue and starts its worker.
func NewCallQueue(opts CallQueueOptions) *CallQueue {
	if opts.Spacing <= 0 {
		opts.Spacing = DefaultSpacing
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	q := &CallQueue{
		spacing:      opts.Spacing,
		drainTimeout: opts.DrainTimeout,
		logger:       opts.Logger,
		wake:         make(chan struct{}, 1),
		quit:         make(chan struct{}),
	}
	go q.worker()
	return q
}

// Do enqueues task and waits for its result. The task receives ctx. If ctx
// ends first Do returns ctx.Err() and the task is skipped when its turn comes.
func (q *CallQueue) Do(ctx context.Context, task func(context.Context) error) error {
	c := &call{ctx: ctx, task: task, enqueued: time.Now(), result: make(chan error, 1)}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrCallQueueClosed
	}
	q.tasks = append(q.tasks, c)
	depth := len(q.tasks)
	q.mu.Unlock()

	observability.UpdateCallQueueDepth(depth)
	select {
	case q.wake <- struct{}{}:
	default:
	}

	select {
	case err := <-c.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of tasks waiting to run.
func (q *CallQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *CallQueue) worker() {
	var last time.Time
	for {
		c := q.next()
		if c == nil {
			select {
			case <-q.wake:
				continue
			case <-q.quit:
				return
			}
		}

		if !last.IsZero() && q.spacing > 0 {
			if wait := q.spacing - time.Since(last); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-timer.C:
				case <-q.quit:
					timer.Stop()
					q.finish(c, ErrCallQueueClosed)
					return
				}
			}
		}

		if err := c.ctx.Err(); err != nil {
			q.finish(c, err)
			continue
		}

		observability.RecordCallQueueWait(time.Since(c.enqueued).Seconds())
		last = time.Now()
		q.finish(c, c.task(c.ctx))
	}
}

// next pops the head task and marks the worker busy.
func (q *CallQueue) next() *call {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil
	}
	c := q.tasks[0]
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	q.running = true
	observability.UpdateCallQueueDepth(len(q.tasks))
	return c
}

func (q *CallQueue) finish(c *call, err error) {
	c.result <- err

	q.mu.Lock()
	q.running = false
	q.mu.Unlock()
}

// Close rejects new submissions and lets the worker drain queued tasks for up
// to the drain timeout. Tasks still queued afterwards fail with
// ErrCallQueueClosed. A task already running is not interrupted.
func (q *CallQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	deadline := time.Now().Add(q.drainTimeout)
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for {
		q.mu.Lock()
		idle := len(q.tasks) == 0 && !q.running
		q.mu.Unlock()
		if idle || !time.Now().Before(deadline) {
			break
		}
		<-ticker.C
	}

	q.mu.Lock()
	remaining := q.tasks
	q.tasks = nil
	q.mu.Unlock()

	if len(remaining) > 0 {
		q.logger.Printf("[queue] call queue closed with %d undrained tasks", len(remaining))
	}
	for _, c := range remaining {
		c.result <- ErrCallQueueClosed
	}

	close(q.quit)
	observability.UpdateCallQueueDepth(0)
}
