package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallQueue_ReturnsTaskError(t *testing.T) {
	q := NewCallQueue(CallQueueOptions{Spacing: time.Millisecond})
	defer q.Close()

	want := errors.New("rpc failed")
	err := q.Do(context.Background(), func(context.Context) error { return want })
	assert.ErrorIs(t, err, want)

	err = q.Do(context.Background(), func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestCallQueue_FIFOAndSpacing(t *testing.T) {
	spacing := 30 * time.Millisecond
	q := NewCallQueue(CallQueueOptions{Spacing: spacing})
	defer q.Close()

	var (
		mu    sync.Mutex
		order []int
		times []time.Time
	)
	var running int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			_ = q.Do(context.Background(), func(context.Context) error {
				if atomic.AddInt32(&running, 1) != 1 {
					t.Error("more than one task running")
				}
				defer atomic.AddInt32(&running, -1)
				mu.Lock()
				order = append(order, i)
				times = append(times, time.Now())
				mu.Unlock()
				return nil
			})
		}()
		// stagger submissions so enqueue order is deterministic
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3}, order)
	for i := 1; i < len(times); i++ {
		assert.GreaterOrEqual(t, times[i].Sub(times[i-1]), spacing-2*time.Millisecond)
	}
}

func TestCallQueue_RejectsAfterClose(t *testing.T) {
	q := NewCallQueue(CallQueueOptions{Spacing: time.Millisecond})
	q.Close()

	err := q.Do(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrCallQueueClosed)
	assert.EqualError(t, err, "queue is closed")

	q.Close()
}

func TestCallQueue_DrainsOnClose(t *testing.T) {
	q := NewCallQueue(CallQueueOptions{Spacing: 20 * time.Millisecond, DrainTimeout: time.Second})

	var ran int32
	results := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			results <- q.Do(context.Background(), func(context.Context) error {
				atomic.AddInt32(&ran, 1)
				return nil
			})
		}()
	}
	require.Eventually(t, func() bool { return q.Len()+int(atomic.LoadInt32(&ran)) == 3 }, time.Second, time.Millisecond)

	q.Close()
	for i := 0; i < 3; i++ {
		assert.NoError(t, <-results)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&ran))
}

func TestCallQueue_DrainTimeoutFailsRemaining(t *testing.T) {
	q := NewCallQueue(CallQueueOptions{Spacing: 200 * time.Millisecond, DrainTimeout: 150 * time.Millisecond})

	results := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			results <- q.Do(context.Background(), func(context.Context) error { return nil })
		}()
	}
	require.Eventually(t, func() bool { return q.Len() >= 1 }, time.Second, time.Millisecond)

	q.Close()

	var closedErrs int
	for i := 0; i < 3; i++ {
		if errors.Is(<-results, ErrCallQueueClosed) {
			closedErrs++
		}
	}
	assert.GreaterOrEqual(t, closedErrs, 1)
}

func TestCallQueue_CancelledContextSkipsTask(t *testing.T) {
	q := NewCallQueue(CallQueueOptions{Spacing: 50 * time.Millisecond})
	defer q.Close()

	// occupy the spacing window
	require.NoError(t, q.Do(context.Background(), func(context.Context) error { return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	var ran int32
	done := make(chan error, 1)
	go func() {
		done <- q.Do(ctx, func(context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		})
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&ran))
}

func TestCallQueue_ZeroSpacingUsesDefault(t *testing.T) {
	q := NewCallQueue(CallQueueOptions{})
	defer q.Close()
	assert.Equal(t, DefaultSpacing, q.spacing)

	start := time.Now()
	for i := 0; i < 2; i++ {
		require.NoError(t, q.Do(context.Background(), func(context.Context) error { return nil }))
	}
	assert.GreaterOrEqual(t, time.Since(start), DefaultSpacing-50*time.Millisecond)
}
