package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("stats", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	require.Error(t, q.Enqueue(Job{ID: "m1"}))
}

func TestQueueCoalescesWaitingJobs(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var handled []string

	q := NewQueue("stats", func(ctx context.Context, job Job) error {
		if job.ID == "block" {
			close(started)
			<-release
		}
		mu.Lock()
		handled = append(handled, job.ID)
		mu.Unlock()
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 4, Coalesce: true})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "block"}))
	<-started

	require.NoError(t, q.Enqueue(Job{ID: "m1"}))
	require.NoError(t, q.Enqueue(Job{ID: "m1"}))
	assert.Equal(t, 1, q.Pending())

	close(release)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(handled) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"block", "m1"}, handled)
	mu.Unlock()
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	q := NewQueue("stats", func(ctx context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "m1"}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts == 3
	}, time.Second, 5*time.Millisecond)
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingObserver) ObserveJob(_, _, outcome string, _ time.Duration) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, outcome)
	r.mu.Unlock()
}

func (r *recordingObserver) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.outcomes...)
}

func TestQueueRecoversPanicsAndDropsAfterRetries(t *testing.T) {
	observer := &recordingObserver{}
	q := NewQueue("stats", func(ctx context.Context, job Job) error {
		panic("boom")
	}, QueueConfig{Workers: 1, MaxRetries: 1, RetryDelay: time.Millisecond, Observer: observer})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "m1", Type: "module_stats"}))
	require.Eventually(t, func() bool {
		return len(observer.snapshot()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{OutcomeRetry, OutcomeDropped}, observer.snapshot())
}

func TestQueueFullReturnsError(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	q := NewQueue("stats", func(ctx context.Context, job Job) error {
		if job.ID == "block" {
			close(started)
			<-release
		}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer func() {
		close(release)
		q.Stop()
	}()

	require.NoError(t, q.Enqueue(Job{ID: "block"}))
	<-started
	require.NoError(t, q.Enqueue(Job{ID: "m1"}))
	err := q.Enqueue(Job{ID: "m2"})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestQueueBackoffDoublesUpToCap(t *testing.T) {
	q := NewQueue("stats", nil, QueueConfig{RetryDelay: 10 * time.Millisecond, MaxRetryDelay: 50 * time.Millisecond})

	assert.Equal(t, 10*time.Millisecond, q.backoff(0))
	assert.Equal(t, 20*time.Millisecond, q.backoff(1))
	assert.Equal(t, 40*time.Millisecond, q.backoff(2))
	assert.Equal(t, 50*time.Millisecond, q.backoff(3))
	assert.Equal(t, 50*time.Millisecond, q.backoff(10))
}

func TestQueueDrainFinishesAcceptedJobs(t *testing.T) {
	var mu sync.Mutex
	var handled []string
	q := NewQueue("stats", func(ctx context.Context, job Job) error {
		time.Sleep(5 * time.Millisecond)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		mu.Lock()
		handled = append(handled, job.ID)
		mu.Unlock()
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 8})
	q.Start(context.Background())

	for _, id := range []string{"m1", "m2", "m3", "m4"} {
		require.NoError(t, q.Enqueue(Job{ID: id}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q.Drain(ctx)

	mu.Lock()
	assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, handled)
	mu.Unlock()
	assert.Error(t, q.Enqueue(Job{ID: "late"}))
}

func TestQueueDrainStopsAtDeadline(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue("stats", func(ctx context.Context, job Job) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 4})
	q.Start(context.Background())
	defer close(release)

	require.NoError(t, q.Enqueue(Job{ID: "stuck"}))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		q.Drain(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("drain did not return after its deadline")
	}
}
