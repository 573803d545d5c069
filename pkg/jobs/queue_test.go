package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcome struct {
	job Job
	err error
}

func TestQueueProcessesJobs(t *testing.T) {
	results := make(chan outcome, 3)
	q := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, QueueConfig{
		Workers: 2,
		OnDone:  func(job Job, err error) { results <- outcome{job, err} },
	})
	q.Start(context.Background())
	defer q.Stop()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(Job{ID: id}))
	}
	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		select {
		case res := <-results:
			assert.NoError(t, res.err)
			assert.False(t, res.job.Enqueued.IsZero())
			seen[res.job.ID] = true
		case <-time.After(time.Second):
			t.Fatal("job not processed")
		}
	}
	assert.Len(t, seen, 3)
}

func TestQueueRetriesUntilExhausted(t *testing.T) {
	var attempts int32
	results := make(chan outcome, 1)
	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("upstream down")
	}, QueueConfig{
		MaxRetries: 2,
		RetryDelay: 5 * time.Millisecond,
		OnDone:     func(job Job, err error) { results <- outcome{job, err} },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "flaky"}))
	select {
	case res := <-results:
		assert.EqualError(t, res.err, "upstream down")
		assert.Equal(t, 3, res.job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job never finished")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestQueueRetrySucceeds(t *testing.T) {
	var attempts int32
	results := make(chan outcome, 1)
	q := NewQueue("recover", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) == 1 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{
		MaxRetries: 3,
		RetryDelay: 5 * time.Millisecond,
		OnDone:     func(job Job, err error) { results <- outcome{job, err} },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "once"}))
	select {
	case res := <-results:
		assert.NoError(t, res.err)
		assert.Equal(t, 1, res.job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job never finished")
	}
}

func TestQueueEnqueueErrors(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("calendar", func(ctx context.Context, job Job) error {
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})

	assert.Error(t, q.Enqueue(Job{ID: "early"}), "not started")

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "1"}))
	// job 1 is either buffered or held by the blocked worker.
	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = q.Enqueue(Job{ID: "extra"})
	}
	assert.EqualError(t, err, "queue calendar full")

	close(block)
	q.Stop()
}
