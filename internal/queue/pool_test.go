package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// go-redis pool reaper and miniredis listeners from the redis queue tests.
		goleak.IgnoreTopFunction("github.com/redis/go-redis/v9/internal/pool.(*ConnPool).reaper"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func TestPool_ProcessesAllJobs(t *testing.T) {
	q := NewMemoryQueue(16, 10*time.Millisecond)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(ctx, NewJob([]byte{byte('a' + i)}, "", time.Now())))
	}
	q.Close()

	var mu sync.Mutex
	seen := map[string]bool{}
	p := &Pool{
		Queue:       q,
		Concurrency: 3,
		Handler: func(ctx context.Context, job Job) error {
			mu.Lock()
			seen[string(job.Body)] = true
			mu.Unlock()
			if string(job.Body) == "c" {
				return errors.New("stage failed")
			}
			if string(job.Body) == "d" {
				panic("boom")
			}
			return nil
		},
	}
	require.NoError(t, p.Run(ctx))
	assert.Len(t, seen, 10, "failures and panics must not stop other jobs")
}

func TestPool_StopsOnCancel(t *testing.T) {
	q := NewMemoryQueue(1, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	p := &Pool{Queue: q, Concurrency: 2, Handler: func(context.Context, Job) error { return nil }}
	go func() { done <- p.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatalf("pool did not stop")
	}
}

func TestPool_RequiresQueueAndHandler(t *testing.T) {
	p := &Pool{}
	assert.Error(t, p.Run(context.Background()))
}
