package main

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"crm-webhook/internal/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLog() *slog.Logger { return slog.New(slog.NewJSONHandler(io.Discard, nil)) }

func TestInlineWorkers_StopDrainsBufferedJobs(t *testing.T) {
	q := queue.NewMemoryQueue(16, 10*time.Millisecond)
	var handled atomic.Int32
	h := func(ctx context.Context, _ queue.Job) error {
		time.Sleep(5 * time.Millisecond)
		assert.NoError(t, ctx.Err())
		handled.Add(1)
		return nil
	}

	for i := 0; i < 8; i++ {
		require.NoError(t, q.Enqueue(context.Background(), queue.NewJob([]byte("x"), "", time.Now())))
	}
	w := startInlineWorkers(q, h, 2, quietLog())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))
	assert.EqualValues(t, 8, handled.Load())
	assert.Zero(t, q.Len())
}

func TestInlineWorkers_StopGivesUpAtDeadline(t *testing.T) {
	q := queue.NewMemoryQueue(16, 10*time.Millisecond)
	started := make(chan struct{}, 3)
	release := make(chan struct{})
	var handled atomic.Int32
	h := func(context.Context, queue.Job) error {
		started <- struct{}{}
		<-release
		handled.Add(1)
		return nil
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(context.Background(), queue.NewJob([]byte("x"), "", time.Now())))
	}
	w := startInlineWorkers(q, h, 1, quietLog())
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Stop(ctx), context.DeadlineExceeded)

	close(release)
	select {
	case <-w.done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop after cancel")
	}
	assert.EqualValues(t, 1, handled.Load())
}
