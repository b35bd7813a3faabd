package main

import (
	"context"
	"log/slog"

	"crm-webhook/internal/queue"
)

// inlineWorkers drains the in-memory queue inside the api process.
// The pool runs on its own context so that shutdown can close the queue
// and let buffered jobs finish before anything is cancelled.
type inlineWorkers struct {
	queue  *queue.MemoryQueue
	cancel context.CancelFunc
	done   chan struct{}
}

func startInlineWorkers(q *queue.MemoryQueue, h queue.HandlerFunc, concurrency int, log *slog.Logger) *inlineWorkers {
	ctx, cancel := context.WithCancel(context.Background())
	w := &inlineWorkers{queue: q, cancel: cancel, done: make(chan struct{})}
	pool := &queue.Pool{
		Queue:       q,
		Handler:     h,
		Concurrency: concurrency,
		Log:         log,
	}
	go func() {
		defer close(w.done)
		if err := pool.Run(ctx); err != nil {
			log.Error("inline workers stopped", "err", err)
		}
	}()
	return w
}

// Stop closes the queue and waits until every buffered job is handled.
// When ctx expires first the pool is cancelled and ctx.Err() returned;
// jobs still queued at that point are dropped.
func (w *inlineWorkers) Stop(ctx context.Context) error {
	w.queue.Close()
	defer w.cancel()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
