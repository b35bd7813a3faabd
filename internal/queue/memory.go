package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process buffered queue for single-process mode and tests.
type MemoryQueue struct {
	ch   chan Job
	poll time.Duration

	mu     sync.RWMutex
	closed bool
}

func NewMemoryQueue(size int, poll time.Duration) *MemoryQueue {
	if size <= 0 {
		size = 1024
	}
	if poll <= 0 {
		poll = time.Second
	}
	return &MemoryQueue{ch: make(chan Job, size), poll: poll}
}

// Enqueue never blocks; a full buffer is reported as ErrFull.
func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrFull
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (Job, bool, error) {
	t := time.NewTimer(q.poll)
	defer t.Stop()
	select {
	case job, ok := <-q.ch:
		if !ok {
			return Job{}, false, ErrClosed
		}
		return job, true, nil
	case <-t.C:
		return Job{}, false, nil
	case <-ctx.Done():
		return Job{}, false, ctx.Err()
	}
}

// Close stops accepting jobs; buffered jobs can still be drained.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

func (q *MemoryQueue) Len() int { return len(q.ch) }
