package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"crm-webhook/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// HandlerFunc processes one job. Errors are logged and never stop the pool.
type HandlerFunc func(ctx context.Context, job Job) error

// Pool runs a fixed number of workers that pull from a Queue.
// Jobs are processed concurrently and in no particular order relative to each other.
type Pool struct {
	Queue       Queue
	Handler     HandlerFunc
	Concurrency int
	Log         *slog.Logger

	// ErrorBackoff is the pause after a failed Dequeue.
	ErrorBackoff time.Duration
}

// Run blocks until ctx is cancelled or the queue is closed, then waits for
// in-flight jobs to finish.
func (p *Pool) Run(ctx context.Context) error {
	if p.Queue == nil || p.Handler == nil {
		return errors.New("queue: pool needs a queue and a handler")
	}
	n := p.Concurrency
	if n <= 0 {
		n = 1
	}
	log := p.Log
	if log == nil {
		log = slog.Default()
	}
	backoff := p.ErrorBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		worker := i
		g.Go(func() error {
			return p.loop(gctx, log.With("worker", worker), backoff)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

func (p *Pool) loop(ctx context.Context, log *slog.Logger, backoff time.Duration) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		job, ok, err := p.Queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				return err
			}
			log.Error("dequeue failed", "err", err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		if !ok {
			continue
		}
		p.handle(ctx, log, job)
	}
}

func (p *Pool) handle(ctx context.Context, log *slog.Logger, job Job) {
	jl := log.With("job_id", job.ID)
	if job.RequestID != "" {
		jl = jl.With("request_id", job.RequestID)
	}
	defer func() {
		if r := recover(); r != nil {
			jl.Error("job panicked", "panic", r)
		}
	}()
	// In-flight jobs finish on shutdown; stage timeouts bound them.
	jctx := logger.With(context.WithoutCancel(ctx), jl)
	if err := p.Handler(jctx, job); err != nil {
		jl.Warn("job failed", "err", err)
	}
}
