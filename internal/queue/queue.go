package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrClosed = errors.New("queue: closed")
	ErrFull   = errors.New("queue: full")
)

// Job is one accepted webhook waiting for the pipeline.
type Job struct {
	ID         string    `json:"id"`
	Body       []byte    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
	// RequestID correlates worker logs with the accepting request.
	RequestID string `json:"request_id,omitempty"`
}

// NewJob stamps a body with an id and receive time.
func NewJob(body []byte, requestID string, now time.Time) Job {
	return Job{
		ID:         uuid.NewString(),
		Body:       body,
		ReceivedAt: now.UTC(),
		RequestID:  requestID,
	}
}

// Queue is the asynchronous boundary between the api and the workers.
// Delivery is at-most-once: a job dequeued by a worker that then crashes is lost.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Dequeue blocks until a job is available, ctx is done, or the queue is closed.
	// ok is false when nothing was received before the poll interval elapsed.
	Dequeue(ctx context.Context) (job Job, ok bool, err error)
}

func encode(job Job) ([]byte, error) { return json.Marshal(job) }

func decode(b []byte) (Job, error) {
	var j Job
	err := json.Unmarshal(b, &j)
	return j, err
}
