package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"crm-webhook/internal/metrics"
	"crm-webhook/internal/queue"
	"crm-webhook/pkg/logger"

	"github.com/gin-gonic/gin"
)

// DefaultMaxBodyBytes caps inbound webhook bodies.
const DefaultMaxBodyBytes = 1 << 20

// Admitter is the idempotency check applied before a body is queued.
// Release undoes an admission whose body never reached the queue.
type Admitter interface {
	Admit(ctx context.Context, raw []byte) (bool, error)
	Release(ctx context.Context, raw []byte) error
}

// Handler accepts CRM webhooks. It only deduplicates and enqueues; all
// decoding and persistence happens in the workers.
type Handler struct {
	Gate  Admitter
	Queue queue.Queue

	// FailOpen admits bodies when the gate store is unreachable.
	// Otherwise the request fails with 500 and the CRM retries it.
	FailOpen     bool
	MaxBodyBytes int64

	Metrics *metrics.Metrics
	Now     func() time.Time
}

func (h Handler) Receive(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Now == nil {
		h.Now = time.Now
	}
	if h.MaxBodyBytes <= 0 {
		h.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if h.Gate == nil || h.Queue == nil {
		h.Metrics.RecordWebhook(metrics.OutcomeError)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "webhook intake not configured"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.Metrics.RecordWebhook(metrics.OutcomeRejected)
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large"})
			return
		}
		log.Warn("webhook body read failed", "err", err)
		h.Metrics.RecordWebhook(metrics.OutcomeRejected)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if len(body) == 0 {
		h.Metrics.RecordWebhook(metrics.OutcomeRejected)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "empty body"})
		return
	}

	ctx := c.Request.Context()
	outcome := metrics.OutcomeAccepted

	admitted, err := h.Gate.Admit(ctx, body)
	if err != nil {
		if !h.FailOpen {
			log.Error("idempotency check failed", "err", err)
			h.Metrics.RecordWebhook(metrics.OutcomeError)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "temporarily unavailable"})
			return
		}
		log.Warn("idempotency check failed, admitting", "err", err)
		admitted, outcome = true, metrics.OutcomeFailOpen
	}
	if !admitted {
		log.Info("duplicate webhook ignored")
		h.Metrics.RecordWebhook(metrics.OutcomeDuplicate)
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	job := queue.NewJob(body, logger.RequestID(c), h.Now())
	if err := h.Queue.Enqueue(ctx, job); err != nil {
		log.Error("enqueue failed", "err", err)
		if rerr := h.Gate.Release(ctx, body); rerr != nil {
			log.Warn("idempotency release failed", "err", rerr)
		}
		h.Metrics.RecordWebhook(metrics.OutcomeError)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "temporarily unavailable"})
		return
	}

	log.Debug("webhook queued", "job_id", job.ID, "bytes", len(body))
	h.Metrics.RecordWebhook(outcome)
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}
