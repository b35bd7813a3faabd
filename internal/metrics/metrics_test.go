package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()
	a.RecordWebhook(OutcomeAccepted)

	assert.InDelta(t, 1, testutil.ToFloat64(a.WebhookRequests.WithLabelValues(OutcomeAccepted)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.WebhookRequests.WithLabelValues(OutcomeAccepted)), 0)
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordWebhook(OutcomeDuplicate)
		m.RecordStage("decode", false)
		m.RecordPipeline("done", time.Second)
		m.JobStarted()
		m.JobFinished()
	})
}

func TestStageCounters(t *testing.T) {
	m := New()
	m.RecordStage("transcribe", true)
	m.RecordStage("transcribe", false)
	m.RecordStage("transcribe", false)

	assert.InDelta(t, 1, testutil.ToFloat64(m.StageTotal.WithLabelValues("transcribe", "ok")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.StageTotal.WithLabelValues("transcribe", "failed")), 0)
}

func TestHandlerExposesMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `http_requests_total{method="GET",path="/ping",status="200"} 1`), body)
}
