package observability

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/x", "GET", 200, time.Millisecond)
		m.RecordError("/x", "GET", "NOT_FOUND")
		m.RecordClassification("LLM", "LOW")
		m.RecordApprovalCreated("CLASSIFICATION_REVIEW")
		m.RecordApprovalDecided("CLASSIFICATION_REVIEW", "REJECTED", true)
		m.RecordResumeFailure()
		m.RecordQueueMessage("failed")
	})
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordApprovalDecided("CLASSIFICATION_REVIEW", "REJECTED", true)
	m.RecordApprovalDecided("CLASSIFICATION_REVIEW", "APPROVED", false)
	m.RecordQueueMessage("processed")
	m.RecordQueueMessage("processed")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.divergences.WithLabelValues("CLASSIFICATION_REVIEW")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.queueMessages.WithLabelValues("processed")))
}

func TestRequestLoggerUsesRouteTemplate(t *testing.T) {
	m := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zaptest.NewLogger(t), m))
	app.Get("/batches/:batchId", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest("GET", "/batches/b-42", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/batches/:batchId", "GET", "200")))
}
