package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/kyma-lab/aws-defectTicket/internal/api/http/handlers"
	"github.com/kyma-lab/aws-defectTicket/internal/auth"
	"github.com/kyma-lab/aws-defectTicket/internal/classifier"
	"github.com/kyma-lab/aws-defectTicket/internal/events"
	"github.com/kyma-lab/aws-defectTicket/internal/observability"
	"github.com/kyma-lab/aws-defectTicket/internal/queue"
	"github.com/kyma-lab/aws-defectTicket/internal/repository"
	"github.com/kyma-lab/aws-defectTicket/internal/rules"
	"github.com/kyma-lab/aws-defectTicket/internal/service"
	"github.com/kyma-lab/aws-defectTicket/internal/workflow"
)

const reviewerEmail = "reviewer@example.com"

type testServer struct {
	app          *fiber.App
	orchestrator *workflow.LocalOrchestrator
	tokens       *auth.TokenManager
}

func newTestServer(t *testing.T, withAuth bool) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	tickets := repository.NewMemoryTicketRepository()
	approvalRepo := repository.NewMemoryApprovalRepository()
	orchestrator := workflow.NewLocalOrchestrator(logger)
	q := queue.NewMemoryQueue()
	policy := rules.ConfidencePolicy{Threshold: 0.8}

	classification := service.NewClassificationService(service.ClassificationDependencies{
		TicketRepo: tickets,
		Classifier: classifier.NewKeywordClassifier(policy, logger),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	approvals := service.NewApprovalService(service.ApprovalDependencies{
		ApprovalRepo: approvalRepo,
		TicketRepo:   tickets,
		Orchestrator: orchestrator,
		Ledger:       repository.NewMemoryResumeFailureLedger(),
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
		Config:       service.ApprovalConfig{Timeout: 24 * time.Hour, TrackDivergence: true},
	})
	ingestion := service.NewIngestionService(service.IngestionDependencies{
		TicketRepo:   tickets,
		Queue:        q,
		Orchestrator: orchestrator,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
		Config:       service.IngestionConfig{PollingEnabled: true},
	})
	batch := service.NewBatchClassificationService(tickets, classification, approvals,
		service.RetryPolicy{MaxAttempts: 1}, logger)
	progress := service.NewProgressService(tickets, approvalRepo, time.UTC, nil, logger)

	tokens := auth.NewTokenManager("test-secret", 10)
	routes := RouteConfig{
		Health:         handlers.NewHealthHandler("defect-ticket", "test", map[string]handlers.Pinger{}, nil),
		Approvals:      handlers.NewApprovalsHandler(approvals),
		Batches:        handlers.NewBatchesHandler(progress, ingestion),
		Ingestion:      handlers.NewIngestionHandler(ingestion),
		Classification: handlers.NewClassificationHandler(classification, batch),
		Metrics:        metrics,
	}
	if withAuth {
		hash, err := auth.HashPassword("pw", bcrypt.MinCost)
		require.NoError(t, err)
		directory := auth.NewDirectory(map[string]string{reviewerEmail: hash, "lead@example.com": hash}, []string{"lead@example.com"})
		routes.Auth = handlers.NewAuthHandler(service.NewAuthService(directory, tokens, logger))
		routes.AuthMiddleware = auth.NewAuthMiddleware(tokens)
	}

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, routes)
	return &testServer{app: app, orchestrator: orchestrator, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, body, token string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp.StatusCode, decoded
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func data(body map[string]any) map[string]any {
	d, _ := body["data"].(map[string]any)
	return d
}

const batchBody = `{"batchId":"batch-1","sourceSystem":"JIRA","tickets":[
	{"sourceReference":"JIRA-1","title":"Production outage","description":"system down for everyone"},
	{"sourceReference":"JIRA-2","title":"Checkout error","description":"unable to pay"}]}`

func TestHealthAndUnknownRoute(t *testing.T) {
	s := newTestServer(t, false)

	status, body := s.do(t, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = s.do(t, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	status, body = s.do(t, http.MethodGet, "/api/v1/nope", "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

type failingPinger struct{}

func (failingPinger) Enabled() bool              { return true }
func (failingPinger) Ping(context.Context) error { return assert.AnError }

func TestReadinessFailsWhenDependencyDown(t *testing.T) {
	app := fiber.New()
	h := handlers.NewHealthHandler("svc", "v", map[string]handlers.Pinger{"postgres": failingPinger{}}, func() string { return "closed" })
	app.Get("/ready", h.Ready)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestIngestClassifyAndDecide(t *testing.T) {
	s := newTestServer(t, false)

	status, body := s.do(t, http.MethodPost, "/api/v1/batch-ingestion/direct", batchBody, "")
	require.Equal(t, http.StatusCreated, status, body)
	ingested := data(body)
	assert.Equal(t, float64(2), ingested["successCount"])
	ids := ingested["ticketIds"].([]any)
	require.Len(t, ids, 2)

	status, body = s.do(t, http.MethodGet, "/api/v1/batches/batch-1/progress", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), data(body)["progressPercentage"])

	status, body = s.do(t, http.MethodPost, "/api/v1/classification/"+ids[0].(string), "", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "CLASSIFIED", data(body)["status"])

	status, body = s.do(t, http.MethodPost, "/api/v1/classification/missing", "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	status, body = s.do(t, http.MethodPost, "/api/v1/approvals",
		`{"ticketId":"`+ids[0].(string)+`","gate":"CLASSIFICATION_REVIEW","taskToken":"tok-1"}`, "")
	require.Equal(t, http.StatusCreated, status, body)
	approvalID := data(body)["approvalId"].(string)
	assert.NotContains(t, data(body), "taskToken")

	status, body = s.do(t, http.MethodGet, "/api/v1/approvals/pending", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"].([]any), 1)

	status, body = s.do(t, http.MethodPost, "/api/v1/approvals/decide",
		`{"approvalId":"`+approvalID+`","reviewerEmail":"`+reviewerEmail+`"}`, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	decision := `{"approvalId":"` + approvalID + `","approved":true,"reviewerEmail":"` + reviewerEmail + `","comments":"ok"}`
	status, body = s.do(t, http.MethodPost, "/api/v1/approvals/decide", decision, "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "APPROVED", data(body)["status"])
	assert.Equal(t, false, data(body)["aiVsHumanDivergence"])

	status, body = s.do(t, http.MethodPost, "/api/v1/approvals/decide", decision, "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", errorCode(body))
	assert.Len(t, s.orchestrator.Resumptions(), 1)

	status, body = s.do(t, http.MethodGet, "/api/v1/batches/batch-1/tickets", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), data(body)["count"])
}

func TestDecideResumeFailureReturnsRecordedApproval(t *testing.T) {
	s := newTestServer(t, false)

	status, body := s.do(t, http.MethodPost, "/api/v1/batch-ingestion/direct", batchBody, "")
	require.Equal(t, http.StatusCreated, status, body)
	ticketID := data(body)["ticketIds"].([]any)[0].(string)

	status, body = s.do(t, http.MethodPost, "/api/v1/classification/"+ticketID, "", "")
	require.Equal(t, http.StatusOK, status, body)

	status, body = s.do(t, http.MethodPost, "/api/v1/approvals",
		`{"ticketId":"`+ticketID+`","gate":"CLASSIFICATION_REVIEW","taskToken":"tok-resume"}`, "")
	require.Equal(t, http.StatusCreated, status, body)
	approvalID := data(body)["approvalId"].(string)

	s.orchestrator.FailNext(errors.New("task timed out"))
	status, body = s.do(t, http.MethodPost, "/api/v1/approvals/decide",
		`{"approvalId":"`+approvalID+`","approved":true,"reviewerEmail":"`+reviewerEmail+`"}`, "")
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "WORKFLOW_RESUME_FAILURE", errorCode(body))

	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, approvalID, details["approval_id"])
	recorded := details["approval"].(map[string]any)
	assert.Equal(t, approvalID, recorded["approvalId"])
	assert.Equal(t, "APPROVED", recorded["status"])
	assert.Equal(t, reviewerEmail, recorded["reviewerEmail"])

	status, body = s.do(t, http.MethodGet, "/api/v1/approvals/resume-failures", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"].([]any), 1)
}

func TestIngestValidationAndEnqueue(t *testing.T) {
	s := newTestServer(t, false)

	status, body := s.do(t, http.MethodPost, "/api/v1/batch-ingestion/ingest", `{"batchId":"","tickets":[]}`, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Contains(t, details, "batchId")
	assert.Contains(t, details, "sourceSystem")

	status, body = s.do(t, http.MethodPost, "/api/v1/batch-ingestion/ingest", batchBody, "")
	require.Equal(t, http.StatusAccepted, status, body)
	assert.Equal(t, "QUEUED", data(body)["status"])
	assert.Equal(t, float64(2), data(body)["ticketsQueued"])
}

func TestBatchClassificationEndpoint(t *testing.T) {
	s := newTestServer(t, false)
	status, _ := s.do(t, http.MethodPost, "/api/v1/batch-ingestion/direct", batchBody, "")
	require.Equal(t, http.StatusCreated, status)

	status, body := s.do(t, http.MethodPost, "/api/v1/classification/batch/batch-1", "", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(2), data(body)["classified"])
	assert.Equal(t, float64(1), data(body)["approvalsCreated"])

	status, body = s.do(t, http.MethodPost, "/api/v1/classification/batch/unknown", "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestStatsEndpoint(t *testing.T) {
	s := newTestServer(t, false)

	status, body := s.do(t, http.MethodGet, "/api/v1/batches/stats?days=0", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, data(body)["dailyStats"])
	summary := data(body)["summary"].(map[string]any)
	assert.Equal(t, float64(0), summary["totalTickets"])
	assert.Equal(t, float64(0), summary["autoProcessedPercentage"])

	status, body = s.do(t, http.MethodGet, "/api/v1/batches/stats?days=abc", "", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = s.do(t, http.MethodGet, "/api/v1/batches/stats", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, data(body)["dailyStats"], 7)

	status, body = s.do(t, http.MethodGet, "/api/v1/batches/stats?days=4611686018427387904", "", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "must be at most 366", details["days"])
}

func TestAuthGuardsReviewerRoutes(t *testing.T) {
	s := newTestServer(t, true)

	status, body := s.do(t, http.MethodGet, "/api/v1/approvals/pending", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, body = s.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":"reviewer@example.com","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = s.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":"reviewer@example.com","password":"pw"}`, "")
	require.Equal(t, http.StatusOK, status, body)
	token := data(body)["accessToken"].(string)

	status, _ = s.do(t, http.MethodGet, "/api/v1/approvals/pending", "", token)
	assert.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodPost, "/api/v1/approvals/decide",
		`{"approvalId":"a-1","approved":true,"reviewerEmail":"someone@example.com"}`, token)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, body = s.do(t, http.MethodGet, "/api/v1/approvals/resume-failures", "", token)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	adminToken, _, err := s.tokens.GenerateToken("lead@example.com", auth.RoleAdmin)
	require.NoError(t, err)
	status, body = s.do(t, http.MethodGet, "/api/v1/approvals/resume-failures", "", adminToken)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["data"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, false)
	s.do(t, http.MethodGet, "/health/live", "", "")

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `defect_ticket_http_requests_total{method="GET",route="/health/live",status="200"} 1`)
}
