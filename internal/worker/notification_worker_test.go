package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kyma-lab/aws-defectTicket/internal/config"
	"github.com/kyma-lab/aws-defectTicket/internal/events"
	"github.com/kyma-lab/aws-defectTicket/internal/service"
)

func TestStartNotificationWorkerSubscribesHandlers(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	logger := zaptest.NewLogger(t)
	dispatcher := events.NewInMemoryDispatcher(logger)
	notifications := service.NewNotificationService(dispatcher, logger, config.NotificationConfig{WebhookURL: server.URL})

	StartNotificationWorker(notifications, logger)

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventApprovalExpired,
		Payload: events.ApprovalDecidedPayload{ApprovalID: "a-1"},
	}))
	assert.Equal(t, int32(1), hits.Load())
}

func TestStartNotificationWorkerNil(t *testing.T) {
	assert.NotPanics(t, func() { StartNotificationWorker(nil, nil) })
}
