package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kyma-lab/aws-defectTicket/internal/config"
	"github.com/kyma-lab/aws-defectTicket/internal/events"
)

const webhookTimeout = 5 * time.Second

// NotificationService fans domain events out to logs, reviewer email and an
// operator webhook.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     loggerOrNop(logger),
		cfg:        cfg,
	}
}

// WebhookEnabled reports whether operator events are posted anywhere.
func (n *NotificationService) WebhookEnabled() bool { return strings.TrimSpace(n.cfg.WebhookURL) != "" }

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketIngested, n.logOnly)
	n.dispatcher.Subscribe(events.EventTicketClassified, n.logOnly)
	n.dispatcher.Subscribe(events.EventApprovalRequested, n.handleApprovalRequested)
	n.dispatcher.Subscribe(events.EventApprovalDecided, n.handleApprovalDecided)
	n.dispatcher.Subscribe(events.EventApprovalExpired, n.handleApprovalExpired)
	n.dispatcher.Subscribe(events.EventWorkflowResumeFailed, n.handleResumeFailed)
}

func (n *NotificationService) logOnly(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type), zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleApprovalRequested(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type), zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	return n.sendWebhook(ctx, event)
}

func (n *NotificationService) handleApprovalDecided(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("ticket_id", event.TicketID),
		zap.String("actor", event.Actor),
		zap.Any("payload", event.Payload))
	payload, ok := event.Payload.(events.ApprovalDecidedPayload)
	if !ok || payload.Divergence == nil || !*payload.Divergence {
		return nil
	}
	return n.sendWebhook(ctx, event)
}

func (n *NotificationService) handleApprovalExpired(ctx context.Context, event events.Event) error {
	n.logger.Warn(string(event.Type), zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return n.sendWebhook(ctx, event)
}

func (n *NotificationService) handleResumeFailed(ctx context.Context, event events.Event) error {
	n.logger.Error(string(event.Type), zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return n.sendWebhook(ctx, event)
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

// sendWebhook posts the event as JSON. Non-2xx answers are reported to the
// dispatcher, which logs them.
func (n *NotificationService) sendWebhook(_ context.Context, event events.Event) error {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return nil
	}
	agent := fiber.Post(url).JSON(event).Timeout(webhookTimeout)
	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("webhook %s: %w", event.Type, errs[0])
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("webhook %s: unexpected status %d", event.Type, code)
	}
	n.logger.Debug("webhook delivered", zap.String("event_type", string(event.Type)), zap.Int("status", code))
	return nil
}
