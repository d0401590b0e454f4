package worker

import (
	"go.uber.org/zap"

	"github.com/kyma-lab/aws-defectTicket/internal/service"
)

// StartNotificationWorker subscribes the notification handlers to the
// dispatcher. Webhook delivery is skipped when no URL is configured.
func StartNotificationWorker(notifications *service.NotificationService, logger *zap.Logger) {
	if notifications == nil {
		return
	}
	notifications.RegisterHandlers()
	if logger != nil {
		logger.Info("notification handlers registered", zap.Bool("webhook", notifications.WebhookEnabled()))
	}
}
