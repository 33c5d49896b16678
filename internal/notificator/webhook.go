package notificator

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/tutela-wallet/tutela/internal/models"
	"github.com/tutela-wallet/tutela/pkg/logger"
)

const webhookTimeout = 10 * time.Second

// WebhookNotificator POSTs events as JSON to an HTTP endpoint.
type WebhookNotificator struct {
	logger *logger.Logger
	client *http.Client
}

func NewWebhookNotificator(logger *logger.Logger) *WebhookNotificator {
	return &WebhookNotificator{
		logger: logger,
		client: &http.Client{Timeout: webhookTimeout},
	}
}

func (w *WebhookNotificator) SendNotification(url string, notification *models.Notification) {
	data, err := json.Marshal(notification)
	if err != nil {
		w.logger.Error("Failed to marshal notification: ", err)
		return
	}

	resp, err := w.client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		w.logger.Errorw("Failed to deliver webhook", "url", url, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		w.logger.Errorw("Webhook endpoint rejected notification", "url", url, "status", resp.StatusCode)
		return
	}
	w.logger.Debugw("Webhook delivered", "url", url, "kind", notification.Kind, "id", notification.ID)
}
