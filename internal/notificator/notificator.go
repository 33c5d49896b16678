// Package notificator delivers post-commit events to the relay. Two
// channels: a JSON webhook POST to the configured sponsorship endpoint, and
// the NATS event stream when one is wired in. Both are best-effort.
package notificator

import (
	"runtime/debug"

	"github.com/tutela-wallet/tutela/internal/models"
	"github.com/tutela-wallet/tutela/pkg/logger"
)

// EndpointSource resolves the current webhook endpoint. The sponsorship gate
// owns the value (it is runtime-mutable through the admin API), so the
// notificator reads it per delivery.
type EndpointSource interface {
	GetEndpoint() (string, error)
}

type Notificator struct {
	logger *logger.Logger

	endpoints EndpointSource
	webhook   *WebhookNotificator
	stream    models.NotificationService
}

// NewNotificator wires the delivery channels. stream may be nil.
func NewNotificator(logger *logger.Logger, endpoints EndpointSource, webhook *WebhookNotificator, stream models.NotificationService) *Notificator {
	return &Notificator{logger: logger, endpoints: endpoints, webhook: webhook, stream: stream}
}

// safeCall runs a function with panic recovery (synchronous, no goroutine spawning)
func (n *Notificator) safeCall(fn func(), context string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Errorw("Function panicked",
				"context", context,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// SendNotification implements models.NotificationService.
func (n *Notificator) SendNotification(notification *models.Notification) {
	if n.webhook != nil && n.endpoints != nil {
		endpoint, err := n.endpoints.GetEndpoint()
		if err != nil {
			n.logger.Error("Failed to resolve webhook endpoint: ", err)
		} else if endpoint != "" {
			n.safeCall(func() { n.webhook.SendNotification(endpoint, notification) }, "webhookNotification")
		}
	}
	if n.stream != nil {
		n.safeCall(func() { n.stream.SendNotification(notification) }, "streamNotification")
	}
}
