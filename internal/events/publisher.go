// Package events publishes post-commit notifications on NATS. Publishing is
// best-effort: an unreachable broker degrades to log lines, never to failed
// operations.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/tutela-wallet/tutela/internal/models"
	"github.com/tutela-wallet/tutela/pkg/logger"
)

const subjectPrefix = "tutela."

// Publisher forwards notifications to a NATS subject derived from the event
// kind. A nil Publisher is valid and publishes nothing.
type Publisher struct {
	logger *logger.Logger
	conn   *nats.Conn
}

// NewPublisher connects to NATS. An empty URL disables publishing and
// returns nil.
func NewPublisher(url string, logger *logger.Logger) (*Publisher, error) {
	if url == "" {
		logger.Info("NATS not configured, event publishing disabled")
		return nil, nil
	}
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("Reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %s", err)
	}
	logger.Infow("Connected to NATS", "url", url)
	return &Publisher{logger: logger, conn: conn}, nil
}

// SendNotification implements models.NotificationService.
func (p *Publisher) SendNotification(notification *models.Notification) {
	if p == nil {
		return
	}
	data, err := json.Marshal(notification)
	if err != nil {
		p.logger.Error("Failed to marshal event: ", err)
		return
	}
	subject := subjectPrefix + notification.Kind
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Errorw("Failed to publish event", "subject", subject, "error", err)
		return
	}
	p.logger.Debugw("Event published", "subject", subject, "id", notification.ID)
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Close()
}
