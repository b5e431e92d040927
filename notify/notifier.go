// Package notify delivers appointment notifications. The HTTP server
// publishes messages to RabbitMQ; the notifier command consumes them and
// sends mail. Delivery is best effort from the caller's point of view.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Notifier sends a single message to one recipient.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Message is the queued form of a notification.
type Message struct {
	ID        string    `json:"id"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// LogNotifier only logs messages. It is used when no broker is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notify")}
}

func (n *LogNotifier) Send(_ context.Context, to, subject, body string) error {
	n.logger.Info("notification",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("bodyLength", len(body)))
	return nil
}
