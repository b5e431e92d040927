package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const maxBackoff = 30 * time.Second

// Consumer reads queued notifications and hands them to a Mailer.
type Consumer struct {
	url    string
	queue  string
	mailer Notifier
	logger *zap.Logger
}

func NewConsumer(url, queue string, mailer Notifier, logger *zap.Logger) *Consumer {
	return &Consumer{url: url, queue: queue, mailer: mailer, logger: logger.Named("consumer")}
}

// Run consumes until ctx is done, reconnecting with exponential backoff when
// the broker goes away.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := dialBroker(ctx, c.url)
		if err != nil {
			c.logger.Warn("dial broker failed", zap.Error(err), zap.Duration("retryIn", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(20, 0, false); err != nil {
		c.logger.Warn("set qos failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}
	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	c.logger.Info("consuming notifications", zap.String("queue", c.queue))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(ctx, d.Body); err != nil {
				c.logger.Error("notification dropped", zap.String("messageId", d.MessageId), zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// handle decodes one delivery and sends it. Failed messages are not
// requeued.
func (c *Consumer) handle(ctx context.Context, body []byte) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if msg.To == "" {
		return errors.New("message has no recipient")
	}
	if err := c.mailer.Send(ctx, msg.To, msg.Subject, msg.Body); err != nil {
		return fmt.Errorf("send to %s: %w", msg.To, err)
	}
	c.logger.Info("notification sent", zap.String("messageId", msg.ID), zap.String("to", msg.To))
	return nil
}
