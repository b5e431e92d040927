package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// channel is the subset of *amqp.Channel used by Publisher and Consumer.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type dialFunc func(ctx context.Context, url string) (channel, func() error, error)

// dialTimeout bounds the TCP connect and the AMQP handshake.
const dialTimeout = 5 * time.Second

// brokerConfig derives connection settings from ctx so a dial never outlives
// the caller's deadline.
func brokerConfig(ctx context.Context) (amqp.Config, error) {
	if err := ctx.Err(); err != nil {
		return amqp.Config{}, err
	}
	timeout := dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		left := time.Until(deadline)
		if left <= 0 {
			return amqp.Config{}, context.DeadlineExceeded
		}
		if left < timeout {
			timeout = left
		}
	}
	return amqp.Config{
		Locale: "en_US",
		Dial: func(network, addr string) (net.Conn, error) {
			d := net.Dialer{Timeout: timeout}
			conn, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			// Cleared by the library once the handshake completes.
			if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
				_ = conn.Close()
				return nil, err
			}
			return conn, nil
		},
	}, nil
}

func dialBroker(ctx context.Context, url string) (*amqp.Connection, error) {
	cfg, err := brokerConfig(ctx)
	if err != nil {
		return nil, err
	}
	return amqp.DialConfig(url, cfg)
}

func dialAMQP(ctx context.Context, url string) (channel, func() error, error) {
	conn, err := dialBroker(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, conn.Close, nil
}

// Publisher implements Notifier by publishing persistent JSON messages to a
// durable queue. The connection is opened lazily and re-opened after a
// failed publish.
type Publisher struct {
	url    string
	queue  string
	logger *zap.Logger
	dial   dialFunc
	now    func() time.Time

	mu        sync.Mutex
	ch        channel
	closeConn func() error
}

func NewPublisher(url, queue string, logger *zap.Logger) *Publisher {
	return &Publisher{
		url:    url,
		queue:  queue,
		logger: logger.Named("publisher"),
		dial:   dialAMQP,
		now:    time.Now,
	}
}

// open returns the live channel, dialing without holding mu so a slow broker
// only stalls the sender that triggered the dial.
func (p *Publisher) open(ctx context.Context) (channel, error) {
	p.mu.Lock()
	if p.ch != nil {
		ch := p.ch
		p.mu.Unlock()
		return ch, nil
	}
	p.mu.Unlock()

	ch, closeConn, err := p.dial(ctx, p.url)
	if err != nil {
		return nil, err
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = closeConn()
		return nil, fmt.Errorf("declare queue %s: %w", p.queue, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		// A concurrent sender connected first.
		_ = ch.Close()
		_ = closeConn()
		return p.ch, nil
	}
	p.ch, p.closeConn = ch, closeConn
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.closeConn != nil {
		_ = p.closeConn()
	}
	p.ch, p.closeConn = nil, nil
}

func (p *Publisher) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return errors.New("notification has no recipient")
	}
	msg := Message{
		ID:        uuid.NewString(),
		To:        to,
		Subject:   subject,
		Body:      body,
		CreatedAt: p.now().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	ch, err := p.open(ctx)
	if err != nil {
		p.logger.Warn("broker unavailable", zap.Error(err))
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    msg.CreatedAt,
		Body:         payload,
	})
	if err != nil {
		if p.ch == ch {
			p.reset()
		}
		p.logger.Warn("publish failed", zap.String("messageId", msg.ID), zap.Error(err))
		return fmt.Errorf("publish notification: %w", err)
	}
	p.logger.Debug("notification queued", zap.String("messageId", msg.ID), zap.String("to", to))
	return nil
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}
