// Package queue consumes capability-change events from RabbitMQ. The
// Identity Service publishes one whenever something that feeds capability
// derivation changes for a user (for example outbound email was
// configured); every open session of that user is re-checked so the change
// shows up without a manual refresh.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	prefetch       = 50
	refreshTimeout = 30 * time.Second
)

// Event is the message body published by the Identity Service.
type Event struct {
	UserID     string    `json:"user_id"`
	Event      string    `json:"event"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Refresher re-checks every live session of a user and reports how many it
// touched. session.Registry implements it.
type Refresher interface {
	RefreshUser(ctx context.Context, userID string) int
}

// Consumer reads capability-change events from one durable queue.
type Consumer struct {
	url       string
	queue     string
	refresher Refresher
}

// NewConsumer creates a consumer for queue on the broker at url.
func NewConsumer(url, queue string, refresher Refresher) *Consumer {
	return &Consumer{url: url, queue: queue, refresher: refresher}
}

// Run connects, consumes and reconnects with exponential backoff until ctx
// is cancelled. It always returns nil once ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := initialBackoff
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			slog.Warn("capability consumer: dial failed",
				slog.Any("error", err),
				slog.Duration("retry_in", backoff),
			)
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = initialBackoff

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		slog.Warn("capability consumer: loop ended, reconnecting", slog.Any("error", err))
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(prefetch, 0, false); err != nil {
		slog.Warn("capability consumer: set QoS failed", slog.Any("error", err))
	}

	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	slog.Info("capability consumer started", slog.String("queue", c.queue))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(ctx, d.Body); err != nil {
				slog.Warn("capability consumer: rejecting message", slog.Any("error", err))
				// No requeue: a malformed message would loop forever.
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// handleMessage decodes one event and refreshes the user's sessions.
// Decoding errors are returned; a user with no live sessions is not one.
func (c *Consumer) handleMessage(ctx context.Context, body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	ev.UserID = strings.TrimSpace(ev.UserID)
	if ev.UserID == "" {
		return errors.New("event has no user_id")
	}

	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()
	n := c.refresher.RefreshUser(ctx, ev.UserID)

	slog.Debug("capability event applied",
		slog.String("user_id", ev.UserID),
		slog.String("event", ev.Event),
		slog.Int("sessions", n),
	)
	return nil
}

// sleep waits for d or ctx, reporting whether the wait completed.
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
