// Package events publishes conversation lifecycle events to NATS and lets
// operators follow them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	SubjectConversationCreated = "chat.conversation.created"
	SubjectTurnCompleted       = "chat.turn.completed"
	SubjectTurnFailed          = "chat.turn.failed"

	// SubjectAll matches every chat subject.
	SubjectAll = "chat.>"
)

// TurnEvent is the payload for every chat subject. MessageID is set on
// completed turns and Kind on failed ones.
type TurnEvent struct {
	SessionID string    `json:"session_id"`
	MessageID string    `json:"message_id,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Decode parses a TurnEvent payload. A payload without a session id is rejected.
func Decode(data []byte) (TurnEvent, error) {
	var evt TurnEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return TurnEvent{}, fmt.Errorf("decode turn event: %w", err)
	}
	if evt.SessionID == "" {
		return TurnEvent{}, fmt.Errorf("decode turn event: missing session_id")
	}
	return evt, nil
}

type Client struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewClient connects with reconnects enabled. name identifies the process to
// the NATS server.
func NewClient(url, token, name string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Client{conn: nc, logger: logger}, nil
}

// Publish sends evt on subject.
func (c *Client) Publish(subject string, evt TurnEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal turn event: %w", err)
	}
	if err := c.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Watch delivers decoded events matching pattern to handle until ctx is done.
// Undecodable payloads are logged and skipped.
func (c *Client) Watch(ctx context.Context, pattern string, handle func(subject string, evt TurnEvent)) error {
	msgs := make(chan *nats.Msg, 64)
	sub, err := c.conn.ChanSubscribe(pattern, msgs)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", pattern, err)
	}
	defer sub.Unsubscribe()
	c.logger.Debug("watching events", "subject", pattern)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-msgs:
			evt, err := Decode(msg.Data)
			if err != nil {
				c.logger.Warn("skipping malformed event", "subject", msg.Subject, "error", err)
				continue
			}
			handle(msg.Subject, evt)
		}
	}
}

// Close flushes pending publishes before closing the connection.
func (c *Client) Close() {
	if err := c.conn.FlushTimeout(2 * time.Second); err != nil {
		c.logger.Warn("nats flush failed", "error", err)
	}
	c.conn.Close()
}
