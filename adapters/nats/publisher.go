// Package nats forwards change events to a NATS server.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/artpar/predefine/core/events"
	"github.com/artpar/predefine/ports"
)

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher publishes events as JSON messages.
// The subject is <prefix>.<bucket>.<action>, e.g. "predefine.currencies.created".
type Publisher struct {
	conn   Conn
	prefix string
	logger zerolog.Logger
}

// Connect dials url and returns a publisher for subjects below prefix.
func Connect(url, prefix string, logger zerolog.Logger) (*Publisher, error) {
	conn, err := natsgo.Connect(url,
		natsgo.Name("predefine"),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(c *natsgo.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return NewPublisher(conn, prefix, logger), nil
}

// NewPublisher creates a publisher on an existing connection.
func NewPublisher(conn Conn, prefix string, logger zerolog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		prefix: strings.Trim(prefix, "."),
		logger: logger,
	}
}

// Subject returns the subject an event is published on.
func (p *Publisher) Subject(e events.Event) string {
	action := e.Name
	if i := strings.LastIndex(action, "."); i >= 0 {
		action = action[i+1:]
	}
	parts := make([]string, 0, 3)
	for _, s := range []string{p.prefix, e.Bucket, action} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ".")
}

// Publish sends e. It has the signature of an events.Handler so it can be
// subscribed to the bus directly.
func (p *Publisher) Publish(ctx context.Context, e events.Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := p.Subject(e)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug().Str("subject", subject).Str("id", e.ID).Msg("event published")
	return nil
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}

// Ensure interface compliance.
var _ ports.EventPublisher = (*Publisher)(nil)
