package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// natsConn is the subset of *nats.Conn the publisher needs.
type natsConn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// NATSPublisher publishes JSON events to NATS core subjects.
type NATSPublisher struct {
	conn   natsConn
	logger *slog.Logger
}

// NewNATSPublisher connects to url and reconnects indefinitely.
func NewNATSPublisher(url, name string, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "nats")

	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	return &NATSPublisher{conn: nc, logger: logger}, nil
}

// Publish marshals event and waits for the server to acknowledge the flush.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Type, err)
	}

	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}

	p.logger.Debug("event published", "subject", subject, "event_id", event.ID)
	return nil
}

// Close drains pending messages before closing the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// Ping round-trips to the server.
func (p *NATSPublisher) Ping(ctx context.Context) error {
	return p.conn.FlushWithContext(ctx)
}
