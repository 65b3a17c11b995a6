// Package natsstream mirrors committed auction events into a NATS JetStream
// stream so downstream consumers get a durable, deduplicated feed.
package natsstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

const streamMaxAge = 7 * 24 * time.Hour

// Config holds connection and stream parameters.
type Config struct {
	URL           string
	Stream        string
	SubjectPrefix string
}

// publisher is the slice of jetstream.JetStream the Publisher needs.
type publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher implements domain.EventPublisher over JetStream. Each event is
// published on <prefix>.<kind> with its id as the message id, so a retried
// publish after a partial failure is dropped by the server's dedup window.
type Publisher struct {
	conn   *nats.Conn
	js     publisher
	prefix string
}

// Connect dials NATS and ensures the stream exists.
func Connect(ctx context.Context, cfg Config) (*Publisher, error) {
	conn, err := nats.Connect(cfg.URL, nats.Name("auctionhouse"))
	if err != nil {
		return nil, fmt.Errorf("natsstream: connect: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("natsstream: jetstream: %w", err)
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        cfg.Stream,
		Description: "Committed auction engine events",
		Subjects:    []string{cfg.SubjectPrefix + ".>"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      streamMaxAge,
		Duplicates:  2 * time.Minute,
		Replicas:    1,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("natsstream: create stream %s: %w", cfg.Stream, err)
	}
	return &Publisher{conn: conn, js: js, prefix: cfg.SubjectPrefix}, nil
}

// Subject returns the subject an event of kind is published on.
func (p *Publisher) Subject(kind domain.EventKind) string {
	return p.prefix + "." + string(kind)
}

// PublishEvents publishes events in order and waits for each ack.
func (p *Publisher) PublishEvents(ctx context.Context, events []domain.Event) error {
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("natsstream: marshal event %s: %w", e.ID, err)
		}
		if _, err := p.js.Publish(ctx, p.Subject(e.Kind), data, jetstream.WithMsgID(e.ID)); err != nil {
			return fmt.Errorf("natsstream: publish %s: %w", e.Kind, err)
		}
	}
	return nil
}

// Close drains the connection.
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}

// Compile-time interface check.
var _ domain.EventPublisher = (*Publisher)(nil)
