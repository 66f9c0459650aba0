// Package nats provides JetStream pub/sub for collection events.
package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Collection events live on one stream. Subjects under news.> are captured
// by it, so core publishes from the collector are retained for consumers
// that come and go.
const (
	StreamNews = "NEWS"

	SubjectMessageCollected = "news.collected"
	SubjectRunStatus        = "news.runs"
)

// StreamSubjects is the capture filter for the news stream.
var StreamSubjects = []string{"news.>"}

// Client wraps the nats connection and its jetstream context.
type Client struct {
	Conn *nats.Conn
	js   jetstream.JetStream
}

// New connects to nats and sets up jetstream.
func New(_ context.Context, natsURL string) (*Client, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Client{Conn: conn, js: js}, nil
}

// EnsureNewsStream creates or updates the stream all collection events
// land on. Idempotent, called once at startup.
func (c *Client) EnsureNewsStream(ctx context.Context) error {
	return c.EnsureStream(ctx, StreamNews, StreamSubjects)
}

// EnsureStream creates a stream if it doesn't exist.
func (c *Client) EnsureStream(ctx context.Context, name string, subjects []string) error {
	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     name,
		Subjects: subjects,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", name, err)
	}
	return nil
}

// Publish sends a JSON-encoded message through jetstream.
func (c *Client) Publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = c.js.Publish(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	return nil
}

// Subscribe creates a durable consumer on a stream and starts consuming.
func (c *Client) Subscribe(ctx context.Context, stream, consumer, subject string, handler func([]byte) error) error {
	return c.subscribe(ctx, stream, subject, handler, jetstream.ConsumerConfig{
		Durable:       consumer,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
}

// SubscribeNew consumes from the tail of the stream only. Live views use it
// so that a restart does not replay the whole backlog at them.
func (c *Client) SubscribeNew(ctx context.Context, stream, consumer, subject string, handler func([]byte) error) error {
	return c.subscribe(ctx, stream, subject, handler, jetstream.ConsumerConfig{
		Durable:       consumer,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
}

func (c *Client) subscribe(ctx context.Context, stream, subject string, handler func([]byte) error, cfg jetstream.ConsumerConfig) error {
	cons, err := c.js.CreateOrUpdateConsumer(ctx, stream, cfg)
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	_, err = cons.Consume(func(msg jetstream.Msg) {
		if err := handler(msg.Data()); err != nil {
			// negative acknowledgement - will be redelivered
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})

	return err
}

// Close closes the nats connection.
func (c *Client) Close() {
	c.Conn.Close()
}

// IsConnected returns true if connected to nats.
func (c *Client) IsConnected() bool {
	return c.Conn.IsConnected()
}
