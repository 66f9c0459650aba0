package web

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/mm-osint/newswire/internal/nats"
)

// Consumer bridges collection events from the bus to connected dashboards.
type Consumer struct {
	client *nats.Client
	hub    *Hub
	name   string
	log    *zerolog.Logger
}

// NewConsumer creates a new bus consumer feeding the hub. Each process
// gets its own name; durable consumers sharing a name would split the
// stream between them instead of each seeing every event.
func NewConsumer(client *nats.Client, hub *Hub, name string, log *zerolog.Logger) *Consumer {
	return &Consumer{
		client: client,
		hub:    hub,
		name:   name,
		log:    log,
	}
}

// Start subscribes to the news stream. Dashboards only care about what
// happens from now on, so both consumers start at the tail.
func (c *Consumer) Start(ctx context.Context) error {
	c.log.Info().Str("consumer", c.name).Msg("starting dashboard consumer")

	if err := c.client.SubscribeNew(ctx, nats.StreamNews, c.name+"_messages", nats.SubjectMessageCollected, c.handleMessage); err != nil {
		return err
	}
	return c.client.SubscribeNew(ctx, nats.StreamNews, c.name+"_runs", nats.SubjectRunStatus, c.handleRunStatus)
}

func (c *Consumer) handleMessage(data []byte) error {
	return c.forward(EventMessageCollected, data)
}

func (c *Consumer) handleRunStatus(data []byte) error {
	return c.forward(EventRunStatus, data)
}

// forward wraps a bus payload in the WebSocket envelope and broadcasts it.
// Malformed payloads are acked and dropped, redelivery cannot fix them.
func (c *Consumer) forward(eventType string, data []byte) error {
	if !json.Valid(data) {
		c.log.Warn().Str("event", eventType).Msg("invalid event payload, skipping")
		return nil
	}
	c.hub.Broadcast(NewEvent(eventType, data))
	return nil
}
