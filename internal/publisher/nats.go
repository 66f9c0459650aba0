// Package publisher emits collection events onto the message bus.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	natsgo "github.com/nats-io/nats.go"

	"github.com/mm-osint/newswire/internal/collector"
	"github.com/mm-osint/newswire/internal/nats"
)

// NATSClient interface to allow mocking
type NATSClient interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher implements collector.EventPublisher. It publishes on the
// core connection; the news stream captures the subjects, so the events are
// retained without blocking the collection loop on broker acks.
type NATSPublisher struct {
	conn NATSClient
}

// NewNATSPublisher creates a new publisher
func NewNATSPublisher(conn *natsgo.Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

// PublishMessageCollected announces one persisted message.
func (p *NATSPublisher) PublishMessageCollected(ctx context.Context, event collector.MessageEvent) error {
	return p.publish(nats.SubjectMessageCollected, event)
}

// PublishRunStatus announces a run or channel state change.
func (p *NATSPublisher) PublishRunStatus(ctx context.Context, event collector.RunEvent) error {
	return p.publish(nats.SubjectRunStatus, event)
}

func (p *NATSPublisher) publish(subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	return nil
}
