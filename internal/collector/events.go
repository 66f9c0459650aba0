package collector

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MessageEvent is published for every message that was persisted during a
// run. Downstream consumers (the live dashboard, future enrichment workers)
// subscribe to these instead of polling the database.
type MessageEvent struct {
	ChannelID   int64     `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	MessageID   int64     `json:"message_id"`
	Kind        string    `json:"kind"`
	HasImage    bool      `json:"has_image"`
	Datetime    time.Time `json:"datetime"`
	CollectedAt time.Time `json:"collected_at"`
}

// RunEvent reports a state change of a run or of one channel inside it.
type RunEvent struct {
	RunID    uuid.UUID        `json:"run_id"`
	Status   RunStatus        `json:"status"`
	Channel  string           `json:"channel,omitempty"`
	State    ChannelState     `json:"state,omitempty"`
	Counters *ChannelCounters `json:"counters,omitempty"`
	Error    string           `json:"error,omitempty"`
	At       time.Time        `json:"at"`
}

// EventPublisher sends collection events to interested consumers.
// A nil publisher is valid and means events are dropped.
type EventPublisher interface {
	PublishMessageCollected(ctx context.Context, event MessageEvent) error
	PublishRunStatus(ctx context.Context, event RunEvent) error
}
