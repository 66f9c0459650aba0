package web

import (
	"encoding/json"
)

// WebSocket event types
const (
	EventMessageCollected = "message.collected"
	EventRunStatus        = "run.status"
)

// WSEvent is the envelope for every frame pushed to dashboards.
type WSEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent wraps an already-encoded payload in the event envelope.
func NewEvent(eventType string, payload []byte) []byte {
	b, err := json.Marshal(WSEvent{Type: eventType, Payload: payload})
	if err != nil {
		// payload came off the wire as valid json, this cannot fail
		return nil
	}
	return b
}
