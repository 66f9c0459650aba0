package models

import "time"

// Bookmark marks a message the operator wants to keep at hand in the viewer.
type Bookmark struct {
	ChannelID int64   `json:"channel_id" db:"channel_id"`
	MessageID int64   `json:"message_id" db:"message_id"`
	Note      *string `json:"note,omitempty" db:"note"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
