package models

import "time"

// Message represents one collected Telegram message.
//
// Exactly one of the duplicate/forwarded flags holds, or neither (an
// original message). Text is stored only for originals; duplicates and
// forwards keep a nil Text since the content already exists elsewhere.
type Message struct {
	ChannelID int64 `json:"channel_id" db:"channel_id"`
	MessageID int64 `json:"message_id" db:"message_id"`

	// content
	Text     *string   `json:"message_text,omitempty" db:"message_text"`
	TextHash *string   `json:"text_hash,omitempty" db:"text_hash"`
	Datetime time.Time `json:"message_datetime" db:"message_datetime"`

	// classification flags
	HasMedia    bool `json:"has_media" db:"has_media"`
	IsDuplicate bool `json:"is_duplicate" db:"is_duplicate"`
	IsForwarded bool `json:"is_forwarded" db:"is_forwarded"`

	// duplicate target: the first-seen message with identical text
	DuplicateOfChannelID *int64 `json:"duplicate_of_channel_id,omitempty" db:"duplicate_of_channel_id"`
	DuplicateOfMessageID *int64 `json:"duplicate_of_message_id,omitempty" db:"duplicate_of_message_id"`

	// forward origin, null when hidden by the sender's privacy settings
	ForwardedFromChannelID *int64 `json:"forwarded_from_channel_id,omitempty" db:"forwarded_from_channel_id"`
	ForwardedFromMessageID *int64 `json:"forwarded_from_message_id,omitempty" db:"forwarded_from_message_id"`

	// album: siblings of one multi-photo post share a grouped id
	GroupedID *int64 `json:"grouped_id,omitempty" db:"grouped_id"`

	// timestamps
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// MessageRef identifies one message row by its composite key.
type MessageRef struct {
	ChannelID int64 `json:"channel_id" db:"channel_id"`
	MessageID int64 `json:"message_id" db:"message_id"`
}
