package models

import "time"

// Image holds metadata for one downloaded and compressed photo.
// FileID is the source-assigned identifier and is globally unique, which
// prevents re-downloading the same photo under a different message.
type Image struct {
	FileID    string `json:"file_id" db:"file_id"`
	ChannelID int64  `json:"channel_id" db:"channel_id"`
	MessageID int64  `json:"message_id" db:"message_id"`

	FilePath       string `json:"file_path" db:"file_path"`
	OriginalSize   int64  `json:"original_size" db:"original_size"`
	CompressedSize int64  `json:"compressed_size" db:"compressed_size"`
	Width          int    `json:"width" db:"width"`
	Height         int    `json:"height" db:"height"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
