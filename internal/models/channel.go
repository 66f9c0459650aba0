// Package models defines shared data types for the application.
package models

import "time"

// Channel represents one monitored Telegram channel.
type Channel struct {
	TelegramChannelID int64   `json:"telegram_channel_id" db:"telegram_channel_id"`
	Name              string  `json:"name" db:"name"`
	DisplayName       *string `json:"display_name,omitempty" db:"display_name"`
	Category          *string `json:"category,omitempty" db:"category"`

	// state
	// LastFetchedAt is the watermark: timestamp of the newest message that
	// was durably committed. Nil means the channel has never been collected.
	LastFetchedAt *time.Time `json:"last_fetched_at,omitempty" db:"last_fetched_at"`
	IsActive      bool       `json:"is_active" db:"is_active"`

	// timestamps
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
