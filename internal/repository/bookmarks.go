package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// BookmarksRepository handles bookmarks table operations.
type BookmarksRepository struct {
	pool *pgxpool.Pool
}

// NewBookmarksRepository creates a new bookmarks repository.
func NewBookmarksRepository(pool *pgxpool.Pool) *BookmarksRepository {
	return &BookmarksRepository{pool: pool}
}

// Add bookmarks a message. Re-adding updates the note.
func (r *BookmarksRepository) Add(ctx context.Context, channelID, messageID int64, note *string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO bookmarks (channel_id, message_id, note)
		VALUES ($1, $2, $3)
		ON CONFLICT (channel_id, message_id) DO UPDATE SET note = EXCLUDED.note
	`, channelID, messageID, note)
	if err != nil {
		return fmt.Errorf("add bookmark: %w", err)
	}
	return nil
}

// Remove deletes a bookmark. Removing a missing bookmark is a no-op.
func (r *BookmarksRepository) Remove(ctx context.Context, channelID, messageID int64) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM bookmarks WHERE channel_id = $1 AND message_id = $2
	`, channelID, messageID)
	if err != nil {
		return fmt.Errorf("remove bookmark: %w", err)
	}
	return nil
}

// BookmarkedMessage is a bookmark joined with its message for listing.
type BookmarkedMessage struct {
	ChannelID    int64     `json:"channel_id"`
	MessageID    int64     `json:"message_id"`
	Note         *string   `json:"note,omitempty"`
	BookmarkedAt time.Time `json:"bookmarked_at"`
	Text         *string   `json:"message_text,omitempty"`
	Datetime     time.Time `json:"message_datetime"`
	ChannelName  string    `json:"channel_name"`
}

// List returns bookmarks newest-first with their message content.
func (r *BookmarksRepository) List(ctx context.Context) ([]BookmarkedMessage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.channel_id, b.message_id, b.note, b.created_at,
		       m.message_text, m.message_datetime, c.name
		FROM bookmarks b
		JOIN messages m ON m.channel_id = b.channel_id AND m.message_id = b.message_id
		JOIN channels c ON c.telegram_channel_id = b.channel_id
		ORDER BY b.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()

	var out []BookmarkedMessage
	for rows.Next() {
		var b BookmarkedMessage
		if err := rows.Scan(
			&b.ChannelID, &b.MessageID, &b.Note, &b.BookmarkedAt,
			&b.Text, &b.Datetime, &b.ChannelName,
		); err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
