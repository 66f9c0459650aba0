package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mm-osint/newswire/internal/models"
)

// MessagesRepository handles messages table operations.
type MessagesRepository struct {
	pool *pgxpool.Pool
}

// NewMessagesRepository creates a new messages repository.
func NewMessagesRepository(pool *pgxpool.Pool) *MessagesRepository {
	return &MessagesRepository{pool: pool}
}

// Insert writes one message row with conflict-skip semantics on the
// (channel_id, message_id) key. It reports whether a row was actually
// inserted; false means the row already existed, which is the expected
// outcome when a run re-fetches from an old watermark.
func (r *MessagesRepository) Insert(ctx context.Context, m *models.Message) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO messages (
			channel_id, message_id, message_text, message_datetime, has_media,
			is_duplicate, is_forwarded,
			duplicate_of_channel_id, duplicate_of_message_id,
			forwarded_from_channel_id, forwarded_from_message_id,
			text_hash, grouped_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (channel_id, message_id) DO NOTHING
	`, m.ChannelID, m.MessageID, m.Text, m.Datetime, m.HasMedia,
		m.IsDuplicate, m.IsForwarded,
		m.DuplicateOfChannelID, m.DuplicateOfMessageID,
		m.ForwardedFromChannelID, m.ForwardedFromMessageID,
		m.TextHash, m.GroupedID,
	)
	if err != nil {
		return false, fmt.Errorf("insert message: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// FindOriginalByHash returns the first-seen original message carrying the
// given text hash, or nil when the text has not been collected before.
func (r *MessagesRepository) FindOriginalByHash(ctx context.Context, hash string) (*models.MessageRef, error) {
	var ref models.MessageRef
	err := r.pool.QueryRow(ctx, `
		SELECT channel_id, message_id
		FROM messages
		WHERE text_hash = $1 AND is_duplicate = FALSE
		ORDER BY created_at
		LIMIT 1
	`, hash).Scan(&ref.ChannelID, &ref.MessageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find original by hash: %w", err)
	}
	return &ref, nil
}

// GetByID returns one message, or nil when it does not exist.
func (r *MessagesRepository) GetByID(ctx context.Context, channelID, messageID int64) (*models.Message, error) {
	var m models.Message
	err := r.pool.QueryRow(ctx, `
		SELECT channel_id, message_id, message_text, message_datetime, has_media,
		       is_duplicate, is_forwarded,
		       duplicate_of_channel_id, duplicate_of_message_id,
		       forwarded_from_channel_id, forwarded_from_message_id,
		       text_hash, grouped_id, created_at
		FROM messages
		WHERE channel_id = $1 AND message_id = $2
	`, channelID, messageID).Scan(
		&m.ChannelID, &m.MessageID, &m.Text, &m.Datetime, &m.HasMedia,
		&m.IsDuplicate, &m.IsForwarded,
		&m.DuplicateOfChannelID, &m.DuplicateOfMessageID,
		&m.ForwardedFromChannelID, &m.ForwardedFromMessageID,
		&m.TextHash, &m.GroupedID, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return &m, nil
}

// ListByGroup returns every album sibling for a grouped id within a channel,
// in posting order.
func (r *MessagesRepository) ListByGroup(ctx context.Context, channelID, groupedID int64) ([]models.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT channel_id, message_id, message_text, message_datetime, has_media,
		       is_duplicate, is_forwarded,
		       duplicate_of_channel_id, duplicate_of_message_id,
		       forwarded_from_channel_id, forwarded_from_message_id,
		       text_hash, grouped_id, created_at
		FROM messages
		WHERE channel_id = $1 AND grouped_id = $2
		ORDER BY message_id
	`, channelID, groupedID)
	if err != nil {
		return nil, fmt.Errorf("list album messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// ListFilter narrows a viewer listing.
type ListFilter struct {
	ChannelID         *int64
	Category          *string
	From              *time.Time
	To                *time.Time
	Search            string
	IncludeDuplicates bool
	IncludeForwarded  bool
	Limit             int
	Offset            int
}

// MessageWithChannel augments a message with its channel's names.
type MessageWithChannel struct {
	models.Message
	ChannelName        string  `json:"channel_name"`
	ChannelDisplayName *string `json:"channel_display_name,omitempty"`
}

// List returns a page of messages newest-first plus the total row count for
// the same filter.
func (r *MessagesRepository) List(ctx context.Context, f ListFilter) ([]MessageWithChannel, int64, error) {
	conds := []string{"1=1"}
	args := []any{}

	if !f.IncludeDuplicates {
		conds = append(conds, "m.is_duplicate = FALSE")
	}
	if !f.IncludeForwarded {
		conds = append(conds, "m.is_forwarded = FALSE")
	}
	if f.ChannelID != nil {
		args = append(args, *f.ChannelID)
		conds = append(conds, fmt.Sprintf("m.channel_id = $%d", len(args)))
	}
	if f.Category != nil {
		args = append(args, *f.Category)
		conds = append(conds, fmt.Sprintf("c.category = $%d", len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		conds = append(conds, fmt.Sprintf("m.message_datetime >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		conds = append(conds, fmt.Sprintf("m.message_datetime <= $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		conds = append(conds, fmt.Sprintf("m.message_text ILIKE $%d", len(args)))
	}

	where := strings.Join(conds, " AND ")

	var total int64
	countQuery := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM messages m
		JOIN channels c ON c.telegram_channel_id = m.channel_id
		WHERE %s
	`, where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	args = append(args, f.Limit)
	limitParam := len(args)
	args = append(args, f.Offset)
	offsetParam := len(args)

	query := fmt.Sprintf(`
		SELECT m.channel_id, m.message_id, m.message_text, m.message_datetime, m.has_media,
		       m.is_duplicate, m.is_forwarded,
		       m.duplicate_of_channel_id, m.duplicate_of_message_id,
		       m.forwarded_from_channel_id, m.forwarded_from_message_id,
		       m.text_hash, m.grouped_id, m.created_at,
		       c.name, c.display_name
		FROM messages m
		JOIN channels c ON c.telegram_channel_id = m.channel_id
		WHERE %s
		ORDER BY m.message_datetime DESC, m.message_id DESC
		LIMIT $%d OFFSET $%d
	`, where, limitParam, offsetParam)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []MessageWithChannel
	for rows.Next() {
		var m MessageWithChannel
		if err := rows.Scan(
			&m.ChannelID, &m.MessageID, &m.Text, &m.Datetime, &m.HasMedia,
			&m.IsDuplicate, &m.IsForwarded,
			&m.DuplicateOfChannelID, &m.DuplicateOfMessageID,
			&m.ForwardedFromChannelID, &m.ForwardedFromMessageID,
			&m.TextHash, &m.GroupedID, &m.CreatedAt,
			&m.ChannelName, &m.ChannelDisplayName,
		); err != nil {
			return nil, 0, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

func scanMessages(rows pgx.Rows) ([]models.Message, error) {
	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(
			&m.ChannelID, &m.MessageID, &m.Text, &m.Datetime, &m.HasMedia,
			&m.IsDuplicate, &m.IsForwarded,
			&m.DuplicateOfChannelID, &m.DuplicateOfMessageID,
			&m.ForwardedFromChannelID, &m.ForwardedFromMessageID,
			&m.TextHash, &m.GroupedID, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
