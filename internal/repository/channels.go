// Package repository provides postgres data access for collected news.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mm-osint/newswire/internal/models"
)

// ErrNotFound reports an update or delete that matched no row.
var ErrNotFound = errors.New("not found")

// ChannelsRepository handles channels table operations.
type ChannelsRepository struct {
	pool *pgxpool.Pool
}

// NewChannelsRepository creates a new channels repository.
func NewChannelsRepository(pool *pgxpool.Pool) *ChannelsRepository {
	return &ChannelsRepository{pool: pool}
}

// Create registers a channel. Re-registering an existing channel updates its
// metadata instead of failing, so operators can correct names and categories.
func (r *ChannelsRepository) Create(ctx context.Context, c *models.Channel) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO channels (telegram_channel_id, name, display_name, category, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (telegram_channel_id) DO UPDATE
		SET name = EXCLUDED.name,
		    display_name = EXCLUDED.display_name,
		    category = EXCLUDED.category,
		    is_active = EXCLUDED.is_active,
		    updated_at = now()
		RETURNING created_at, updated_at
	`, c.TelegramChannelID, c.Name, c.DisplayName, c.Category, c.IsActive,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create channel: %w", err)
	}
	return nil
}

// GetAll returns every registered channel.
func (r *ChannelsRepository) GetAll(ctx context.Context) ([]models.Channel, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT telegram_channel_id, name, display_name, category,
		       last_fetched_at, is_active, created_at, updated_at
		FROM channels
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("get channels: %w", err)
	}
	defer rows.Close()

	return scanChannels(rows)
}

// GetActive returns channels eligible for collection.
func (r *ChannelsRepository) GetActive(ctx context.Context) ([]models.Channel, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT telegram_channel_id, name, display_name, category,
		       last_fetched_at, is_active, created_at, updated_at
		FROM channels
		WHERE is_active = TRUE
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("get active channels: %w", err)
	}
	defer rows.Close()

	return scanChannels(rows)
}

// GetByName returns a channel by its username, or nil when not registered.
func (r *ChannelsRepository) GetByName(ctx context.Context, name string) (*models.Channel, error) {
	var c models.Channel
	err := r.pool.QueryRow(ctx, `
		SELECT telegram_channel_id, name, display_name, category,
		       last_fetched_at, is_active, created_at, updated_at
		FROM channels
		WHERE name = $1
	`, name).Scan(
		&c.TelegramChannelID, &c.Name, &c.DisplayName, &c.Category,
		&c.LastFetchedAt, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get channel by name: %w", err)
	}
	return &c, nil
}

// SetActive toggles collection for a channel.
func (r *ChannelsRepository) SetActive(ctx context.Context, channelID int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE channels SET is_active = $2, updated_at = now()
		WHERE telegram_channel_id = $1
	`, channelID, active)
	if err != nil {
		return fmt.Errorf("set channel active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set channel active: channel %d: %w", channelID, ErrNotFound)
	}
	return nil
}

// UpdateWatermark advances the channel's last-fetched pointer. The guard
// keeps it monotonic: a stale or concurrent run can never move it backwards.
func (r *ChannelsRepository) UpdateWatermark(ctx context.Context, channelID int64, ts time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE channels
		SET last_fetched_at = $2, updated_at = now()
		WHERE telegram_channel_id = $1
		  AND (last_fetched_at IS NULL OR last_fetched_at < $2)
	`, channelID, ts)
	if err != nil {
		return fmt.Errorf("update watermark: %w", err)
	}
	return nil
}

// ChannelWithCount augments a channel with its collected message count.
type ChannelWithCount struct {
	models.Channel
	MessageCount int64 `json:"message_count"`
}

// GetAllWithCounts returns channels with their message counts for the viewer.
func (r *ChannelsRepository) GetAllWithCounts(ctx context.Context) ([]ChannelWithCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.telegram_channel_id, c.name, c.display_name, c.category,
		       c.last_fetched_at, c.is_active, c.created_at, c.updated_at,
		       COUNT(m.message_id) AS message_count
		FROM channels c
		LEFT JOIN messages m ON m.channel_id = c.telegram_channel_id
		GROUP BY c.telegram_channel_id
		ORDER BY c.name
	`)
	if err != nil {
		return nil, fmt.Errorf("get channels with counts: %w", err)
	}
	defer rows.Close()

	var out []ChannelWithCount
	for rows.Next() {
		var c ChannelWithCount
		if err := rows.Scan(
			&c.TelegramChannelID, &c.Name, &c.DisplayName, &c.Category,
			&c.LastFetchedAt, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
			&c.MessageCount,
		); err != nil {
			return nil, fmt.Errorf("scan channel with count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanChannels(rows pgx.Rows) ([]models.Channel, error) {
	var out []models.Channel
	for rows.Next() {
		var c models.Channel
		if err := rows.Scan(
			&c.TelegramChannelID, &c.Name, &c.DisplayName, &c.Category,
			&c.LastFetchedAt, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
