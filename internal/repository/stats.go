package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DashboardStats contains aggregated statistics for the viewer dashboard.
type DashboardStats struct {
	TotalMessages      int64 `json:"total_messages"`
	OriginalMessages   int64 `json:"original_messages"`
	DuplicateMessages  int64 `json:"duplicate_messages"`
	ForwardedMessages  int64 `json:"forwarded_messages"`
	MessagesWithImages int64 `json:"messages_with_images"`
	TodayMessages      int64 `json:"today_messages"`
	TotalImages        int64 `json:"total_images"`
	TotalChannels      int64 `json:"total_channels"`
	ActiveChannels     int64 `json:"active_channels"`
}

// StatsRepository provides access to statistics data in the database.
type StatsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

// GetStats retrieves aggregated statistics for the dashboard.
func (r *StatsRepository) GetStats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}

	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) AS total,
			COUNT(CASE WHEN NOT is_duplicate AND NOT is_forwarded THEN 1 END) AS originals,
			COUNT(CASE WHEN is_duplicate THEN 1 END) AS duplicates,
			COUNT(CASE WHEN is_forwarded THEN 1 END) AS forwarded,
			COUNT(CASE WHEN has_media THEN 1 END) AS with_images,
			COUNT(CASE WHEN message_datetime >= CURRENT_DATE THEN 1 END) AS today
		FROM messages
	`).Scan(
		&stats.TotalMessages, &stats.OriginalMessages, &stats.DuplicateMessages,
		&stats.ForwardedMessages, &stats.MessagesWithImages, &stats.TodayMessages,
	)
	if err != nil {
		return nil, fmt.Errorf("get message stats: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM images
	`).Scan(&stats.TotalImages)
	if err != nil {
		return nil, fmt.Errorf("get image stats: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(CASE WHEN is_active THEN 1 END) FROM channels
	`).Scan(&stats.TotalChannels, &stats.ActiveChannels)
	if err != nil {
		return nil, fmt.Errorf("get channel stats: %w", err)
	}

	return stats, nil
}
