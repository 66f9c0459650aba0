package api

import (
	"context"

	"github.com/mm-osint/newswire/internal/models"
	"github.com/mm-osint/newswire/internal/repository"
)

// NewsRepository defines the message reads the viewer needs.
type NewsRepository interface {
	List(ctx context.Context, f repository.ListFilter) ([]repository.MessageWithChannel, int64, error)
	GetByID(ctx context.Context, channelID, messageID int64) (*models.Message, error)
	ListByGroup(ctx context.Context, channelID, groupedID int64) ([]models.Message, error)
}

// ChannelsRepository defines the channel reads the viewer needs.
type ChannelsRepository interface {
	GetAllWithCounts(ctx context.Context) ([]repository.ChannelWithCount, error)
}

// ImagesRepository defines the interface for image data access.
type ImagesRepository interface {
	GetByMessage(ctx context.Context, channelID, messageID int64) ([]models.Image, error)
	ListForMessages(ctx context.Context, channelIDs, messageIDs []int64) ([]models.Image, error)
}

// StatsRepository defines the interface for stats data access.
type StatsRepository interface {
	GetStats(ctx context.Context) (*repository.DashboardStats, error)
}

// BookmarksRepository defines bookmark reads and writes, the only writes
// this API performs.
type BookmarksRepository interface {
	Add(ctx context.Context, channelID, messageID int64, note *string) error
	Remove(ctx context.Context, channelID, messageID int64) error
	List(ctx context.Context) ([]repository.BookmarkedMessage, error)
}
