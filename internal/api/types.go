package api

import (
	"time"

	"github.com/mm-osint/newswire/internal/models"
	"github.com/mm-osint/newswire/internal/repository"
)

// ============================================================================
// Common Types
// ============================================================================

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error   string `json:"error" description:"Error message"`
	Details string `json:"details,omitempty" description:"Additional error details"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status" example:"ok" description:"Health status"`
	Version string `json:"version" example:"dev" description:"Application version"`
}

// ============================================================================
// News Types
// ============================================================================

// ImageResponse represents a stored photo in API responses.
type ImageResponse struct {
	FileID         string `json:"file_id" description:"Telegram photo identifier"`
	URL            string `json:"url" description:"Serving path under the media tree"`
	Width          int    `json:"width" description:"Stored width in pixels"`
	Height         int    `json:"height" description:"Stored height in pixels"`
	CompressedSize int64  `json:"compressed_size" description:"Stored file size in bytes"`
}

// NewsItemResponse represents one news post in listings. A multi-photo
// album folds into a single item carrying every sibling's images.
type NewsItemResponse struct {
	ChannelID          int64           `json:"channel_id" description:"Telegram channel identifier"`
	MessageID          int64           `json:"message_id" description:"Message identifier within the channel"`
	ChannelName        string          `json:"channel_name" description:"Channel username"`
	ChannelDisplayName *string         `json:"channel_display_name,omitempty" description:"Human-readable channel name"`
	Text               *string         `json:"text,omitempty" description:"Message text, absent for duplicates and forwards"`
	Datetime           time.Time       `json:"datetime" description:"Original posting time"`
	HasMedia           bool            `json:"has_media" description:"Whether the message carried media"`
	IsDuplicate        bool            `json:"is_duplicate" description:"Whether the text was seen before on another message"`
	IsForwarded        bool            `json:"is_forwarded" description:"Whether the message is a forward"`
	GroupedID          *int64          `json:"grouped_id,omitempty" description:"Album identifier shared by sibling messages"`
	AlbumSize          int             `json:"album_size" description:"Number of album siblings folded into this item"`
	Images             []ImageResponse `json:"images" description:"Stored photos, across all folded siblings"`
}

// NewsListResponse contains a paginated page of news items.
type NewsListResponse struct {
	Items []NewsItemResponse `json:"items" description:"News items, newest first"`
	Total int64              `json:"total" description:"Total matching messages before album folding"`
	Page  int                `json:"page" description:"Current page number"`
	Limit int                `json:"limit" description:"Messages per page"`
	Pages int64              `json:"pages" description:"Total number of pages"`
}

// MessageResponse mirrors one stored message row with its images.
type MessageResponse struct {
	ChannelID              int64           `json:"channel_id" description:"Telegram channel identifier"`
	MessageID              int64           `json:"message_id" description:"Message identifier within the channel"`
	Text                   *string         `json:"text,omitempty" description:"Message text, absent for duplicates and forwards"`
	Datetime               time.Time       `json:"datetime" description:"Original posting time"`
	HasMedia               bool            `json:"has_media" description:"Whether the message carried media"`
	IsDuplicate            bool            `json:"is_duplicate" description:"Whether the text was seen before on another message"`
	IsForwarded            bool            `json:"is_forwarded" description:"Whether the message is a forward"`
	DuplicateOfChannelID   *int64          `json:"duplicate_of_channel_id,omitempty" description:"Channel of the first-seen original"`
	DuplicateOfMessageID   *int64          `json:"duplicate_of_message_id,omitempty" description:"Message id of the first-seen original"`
	ForwardedFromChannelID *int64          `json:"forwarded_from_channel_id,omitempty" description:"Origin channel of a forward"`
	ForwardedFromMessageID *int64          `json:"forwarded_from_message_id,omitempty" description:"Origin message of a forward"`
	GroupedID              *int64          `json:"grouped_id,omitempty" description:"Album identifier shared by sibling messages"`
	CreatedAt              time.Time       `json:"created_at" description:"When the message was collected"`
	Images                 []ImageResponse `json:"images" description:"Stored photos for this message"`
}

// NewsDetailResponse is one message with everything the reader pane needs.
type NewsDetailResponse struct {
	Message  MessageResponse   `json:"message" description:"The requested message"`
	Original *MessageResponse  `json:"original,omitempty" description:"Resolved first-seen original when the message is a duplicate"`
	Album    []MessageResponse `json:"album,omitempty" description:"Album siblings in posting order, present when the message belongs to an album"`
}

// ============================================================================
// Channels Types
// ============================================================================

// ChannelResponse represents a registered channel in API responses.
type ChannelResponse struct {
	ID            int64      `json:"id" description:"Telegram channel identifier"`
	Name          string     `json:"name" description:"Channel username"`
	DisplayName   *string    `json:"display_name,omitempty" description:"Human-readable channel name"`
	Category      *string    `json:"category,omitempty" description:"Editorial category"`
	LastFetchedAt *time.Time `json:"last_fetched_at,omitempty" description:"Collection watermark"`
	IsActive      bool       `json:"is_active" description:"Whether the channel is collected"`
	MessageCount  int64      `json:"message_count" description:"Collected messages so far"`
}

// ChannelsListResponse contains all registered channels.
type ChannelsListResponse struct {
	Channels []ChannelResponse `json:"channels" description:"Registered channels"`
	Total    int               `json:"total" description:"Total number of channels"`
}

// ============================================================================
// Stats Types
// ============================================================================

// StatsResponse contains dashboard totals (matches DashboardStats).
type StatsResponse struct {
	TotalMessages      int64 `json:"total_messages" description:"Total collected messages"`
	OriginalMessages   int64 `json:"original_messages" description:"Messages stored with their text"`
	DuplicateMessages  int64 `json:"duplicate_messages" description:"Messages marked as duplicates"`
	ForwardedMessages  int64 `json:"forwarded_messages" description:"Messages marked as forwards"`
	MessagesWithImages int64 `json:"messages_with_images" description:"Messages that carried media"`
	TodayMessages      int64 `json:"today_messages" description:"Messages posted today"`
	TotalImages        int64 `json:"total_images" description:"Stored image files"`
	TotalChannels      int64 `json:"total_channels" description:"Registered channels"`
	ActiveChannels     int64 `json:"active_channels" description:"Channels eligible for collection"`
}

// ============================================================================
// Bookmarks Types
// ============================================================================

// BookmarkAddRequest carries the optional note attached to a bookmark.
type BookmarkAddRequest struct {
	Note *string `json:"note,omitempty" description:"Free-form operator note"`
}

// BookmarkResponse represents a bookmarked message in API responses.
type BookmarkResponse struct {
	ChannelID    int64     `json:"channel_id" description:"Telegram channel identifier"`
	MessageID    int64     `json:"message_id" description:"Message identifier within the channel"`
	Note         *string   `json:"note,omitempty" description:"Operator note"`
	BookmarkedAt time.Time `json:"bookmarked_at" description:"When the bookmark was added"`
	Text         *string   `json:"text,omitempty" description:"Message text"`
	Datetime     time.Time `json:"datetime" description:"Original posting time"`
	ChannelName  string    `json:"channel_name" description:"Channel username"`
}

// BookmarksListResponse contains all bookmarks.
type BookmarksListResponse struct {
	Bookmarks []BookmarkResponse `json:"bookmarks" description:"Bookmarked messages, newest first"`
	Total     int                `json:"total" description:"Total number of bookmarks"`
}

// ============================================================================
// Conversion Helpers
// ============================================================================

// ImageFromModel converts models.Image to ImageResponse.
func ImageFromModel(img models.Image) ImageResponse {
	return ImageResponse{
		FileID:         img.FileID,
		URL:            "/media/" + img.FilePath,
		Width:          img.Width,
		Height:         img.Height,
		CompressedSize: img.CompressedSize,
	}
}

// ImagesFromModel converts a slice of models.Image to ImageResponse values.
func ImagesFromModel(imgs []models.Image) []ImageResponse {
	result := make([]ImageResponse, len(imgs))
	for i, img := range imgs {
		result[i] = ImageFromModel(img)
	}
	return result
}

// MessageFromModel converts models.Message plus its images to MessageResponse.
func MessageFromModel(m *models.Message, imgs []models.Image) MessageResponse {
	return MessageResponse{
		ChannelID:              m.ChannelID,
		MessageID:              m.MessageID,
		Text:                   m.Text,
		Datetime:               m.Datetime,
		HasMedia:               m.HasMedia,
		IsDuplicate:            m.IsDuplicate,
		IsForwarded:            m.IsForwarded,
		DuplicateOfChannelID:   m.DuplicateOfChannelID,
		DuplicateOfMessageID:   m.DuplicateOfMessageID,
		ForwardedFromChannelID: m.ForwardedFromChannelID,
		ForwardedFromMessageID: m.ForwardedFromMessageID,
		GroupedID:              m.GroupedID,
		CreatedAt:              m.CreatedAt,
		Images:                 ImagesFromModel(imgs),
	}
}

// ChannelFromRepo converts repository.ChannelWithCount to ChannelResponse.
func ChannelFromRepo(c *repository.ChannelWithCount) ChannelResponse {
	return ChannelResponse{
		ID:            c.TelegramChannelID,
		Name:          c.Name,
		DisplayName:   c.DisplayName,
		Category:      c.Category,
		LastFetchedAt: c.LastFetchedAt,
		IsActive:      c.IsActive,
		MessageCount:  c.MessageCount,
	}
}

// ChannelsFromRepo converts a slice of repository.ChannelWithCount.
func ChannelsFromRepo(channels []repository.ChannelWithCount) []ChannelResponse {
	result := make([]ChannelResponse, len(channels))
	for i := range channels {
		result[i] = ChannelFromRepo(&channels[i])
	}
	return result
}

// BookmarkFromRepo converts repository.BookmarkedMessage to BookmarkResponse.
func BookmarkFromRepo(b *repository.BookmarkedMessage) BookmarkResponse {
	return BookmarkResponse{
		ChannelID:    b.ChannelID,
		MessageID:    b.MessageID,
		Note:         b.Note,
		BookmarkedAt: b.BookmarkedAt,
		Text:         b.Text,
		Datetime:     b.Datetime,
		ChannelName:  b.ChannelName,
	}
}

// BookmarksFromRepo converts a slice of repository.BookmarkedMessage.
func BookmarksFromRepo(bookmarks []repository.BookmarkedMessage) []BookmarkResponse {
	result := make([]BookmarkResponse, len(bookmarks))
	for i := range bookmarks {
		result[i] = BookmarkFromRepo(&bookmarks[i])
	}
	return result
}
