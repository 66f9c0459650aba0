// Package api provides the read-side HTTP API for browsing collected news.
package api

import (
	"context"
	"strconv"
	"time"

	"github.com/go-fuego/fuego"

	"github.com/mm-osint/newswire/internal/models"
	"github.com/mm-osint/newswire/internal/repository"
)

// ============================================================================
// Health
// ============================================================================

func (s *Server) healthCheck(c fuego.ContextNoBody) (HealthResponse, error) {
	return HealthResponse{
		Status:  "ok",
		Version: "dev",
	}, nil
}

// ============================================================================
// News Handlers
// ============================================================================

func (s *Server) listNews(c fuego.ContextNoBody) (NewsListResponse, error) {
	page := parseIntWithDefault(c.QueryParam("page"), 1)
	limit := parseIntWithDefault(c.QueryParam("limit"), 50)

	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	filter := repository.ListFilter{
		Search:            c.QueryParam("q"),
		IncludeDuplicates: c.QueryParam("include_duplicates") == "true",
		IncludeForwarded:  c.QueryParam("include_forwarded") == "true",
		Limit:             limit,
		Offset:            (page - 1) * limit,
	}

	if v := c.QueryParam("channel_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return NewsListResponse{}, fuego.BadRequestError{Detail: "Invalid channel_id"}
		}
		filter.ChannelID = &id
	}
	if v := c.QueryParam("category"); v != "" {
		filter.Category = &v
	}
	if v := c.QueryParam("date_from"); v != "" {
		t, err := parseDateParam(v, false)
		if err != nil {
			return NewsListResponse{}, fuego.BadRequestError{Detail: "Invalid date_from"}
		}
		filter.From = &t
	}
	if v := c.QueryParam("date_to"); v != "" {
		t, err := parseDateParam(v, true)
		if err != nil {
			return NewsListResponse{}, fuego.BadRequestError{Detail: "Invalid date_to"}
		}
		filter.To = &t
	}

	msgs, total, err := s.deps.News.List(c.Context(), filter)
	if err != nil {
		return NewsListResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}

	items, err := s.buildNewsItems(c.Context(), msgs)
	if err != nil {
		return NewsListResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}

	pages := (total + int64(limit) - 1) / int64(limit)
	if pages < 1 {
		pages = 1
	}

	return NewsListResponse{
		Items: items,
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: pages,
	}, nil
}

// buildNewsItems attaches images in one batch query and folds adjacent album
// siblings into single items. Siblings are adjacent because the listing sorts
// by datetime and message id, so a linear walk is enough.
func (s *Server) buildNewsItems(ctx context.Context, msgs []repository.MessageWithChannel) ([]NewsItemResponse, error) {
	items := []NewsItemResponse{}
	if len(msgs) == 0 {
		return items, nil
	}

	channelIDs := make([]int64, len(msgs))
	messageIDs := make([]int64, len(msgs))
	for i, m := range msgs {
		channelIDs[i] = m.ChannelID
		messageIDs[i] = m.MessageID
	}

	imgs, err := s.deps.Images.ListForMessages(ctx, channelIDs, messageIDs)
	if err != nil {
		return nil, err
	}
	byMessage := make(map[models.MessageRef][]ImageResponse)
	for _, img := range imgs {
		key := models.MessageRef{ChannelID: img.ChannelID, MessageID: img.MessageID}
		byMessage[key] = append(byMessage[key], ImageFromModel(img))
	}

	for _, m := range msgs {
		images := byMessage[models.MessageRef{ChannelID: m.ChannelID, MessageID: m.MessageID}]

		if m.GroupedID != nil && len(items) > 0 {
			last := &items[len(items)-1]
			if last.GroupedID != nil && last.ChannelID == m.ChannelID && *last.GroupedID == *m.GroupedID {
				// The caption lives on one album sibling; whichever
				// carries it becomes the face of the folded item.
				if last.Text == nil && m.Text != nil {
					last.MessageID = m.MessageID
					last.Text = m.Text
					last.Datetime = m.Datetime
				}
				last.Images = append(last.Images, images...)
				last.AlbumSize++
				continue
			}
		}

		item := NewsItemResponse{
			ChannelID:          m.ChannelID,
			MessageID:          m.MessageID,
			ChannelName:        m.ChannelName,
			ChannelDisplayName: m.ChannelDisplayName,
			Text:               m.Text,
			Datetime:           m.Datetime,
			HasMedia:           m.HasMedia,
			IsDuplicate:        m.IsDuplicate,
			IsForwarded:        m.IsForwarded,
			GroupedID:          m.GroupedID,
			AlbumSize:          1,
			Images:             images,
		}
		if item.Images == nil {
			item.Images = []ImageResponse{}
		}
		items = append(items, item)
	}

	return items, nil
}

func (s *Server) getNewsItem(c fuego.ContextNoBody) (NewsDetailResponse, error) {
	channelID, messageID, err := parseMessageKey(c.PathParam("channelID"), c.PathParam("messageID"))
	if err != nil {
		return NewsDetailResponse{}, err
	}

	msg, err := s.deps.News.GetByID(c.Context(), channelID, messageID)
	if err != nil {
		return NewsDetailResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}
	if msg == nil {
		return NewsDetailResponse{}, fuego.NotFoundError{Detail: "Message not found"}
	}

	imgs, err := s.deps.Images.GetByMessage(c.Context(), msg.ChannelID, msg.MessageID)
	if err != nil {
		return NewsDetailResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}

	resp := NewsDetailResponse{Message: MessageFromModel(msg, imgs)}

	// A duplicate's text lives on the first-seen original; hand the reader
	// both in one response.
	if msg.IsDuplicate && msg.DuplicateOfChannelID != nil && msg.DuplicateOfMessageID != nil {
		orig, err := s.deps.News.GetByID(c.Context(), *msg.DuplicateOfChannelID, *msg.DuplicateOfMessageID)
		if err != nil {
			return NewsDetailResponse{}, fuego.InternalServerError{Detail: err.Error()}
		}
		if orig != nil {
			origImgs, err := s.deps.Images.GetByMessage(c.Context(), orig.ChannelID, orig.MessageID)
			if err != nil {
				return NewsDetailResponse{}, fuego.InternalServerError{Detail: err.Error()}
			}
			om := MessageFromModel(orig, origImgs)
			resp.Original = &om
		}
	}

	if msg.GroupedID != nil {
		album, err := s.loadAlbum(c.Context(), msg.ChannelID, *msg.GroupedID)
		if err != nil {
			return NewsDetailResponse{}, fuego.InternalServerError{Detail: err.Error()}
		}
		resp.Album = album
	}

	return resp, nil
}

// loadAlbum returns every sibling of an album with its images attached.
func (s *Server) loadAlbum(ctx context.Context, channelID, groupedID int64) ([]MessageResponse, error) {
	siblings, err := s.deps.News.ListByGroup(ctx, channelID, groupedID)
	if err != nil {
		return nil, err
	}

	channelIDs := make([]int64, len(siblings))
	messageIDs := make([]int64, len(siblings))
	for i, m := range siblings {
		channelIDs[i] = m.ChannelID
		messageIDs[i] = m.MessageID
	}
	imgs, err := s.deps.Images.ListForMessages(ctx, channelIDs, messageIDs)
	if err != nil {
		return nil, err
	}
	byMessage := make(map[models.MessageRef][]models.Image)
	for _, img := range imgs {
		key := models.MessageRef{ChannelID: img.ChannelID, MessageID: img.MessageID}
		byMessage[key] = append(byMessage[key], img)
	}

	album := make([]MessageResponse, len(siblings))
	for i := range siblings {
		key := models.MessageRef{ChannelID: siblings[i].ChannelID, MessageID: siblings[i].MessageID}
		album[i] = MessageFromModel(&siblings[i], byMessage[key])
	}
	return album, nil
}

// ============================================================================
// Channels Handlers
// ============================================================================

func (s *Server) listChannels(c fuego.ContextNoBody) (ChannelsListResponse, error) {
	channels, err := s.deps.Channels.GetAllWithCounts(c.Context())
	if err != nil {
		return ChannelsListResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}

	return ChannelsListResponse{
		Channels: ChannelsFromRepo(channels),
		Total:    len(channels),
	}, nil
}

// ============================================================================
// Stats Handlers
// ============================================================================

func (s *Server) getStats(c fuego.ContextNoBody) (StatsResponse, error) {
	stats, err := s.deps.Stats.GetStats(c.Context())
	if err != nil {
		return StatsResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}

	return StatsResponse{
		TotalMessages:      stats.TotalMessages,
		OriginalMessages:   stats.OriginalMessages,
		DuplicateMessages:  stats.DuplicateMessages,
		ForwardedMessages:  stats.ForwardedMessages,
		MessagesWithImages: stats.MessagesWithImages,
		TodayMessages:      stats.TodayMessages,
		TotalImages:        stats.TotalImages,
		TotalChannels:      stats.TotalChannels,
		ActiveChannels:     stats.ActiveChannels,
	}, nil
}

// ============================================================================
// Bookmarks Handlers
// ============================================================================

func (s *Server) listBookmarks(c fuego.ContextNoBody) (BookmarksListResponse, error) {
	bookmarks, err := s.deps.Bookmarks.List(c.Context())
	if err != nil {
		return BookmarksListResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}

	return BookmarksListResponse{
		Bookmarks: BookmarksFromRepo(bookmarks),
		Total:     len(bookmarks),
	}, nil
}

func (s *Server) addBookmark(c fuego.ContextWithBody[BookmarkAddRequest]) (any, error) {
	channelID, messageID, err := parseMessageKey(c.PathParam("channelID"), c.PathParam("messageID"))
	if err != nil {
		return nil, err
	}

	// The note is optional; plain favoriting sends no payload at all.
	var note *string
	if body, err := c.Body(); err == nil {
		note = body.Note
	}

	msg, err := s.deps.News.GetByID(c.Context(), channelID, messageID)
	if err != nil {
		return nil, fuego.InternalServerError{Detail: err.Error()}
	}
	if msg == nil {
		return nil, fuego.NotFoundError{Detail: "Message not found"}
	}

	if err := s.deps.Bookmarks.Add(c.Context(), channelID, messageID, note); err != nil {
		return nil, fuego.InternalServerError{Detail: err.Error()}
	}

	return map[string]string{"status": "bookmarked"}, nil
}

func (s *Server) removeBookmark(c fuego.ContextNoBody) (any, error) {
	channelID, messageID, err := parseMessageKey(c.PathParam("channelID"), c.PathParam("messageID"))
	if err != nil {
		return nil, err
	}

	if err := s.deps.Bookmarks.Remove(c.Context(), channelID, messageID); err != nil {
		return nil, fuego.InternalServerError{Detail: err.Error()}
	}

	return map[string]string{"status": "removed"}, nil
}

// ============================================================================
// Helpers
// ============================================================================

// parseIntWithDefault parses an int query value, falling back on a default.
func parseIntWithDefault(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseMessageKey parses the composite path key of a message.
func parseMessageKey(channelStr, messageStr string) (int64, int64, error) {
	channelID, err := strconv.ParseInt(channelStr, 10, 64)
	if err != nil {
		return 0, 0, fuego.BadRequestError{Detail: "Invalid channel ID"}
	}
	messageID, err := strconv.ParseInt(messageStr, 10, 64)
	if err != nil {
		return 0, 0, fuego.BadRequestError{Detail: "Invalid message ID"}
	}
	return channelID, messageID, nil
}

// parseDateParam accepts RFC 3339 timestamps and plain dates. A plain date
// used as an upper bound means the whole day, so it stretches to its last
// second.
func parseDateParam(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return t, nil
}
