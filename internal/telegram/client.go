// Package telegram provides Telegram MTProto client wrapper.
package telegram

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/celestix/gotgproto"
	"github.com/gotd/td/tg"

	"github.com/mm-osint/newswire/internal/logger"
)

// Client wraps gotgproto client and provides high-level telegram operations.
// It is resilient and uses the Manager to access the underlying protocol client.
type Client struct {
	manager     *Manager
	rateLimiter *RateLimiter
	log         *logger.Logger
}

// NewClient creates a new telegram client wrapper using the Manager.
func NewClient(manager *Manager) *Client {
	return &Client{
		manager:     manager,
		rateLimiter: DefaultRateLimiter(),
		log:         logger.Get(),
	}
}

// SetRateLimit replaces the default limiter. Call before the first fetch.
func (c *Client) SetRateLimit(rps float64, burst int) {
	c.rateLimiter = NewRateLimiter(rps, burst)
}

// Close stops the client via the manager.
func (c *Client) Close() {
	if c.manager != nil {
		c.manager.Stop()
	}
}

// GetStatus returns the current status of the telegram client.
func (c *Client) GetStatus() Status {
	return c.manager.GetStatus()
}

// StartQR starts the QR login flow effectively proxying to the manager.
func (c *Client) StartQR(ctx context.Context, onQRCode func(url string)) error {
	return c.manager.StartQR(ctx, onQRCode)
}

// IsQRInProgress returns true if a QR login flow is currently in progress.
func (c *Client) IsQRInProgress() bool {
	return c.manager.IsQRInProgress()
}

// CancelQR cancels any ongoing QR login flow.
func (c *Client) CancelQR() {
	c.manager.CancelQR()
}

// getProto returns the current protocol client if available.
func (c *Client) getProto() (*gotgproto.Client, error) {
	proto := c.manager.GetClient()
	if proto == nil {
		return nil, fmt.Errorf("telegram client not authorized")
	}
	return proto, nil
}

// API returns the raw tg.Client for direct API calls.
func (c *Client) API() (*tg.Client, error) {
	proto, err := c.getProto()
	if err != nil {
		return nil, err
	}
	return proto.API(), nil
}

// ResolveChannel resolves channel username to Channel info
// username can be with or without @ prefix
func (c *Client) ResolveChannel(ctx context.Context, username string) (*Channel, error) {
	// strip @ prefix if present
	username = strings.TrimPrefix(username, "@")

	c.log.Debug().Str("username", username).Msg("telegram: waiting for rate limiter")
	if err := c.rateLimiter.Wait(ctx); err != nil {
		c.log.Error().Err(err).Msg("telegram: rate limiter wait failed")
		return nil, err
	}

	c.log.Info().Str("username", username).Msg("telegram: resolving channel username")
	api, err := c.API()
	if err != nil {
		return nil, err
	}
	resolved, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
		Username: username,
	})
	if err != nil {
		if wait := c.checkFloodWait(err); wait > 0 {
			c.log.Warn().Int("wait_seconds", wait).Msg("telegram: FLOOD_WAIT detected, updating rate limiter")
			c.rateLimiter.SetFloodWait(wait)
		}
		c.log.Error().Err(err).Str("username", username).Msg("telegram: failed to resolve username")
		return nil, fmt.Errorf("resolve username %s: %w", username, err)
	}

	if len(resolved.Chats) == 0 {
		return nil, fmt.Errorf("channel not found: %s", username)
	}

	ch, ok := resolved.Chats[0].(*tg.Channel)
	if !ok {
		return nil, fmt.Errorf("not a channel: %s", username)
	}

	return &Channel{
		ID:         ch.ID,
		AccessHash: ch.AccessHash,
		Username:   username,
		Title:      ch.Title,
	}, nil
}

// ChannelExists checks if channel username exists and is accessible
func (c *Client) ChannelExists(ctx context.Context, username string) (bool, error) {
	_, err := c.ResolveChannel(ctx, username)
	if err != nil {
		// check if it's a "not found" error
		if strings.Contains(err.Error(), "not found") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// FetchAfter returns up to limit messages with ids greater than afterID,
// oldest first. Returns an empty slice when the channel has nothing newer.
func (c *Client) FetchAfter(ctx context.Context, channel *Channel, afterID int, limit int) ([]Message, error) {
	if limit > 100 {
		limit = 100 // telegram api limit
	}

	// negative AddOffset shifts the window toward newer messages,
	// so the batch lands directly after the offset id
	msgs, err := c.getHistory(ctx, channel, &tg.MessagesGetHistoryRequest{
		Peer:      channel.inputPeer(),
		OffsetID:  afterID,
		AddOffset: -limit,
		MinID:     afterID,
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}

	// MinID is advisory on some layers, filter again to be exact
	out := msgs[:0]
	for _, m := range msgs {
		if m.ID > afterID {
			out = append(out, m)
		}
	}
	return out, nil
}

// FetchSince returns up to limit messages posted at or after the given time,
// oldest first. Used for the first batch of a backfill when no message id
// is known yet.
func (c *Client) FetchSince(ctx context.Context, channel *Channel, since time.Time, limit int) ([]Message, error) {
	if limit > 100 {
		limit = 100
	}

	msgs, err := c.getHistory(ctx, channel, &tg.MessagesGetHistoryRequest{
		Peer:       channel.inputPeer(),
		OffsetDate: int(since.Unix()),
		AddOffset:  -limit,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}

	out := msgs[:0]
	for _, m := range msgs {
		if !m.Date.Before(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (c *Client) getHistory(ctx context.Context, channel *Channel, req *tg.MessagesGetHistoryRequest) ([]Message, error) {
	c.log.Debug().Int64("channel_id", channel.ID).Int("offset_id", req.OffsetID).Int("limit", req.Limit).Msg("telegram: waiting for rate limiter before history fetch")
	if err := c.rateLimiter.Wait(ctx); err != nil {
		c.log.Error().Err(err).Msg("telegram: rate limiter wait failed")
		return nil, err
	}

	api, err := c.API()
	if err != nil {
		return nil, err
	}
	history, err := api.MessagesGetHistory(ctx, req)
	if err != nil {
		if wait := c.checkFloodWait(err); wait > 0 {
			c.log.Warn().Int("wait_seconds", wait).Int64("channel_id", channel.ID).Msg("telegram: FLOOD_WAIT detected in history fetch, updating rate limiter")
			c.rateLimiter.SetFloodWait(wait)
		}
		c.log.Error().Err(err).Int("offset_id", req.OffsetID).Msg("telegram: MessagesGetHistory failed")
		return nil, fmt.Errorf("get history: %w", err)
	}

	return c.extractMessages(history, channel)
}

// extractMessages converts telegram history response to our Message type,
// sorted oldest first
func (c *Client) extractMessages(messagesClass tg.MessagesMessagesClass, channel *Channel) ([]Message, error) {
	var raw []tg.MessageClass

	switch h := messagesClass.(type) {
	case *tg.MessagesChannelMessages:
		raw = h.Messages
	case *tg.MessagesMessagesSlice:
		raw = h.Messages
	case *tg.MessagesMessages:
		raw = h.Messages
	}

	var messages []Message
	for _, msg := range raw {
		if m := c.parseMessage(msg, channel); m != nil {
			messages = append(messages, *m)
		}
	}

	// telegram returns history newest first
	sort.Slice(messages, func(i, j int) bool { return messages[i].ID < messages[j].ID })

	return messages, nil
}

// parseMessage converts a single telegram message to our Message type.
// Service messages and empty stubs are dropped.
func (c *Client) parseMessage(msg tg.MessageClass, channel *Channel) *Message {
	m, ok := msg.(*tg.Message)
	if !ok {
		return nil
	}

	out := &Message{
		ID:        m.ID,
		ChannelID: channel.ID,
		Text:      m.Message,
		Date:      time.Unix(int64(m.Date), 0).UTC(),
	}

	if gid, ok := m.GetGroupedID(); ok {
		out.GroupedID = &gid
	}

	if fwd, ok := m.GetFwdFrom(); ok {
		out.Forward = parseForward(&fwd)
	}

	if m.Media != nil {
		out.HasMedia, out.Photo = parseMedia(m.Media)
	}

	return out
}

// parseForward extracts the origin channel and post id from a forward header.
// Both stay nil when the source is hidden.
func parseForward(fwd *tg.MessageFwdHeader) *ForwardHeader {
	header := &ForwardHeader{}

	if fwd.FromID != nil {
		if peer, ok := fwd.FromID.(*tg.PeerChannel); ok {
			id := peer.ChannelID
			header.FromChannelID = &id
		}
	}
	if fwd.ChannelPost > 0 {
		post := int64(fwd.ChannelPost)
		header.FromMessageID = &post
	}

	return header
}

// parseMedia classifies the attachment. Link previews do not count as media.
func parseMedia(media tg.MessageMediaClass) (bool, *Photo) {
	switch m := media.(type) {
	case *tg.MessageMediaPhoto:
		photo, ok := m.Photo.(*tg.Photo)
		if !ok {
			return true, nil
		}
		return true, parsePhoto(photo)
	case *tg.MessageMediaWebPage:
		return false, nil
	default:
		return true, nil
	}
}

// parsePhoto picks the largest available size for download.
func parsePhoto(photo *tg.Photo) *Photo {
	var thumb string
	maxArea := 0
	for _, size := range photo.Sizes {
		switch s := size.(type) {
		case *tg.PhotoSize:
			if s.W*s.H > maxArea {
				maxArea = s.W * s.H
				thumb = s.Type
			}
		case *tg.PhotoSizeProgressive:
			if s.W*s.H > maxArea {
				maxArea = s.W * s.H
				thumb = s.Type
			}
		}
	}
	if thumb == "" {
		return nil
	}

	return &Photo{
		FileID:        strconv.FormatInt(photo.ID, 10),
		ID:            photo.ID,
		AccessHash:    photo.AccessHash,
		FileReference: photo.FileReference,
		ThumbType:     thumb,
	}
}

func (ch *Channel) inputPeer() *tg.InputPeerChannel {
	return &tg.InputPeerChannel{
		ChannelID:  ch.ID,
		AccessHash: ch.AccessHash,
	}
}

// checkFloodWait checks if error is a FLOOD_WAIT error and returns wait seconds
func (c *Client) checkFloodWait(err error) int {
	if err == nil {
		return 0
	}

	// gotgproto/gotd errors are usually wrapped
	// we check for specific error string as it's the most reliable way
	// without deep coupling to gotd/tg definition of FloodWait
	str := err.Error()
	if strings.Contains(str, "FLOOD_WAIT_") {
		// format is usually FLOOD_WAIT_X where X is seconds
		var seconds int
		// try to parse from string, e.g. "rpc error: code 420: FLOOD_WAIT_15"
		parts := strings.Split(str, "FLOOD_WAIT_")
		if len(parts) > 1 {
			// take the number part
			numStr := strings.TrimSpace(parts[1])
			// sometimes it has " (caused by...)" or other suffix, simple scan
			_, _ = fmt.Sscanf(numStr, "%d", &seconds)
			return seconds
		}
	}
	return 0
}
