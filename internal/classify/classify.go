package classify

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mm-osint/newswire/internal/models"
)

// MediaKind describes what kind of media a message carries.
type MediaKind int

// MediaKind constants.
const (
	MediaNone MediaKind = iota
	MediaPhoto
	MediaOther
)

// ForwardInfo carries the origin of a forwarded message. Both fields may be
// nil when the sender's privacy settings hide the origin; the message is
// still forwarded in that case.
type ForwardInfo struct {
	FromChannelID *int64
	FromMessageID *int64
}

// Incoming is one message record as delivered by the message source.
type Incoming struct {
	ChannelID int64
	MessageID int64
	Text      string
	Datetime  time.Time
	HasMedia  bool
	MediaKind MediaKind

	// Forward is nil for non-forwarded messages.
	Forward *ForwardInfo

	// GroupedID is set when the message belongs to a multi-photo album.
	GroupedID *int64

	// PhotoFileID is the source file identifier when MediaKind is MediaPhoto.
	PhotoFileID string
}

// Kind is the classification outcome for one message.
type Kind int

// Kind constants. Every classified message lands on exactly one of these.
const (
	KindOriginal Kind = iota
	KindDuplicate
	KindForwarded
	KindRejected
)

// String returns the label used in logs, counters and events.
func (k Kind) String() string {
	switch k {
	case KindOriginal:
		return "original"
	case KindDuplicate:
		return "duplicate"
	case KindForwarded:
		return "forwarded"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// RejectReason explains why a message was rejected.
type RejectReason int

// RejectReason constants.
const (
	RejectNone RejectReason = iota
	RejectTooShort
	RejectExcluded
)

// String returns the label used in logs and counters.
func (r RejectReason) String() string {
	switch r {
	case RejectTooShort:
		return "too_short"
	case RejectExcluded:
		return "excluded"
	default:
		return ""
	}
}

// Result is the persistence-ready outcome of classifying one message.
// Rejected messages produce no row at all; the remaining kinds map onto one
// Message row, with DownloadPhoto additionally gating the photo pipeline.
type Result struct {
	Kind         Kind
	RejectReason RejectReason

	// row fields
	Text     *string
	TextHash *string

	DuplicateOf   *models.MessageRef
	ForwardedFrom *ForwardInfo
	GroupedID     *int64
	HasMedia      bool

	// DownloadPhoto is true only for originals that carry a photo. Forwarded
	// and duplicate messages never download: the origin or first-seen message
	// already holds the content.
	DownloadPhoto bool
}

// DuplicateLookup finds the first-seen original message with the given text
// hash, or nil when no such message exists.
type DuplicateLookup interface {
	FindOriginalByHash(ctx context.Context, hash string) (*models.MessageRef, error)
}

// InvalidMessageError reports a malformed source record. Callers log it and
// skip the message, counting it separately from legitimate rejects.
type InvalidMessageError struct {
	ChannelID int64
	MessageID int64
	Reason    string
}

func (e *InvalidMessageError) Error() string {
	return fmt.Sprintf("invalid message %d/%d: %s", e.ChannelID, e.MessageID, e.Reason)
}

// Engine classifies incoming messages. It is pure computation over fetched
// data plus one read against the duplicate index; it holds no mutable state
// and is safe for concurrent use.
type Engine struct {
	minTextLength int
	rules         []models.ExclusionRule
	lookup        DuplicateLookup
}

// NewEngine creates an engine with the active rule set for this run.
func NewEngine(minTextLength int, rules []models.ExclusionRule, lookup DuplicateLookup) *Engine {
	return &Engine{
		minTextLength: minTextLength,
		rules:         rules,
		lookup:        lookup,
	}
}

// Classify runs the decision procedure for one message:
//
//  1. forwarded messages short-circuit, keeping neither text nor photo
//  2. photos are always collectible, bypassing the minimum-length rule
//  3. remaining text is filtered by length and exclusion rules
//  4. non-empty text is hashed and checked against the duplicate index
//  5. the album group id, when present, is attached verbatim
//
// A missing timestamp is the one malformed input worth guarding: the
// watermark is derived from message timestamps, so a zero value would
// corrupt it silently.
func (e *Engine) Classify(ctx context.Context, msg Incoming) (*Result, error) {
	if msg.Datetime.IsZero() {
		return nil, &InvalidMessageError{
			ChannelID: msg.ChannelID,
			MessageID: msg.MessageID,
			Reason:    "missing timestamp",
		}
	}

	res := &Result{
		GroupedID: msg.GroupedID,
		HasMedia:  msg.HasMedia,
	}

	if msg.Forward != nil {
		res.Kind = KindForwarded
		res.ForwardedFrom = msg.Forward
		return res, nil
	}

	trimmed := strings.TrimSpace(msg.Text)
	hasPhoto := msg.HasMedia && msg.MediaKind == MediaPhoto

	// photos are collected regardless of caption length
	if !hasPhoto && utf8.RuneCountInString(trimmed) < e.minTextLength {
		res.Kind = KindRejected
		res.RejectReason = RejectTooShort
		return res, nil
	}

	if ShouldExclude(trimmed, e.rules) {
		res.Kind = KindRejected
		res.RejectReason = RejectExcluded
		return res, nil
	}

	// empty text is exempt from duplicate detection: trailing album photos
	// and caption-less singles carry no content to collide on
	if trimmed != "" {
		hash := TextHash(trimmed)
		ref, err := e.lookup.FindOriginalByHash(ctx, hash)
		if err != nil {
			return nil, fmt.Errorf("find duplicate by hash: %w", err)
		}
		if ref != nil && !(ref.ChannelID == msg.ChannelID && ref.MessageID == msg.MessageID) {
			res.Kind = KindDuplicate
			res.DuplicateOf = ref
			return res, nil
		}
		res.TextHash = &hash
	}

	res.Kind = KindOriginal
	text := msg.Text
	res.Text = &text
	res.DownloadPhoto = hasPhoto
	return res, nil
}
