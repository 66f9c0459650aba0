package telegram

import (
	"time"
)

// Channel represents a resolved telegram channel
type Channel struct {
	ID         int64  // channel id
	AccessHash int64  // access hash for api calls
	Username   string // channel username (without @)
	Title      string // channel title
}

// ForwardHeader carries the origin of a forwarded message.
// Fields are nil when telegram hides the source (private channel
// or a user with protected forwards).
type ForwardHeader struct {
	FromChannelID *int64 // source channel id
	FromMessageID *int64 // message id in the source channel
}

// Photo identifies a downloadable photo attachment at its largest size.
type Photo struct {
	FileID        string // stable identifier, derived from the photo id
	ID            int64
	AccessHash    int64
	FileReference []byte
	ThumbType     string // size type of the largest variant
}

// Message represents a parsed telegram message
type Message struct {
	ID        int            // message id (unique within channel)
	ChannelID int64          // channel id
	Text      string         // text or media caption
	Date      time.Time      // message creation timestamp (UTC)
	GroupedID *int64         // album id shared by grouped media messages
	Forward   *ForwardHeader // set when the message is a forward
	HasMedia  bool           // any real attachment; link previews excluded
	Photo     *Photo         // set when the attachment is a photo
}
