package telegram

import (
	"context"
	"fmt"

	"github.com/celestix/gotgproto/storage"
	"github.com/gotd/td/session"
	"gorm.io/gorm"
)

// ConvertToGotgprotoSession converts gotd session.Data to the storage row the
// persistent client restores from. The stored bytes must carry gotd's
// versioned envelope, so they are produced through gotd's own loader rather
// than marshaled by hand.
func ConvertToGotgprotoSession(data *session.Data) (*storage.Session, error) {
	if data == nil {
		return nil, fmt.Errorf("session data is nil")
	}

	mem := &session.StorageMemory{}
	loader := session.Loader{Storage: mem}
	if err := loader.Save(context.Background(), data); err != nil {
		return nil, fmt.Errorf("encode session data: %w", err)
	}

	dataJSON, err := mem.LoadSession(context.Background())
	if err != nil {
		return nil, fmt.Errorf("read encoded session: %w", err)
	}

	return &storage.Session{
		Version: storage.LatestVersion,
		Data:    dataJSON,
	}, nil
}

// SaveSessionData upserts captured session data into the sessions table that
// the persistent client restores from. AutoMigrate keeps the table present
// even on a database the client library has never touched.
func SaveSessionData(db *gorm.DB, data *session.Data) error {
	sess, err := ConvertToGotgprotoSession(data)
	if err != nil {
		return err
	}

	if err := db.AutoMigrate(&storage.Session{}); err != nil {
		return fmt.Errorf("migrate sessions table: %w", err)
	}

	// Version is the primary key and is fixed, so Save upserts
	return db.Save(sess).Error
}
