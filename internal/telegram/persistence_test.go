package telegram

import (
	"context"
	"testing"
	"time"

	"github.com/celestix/gotgproto"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/mm-osint/newswire/internal/config"
)

func setupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		panic(err)
	}
	return db
}

type MockSession struct {
	SessionID string `gorm:"primaryKey"`
	Data      []byte
}

func (MockSession) TableName() string {
	return "sessions"
}

// TestDBSession verifies that Init decides the status from the stored session:
// empty table means Unauthorized, a stored session means Ready.
func TestDBSession(t *testing.T) {
	db := setupTestDB()
	_ = db.AutoMigrate(&MockSession{})

	cfg := &config.Config{
		TGApiID:   12345,
		TGApiHash: "test_hash",
	}

	m := NewManager(cfg, db)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// empty table: no connection attempt, just Unauthorized
	err := m.Init(ctx)
	assert.Nil(t, err)
	assert.Equal(t, StatusUnauthorized, m.GetStatus(), "Should be Unauthorized when DB is empty")

	// stored session: factory is consulted and the client becomes Ready
	db.Create(&MockSession{SessionID: "1", Data: []byte(`{"mock":"data"}`)})

	m.SetClientFactory(func(ctx context.Context, cfg *config.Config, db *gorm.DB) (*gotgproto.Client, error) {
		return &gotgproto.Client{}, nil
	})

	err = m.Init(ctx)
	assert.Nil(t, err)
	assert.Equal(t, StatusReady, m.GetStatus(), "Should be Ready when DB has session")
}
