package telegram

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/celestix/gotgproto/storage"
	"github.com/glebarez/sqlite"
	"github.com/gotd/td/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestConvertToGotgprotoSession_WrapsInVersionedEnvelope(t *testing.T) {
	// Arrange
	input := &session.Data{
		DC:      2,
		Addr:    "149.154.167.40:443",
		AuthKey: []byte("test-auth-key-32-bytes-long-abc"),
	}

	// Act
	result, err := ConvertToGotgprotoSession(input)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, storage.LatestVersion, result.Version)

	// gotd wraps session payloads as {"Version":1,"Data":{...}}; the
	// persistent client cannot restore a row stored without the wrapper.
	var parsed map[string]interface{}
	err = json.Unmarshal(result.Data, &parsed)
	require.NoError(t, err, "Data should be valid JSON")

	assert.Equal(t, float64(1), parsed["Version"], "Should have Version=1")
	dataObj, ok := parsed["Data"].(map[string]interface{})
	require.True(t, ok, "Data should be a nested object")
	assert.Equal(t, float64(2), dataObj["DC"])
	assert.Equal(t, "149.154.167.40:443", dataObj["Addr"])
}

func TestConvertToGotgprotoSession_RoundTripsThroughLoader(t *testing.T) {
	input := &session.Data{
		DC:      4,
		Addr:    "5.6.7.8:443",
		AuthKey: []byte("another-test-key-32-bytes-long-x"),
	}

	result, err := ConvertToGotgprotoSession(input)
	require.NoError(t, err)

	mem := &session.StorageMemory{}
	require.NoError(t, mem.StoreSession(context.Background(), result.Data))

	loader := session.Loader{Storage: mem}
	loaded, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, input.DC, loaded.DC)
	assert.Equal(t, input.Addr, loaded.Addr)
	assert.Equal(t, input.AuthKey, loaded.AuthKey)
}

func TestConvertToGotgprotoSession_NilInput(t *testing.T) {
	result, err := ConvertToGotgprotoSession(nil)

	if err == nil {
		t.Error("Expected error for nil input, got nil")
	}
	assert.Nil(t, result)
}

func TestSaveSessionData_FreshDatabase(t *testing.T) {
	// No sessions table exists yet; SaveSessionData has to create it
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	data := &session.Data{
		DC:      2,
		Addr:    "1.2.3.4:443",
		AuthKey: []byte("test-key-32-bytes-long-abc-12345"),
	}
	require.NoError(t, SaveSessionData(db, data))

	var count int64
	require.NoError(t, db.Table("sessions").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Saving again updates in place instead of adding a row
	data.Addr = "4.3.2.1:443"
	require.NoError(t, SaveSessionData(db, data))
	require.NoError(t, db.Table("sessions").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
