package migrator

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithFS(t *testing.T) {
	fs := fstest.MapFS{
		"00001_init.sql": &fstest.MapFile{Data: []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n")},
	}
	m, err := NewWithFS(fs)
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestNewWithFS_NilFS(t *testing.T) {
	m, err := NewWithFS(nil)
	assert.Error(t, err)
	assert.Nil(t, m)
}

func TestMigrator_Up_NilPool(t *testing.T) {
	fs := fstest.MapFS{
		"00001_init.sql": &fstest.MapFile{Data: []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n")},
	}
	m, err := NewWithFS(fs)
	require.NoError(t, err)

	err = m.Up(context.Background(), nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "pool")
}

func TestMigrator_Version_NilPool(t *testing.T) {
	fs := fstest.MapFS{
		"00001_init.sql": &fstest.MapFile{Data: []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n")},
	}
	m, err := NewWithFS(fs)
	require.NoError(t, err)

	_, err = m.Version(context.Background(), nil)
	assert.Error(t, err)
}
