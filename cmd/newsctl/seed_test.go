package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeed(t *testing.T) {
	t.Run("full document", func(t *testing.T) {
		seed, err := parseSeed([]byte(`
channels:
  - name: nugmyanmar
    display_name: National Unity Government of Myanmar
    category: politics
  - name: "@mizzima_daily"
    paused: true
  - name: itvisionchannel
`))
		require.NoError(t, err)
		require.Len(t, seed.Channels, 3)

		assert.Equal(t, "nugmyanmar", seed.Channels[0].Name)
		assert.Equal(t, "National Unity Government of Myanmar", seed.Channels[0].DisplayName)
		assert.Equal(t, "politics", seed.Channels[0].Category)
		assert.False(t, seed.Channels[0].Paused)

		// the @ prefix is stripped during normalization
		assert.Equal(t, "mizzima_daily", seed.Channels[1].Name)
		assert.True(t, seed.Channels[1].Paused)
	})

	t.Run("invalid username", func(t *testing.T) {
		_, err := parseSeed([]byte("channels:\n  - name: \"not a username\"\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a username")
	})

	t.Run("duplicate entries", func(t *testing.T) {
		_, err := parseSeed([]byte(`
channels:
  - name: nugmyanmar
  - name: "@nugmyanmar"
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate")
	})

	t.Run("unknown keys rejected", func(t *testing.T) {
		// a typo should fail validation, not import a half-filled channel
		_, err := parseSeed([]byte(`
channels:
  - name: nugmyanmar
    dispaly_name: NUG
`))
		require.Error(t, err)
	})

	t.Run("empty inputs", func(t *testing.T) {
		for _, doc := range []string{"", "channels: []\n", "# comment only\n"} {
			_, err := parseSeed([]byte(doc))
			require.Error(t, err, "doc %q", doc)
			assert.Contains(t, err.Error(), "no channels")
		}
	})
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.yaml")
	require.NoError(t, os.WriteFile(path, []byte("channels:\n  - name: nugmyanmar\n"), 0644))

	seed, err := loadSeed(path)
	require.NoError(t, err)
	assert.Len(t, seed.Channels, 1)

	_, err = loadSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
