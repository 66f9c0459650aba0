package telegram

import (
	"testing"

	"github.com/gotd/td/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionString_RoundTrip(t *testing.T) {
	input := &session.Data{
		DC:      2,
		Addr:    "149.154.167.40:443",
		AuthKey: []byte("test-auth-key-32-bytes-long-abc"),
	}

	encoded, err := EncodeSessionString(input)
	require.NoError(t, err)
	assert.NotContains(t, encoded, " ", "session string should be a single token")

	decoded, err := DecodeSessionString(encoded)
	require.NoError(t, err)
	assert.Equal(t, input.DC, decoded.DC)
	assert.Equal(t, input.Addr, decoded.Addr)
	assert.Equal(t, input.AuthKey, decoded.AuthKey)
}

func TestDecodeSessionString_TrimsWhitespace(t *testing.T) {
	// Copy-pasted strings from a terminal tend to pick up padding
	input := &session.Data{DC: 1, AuthKey: []byte("k")}
	encoded, err := EncodeSessionString(input)
	require.NoError(t, err)

	decoded, err := DecodeSessionString("  " + encoded + "\n")
	require.NoError(t, err)
	assert.Equal(t, input.DC, decoded.DC)
}

func TestDecodeSessionString_Garbage(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"%%%not-base64%%%",
		"bm90LWpzb24", // valid base64, not valid JSON
	}
	for _, c := range cases {
		_, err := DecodeSessionString(c)
		assert.Error(t, err, "input %q", c)
	}
}

func TestEncodeSessionString_Nil(t *testing.T) {
	_, err := EncodeSessionString(nil)
	assert.Error(t, err)
}
