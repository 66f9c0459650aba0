package telegram

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gotd/td/session"
)

// EncodeSessionString packs session data into a single portable line, so a
// session captured on one machine can seed a collector on another through
// the TG_SESSION_STRING variable.
func EncodeSessionString(data *session.Data) (string, error) {
	if data == nil {
		return "", fmt.Errorf("session data is nil")
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal session data: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeSessionString is the inverse of EncodeSessionString.
func DecodeSessionString(s string) (*session.Data, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("session string is empty")
	}

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode session string: %w", err)
	}

	var data session.Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal session data: %w", err)
	}

	return &data, nil
}
