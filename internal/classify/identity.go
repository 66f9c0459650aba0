// Package classify implements the message classification pipeline: content
// identity, exclusion filtering, and the duplicate/forward decision
// procedure that precedes persistence.
package classify

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// TextHash returns the hex digest of the trimmed message text. The digest is
// the duplicate-detection key, so it must be stable across runs: same text,
// same hash, no per-process salt.
func TextHash(text string) string {
	sum := md5.Sum([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

// SanitizeFileID maps a source-assigned file identifier to a filesystem-safe
// token. ASCII letters, digits, '-' and '_' pass through; every other byte
// becomes '_'. Deterministic, so storage paths stay reconstructible.
func SanitizeFileID(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
