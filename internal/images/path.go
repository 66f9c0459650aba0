// Package images downloads, transcodes and stores message photos under a
// date-partitioned directory tree.
package images

import (
	"path/filepath"
	"time"

	"github.com/mm-osint/newswire/internal/classify"
)

// RelPath returns the storage path for a photo relative to the media base
// directory: YYYY/MM/DD/channel/fileID.ext. The date comes from the message
// timestamp, never the wall clock, so the same photo always lands on the
// same path across re-runs.
func RelPath(ts time.Time, channelName, fileID, ext string) string {
	ts = ts.UTC()
	return filepath.Join(
		ts.Format("2006"),
		ts.Format("01"),
		ts.Format("02"),
		channelName,
		classify.SanitizeFileID(fileID)+"."+ext,
	)
}
