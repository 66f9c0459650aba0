package telegram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
)

// DownloadPhoto fetches the photo bytes at its largest size.
func (c *Client) DownloadPhoto(ctx context.Context, photo *Photo) ([]byte, error) {
	if photo == nil {
		return nil, fmt.Errorf("no photo to download")
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	api, err := c.API()
	if err != nil {
		return nil, err
	}

	loc := &tg.InputPhotoFileLocation{
		ID:            photo.ID,
		AccessHash:    photo.AccessHash,
		FileReference: photo.FileReference,
		ThumbSize:     photo.ThumbType,
	}

	buf := new(bytes.Buffer)
	if _, err := downloader.NewDownloader().Download(api, loc).Stream(ctx, buf); err != nil {
		if wait := c.checkFloodWait(err); wait > 0 {
			c.log.Warn().Int("wait_seconds", wait).Str("file_id", photo.FileID).Msg("telegram: FLOOD_WAIT during photo download, updating rate limiter")
			c.rateLimiter.SetFloodWait(wait)
		}
		return nil, fmt.Errorf("download photo %s: %w", photo.FileID, err)
	}

	return buf.Bytes(), nil
}
