package images

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/mm-osint/newswire/internal/classify"
)

// Failure stage labels used in logs and counters.
const (
	StageFetch     = "fetch"
	StageTranscode = "transcode"
	StageStore     = "store"
)

// StageError wraps a pipeline failure with the stage it happened in. Photo
// failures are degraded outcomes: the message row is still persisted, only
// the image row is missing.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// Stored describes one photo written to disk, ready for an image row.
type Stored struct {
	FileID         string
	RelPath        string
	OriginalSize   int64
	CompressedSize int64
	Width          int
	Height         int
}

// Request carries what the pipeline needs for one photo.
type Request struct {
	ChannelName string
	FileID      string
	Datetime    time.Time

	// Fetch obtains the raw photo bytes from the message source. It is only
	// invoked when no file exists at the computed path yet.
	Fetch func(ctx context.Context) ([]byte, error)
}

// Pipeline fetches, transcodes and stores photos for eligible messages.
type Pipeline struct {
	baseDir    string
	transcoder *Transcoder
	log        *zerolog.Logger
}

// NewPipeline creates a photo pipeline rooted at baseDir.
func NewPipeline(baseDir string, transcoder *Transcoder, log *zerolog.Logger) *Pipeline {
	return &Pipeline{baseDir: baseDir, transcoder: transcoder, log: log}
}

// FetchAndStore runs the pipeline for one classified message. It returns
// (nil, nil) when the classification is not photo-eligible. A file already
// present at the computed path short-circuits the network fetch but still
// returns metadata, which is what makes re-runs cheap.
func (p *Pipeline) FetchAndStore(ctx context.Context, res *classify.Result, req Request) (*Stored, error) {
	if res == nil || !res.DownloadPhoto {
		return nil, nil
	}

	// a previous run may have stored this photo in either format
	for _, ext := range []string{"jpg", "webp"} {
		if st := p.existing(RelPath(req.Datetime, req.ChannelName, req.FileID, ext)); st != nil {
			st.FileID = req.FileID
			p.log.Debug().Str("path", st.RelPath).Msg("photo already on disk, skipping download")
			return st, nil
		}
	}

	raw, err := req.Fetch(ctx)
	if err != nil {
		return nil, &StageError{Stage: StageFetch, Err: err}
	}
	if len(raw) == 0 {
		return nil, &StageError{Stage: StageFetch, Err: fmt.Errorf("empty photo payload")}
	}

	enc, err := p.transcoder.Transcode(raw)
	if err != nil {
		return nil, &StageError{Stage: StageTranscode, Err: err}
	}

	rel := RelPath(req.Datetime, req.ChannelName, req.FileID, enc.Ext)
	full := filepath.Join(p.baseDir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return nil, &StageError{Stage: StageStore, Err: err}
	}
	if err := os.WriteFile(full, enc.Bytes, 0644); err != nil {
		return nil, &StageError{Stage: StageStore, Err: err}
	}

	p.log.Info().
		Str("file", filepath.Base(rel)).
		Int("original_bytes", len(raw)).
		Int("compressed_bytes", len(enc.Bytes)).
		Int("width", enc.Width).
		Int("height", enc.Height).
		Msg("saved photo")

	return &Stored{
		FileID:         req.FileID,
		RelPath:        rel,
		OriginalSize:   int64(len(raw)),
		CompressedSize: int64(len(enc.Bytes)),
		Width:          enc.Width,
		Height:         enc.Height,
	}, nil
}

// existing returns metadata for a photo already on disk, or nil. Sizes come
// from the file itself; the original byte count is unknown at this point, so
// the stored size stands in for both.
func (p *Pipeline) existing(rel string) *Stored {
	full := filepath.Join(p.baseDir, rel)
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return nil
	}

	st := &Stored{RelPath: rel, OriginalSize: info.Size(), CompressedSize: info.Size()}
	if f, err := os.Open(full); err == nil {
		if cfg, _, err := image.DecodeConfig(f); err == nil {
			st.Width, st.Height = cfg.Width, cfg.Height
		}
		f.Close()
	}
	return st
}
