package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mm-osint/newswire/internal/classify"
	"github.com/mm-osint/newswire/internal/images"
	"github.com/mm-osint/newswire/internal/logger"
	"github.com/mm-osint/newswire/internal/metrics"
	"github.com/mm-osint/newswire/internal/models"
	"github.com/mm-osint/newswire/internal/telegram"
)

// TelegramClient is the message source the collector pulls from.
type TelegramClient interface {
	ResolveChannel(ctx context.Context, username string) (*telegram.Channel, error)
	FetchSince(ctx context.Context, channel *telegram.Channel, since time.Time, limit int) ([]telegram.Message, error)
	FetchAfter(ctx context.Context, channel *telegram.Channel, afterID, limit int) ([]telegram.Message, error)
	DownloadPhoto(ctx context.Context, photo *telegram.Photo) ([]byte, error)
	GetStatus() telegram.Status
}

// ChannelStore is the slice of channel persistence the collector needs.
type ChannelStore interface {
	GetActive(ctx context.Context) ([]models.Channel, error)
	GetByName(ctx context.Context, name string) (*models.Channel, error)
	UpdateWatermark(ctx context.Context, channelID int64, ts time.Time) error
}

// MessageStore persists classified messages.
type MessageStore interface {
	Insert(ctx context.Context, m *models.Message) (bool, error)
	FindOriginalByHash(ctx context.Context, hash string) (*models.MessageRef, error)
}

// ImageStore persists stored photo records.
type ImageStore interface {
	Insert(ctx context.Context, img *models.Image) (bool, error)
}

// RuleStore supplies the active exclusion rules for a run.
type RuleStore interface {
	GetActive(ctx context.Context) ([]models.ExclusionRule, error)
}

// PhotoPipeline downloads, compresses and stores eligible photos.
type PhotoPipeline interface {
	FetchAndStore(ctx context.Context, res *classify.Result, req images.Request) (*images.Stored, error)
}

// Options carries the collection tunables from configuration.
type Options struct {
	// StartDate is the initial fetch boundary for channels that have never
	// been collected.
	StartDate time.Time

	// MinTextLength is the minimum rune count for text-only messages.
	MinTextLength int

	// BatchSize is how many messages one history request asks for.
	BatchSize int

	// Concurrency caps the number of channels collected in parallel.
	Concurrency int
}

const (
	defaultBatchSize   = 100
	defaultConcurrency = 3
)

// Service walks channels through fetch, classify, persist and commit.
type Service struct {
	tgClient  TelegramClient
	channels  ChannelStore
	messages  MessageStore
	photos    ImageStore
	rules     RuleStore
	pipeline  PhotoPipeline
	publisher EventPublisher
	opts      Options
	log       *logger.Logger
}

func NewService(
	tgClient TelegramClient,
	channels ChannelStore,
	messages MessageStore,
	photos ImageStore,
	rules RuleStore,
	pipeline PhotoPipeline,
	publisher EventPublisher,
	opts Options,
	log *logger.Logger,
) *Service {
	return &Service{
		tgClient:  tgClient,
		channels:  channels,
		messages:  messages,
		photos:    photos,
		rules:     rules,
		pipeline:  pipeline,
		publisher: publisher,
		opts:      opts,
		log:       log,
	}
}

// GetTelegramStatus reports the state of the underlying MTProto client.
func (s *Service) GetTelegramStatus() telegram.Status {
	return s.tgClient.GetStatus()
}

// Collect executes one run over the requested channels. It is called by the
// RunManager in its own goroutine; progress is reported through the run
// object and the event stream, so there is nothing to return.
func (s *Service) Collect(ctx context.Context, run *Run, opts RunOptions) {
	chans, err := s.runChannels(ctx, opts)
	if err != nil {
		s.failRun(run, fmt.Errorf("load channels: %w", err))
		return
	}
	if len(chans) == 0 {
		s.log.Warn().Msg("collector: no channels to collect")
		run.Finish(RunCompleted)
		s.publishRun(context.Background(), RunEvent{RunID: run.ID, Status: RunCompleted})
		return
	}

	activeRules, err := s.rules.GetActive(ctx)
	if err != nil {
		s.failRun(run, fmt.Errorf("load exclusion rules: %w", err))
		return
	}

	engine := classify.NewEngine(s.opts.MinTextLength, activeRules, s.messages)

	for _, ch := range chans {
		run.Track(ch.Name)
	}
	s.publishRun(ctx, RunEvent{RunID: run.ID, Status: RunRunning})

	s.log.Info().
		Str("run_id", run.ID.String()).
		Int("channels", len(chans)).
		Int("rules", len(activeRules)).
		Msg("collector: run started")

	concurrency := s.opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for _, ch := range chans {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(ch models.Channel) {
			defer wg.Done()
			defer func() { <-sem }()
			s.collectChannel(ctx, run, engine, ch, opts.Limit)
		}(ch)
	}
	wg.Wait()

	status := RunCompleted
	if ctx.Err() != nil {
		status = RunCancelled
	}
	run.Finish(status)

	// the run context may already be cancelled here
	s.publishRun(context.Background(), RunEvent{RunID: run.ID, Status: status})

	s.log.Info().
		Str("run_id", run.ID.String()).
		Str("status", string(status)).
		Dur("duration", time.Since(run.StartedAt)).
		Msg("collector: run finished")
}

// runChannels resolves the channel set for a run: the explicit list when one
// was given, otherwise every active channel.
func (s *Service) runChannels(ctx context.Context, opts RunOptions) ([]models.Channel, error) {
	if len(opts.Channels) == 0 {
		return s.channels.GetActive(ctx)
	}

	out := make([]models.Channel, 0, len(opts.Channels))
	for _, name := range opts.Channels {
		name = strings.TrimPrefix(name, "@")
		ch, err := s.channels.GetByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if ch == nil {
			return nil, fmt.Errorf("%w: %s", ErrChannelNotRegistered, name)
		}
		out = append(out, *ch)
	}
	return out, nil
}

func (s *Service) failRun(run *Run, err error) {
	s.log.Error().Err(err).Str("run_id", run.ID.String()).Msg("collector: run failed")
	run.Finish(RunFailed)
	s.publishRun(context.Background(), RunEvent{RunID: run.ID, Status: RunFailed, Error: err.Error()})
}

// collectChannel runs the fetch/classify/persist/commit cycle for a single
// channel until it is caught up. Errors fail this channel only.
func (s *Service) collectChannel(ctx context.Context, run *Run, engine *classify.Engine, ch models.Channel, limit int) {
	start := time.Now()
	clog := s.log.With().Str("channel", ch.Name).Logger()

	run.StartChannel(ch.Name)
	s.publishChannelState(ctx, run, ch.Name)

	var counters ChannelCounters
	fail := func(err error) {
		clog.Error().Err(err).Msg("collector: channel failed")
		run.SetCounters(ch.Name, counters)
		run.FailChannel(ch.Name, err)
		metrics.ChannelRuns.WithLabelValues(ch.Name, "failed").Inc()
		metrics.ChannelRunDuration.Observe(time.Since(start).Seconds())
		s.publishChannelState(context.Background(), run, ch.Name)
	}

	resolved, err := s.tgClient.ResolveChannel(ctx, ch.Name)
	if err != nil {
		fail(fmt.Errorf("resolve channel: %w", err))
		return
	}
	if resolved.ID != ch.TelegramChannelID {
		// the username was re-registered to a different channel since setup
		fail(fmt.Errorf("channel %s resolves to id %d, registered as %d", ch.Name, resolved.ID, ch.TelegramChannelID))
		return
	}

	since := s.opts.StartDate
	if ch.LastFetchedAt != nil && ch.LastFetchedAt.After(since) {
		since = *ch.LastFetchedAt
	}

	batchSize := s.opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	afterID := 0
fetchLoop:
	for {
		if ctx.Err() != nil {
			break
		}

		run.SetState(ch.Name, StateFetching)

		var batch []telegram.Message
		if afterID == 0 {
			batch, err = s.tgClient.FetchSince(ctx, resolved, since, batchSize)
		} else {
			batch, err = s.tgClient.FetchAfter(ctx, resolved, afterID, batchSize)
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			fail(fmt.Errorf("fetch messages: %w", err))
			return
		}
		if len(batch) == 0 {
			break
		}

		counters.Fetched += len(batch)
		metrics.MessagesFetched.WithLabelValues(ch.Name).Add(float64(len(batch)))

		run.SetState(ch.Name, StateProcessing)

		var watermark time.Time
		for i := range batch {
			if ctx.Err() != nil {
				// partial batch: do not advance the watermark, the replay
				// after restart is made harmless by the conflict-skip inserts
				break fetchLoop
			}
			msg := &batch[i]
			if err := s.processMessage(ctx, engine, &ch, msg, &counters); err != nil {
				if ctx.Err() != nil {
					break fetchLoop
				}
				fail(err)
				return
			}
			if msg.Date.After(watermark) {
				watermark = msg.Date
			}
		}

		// every row of the batch is durable before the watermark moves, so a
		// crash in between re-fetches the batch instead of skipping it
		run.SetState(ch.Name, StateCommitting)
		if !watermark.IsZero() {
			if err := s.channels.UpdateWatermark(ctx, ch.TelegramChannelID, watermark); err != nil {
				fail(fmt.Errorf("advance watermark: %w", err))
				return
			}
		}

		run.SetCounters(ch.Name, counters)
		s.publishChannelState(ctx, run, ch.Name)

		afterID = batch[len(batch)-1].ID
		if limit > 0 && counters.Fetched >= limit {
			break
		}
	}

	run.SetCounters(ch.Name, counters)
	run.FinishChannel(ch.Name)

	status := "completed"
	if ctx.Err() != nil {
		status = "cancelled"
	}
	metrics.ChannelRuns.WithLabelValues(ch.Name, status).Inc()
	metrics.ChannelRunDuration.Observe(time.Since(start).Seconds())

	clog.Info().
		Int("fetched", counters.Fetched).
		Int("original", counters.Original).
		Int("duplicate", counters.Duplicate).
		Int("forwarded", counters.Forwarded).
		Int("rejected", counters.Rejected).
		Int("invalid", counters.Invalid).
		Int("image_failed", counters.ImageFailed).
		Dur("duration", time.Since(start)).
		Msg("collector: channel caught up")
	s.publishChannelState(context.Background(), run, ch.Name)
}

// processMessage classifies one message and persists the outcome. The
// returned error is fatal for the channel; per-message problems (invalid
// records, failed photo downloads) are counted and swallowed.
func (s *Service) processMessage(ctx context.Context, engine *classify.Engine, ch *models.Channel, msg *telegram.Message, counters *ChannelCounters) error {
	inc := toIncoming(msg)

	res, err := engine.Classify(ctx, inc)
	if err != nil {
		var invalid *classify.InvalidMessageError
		if errors.As(err, &invalid) {
			counters.Invalid++
			metrics.MessagesClassified.WithLabelValues(ch.Name, "invalid").Inc()
			s.log.Warn().
				Str("channel", ch.Name).
				Int64("message_id", inc.MessageID).
				Str("reason", invalid.Reason).
				Msg("collector: skipping invalid message")
			return nil
		}
		return fmt.Errorf("classify message %d: %w", inc.MessageID, err)
	}

	if res.Kind == classify.KindRejected {
		counters.Rejected++
		metrics.MessagesClassified.WithLabelValues(ch.Name, "rejected").Inc()
		return nil
	}

	row := buildRow(ch.TelegramChannelID, inc, res)
	inserted, err := s.messages.Insert(ctx, row)
	if err != nil {
		return fmt.Errorf("insert message %d: %w", inc.MessageID, err)
	}
	if !inserted {
		// replayed batch after a crash, the row is already there
		return nil
	}

	switch res.Kind {
	case classify.KindOriginal:
		counters.Original++
	case classify.KindDuplicate:
		counters.Duplicate++
	case classify.KindForwarded:
		counters.Forwarded++
	}
	metrics.MessagesClassified.WithLabelValues(ch.Name, res.Kind.String()).Inc()

	hasImage := false
	if res.DownloadPhoto && msg.Photo != nil {
		hasImage = s.storePhoto(ctx, ch, msg, res, counters)
	}

	s.publishMessage(ctx, MessageEvent{
		ChannelID:   ch.TelegramChannelID,
		ChannelName: ch.Name,
		MessageID:   inc.MessageID,
		Kind:        res.Kind.String(),
		HasImage:    hasImage,
		Datetime:    inc.Datetime,
		CollectedAt: time.Now().UTC(),
	})

	return nil
}

// storePhoto feeds one photo through the pipeline and records it. Failures
// degrade: the message row stays, the photo is skipped and counted.
func (s *Service) storePhoto(ctx context.Context, ch *models.Channel, msg *telegram.Message, res *classify.Result, counters *ChannelCounters) bool {
	photo := msg.Photo
	stored, err := s.pipeline.FetchAndStore(ctx, res, images.Request{
		ChannelName: ch.Name,
		FileID:      photo.FileID,
		Datetime:    msg.Date,
		Fetch: func(ctx context.Context) ([]byte, error) {
			return s.tgClient.DownloadPhoto(ctx, photo)
		},
	})
	if err != nil {
		counters.ImageFailed++
		stage := "unknown"
		var stageErr *images.StageError
		if errors.As(err, &stageErr) {
			stage = stageErr.Stage
		}
		metrics.ImageFailures.WithLabelValues(ch.Name, stage).Inc()
		s.log.Warn().Err(err).
			Str("channel", ch.Name).
			Int("message_id", msg.ID).
			Msg("collector: photo failed, keeping message without image")
		return false
	}
	if stored == nil {
		return false
	}

	// the message row exists by now, so the image row's reference holds
	inserted, err := s.photos.Insert(ctx, &models.Image{
		FileID:         stored.FileID,
		ChannelID:      ch.TelegramChannelID,
		MessageID:      int64(msg.ID),
		FilePath:       stored.RelPath,
		OriginalSize:   stored.OriginalSize,
		CompressedSize: stored.CompressedSize,
		Width:          stored.Width,
		Height:         stored.Height,
	})
	if err != nil {
		counters.ImageFailed++
		metrics.ImageFailures.WithLabelValues(ch.Name, images.StageStore).Inc()
		s.log.Warn().Err(err).
			Str("file_id", stored.FileID).
			Msg("collector: failed to record image")
		return false
	}
	if !inserted {
		// same file already attached to an earlier message
		return false
	}

	metrics.ImagesStored.WithLabelValues(ch.Name).Inc()
	return true
}

// toIncoming maps a fetched message onto the classifier's input shape.
func toIncoming(msg *telegram.Message) classify.Incoming {
	inc := classify.Incoming{
		ChannelID: msg.ChannelID,
		MessageID: int64(msg.ID),
		Text:      msg.Text,
		Datetime:  msg.Date,
		HasMedia:  msg.HasMedia,
		GroupedID: msg.GroupedID,
	}

	switch {
	case msg.Photo != nil:
		inc.MediaKind = classify.MediaPhoto
		inc.PhotoFileID = msg.Photo.FileID
	case msg.HasMedia:
		inc.MediaKind = classify.MediaOther
	}

	if msg.Forward != nil {
		inc.Forward = &classify.ForwardInfo{
			FromChannelID: msg.Forward.FromChannelID,
			FromMessageID: msg.Forward.FromMessageID,
		}
	}

	return inc
}

// buildRow turns a classification result into the message row to insert.
func buildRow(channelID int64, inc classify.Incoming, res *classify.Result) *models.Message {
	row := &models.Message{
		ChannelID: channelID,
		MessageID: inc.MessageID,
		Datetime:  inc.Datetime,
		Text:      res.Text,
		TextHash:  res.TextHash,
		HasMedia:  res.HasMedia,
		GroupedID: res.GroupedID,
	}

	switch res.Kind {
	case classify.KindDuplicate:
		row.IsDuplicate = true
		if res.DuplicateOf != nil {
			row.DuplicateOfChannelID = &res.DuplicateOf.ChannelID
			row.DuplicateOfMessageID = &res.DuplicateOf.MessageID
		}
	case classify.KindForwarded:
		row.IsForwarded = true
		if res.ForwardedFrom != nil {
			row.ForwardedFromChannelID = res.ForwardedFrom.FromChannelID
			row.ForwardedFromMessageID = res.ForwardedFrom.FromMessageID
		}
	}

	return row
}

func (s *Service) publishMessage(ctx context.Context, event MessageEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishMessageCollected(ctx, event); err != nil {
		s.log.Warn().Err(err).Msg("collector: failed to publish message event")
	}
}

func (s *Service) publishRun(ctx context.Context, event RunEvent) {
	if s.publisher == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	if err := s.publisher.PublishRunStatus(ctx, event); err != nil {
		s.log.Warn().Err(err).Msg("collector: failed to publish run event")
	}
}

func (s *Service) publishChannelState(ctx context.Context, run *Run, name string) {
	prog, ok := run.Progress(name)
	if !ok {
		return
	}
	s.publishRun(ctx, RunEvent{
		RunID:    run.ID,
		Status:   run.Status(),
		Channel:  name,
		State:    prog.State,
		Counters: &prog.Counters,
		Error:    prog.Error,
	})
}
