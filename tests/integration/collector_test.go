package integration

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mm-osint/newswire/internal/collector"
	"github.com/mm-osint/newswire/internal/database"
	"github.com/mm-osint/newswire/internal/images"
	"github.com/mm-osint/newswire/internal/logger"
	"github.com/mm-osint/newswire/internal/migrator"
	"github.com/mm-osint/newswire/internal/models"
	"github.com/mm-osint/newswire/internal/repository"
	"github.com/mm-osint/newswire/internal/telegram"
	"github.com/mm-osint/newswire/migrations"
)

// MockTGClient serves staged messages the way the real client pages history:
// a date-bounded first page, then id-bounded continuation pages. It ignores
// the since bound on purpose and always serves everything staged; overlap
// between runs is exactly what the conflict-skip inserts have to absorb.
type MockTGClient struct {
	Channel  *telegram.Channel
	Messages []telegram.Message
	Photos   map[string][]byte

	SinceSeen []time.Time
	Downloads int
}

func (m *MockTGClient) ResolveChannel(ctx context.Context, username string) (*telegram.Channel, error) {
	if m.Channel == nil {
		return nil, fmt.Errorf("channel %s not found", username)
	}
	return m.Channel, nil
}

func (m *MockTGClient) FetchSince(ctx context.Context, channel *telegram.Channel, since time.Time, limit int) ([]telegram.Message, error) {
	m.SinceSeen = append(m.SinceSeen, since)
	out := append([]telegram.Message(nil), m.Messages...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockTGClient) FetchAfter(ctx context.Context, channel *telegram.Channel, afterID, limit int) ([]telegram.Message, error) {
	var out []telegram.Message
	for _, msg := range m.Messages {
		if msg.ID > afterID {
			out = append(out, msg)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockTGClient) DownloadPhoto(ctx context.Context, photo *telegram.Photo) ([]byte, error) {
	raw, ok := m.Photos[photo.FileID]
	if !ok {
		return nil, fmt.Errorf("no staged bytes for photo %s", photo.FileID)
	}
	m.Downloads++
	return raw, nil
}

func (m *MockTGClient) GetStatus() telegram.Status {
	return telegram.StatusReady
}

// MockPublisher records published events in memory.
type MockPublisher struct {
	Messages []collector.MessageEvent
	Runs     []collector.RunEvent
}

func (p *MockPublisher) PublishMessageCollected(ctx context.Context, event collector.MessageEvent) error {
	p.Messages = append(p.Messages, event)
	return nil
}

func (p *MockPublisher) PublishRunStatus(ctx context.Context, event collector.RunEvent) error {
	p.Runs = append(p.Runs, event)
	return nil
}

// testJPEG renders a small solid-color JPEG, enough for the transcoder to
// decode and re-encode.
func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 180, G: 40, B: 40, A: 255}}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestEndToEnd_Collection(t *testing.T) {
	// this test requires database
	if os.Getenv("INTEGRATION_TEST") == "" {
		t.Skip("Skipping integration test; set INTEGRATION_TEST=1 to run (WARNING: wipes database)")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	logger.Init("debug", "")
	log := logger.Get()

	ctx := context.Background()
	db, err := database.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect to db: %v", err)
	}
	defer db.Close()

	dropTables(t, db)
	runMigrations(t, db)

	channelsRepo := repository.NewChannelsRepository(db.Pool)
	messagesRepo := repository.NewMessagesRepository(db.Pool)
	imagesRepo := repository.NewImagesRepository(db.Pool)
	rulesRepo := repository.NewRulesRepository(db.Pool)

	// register the channel the run will collect
	channelID := int64(1001234567)
	display := "Mizzima Daily"
	err = channelsRepo.Create(ctx, &models.Channel{
		TelegramChannelID: channelID,
		Name:              "mizzima_daily",
		DisplayName:       &display,
		IsActive:          true,
	})
	if err != nil {
		t.Fatalf("failed to register channel: %v", err)
	}

	// one active exclusion rule, to prove matching messages never land
	desc := "telegram casino spam"
	err = rulesRepo.Create(ctx, &models.ExclusionRule{
		RuleType:    models.RuleTypeContains,
		Pattern:     "lucky draw",
		IsActive:    true,
		Description: &desc,
	})
	if err != nil {
		t.Fatalf("failed to create exclusion rule: %v", err)
	}

	// staged history: original, duplicate, forward, too short, excluded,
	// original with photo
	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	storyA := "နေပြည်တော်တွင် ယနေ့နံနက်ပိုင်းက လျှပ်စစ်ဓာတ်အား ပြတ်တောက်မှုများ ဆက်တိုက်ဖြစ်ပွားနေပြီး ဒေသခံများ အခက်အခဲကြုံတွေ့နေရသည်။"
	storyB := "စစ်ကိုင်းတိုင်းအတွင်း မိုးသည်းထန်စွာရွာသွန်းမှုကြောင့် မြစ်ရေမြင့်တက်လာကာ ကျေးရွာအချို့ ရေဘေးကြုံနေရကြောင်း သိရသည်။"
	caption := "ရန်ကုန်မြို့ လမ်းမတော်မြို့နယ်တွင် မီးလောင်မှုဖြစ်ပွားခဲ့ပြီး မီးသတ်တပ်ဖွဲ့ဝင်များ ငြှိမ်းသတ်နိုင်ခဲ့ကြောင်း သတင်းရရှိသည်။"
	spam := "Mega lucky draw weekend!!! Join our telegram casino group now and win one million kyat instantly, limited slots available."

	fwdChannel := int64(1009876543)
	fwdMessage := int64(42)
	photo := &telegram.Photo{
		FileID:     "6012345678901234567",
		ID:         6012345678901234567,
		AccessHash: 778811,
		ThumbType:  "y",
	}

	msgs := []telegram.Message{
		{ID: 100, ChannelID: channelID, Text: storyA, Date: base},
		{ID: 101, ChannelID: channelID, Text: storyA, Date: base.Add(5 * time.Minute)},
		{ID: 102, ChannelID: channelID, Text: storyB, Date: base.Add(10 * time.Minute),
			Forward: &telegram.ForwardHeader{FromChannelID: &fwdChannel, FromMessageID: &fwdMessage}},
		{ID: 103, ChannelID: channelID, Text: "ဟုတ်ကဲ့", Date: base.Add(15 * time.Minute)},
		{ID: 104, ChannelID: channelID, Text: spam, Date: base.Add(20 * time.Minute)},
		{ID: 105, ChannelID: channelID, Text: caption, Date: base.Add(25 * time.Minute),
			HasMedia: true, Photo: photo},
	}

	tgClient := &MockTGClient{
		Channel: &telegram.Channel{
			ID:         channelID,
			AccessHash: 778899,
			Username:   "mizzima_daily",
			Title:      "Mizzima Daily",
		},
		Messages: msgs,
		Photos:   map[string][]byte{photo.FileID: testJPEG(t, 64, 48)},
	}
	publisher := &MockPublisher{}

	mediaDir := t.TempDir()
	pipeline := images.NewPipeline(mediaDir, images.NewTranscoder(1280, 75, true), log.Component("images"))

	startDate := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := collector.NewService(
		tgClient,
		channelsRepo,
		messagesRepo,
		imagesRepo,
		rulesRepo,
		pipeline,
		publisher,
		collector.Options{
			StartDate:     startDate,
			MinTextLength: 50,
			BatchSize:     50,
			Concurrency:   2,
		},
		log,
	)

	// first run
	run := collector.NewRun()
	svc.Collect(ctx, run, collector.RunOptions{Channels: []string{"@mizzima_daily"}})

	snap := run.Snapshot()
	if snap.Status != collector.RunCompleted {
		t.Fatalf("run status = %s, want %s", snap.Status, collector.RunCompleted)
	}
	if len(snap.Channels) != 1 {
		t.Fatalf("run channels = %d, want 1", len(snap.Channels))
	}
	got := snap.Channels[0].Counters
	want := collector.ChannelCounters{Fetched: 6, Original: 2, Duplicate: 1, Forwarded: 1, Rejected: 2}
	if got != want {
		t.Errorf("first run counters = %+v, want %+v", got, want)
	}

	// original row
	orig, err := messagesRepo.GetByID(ctx, channelID, 100)
	if err != nil {
		t.Fatalf("GetByID(100) error: %v", err)
	}
	if orig == nil {
		t.Fatal("message 100 should exist")
	}
	if orig.IsDuplicate || orig.IsForwarded {
		t.Errorf("message 100 flags = dup:%v fwd:%v, want original", orig.IsDuplicate, orig.IsForwarded)
	}
	if orig.Text == nil || *orig.Text != storyA {
		t.Error("message 100 should keep its text")
	}
	if orig.TextHash == nil {
		t.Error("message 100 should carry a text hash")
	}

	// duplicate row points at the first-seen original
	dup, err := messagesRepo.GetByID(ctx, channelID, 101)
	if err != nil {
		t.Fatalf("GetByID(101) error: %v", err)
	}
	if dup == nil {
		t.Fatal("message 101 should exist")
	}
	if !dup.IsDuplicate {
		t.Error("message 101 should be marked duplicate")
	}
	if dup.DuplicateOfChannelID == nil || *dup.DuplicateOfChannelID != channelID ||
		dup.DuplicateOfMessageID == nil || *dup.DuplicateOfMessageID != 100 {
		t.Errorf("message 101 duplicate_of = %v/%v, want %d/100", dup.DuplicateOfChannelID, dup.DuplicateOfMessageID, channelID)
	}
	if dup.Text != nil {
		t.Error("duplicate rows should not repeat the text")
	}

	// forward row keeps the origin, not the content
	fwd, err := messagesRepo.GetByID(ctx, channelID, 102)
	if err != nil {
		t.Fatalf("GetByID(102) error: %v", err)
	}
	if fwd == nil {
		t.Fatal("message 102 should exist")
	}
	if !fwd.IsForwarded {
		t.Error("message 102 should be marked forwarded")
	}
	if fwd.ForwardedFromChannelID == nil || *fwd.ForwardedFromChannelID != fwdChannel ||
		fwd.ForwardedFromMessageID == nil || *fwd.ForwardedFromMessageID != fwdMessage {
		t.Errorf("message 102 forwarded_from = %v/%v, want %d/%d",
			fwd.ForwardedFromChannelID, fwd.ForwardedFromMessageID, fwdChannel, fwdMessage)
	}

	// rejected messages leave no rows
	for _, id := range []int64{103, 104} {
		row, err := messagesRepo.GetByID(ctx, channelID, id)
		if err != nil {
			t.Fatalf("GetByID(%d) error: %v", id, err)
		}
		if row != nil {
			t.Errorf("message %d was rejected and should not be persisted", id)
		}
	}

	// photo went through the pipeline onto disk
	stored, err := imagesRepo.GetByMessage(ctx, channelID, 105)
	if err != nil {
		t.Fatalf("GetByMessage(105) error: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("images for message 105 = %d, want 1", len(stored))
	}
	img := stored[0]
	if img.FileID != photo.FileID {
		t.Errorf("image file_id = %s, want %s", img.FileID, photo.FileID)
	}
	if img.Width != 64 || img.Height != 48 {
		t.Errorf("image dimensions = %dx%d, want 64x48", img.Width, img.Height)
	}
	info, err := os.Stat(filepath.Join(mediaDir, img.FilePath))
	if err != nil {
		t.Fatalf("stored photo missing on disk: %v", err)
	}
	if info.Size() != img.CompressedSize {
		t.Errorf("file size = %d, recorded compressed size = %d", info.Size(), img.CompressedSize)
	}
	if tgClient.Downloads != 1 {
		t.Errorf("photo downloads = %d, want 1", tgClient.Downloads)
	}

	// watermark sits on the newest processed message
	ch, err := channelsRepo.GetByName(ctx, "mizzima_daily")
	if err != nil {
		t.Fatalf("GetByName error: %v", err)
	}
	firstWatermark := base.Add(25 * time.Minute)
	if ch.LastFetchedAt == nil || !ch.LastFetchedAt.Equal(firstWatermark) {
		t.Errorf("watermark = %v, want %v", ch.LastFetchedAt, firstWatermark)
	}
	if len(tgClient.SinceSeen) != 1 || !tgClient.SinceSeen[0].Equal(startDate) {
		t.Errorf("first fetch bound = %v, want configured start date %v", tgClient.SinceSeen, startDate)
	}

	// events: one per persisted message, none for rejects
	if len(publisher.Messages) != 4 {
		t.Errorf("message events = %d, want 4", len(publisher.Messages))
	}
	kinds := map[string]int{}
	for _, ev := range publisher.Messages {
		kinds[ev.Kind]++
		if ev.MessageID == 105 && !ev.HasImage {
			t.Error("event for message 105 should report the stored image")
		}
	}
	if kinds["original"] != 2 || kinds["duplicate"] != 1 || kinds["forwarded"] != 1 {
		t.Errorf("event kinds = %v", kinds)
	}
	if len(publisher.Runs) == 0 || publisher.Runs[len(publisher.Runs)-1].Status != collector.RunCompleted {
		t.Error("last run event should report completion")
	}

	// second run: the mock replays the full history plus two new messages,
	// one fresh story and one duplicate of message 100
	storyD := "မန္တလေးတိုင်းဒေသကြီးအတွင်း ကုန်စျေးနှုန်းများ ဆက်လက်မြင့်တက်နေပြီး စားသုံးသူများ ဝန်ထုပ်ဝန်ပိုးဖြစ်နေကြောင်း ဈေးသည်များက ပြောသည်။"
	tgClient.Messages = append(msgs,
		telegram.Message{ID: 106, ChannelID: channelID, Text: storyD, Date: base.Add(30 * time.Minute)},
		telegram.Message{ID: 107, ChannelID: channelID, Text: storyA, Date: base.Add(35 * time.Minute)},
	)

	run2 := collector.NewRun()
	svc.Collect(ctx, run2, collector.RunOptions{Channels: []string{"mizzima_daily"}})

	snap2 := run2.Snapshot()
	if snap2.Status != collector.RunCompleted {
		t.Fatalf("2nd run status = %s, want %s", snap2.Status, collector.RunCompleted)
	}
	got2 := snap2.Channels[0].Counters
	// replayed rows conflict on insert and count nowhere; rejects are never
	// persisted, so the replay counts them again
	want2 := collector.ChannelCounters{Fetched: 8, Original: 1, Duplicate: 1, Rejected: 2}
	if got2 != want2 {
		t.Errorf("2nd run counters = %+v, want %+v", got2, want2)
	}

	// the second run resumed from the stored watermark
	if len(tgClient.SinceSeen) != 2 || !tgClient.SinceSeen[1].Equal(firstWatermark) {
		t.Errorf("2nd fetch bound = %v, want watermark %v", tgClient.SinceSeen, firstWatermark)
	}

	// replay added no rows beyond the two new messages, and the photo was
	// not fetched again
	var totalMessages int
	if err := db.Pool.QueryRow(ctx, "SELECT count(*) FROM messages").Scan(&totalMessages); err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if totalMessages != 6 {
		t.Errorf("messages in db = %d, want 6", totalMessages)
	}
	if tgClient.Downloads != 1 {
		t.Errorf("photo downloads after replay = %d, want 1", tgClient.Downloads)
	}

	late, err := messagesRepo.GetByID(ctx, channelID, 107)
	if err != nil {
		t.Fatalf("GetByID(107) error: %v", err)
	}
	if late == nil || !late.IsDuplicate || late.DuplicateOfMessageID == nil || *late.DuplicateOfMessageID != 100 {
		t.Error("message 107 should be a duplicate of message 100")
	}

	ch, err = channelsRepo.GetByName(ctx, "mizzima_daily")
	if err != nil {
		t.Fatalf("GetByName error: %v", err)
	}
	if ch.LastFetchedAt == nil || !ch.LastFetchedAt.Equal(base.Add(35*time.Minute)) {
		t.Errorf("watermark after 2nd run = %v, want %v", ch.LastFetchedAt, base.Add(35*time.Minute))
	}

	if len(publisher.Messages) != 6 {
		t.Errorf("message events after 2nd run = %d, want 6", len(publisher.Messages))
	}
}

func TestEndToEnd_ChannelIdentityMismatch(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") == "" {
		t.Skip("Skipping integration test; set INTEGRATION_TEST=1 to run (WARNING: wipes database)")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	logger.Init("debug", "")
	log := logger.Get()

	ctx := context.Background()
	db, err := database.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect to db: %v", err)
	}
	defer db.Close()

	dropTables(t, db)
	runMigrations(t, db)

	channelsRepo := repository.NewChannelsRepository(db.Pool)
	messagesRepo := repository.NewMessagesRepository(db.Pool)
	imagesRepo := repository.NewImagesRepository(db.Pool)
	rulesRepo := repository.NewRulesRepository(db.Pool)

	err = channelsRepo.Create(ctx, &models.Channel{
		TelegramChannelID: 1001234567,
		Name:              "mizzima_daily",
		IsActive:          true,
	})
	if err != nil {
		t.Fatalf("failed to register channel: %v", err)
	}

	// the username now resolves to a different channel id, as happens when
	// a handle is dropped and re-registered by someone else
	tgClient := &MockTGClient{
		Channel: &telegram.Channel{ID: 5555, AccessHash: 1, Username: "mizzima_daily", Title: "Impostor"},
		Messages: []telegram.Message{
			{ID: 1, ChannelID: 5555, Text: "မူရင်းချန်နယ်မဟုတ်သော နေရာမှ စာတိုတစ်စောင်ဖြစ်ပြီး သိမ်းဆည်းခြင်းမပြုသင့်ပါ။", Date: time.Now().UTC()},
		},
	}

	pipeline := images.NewPipeline(t.TempDir(), images.NewTranscoder(1280, 75, true), log.Component("images"))
	svc := collector.NewService(
		tgClient, channelsRepo, messagesRepo, imagesRepo, rulesRepo,
		pipeline, &MockPublisher{},
		collector.Options{StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), MinTextLength: 50},
		log,
	)

	run := collector.NewRun()
	svc.Collect(ctx, run, collector.RunOptions{Channels: []string{"mizzima_daily"}})

	snap := run.Snapshot()
	if snap.Status != collector.RunCompleted {
		t.Fatalf("run status = %s, want %s", snap.Status, collector.RunCompleted)
	}
	if len(snap.Channels) != 1 {
		t.Fatalf("run channels = %d, want 1", len(snap.Channels))
	}
	if snap.Channels[0].State != collector.StateFailed {
		t.Errorf("channel state = %s, want %s", snap.Channels[0].State, collector.StateFailed)
	}
	if snap.Channels[0].Error == "" {
		t.Error("channel should carry the mismatch error")
	}

	// nothing was fetched or persisted from the impostor
	var totalMessages int
	if err := db.Pool.QueryRow(ctx, "SELECT count(*) FROM messages").Scan(&totalMessages); err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if totalMessages != 0 {
		t.Errorf("messages in db = %d, want 0", totalMessages)
	}

	ch, err := channelsRepo.GetByName(ctx, "mizzima_daily")
	if err != nil {
		t.Fatalf("GetByName error: %v", err)
	}
	if ch.LastFetchedAt != nil {
		t.Errorf("watermark = %v, want nil", ch.LastFetchedAt)
	}
}

func dropTables(t *testing.T, db *database.DB) {
	ctx := context.Background()
	_, err := db.Pool.Exec(ctx, `
		DROP TABLE IF EXISTS bookmarks CASCADE;
		DROP TABLE IF EXISTS images CASCADE;
		DROP TABLE IF EXISTS messages CASCADE;
		DROP TABLE IF EXISTS exclusion_rules CASCADE;
		DROP TABLE IF EXISTS channels CASCADE;
		DROP TABLE IF EXISTS goose_db_version CASCADE;
	`)
	if err != nil {
		t.Fatalf("failed to drop tables: %v", err)
	}
}

func runMigrations(t *testing.T, db *database.DB) {
	mig, err := migrator.NewWithFS(migrations.FS)
	if err != nil {
		t.Fatalf("failed to create migrator: %v", err)
	}
	if err := mig.Up(context.Background(), db.Pool); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
}
