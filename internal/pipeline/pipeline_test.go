package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"imagecaster/internal/lifecycle"
	"imagecaster/internal/models"
	"imagecaster/internal/storage"
	"imagecaster/internal/test"
)

const mediaBase = "https://media.example.com"

type fixture struct {
	p         *Pipeline
	store     *storage.MemoryStore
	rebuilder *test.Rebuilder
	poster    *test.Poster
	clock     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     storage.NewMemoryStore(),
		rebuilder: &test.Rebuilder{},
		poster:    &test.Poster{},
		clock:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.p = New(f.store, f.rebuilder, f.poster, mediaBase, zerolog.Nop())
	f.p.now = func() time.Time { return f.clock }
	require.NoError(t, f.p.SaveSettings(context.Background(), &models.PodcastSettings{
		Title:      "Test Show",
		WebsiteURL: "https://example.com",
		Language:   "en",
	}))
	return f
}

// seed stores ep as-is and indexes it.
func (f *fixture) seed(t *testing.T, ep *models.Episode) *models.Episode {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.p.saveEpisode(ctx, ep))
	require.NoError(t, f.p.syncIndex(ctx, ep))
	return ep
}

func (f *fixture) episode(t *testing.T, id string) *models.Episode {
	t.Helper()
	ep, err := f.p.Episode(context.Background(), id)
	require.NoError(t, err)
	return ep
}

func (f *fixture) indexStatus(t *testing.T, id string) models.Status {
	t.Helper()
	ix, err := f.p.loadIndex(context.Background())
	require.NoError(t, err)
	entry := ix.Find(id)
	require.NotNil(t, entry)
	return entry.Status
}

func ptr(t time.Time) *time.Time { return &t }

// mp3 returns a constant-bitrate stream of 3843 frames at 128 kbps, 100 seconds long.
func mp3() []byte {
	const size = 417
	buf := make([]byte, size*3843)
	for i := 0; i < len(buf); i += size {
		copy(buf[i:], []byte{0xFF, 0xFB, 0x90, 0x00})
	}
	return buf
}

func TestUploadFlowMeasuresAudio(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ep, err := f.p.CreateEpisode(ctx, NewEpisodeInput{Title: "Hello World"})
	require.NoError(t, err)
	assert.Equal(t, "hello-world", ep.Slug)

	ep, err = f.p.StartUpload(ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUploading, ep.Status)
	assert.Equal(t, models.StatusUploading, f.indexStatus(t, ep.ID))

	audio := mp3()
	require.NoError(t, f.p.StoreAudio(ctx, ep, "audio.mp3", audio))
	ep, err = f.p.CompleteUpload(ctx, ep.ID, UploadResult{AudioFile: "audio.mp3"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusTranscribing, ep.Status)
	assert.Equal(t, 100, ep.Duration)
	assert.Equal(t, int64(len(audio)), ep.FileSize)
	assert.Equal(t, mediaBase+"/episodes/hello-world/audio.mp3", ep.AudioURL)
	assert.Nil(t, ep.TranscriptionLockedAt)
	assert.Equal(t, models.StatusTranscribing, f.indexStatus(t, ep.ID))
}

func TestCompleteUploadUsesSuppliedValues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ep := models.NewEpisode("given", "Given", f.clock)
	ep.Status = models.StatusProcessing
	ep.SourceAudioURL = "https://elsewhere.example.com/given.mp3"
	f.seed(t, ep)

	duration, size := 321, int64(9999)
	got, err := f.p.CompleteUpload(ctx, ep.ID, UploadResult{Duration: &duration, FileSize: &size})
	require.NoError(t, err)
	assert.Equal(t, 321, got.Duration)
	assert.Equal(t, int64(9999), got.FileSize)
	assert.Empty(t, got.AudioURL)
}

func TestCompleteUploadDeniedLeavesEpisodeAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ep := f.seed(t, models.NewEpisode("draft", "Draft", f.clock))

	_, err := f.p.CompleteUpload(ctx, ep.ID, UploadResult{AudioFile: "audio.mp3"})
	var denied *lifecycle.TransitionDeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, models.StatusDraft, denied.Current)

	stored := f.episode(t, ep.ID)
	assert.Empty(t, stored.AudioFile)
	assert.Equal(t, models.StatusDraft, stored.Status)
}

func TestSkipTranscriptionPublishesImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ep, err := f.p.CreateEpisode(ctx, NewEpisodeInput{
		Title:             "Right Now",
		PublishAt:         ptr(f.clock.Add(-time.Minute)),
		SkipTranscription: true,
		SocialPostEnabled: true,
	})
	require.NoError(t, err)
	_, err = f.p.StartUpload(ctx, ep.ID)
	require.NoError(t, err)
	require.NoError(t, f.p.StoreAudio(ctx, ep, "audio.mp3", mp3()))

	ep, err = f.p.CompleteUpload(ctx, ep.ID, UploadResult{AudioFile: "audio.mp3"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, ep.Status)
	require.NotNil(t, ep.PublishedAt)
	assert.True(t, ep.PublishedAt.Equal(f.clock))

	assert.Equal(t, []string{ep.ID}, f.poster.Posted)
	assert.NotNil(t, f.episode(t, ep.ID).SocialPostedAt)
	assert.Equal(t, 1, f.rebuilder.Calls)

	feedXML, err := f.store.Get(ctx, storage.FeedKey)
	require.NoError(t, err)
	assert.Contains(t, string(feedXML), "<guid isPermaLink=\"false\">right-now</guid>")
}

func TestSocialFailureDoesNotBlockPublication(t *testing.T) {
	f := newFixture(t)
	f.poster.Err = errors.New("telegram is down")
	f.rebuilder.Err = errors.New("queue is down")
	ctx := context.Background()

	ep := models.NewEpisode("post", "Post", f.clock)
	ep.Status = models.StatusUploading
	ep.SkipTranscription = true
	ep.SocialPostEnabled = true
	ep.PublishAt = ptr(f.clock)
	f.seed(t, ep)

	duration := 10
	got, err := f.p.CompleteUpload(ctx, ep.ID, UploadResult{Duration: &duration})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, got.Status)
	assert.Nil(t, f.episode(t, ep.ID).SocialPostedAt)
	assert.Equal(t, models.StatusPublished, f.indexStatus(t, ep.ID))
}

func TestTranscriptionLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ep := models.NewEpisode("locked", "Locked", f.clock)
	ep.Status = models.StatusTranscribing
	f.seed(t, ep)

	_, err := f.p.AcquireTranscriptionLock(ctx, ep.ID)
	require.NoError(t, err)
	_, err = f.p.AcquireTranscriptionLock(ctx, ep.ID)
	assert.ErrorIs(t, err, lifecycle.ErrLockConflict)

	pending, err := f.p.PendingTranscriptions(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	f.clock = f.clock.Add(lifecycle.LockTimeout)
	pending, err = f.p.PendingTranscriptions(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	_, err = f.p.AcquireTranscriptionLock(ctx, ep.ID)
	require.NoError(t, err)

	got, err := f.p.ReleaseTranscriptionLock(ctx, ep.ID)
	require.NoError(t, err)
	assert.Nil(t, got.TranscriptionLockedAt)
	_, err = f.p.ReleaseTranscriptionLock(ctx, ep.ID)
	assert.NoError(t, err)
}

func TestCompleteTranscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ep := models.NewEpisode("talk", "Talk", f.clock)
	ep.Status = models.StatusTranscribing
	ep.TranscriptionLockedAt = ptr(f.clock)
	f.seed(t, ep)

	_, err := f.p.CompleteTranscription(ctx, ep.ID)
	assert.ErrorIs(t, err, ErrTranscriptMissing)
	assert.Equal(t, models.StatusTranscribing, f.episode(t, ep.ID).Status)

	require.NoError(t, f.store.Put(ctx, storage.TranscriptSourceKey("talk"), []byte(`[{"start":0,"end":"x","text":"a"}]`), "application/json"))
	_, err = f.p.CompleteTranscription(ctx, ep.ID)
	assert.ErrorIs(t, err, ErrInvalidTranscript)

	require.NoError(t, f.store.Put(ctx, storage.TranscriptSourceKey("talk"),
		[]byte(`{"segments":[{"start":0,"end":1.25,"text":"Welcome","speaker":"Host"}]}`), "application/json"))
	got, err := f.p.CompleteTranscription(ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, got.Status)
	assert.Nil(t, got.TranscriptionLockedAt)
	assert.Equal(t, mediaBase+"/episodes/talk/transcript.vtt", got.TranscriptURL)

	vtt, err := f.store.Get(ctx, storage.TranscriptKey("talk"))
	require.NoError(t, err)
	assert.Equal(t, "WEBVTT\n\n1\n00:00:00.000 --> 00:00:01.250\n<v Host>Welcome\n\n", string(vtt))
}

func TestCompleteTranscriptionDeniedBeforeReadingArtifact(t *testing.T) {
	f := newFixture(t)
	ep := f.seed(t, models.NewEpisode("idle", "Idle", f.clock))

	_, err := f.p.CompleteTranscription(context.Background(), ep.ID)
	var denied *lifecycle.TransitionDeniedError
	assert.True(t, errors.As(err, &denied))
}

func TestFailAndRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ep := models.NewEpisode("flaky", "Flaky", f.clock)
	ep.Status = models.StatusTranscribing
	ep.AudioFile = "audio.mp3"
	f.seed(t, ep)

	got, err := f.p.FailTranscription(ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, models.StatusFailed, f.indexStatus(t, ep.ID))

	got, err = f.p.Retry(ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusTranscribing, got.Status)

	silent := models.NewEpisode("silent", "Silent", f.clock)
	silent.Status = models.StatusFailed
	f.seed(t, silent)
	_, err = f.p.Retry(ctx, silent.ID)
	assert.ErrorIs(t, err, lifecycle.ErrNoAudioSource)
}

func scheduled(f *fixture, slug string, at time.Time) *models.Episode {
	ep := models.NewEpisode(slug, strings.ToUpper(slug), f.clock)
	ep.Status = models.StatusScheduled
	ep.PublishAt = ptr(at)
	return ep
}

func TestPublishDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	soon := f.seed(t, scheduled(f, "soon", f.clock.Add(time.Hour)))
	later := f.seed(t, scheduled(f, "later", f.clock.Add(2*time.Hour)))
	f.seed(t, models.NewEpisode("draft", "Draft", f.clock))

	report, err := f.p.PublishDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	assert.Empty(t, report.Published)
	assert.Equal(t, 0, f.rebuilder.Calls)

	f.clock = f.clock.Add(90 * time.Minute)
	report, err = f.p.PublishDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{soon.ID}, report.Published)
	assert.Empty(t, report.Failed)
	assert.Equal(t, 1, f.rebuilder.Calls)
	assert.Equal(t, models.StatusPublished, f.indexStatus(t, soon.ID))
	assert.Equal(t, models.StatusScheduled, f.episode(t, later.ID).Status)

	report, err = f.p.PublishDue(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Published)
	assert.Equal(t, 1, f.rebuilder.Calls)
}

func TestPublishDueContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	broken := f.seed(t, scheduled(f, "broken", f.clock.Add(-time.Hour)))
	ok := f.seed(t, scheduled(f, "ok", f.clock.Add(-time.Hour)))
	require.NoError(t, f.store.Put(ctx, storage.EpisodeKey("broken"), []byte("{not json"), "application/json"))

	report, err := f.p.PublishDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{ok.ID}, report.Published)
	require.Contains(t, report.Failed, broken.ID)
	assert.Equal(t, 1, f.rebuilder.Calls)
}

func published(f *fixture, slug string, at time.Time) *models.Episode {
	ep := models.NewEpisode(slug, slug, f.clock)
	ep.Status = models.StatusPublished
	ep.PublishedAt = ptr(at)
	ep.AudioURL = mediaBase + "/episodes/" + slug + "/audio.mp3"
	return ep
}

func TestRegenerateFeedOrdersNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := 24 * time.Hour
	f.seed(t, published(f, "old", f.clock.Add(-3*day)))
	f.seed(t, published(f, "new", f.clock.Add(-day)))
	f.seed(t, published(f, "tie-b", f.clock.Add(-2*day)))
	f.seed(t, published(f, "tie-a", f.clock.Add(-2*day)))
	f.seed(t, scheduled(f, "future", f.clock.Add(day)))

	// A stale index entry must not hide or leak an episode.
	ix, err := f.p.loadIndex(ctx)
	require.NoError(t, err)
	ix.FindSlug("old").Status = models.StatusDraft
	ix.FindSlug("future").Status = models.StatusPublished
	require.NoError(t, f.p.saveIndex(ctx, ix))

	require.NoError(t, f.p.RegenerateFeed(ctx))
	body, err := f.store.Get(ctx, storage.FeedKey)
	require.NoError(t, err)
	out := string(body)

	var positions []int
	for _, slug := range []string{"new", "tie-a", "tie-b", "old"} {
		pos := strings.Index(out, ">"+slug+"</guid>")
		require.NotEqual(t, -1, pos, slug)
		positions = append(positions, pos)
	}
	assert.IsIncreasing(t, positions)
	assert.NotContains(t, out, ">future</guid>")
	assert.Contains(t, out, `<atom:link href="`+mediaBase+`/feed.xml"`)
}

func TestRegenerateFeedNeedsSettings(t *testing.T) {
	store := storage.NewMemoryStore()
	p := New(store, &test.Rebuilder{}, &test.Poster{}, mediaBase, zerolog.Nop())
	assert.ErrorIs(t, p.RegenerateFeed(context.Background()), ErrSettingsMissing)
}

func TestRenameSlug(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ep := models.NewEpisode("old-name", "Old", f.clock)
	ep.AudioFile = "audio.mp3"
	ep.AudioURL = mediaBase + "/episodes/old-name/audio.mp3"
	f.seed(t, ep)
	require.NoError(t, f.store.Put(ctx, storage.AudioKey("old-name", "audio.mp3"), []byte("mp3"), "audio/mpeg"))
	f.seed(t, models.NewEpisode("taken", "Taken", f.clock))

	got, err := f.p.RenameSlug(ctx, ep.ID, "Nouveau Épisode!")
	require.NoError(t, err)
	assert.Equal(t, "nouveau-episode", got.Slug)
	assert.Equal(t, mediaBase+"/episodes/nouveau-episode/audio.mp3", got.AudioURL)

	keys, err := f.store.List(ctx, "episodes/old-name/")
	require.NoError(t, err)
	assert.Empty(t, keys)
	audio, err := f.store.Get(ctx, storage.AudioKey("nouveau-episode", "audio.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "mp3", string(audio))

	ix, err := f.p.loadIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, "nouveau-episode", ix.Find(ep.ID).Slug)
	assert.Equal(t, "nouveau-episode", f.episode(t, ep.ID).Slug)

	_, err = f.p.RenameSlug(ctx, ep.ID, "taken")
	assert.ErrorIs(t, err, ErrSlugTaken)
	_, err = f.p.RenameSlug(ctx, ep.ID, "!!!")
	assert.ErrorIs(t, err, ErrInvalidSlug)
}

func TestRenameSlugOnlyForDrafts(t *testing.T) {
	f := newFixture(t)
	ep := f.seed(t, scheduled(f, "fixed", f.clock.Add(time.Hour)))

	_, err := f.p.RenameSlug(context.Background(), ep.ID, "moved")
	var denied *lifecycle.TransitionDeniedError
	require.True(t, errors.As(err, &denied))
	ok, err := storage.Exists(context.Background(), f.store, storage.EpisodeKey("fixed"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Hello World":          "hello-world",
		"  Crème brûlée #42  ": "creme-brulee-42",
		"Ça va?":               "ca-va",
		"---":                  "",
		"Already-a-slug":       "already-a-slug",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestCreateEpisodeSlugs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.p.CreateEpisode(ctx, NewEpisodeInput{Title: "Same Title"})
	require.NoError(t, err)
	second, err := f.p.CreateEpisode(ctx, NewEpisodeInput{Title: "Same Title"})
	require.NoError(t, err)
	assert.Equal(t, "same-title", first.Slug)
	assert.Equal(t, "same-title-2", second.Slug)

	_, err = f.p.CreateEpisode(ctx, NewEpisodeInput{Title: "Explicit", Slug: "same-title"})
	assert.ErrorIs(t, err, ErrSlugTaken)
	_, err = f.p.CreateEpisode(ctx, NewEpisodeInput{Title: "Explicit", Slug: "Bad Slug"})
	assert.ErrorIs(t, err, ErrInvalidSlug)

	entries, err := f.p.Episodes(ctx, models.StatusDraft)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestDefaultTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tmpl, err := f.p.DefaultTemplate(ctx)
	require.NoError(t, err)
	assert.Nil(t, tmpl)

	require.NoError(t, storage.PutJSON(ctx, f.store, storage.TemplatesKey, []models.DescriptionTemplate{
		{ID: "t1", Name: "Plain", Content: "Plain notes"},
		{ID: "t2", Name: "Links", Content: "<p>{{REFERENCE_LINKS}}</p>", IsDefault: true},
	}))
	tmpl, err = f.p.DefaultTemplate(ctx)
	require.NoError(t, err)
	require.NotNil(t, tmpl)
	assert.Equal(t, "t2", tmpl.ID)

	ep, err := f.p.CreateEpisode(ctx, NewEpisodeInput{Title: "Templated"})
	require.NoError(t, err)
	assert.Equal(t, "<p>{{REFERENCE_LINKS}}</p>", ep.Description)

	ep, err = f.p.CreateEpisode(ctx, NewEpisodeInput{Title: "Custom", Description: "Mine"})
	require.NoError(t, err)
	assert.Equal(t, "Mine", ep.Description)
}

func TestEpisodeNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.p.StartUpload(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrEpisodeNotFound)
}
