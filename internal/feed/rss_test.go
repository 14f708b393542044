package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"imagecaster/internal/models"
)

func testSettings() models.PodcastSettings {
	return models.PodcastSettings{
		Title:       "Weekly Show",
		Description: "A weekly show",
		Author:      "Tom",
		Email:       "tom@example.com",
		Language:    "en",
		Category:    "Comedy",
		ArtworkURL:  "https://example.com/art.jpg",
		WebsiteURL:  "https://example.com/",
	}
}

func publishedEpisode(slug string, at time.Time) models.Episode {
	return models.Episode{
		ID:          "id-" + slug,
		Slug:        slug,
		Title:       "Episode " + slug,
		Description: "<p>Notes</p>",
		AudioURL:    "https://media.example.com/episodes/" + slug + "/audio.mp3",
		Duration:    1800,
		FileSize:    28800000,
		Status:      models.StatusPublished,
		PublishedAt: &at,
	}
}

func TestGUIDPrecedence(t *testing.T) {
	e := &models.Episode{ID: "id", Slug: "slug", SourceGUID: "source"}
	assert.Equal(t, "source", GUID(e))
	e.SourceGUID = ""
	assert.Equal(t, "slug", GUID(e))
	e.Slug = ""
	assert.Equal(t, "id", GUID(e))
}

func TestAudioURLPrefersStoredCopy(t *testing.T) {
	e := &models.Episode{AudioURL: "https://media/a.mp3", SourceAudioURL: "https://elsewhere/a.mp3"}
	assert.Equal(t, "https://media/a.mp3", AudioURL(e))
	e.AudioURL = ""
	assert.Equal(t, "https://elsewhere/a.mp3", AudioURL(e))
}

func TestFormatDateIsUTC(t *testing.T) {
	loc := time.FixedZone("plus3", 3*60*60)
	at := time.Date(2024, 3, 1, 12, 30, 0, 0, loc)
	assert.Equal(t, "Fri, 01 Mar 2024 09:30:00 +0000", FormatDate(at))
}

func TestRenderParsesBack(t *testing.T) {
	newer := publishedEpisode("second", time.Date(2024, 3, 8, 9, 0, 0, 0, time.UTC))
	newer.SourceGUID = "imported-guid"
	newer.TranscriptURL = "https://media.example.com/episodes/second/transcript.vtt"
	older := publishedEpisode("first", time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))

	out := Render(testSettings(), []models.Episode{newer, older}, Options{FeedURL: "https://media.example.com/feed.xml"})

	parsed, err := gofeed.NewParser().ParseString(string(out))
	require.NoError(t, err)
	assert.Equal(t, "Weekly Show", parsed.Title)
	assert.Equal(t, "A weekly show", parsed.Description)
	require.Len(t, parsed.Items, 2)

	assert.Equal(t, "imported-guid", parsed.Items[0].GUID)
	assert.Equal(t, "first", parsed.Items[1].GUID)
	assert.Equal(t, "https://example.com/episodes/first", parsed.Items[1].Link)
	require.Len(t, parsed.Items[1].Enclosures, 1)
	assert.Equal(t, "audio/mpeg", parsed.Items[1].Enclosures[0].Type)
	assert.Equal(t, "28800000", parsed.Items[1].Enclosures[0].Length)
	require.NotNil(t, parsed.Items[0].PublishedParsed)
	assert.True(t, parsed.Items[0].PublishedParsed.Equal(*newer.PublishedAt))
	require.NotNil(t, parsed.ITunesExt)
	assert.Equal(t, "Tom", parsed.ITunesExt.Author)
}

func TestRenderFragments(t *testing.T) {
	ep := publishedEpisode("first", time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	ep.TranscriptURL = "https://media.example.com/episodes/first/transcript.vtt"
	ep.ArtworkURL = "https://example.com/first.png"
	settings := testSettings()
	settings.Title = "Tom & Jerry's \"Show\""
	out := string(Render(settings, []models.Episode{ep}, Options{FeedURL: "https://media.example.com/feed.xml"}))

	assert.True(t, strings.HasPrefix(out, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<rss version=\"2.0\""))
	assert.True(t, strings.HasSuffix(out, "  </channel>\n</rss>\n"))
	assert.Contains(t, out, "    <title>Tom &amp; Jerry&apos;s &quot;Show&quot;</title>\n")
	assert.Contains(t, out, "    <lastBuildDate>Fri, 01 Mar 2024 09:00:00 +0000</lastBuildDate>\n")
	assert.Contains(t, out, `<atom:link href="https://media.example.com/feed.xml" rel="self" type="application/rss+xml"/>`)
	assert.Contains(t, out, "      <description>&lt;p&gt;Notes&lt;/p&gt;</description>\n")
	assert.Contains(t, out, "      <guid isPermaLink=\"false\">first</guid>\n")
	assert.Contains(t, out, "      <pubDate>Fri, 01 Mar 2024 09:00:00 +0000</pubDate>\n")
	assert.Contains(t, out, `<enclosure url="https://media.example.com/episodes/first/audio.mp3" length="28800000" type="audio/mpeg"/>`)
	assert.Contains(t, out, "      <itunes:duration>1800</itunes:duration>\n")
	assert.Contains(t, out, `<itunes:image href="https://example.com/first.png"/>`)
	assert.Contains(t, out, `<podcast:transcript url="https://media.example.com/episodes/first/transcript.vtt" type="text/vtt"/>`)
	assert.Contains(t, out, "    <itunes:explicit>false</itunes:explicit>\n")
}

func TestRenderIsDeterministic(t *testing.T) {
	eps := []models.Episode{publishedEpisode("a", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))}
	assert.Equal(t, Render(testSettings(), eps, Options{}), Render(testSettings(), eps, Options{}))
}

func TestRenderEmpty(t *testing.T) {
	out := string(Render(testSettings(), nil, Options{}))
	assert.NotContains(t, out, "<item>")
	assert.NotContains(t, out, "lastBuildDate")
	assert.NotContains(t, out, "atom:link")
}

func TestRenderFallsBackToSourceAudio(t *testing.T) {
	ep := publishedEpisode("ext", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	ep.AudioURL = ""
	ep.SourceAudioURL = "https://cdn.example.com/ext.m4a?token=a&b=c"
	ep.Duration = 0
	out := string(Render(testSettings(), []models.Episode{ep}, Options{}))

	assert.Contains(t, out, `<enclosure url="https://cdn.example.com/ext.m4a?token=a&amp;b=c" length="28800000" type="audio/x-m4a"/>`)
	assert.NotContains(t, out, "itunes:duration")
}

func TestEnclosureType(t *testing.T) {
	assert.Equal(t, "audio/mpeg", enclosureType("https://x/a.mp3"))
	assert.Equal(t, "audio/mpeg", enclosureType("https://x/a"))
	assert.Equal(t, "audio/x-m4a", enclosureType("https://x/a.M4A"))
	assert.Equal(t, "video/mp4", enclosureType("https://x/a.mp4"))
}
