// Package feed renders the podcast RSS document.
package feed

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/eduncan911/podcast"
	"imagecaster/internal/models"
)

// DateFormat is the RSS date layout. Dates are always rendered in UTC.
const DateFormat = time.RFC1123Z

const rssOpen = `<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd" xmlns:podcast="https://podcastindex.org/namespace/1.0" xmlns:atom="http://www.w3.org/2005/Atom">`

// Options carries addresses that are not part of the stored records.
type Options struct {
	// FeedURL is the public address of the rendered feed, used for atom:link.
	FeedURL string
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escape(s string) string {
	return escaper.Replace(s)
}

// GUID returns the item guid: the imported source GUID, then the slug,
// then the internal id.
func GUID(e *models.Episode) string {
	switch {
	case e.SourceGUID != "":
		return e.SourceGUID
	case e.Slug != "":
		return e.Slug
	default:
		return e.ID
	}
}

// AudioURL prefers the stored copy and falls back to the external source.
func AudioURL(e *models.Episode) string {
	if e.AudioURL != "" {
		return e.AudioURL
	}
	return e.SourceAudioURL
}

// EpisodeURL is the public page for an episode.
func EpisodeURL(websiteURL, slug string) string {
	return strings.TrimRight(websiteURL, "/") + "/episodes/" + slug
}

// FormatDate renders t in the feed's date format.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateFormat)
}

func enclosureType(audioURL string) string {
	p := audioURL
	if u, err := url.Parse(audioURL); err == nil {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".m4a", ".aac":
		return podcast.M4A.String()
	case ".mp4":
		return podcast.MP4.String()
	case ".m4v":
		return podcast.M4V.String()
	case ".mov":
		return podcast.MOV.String()
	default:
		return podcast.MP3.String()
	}
}

// Render writes the feed for settings and the given published episodes,
// in the order given. The output is a pure function of its inputs.
func Render(settings models.PodcastSettings, episodes []models.Episode, opts Options) []byte {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(rssOpen)
	buf.WriteString("\n  <channel>\n")

	writeElement(&buf, "title", settings.Title, 4)
	writeElement(&buf, "link", settings.WebsiteURL, 4)
	writeElement(&buf, "description", settings.Description, 4)
	writeElement(&buf, "language", settings.Language, 4)
	if opts.FeedURL != "" {
		fmt.Fprintf(&buf, "    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\"/>\n", escape(opts.FeedURL))
	}
	if latest := latestPublished(episodes); latest != nil {
		writeElement(&buf, "lastBuildDate", FormatDate(*latest), 4)
	}
	writeElement(&buf, "itunes:author", settings.Author, 4)
	if settings.Author != "" || settings.Email != "" {
		buf.WriteString("    <itunes:owner>\n")
		writeElement(&buf, "itunes:name", settings.Author, 6)
		writeElement(&buf, "itunes:email", settings.Email, 6)
		buf.WriteString("    </itunes:owner>\n")
	}
	if settings.ArtworkURL != "" {
		fmt.Fprintf(&buf, "    <itunes:image href=\"%s\"/>\n", escape(settings.ArtworkURL))
	}
	if settings.Category != "" {
		fmt.Fprintf(&buf, "    <itunes:category text=\"%s\"/>\n", escape(settings.Category))
	}
	writeElement(&buf, "itunes:explicit", strconv.FormatBool(settings.Explicit), 4)

	for i := range episodes {
		writeItem(&buf, settings, &episodes[i])
	}

	buf.WriteString("  </channel>\n</rss>\n")
	return buf.Bytes()
}

func writeItem(buf *bytes.Buffer, settings models.PodcastSettings, e *models.Episode) {
	audioURL := AudioURL(e)
	episodeURL := EpisodeURL(settings.WebsiteURL, e.Slug)
	description := ExpandDescription(e.Description, Placeholders{
		EpisodeURL:     episodeURL,
		AudioURL:       audioURL,
		TranscriptURL:  e.TranscriptURL,
		ReferenceLinks: e.ReferenceLinks,
	})

	buf.WriteString("    <item>\n")
	writeElement(buf, "title", e.Title, 6)
	writeElement(buf, "description", description, 6)
	writeElement(buf, "link", episodeURL, 6)
	fmt.Fprintf(buf, "      <guid isPermaLink=\"false\">%s</guid>\n", escape(GUID(e)))
	if e.PublishedAt != nil {
		writeElement(buf, "pubDate", FormatDate(*e.PublishedAt), 6)
	}
	if audioURL != "" {
		fmt.Fprintf(buf, "      <enclosure url=\"%s\" length=\"%d\" type=\"%s\"/>\n",
			escape(audioURL), e.FileSize, enclosureType(audioURL))
	}
	if e.Duration > 0 {
		writeElement(buf, "itunes:duration", strconv.Itoa(e.Duration), 6)
	}
	if e.ArtworkURL != "" {
		fmt.Fprintf(buf, "      <itunes:image href=\"%s\"/>\n", escape(e.ArtworkURL))
	}
	if e.TranscriptURL != "" {
		fmt.Fprintf(buf, "      <podcast:transcript url=\"%s\" type=\"text/vtt\"/>\n", escape(e.TranscriptURL))
	}
	buf.WriteString("    </item>\n")
}

func writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}
	buf.WriteString(strings.Repeat(" ", indent))
	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	buf.WriteString(escape(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func latestPublished(episodes []models.Episode) *time.Time {
	var latest *time.Time
	for i := range episodes {
		if p := episodes[i].PublishedAt; p != nil && (latest == nil || p.After(*latest)) {
			latest = p
		}
	}
	return latest
}
