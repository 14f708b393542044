package feed

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"imagecaster/internal/models"
)

const (
	PlaceholderEpisodeURL     = "{{EPISODE_URL}}"
	PlaceholderAudioURL       = "{{AUDIO_URL}}"
	PlaceholderTranscriptURL  = "{{TRANSCRIPT_URL}}"
	PlaceholderReferenceLinks = "{{REFERENCE_LINKS}}"
)

// Placeholders holds the values substituted into an episode description.
type Placeholders struct {
	EpisodeURL     string
	AudioURL       string
	TranscriptURL  string
	ReferenceLinks []models.ReferenceLink
}

// Go's regexp has no backreferences, so there is one pattern per tag.
var wrappedReferenceLinks = func() []*regexp.Regexp {
	tags := []string{"p", "div", "li", "section", "blockquote", "h1", "h2", "h3", "h4", "h5", "h6"}
	out := make([]*regexp.Regexp, 0, len(tags))
	for _, tag := range tags {
		out = append(out, regexp.MustCompile(fmt.Sprintf(`(?i)<%[1]s(?:\s[^>]*)?>\s*%[2]s\s*</%[1]s>`, tag, regexp.QuoteMeta(PlaceholderReferenceLinks))))
	}
	return out
}()

// ExpandDescription substitutes the description placeholders. With no
// reference links, a block element holding only the links placeholder is
// removed along with it.
func ExpandDescription(description string, p Placeholders) string {
	if len(p.ReferenceLinks) == 0 {
		for _, re := range wrappedReferenceLinks {
			description = re.ReplaceAllString(description, "")
		}
	}
	return strings.NewReplacer(
		PlaceholderEpisodeURL, p.EpisodeURL,
		PlaceholderAudioURL, p.AudioURL,
		PlaceholderTranscriptURL, p.TranscriptURL,
		PlaceholderReferenceLinks, referenceLinksHTML(p.ReferenceLinks),
	).Replace(description)
}

func referenceLinksHTML(links []models.ReferenceLink) string {
	if len(links) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("<ul>")
	for _, link := range links {
		title := link.Title
		if title == "" {
			title = link.URL
		}
		fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`, html.EscapeString(link.URL), html.EscapeString(title))
	}
	b.WriteString("</ul>")
	return b.String()
}
