package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"imagecaster/internal/models"
)

func TestExpandDescription(t *testing.T) {
	p := Placeholders{
		EpisodeURL:    "https://example.com/episodes/one",
		AudioURL:      "https://media.example.com/one.mp3",
		TranscriptURL: "https://media.example.com/one.vtt",
	}

	got := ExpandDescription("Listen at {{EPISODE_URL}} or {{AUDIO_URL}}. Read {{TRANSCRIPT_URL}}.", p)
	assert.Equal(t, "Listen at https://example.com/episodes/one or https://media.example.com/one.mp3. Read https://media.example.com/one.vtt.", got)
}

func TestExpandDescriptionReferenceLinks(t *testing.T) {
	p := Placeholders{ReferenceLinks: []models.ReferenceLink{
		{URL: "https://a.example/?x=1&y=2", Title: "A <site>"},
		{URL: "https://b.example/"},
	}}
	got := ExpandDescription("<p>Links:</p><div>{{REFERENCE_LINKS}}</div>", p)
	assert.Equal(t,
		`<p>Links:</p><div><ul><li><a href="https://a.example/?x=1&amp;y=2">A &lt;site&gt;</a></li><li><a href="https://b.example/">https://b.example/</a></li></ul></div>`,
		got)
}

func TestExpandDescriptionRemovesEmptyReferenceBlock(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"paragraph", "<p>Intro</p><p>{{REFERENCE_LINKS}}</p>", "<p>Intro</p>"},
		{"attributes and whitespace", "<p>Intro</p><DIV class=\"refs\">\n  {{REFERENCE_LINKS}}\n</DIV>", "<p>Intro</p>"},
		{"heading", "<h3>{{REFERENCE_LINKS}}</h3>End", "End"},
		{"bare placeholder", "Intro {{REFERENCE_LINKS}}", "Intro "},
		{"shared block keeps other text", "<p>See {{REFERENCE_LINKS}}</p>", "<p>See </p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandDescription(tt.in, Placeholders{}))
		})
	}
}
