package models

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an episode.
type Status string

const (
	StatusDraft        Status = "draft"
	StatusUploading    Status = "uploading"
	StatusProcessing   Status = "processing"
	StatusTranscribing Status = "transcribing"
	StatusScheduled    Status = "scheduled"
	StatusPublished    Status = "published"
	StatusFailed       Status = "failed"
)

var allStatuses = map[Status]struct{}{
	StatusDraft:        {},
	StatusUploading:    {},
	StatusProcessing:   {},
	StatusTranscribing: {},
	StatusScheduled:    {},
	StatusPublished:    {},
	StatusFailed:       {},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := allStatuses[s]
	return ok
}

// ReferenceLink is a link listed under an episode's show notes.
type ReferenceLink struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Episode is the authoritative record stored at episodes/{slug}/meta.json.
type Episode struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`

	// AudioFile is the name of the stored audio blob inside the episode's
	// directory. AudioURL is its public address. SourceAudioURL is an
	// externally hosted copy; either may be set without the other.
	AudioFile      string `json:"audioFile,omitempty"`
	AudioURL       string `json:"audioUrl,omitempty"`
	SourceAudioURL string `json:"sourceAudioUrl,omitempty"`
	SourceGUID     string `json:"sourceGuid,omitempty"`

	Duration      int    `json:"duration"`
	FileSize      int64  `json:"fileSize"`
	TranscriptURL string `json:"transcriptUrl,omitempty"`

	Status                Status     `json:"status"`
	SkipTranscription     bool       `json:"skipTranscription"`
	CreatedAt             time.Time  `json:"createdAt"`
	PublishAt             *time.Time `json:"publishAt"`
	PublishedAt           *time.Time `json:"publishedAt"`
	TranscriptionLockedAt *time.Time `json:"transcriptionLockedAt"`

	SocialPostEnabled bool       `json:"socialPostEnabled"`
	SocialPostText    string     `json:"socialPostText,omitempty"`
	SocialPostedAt    *time.Time `json:"socialPostedAt,omitempty"`

	ReferenceLinks []ReferenceLink `json:"referenceLinks,omitempty"`
	ArtworkURL     string          `json:"artworkUrl,omitempty"`
}

// NewEpisode returns a draft episode with a fresh identifier.
func NewEpisode(slug, title string, now time.Time) *Episode {
	return &Episode{
		ID:        uuid.NewString(),
		Slug:      slug,
		Title:     title,
		Status:    StatusDraft,
		CreatedAt: now.UTC(),
	}
}

// HasAudioSource reports whether the episode has any audio to work from.
func (e *Episode) HasAudioSource() bool {
	return e.AudioFile != "" || e.AudioURL != "" || e.SourceAudioURL != ""
}

// ValidationError describes a stored document that failed validation.
type ValidationError struct {
	Document string
	Field    string
	Problem  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s %s", e.Document, e.Field, e.Problem)
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ValidSlug reports whether s is usable as an episode slug.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// Validate checks the episode's fields and lifecycle invariants.
func (e *Episode) Validate() error {
	invalid := func(field, problem string) error {
		return &ValidationError{Document: "episode", Field: field, Problem: problem}
	}
	switch {
	case e.ID == "":
		return invalid("id", "is empty")
	case !ValidSlug(e.Slug):
		return invalid("slug", fmt.Sprintf("%q is not a valid slug", e.Slug))
	case !e.Status.Valid():
		return invalid("status", fmt.Sprintf("%q is unknown", e.Status))
	case e.Duration < 0:
		return invalid("duration", "is negative")
	case e.FileSize < 0:
		return invalid("fileSize", "is negative")
	case (e.PublishedAt != nil) != (e.Status == StatusPublished):
		return invalid("publishedAt", fmt.Sprintf("must be set if and only if status is %s", StatusPublished))
	case e.TranscriptionLockedAt != nil && e.Status != StatusTranscribing:
		return invalid("transcriptionLockedAt", fmt.Sprintf("is set while status is %s", e.Status))
	}
	for i, link := range e.ReferenceLinks {
		if link.URL == "" {
			return invalid(fmt.Sprintf("referenceLinks[%d].url", i), "is empty")
		}
	}
	return nil
}
