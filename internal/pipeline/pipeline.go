// Package pipeline drives episodes through their lifecycle against the
// object store: it loads records, applies lifecycle transitions, persists
// the result, keeps the index in step and fires the publication side
// effects.
//
// Every operation is a short read-modify-write with no locking beyond the
// transcription soft lock. Two writers racing on one episode can lose an
// update, and a failure between saving an episode and syncing the index
// leaves the index stale until the next transition of that episode.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"imagecaster/internal/models"
	"imagecaster/internal/storage"
)

var (
	ErrEpisodeNotFound   = errors.New("episode not found")
	ErrSettingsMissing   = errors.New("podcast settings have not been created")
	ErrTranscriptMissing = errors.New("transcript artifact not found")
	ErrInvalidTranscript = errors.New("transcript artifact is invalid")
	ErrInvalidSlug       = errors.New("invalid slug")
	ErrSlugTaken         = errors.New("slug is already in use")
)

// Rebuilder requests a rebuild of the public site. Calls are fire-and-forget.
type Rebuilder interface {
	RequestRebuild(ctx context.Context) error
}

// SocialPoster announces a published episode and reports whether it posted.
type SocialPoster interface {
	Post(ctx context.Context, e *models.Episode, websiteURL string) (bool, error)
}

type Pipeline struct {
	store        storage.Store
	rebuilder    Rebuilder
	poster       SocialPoster
	mediaBaseURL string
	logger       zerolog.Logger
	now          func() time.Time
}

// New builds a pipeline. mediaBaseURL is the public address stored blobs
// are served from.
func New(store storage.Store, rebuilder Rebuilder, poster SocialPoster, mediaBaseURL string, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:        store,
		rebuilder:    rebuilder,
		poster:       poster,
		mediaBaseURL: mediaBaseURL,
		logger:       logger.With().Str("component", "pipeline").Logger(),
		now:          time.Now,
	}
}

// Store exposes the backing object store to callers that serve stored documents.
func (p *Pipeline) Store() storage.Store {
	return p.store
}

func (p *Pipeline) publicURL(key string) string {
	return storage.PublicURL(p.mediaBaseURL, key)
}
