package pipeline

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"imagecaster/internal/audio"
	"imagecaster/internal/lifecycle"
	"imagecaster/internal/models"
	"imagecaster/internal/storage"
)

// UploadResult describes a finished upload. Duration and FileSize are
// optional; when missing they are measured from the stored audio.
type UploadResult struct {
	AudioFile string
	Duration  *int
	FileSize  *int64
}

// StartUpload marks the episode as receiving an upload.
func (p *Pipeline) StartUpload(ctx context.Context, id string) (*models.Episode, error) {
	ep, err := p.Episode(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := lifecycle.StartUpload(ep)
	if err != nil {
		return nil, err
	}
	return ep, p.commit(ctx, ep, res)
}

// StartFetch marks the episode as downloading its audio from sourceURL.
func (p *Pipeline) StartFetch(ctx context.Context, id, sourceURL string) (*models.Episode, error) {
	ep, err := p.Episode(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := lifecycle.StartFetch(ep, sourceURL)
	if err != nil {
		return nil, err
	}
	return ep, p.commit(ctx, ep, res)
}

// StoreAudio writes an audio blob into the episode's directory under file.
func (p *Pipeline) StoreAudio(ctx context.Context, ep *models.Episode, file string, body []byte) error {
	key := storage.AudioKey(ep.Slug, file)
	if err := p.store.Put(ctx, key, body, storage.ContentType(key)); err != nil {
		return fmt.Errorf("failed to store audio for %s: %w", ep.Slug, err)
	}
	return nil
}

// CompleteUpload confirms the audio is in place, measures it when needed
// and moves the episode on to transcription or straight to scheduling.
func (p *Pipeline) CompleteUpload(ctx context.Context, id string, in UploadResult) (*models.Episode, error) {
	ep, err := p.Episode(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CanConfirmUpload(ep); err != nil {
		return nil, err
	}

	if in.AudioFile != "" {
		ep.AudioFile = in.AudioFile
		ep.AudioURL = p.publicURL(storage.AudioKey(ep.Slug, in.AudioFile))
	}
	if in.FileSize != nil {
		ep.FileSize = *in.FileSize
	}

	if in.Duration != nil {
		ep.Duration = *in.Duration
	} else if ep.AudioFile != "" {
		body, err := p.store.Get(ctx, storage.AudioKey(ep.Slug, ep.AudioFile))
		if err != nil {
			return nil, fmt.Errorf("failed to read audio for %s: %w", ep.Slug, err)
		}
		ep.Duration = audio.Duration(body)
		if in.FileSize == nil {
			ep.FileSize = int64(len(body))
		}
		p.logger.Info().
			Str("episode_id", ep.ID).
			Int("duration", ep.Duration).
			Str("size", humanize.Bytes(uint64(len(body)))).
			Msg("Measured uploaded audio")
	}

	res, err := lifecycle.ConfirmUpload(ep, p.now())
	if err != nil {
		return nil, err
	}
	return ep, p.commit(ctx, ep, res)
}
