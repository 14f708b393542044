package pipeline

import (
	"context"
	"errors"
	"fmt"

	"imagecaster/internal/lifecycle"
	"imagecaster/internal/models"
	"imagecaster/internal/storage"
	"imagecaster/internal/transcript"
)

// AcquireTranscriptionLock claims the episode for one transcription worker.
func (p *Pipeline) AcquireTranscriptionLock(ctx context.Context, id string) (*models.Episode, error) {
	ep, err := p.Episode(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := lifecycle.AcquireLock(ep, p.now())
	if err != nil {
		return nil, err
	}
	return ep, p.commit(ctx, ep, res)
}

// ReleaseTranscriptionLock clears the lock whatever its state.
func (p *Pipeline) ReleaseTranscriptionLock(ctx context.Context, id string) (*models.Episode, error) {
	ep, err := p.Episode(ctx, id)
	if err != nil {
		return nil, err
	}
	lifecycle.ReleaseLock(ep)
	return ep, p.commit(ctx, ep, lifecycle.Result{From: ep.Status, To: ep.Status})
}

// CompleteTranscription converts the transcript the transcriber left at the
// episode's well-known location and advances the episode. A missing or
// invalid artifact leaves the episode untouched.
func (p *Pipeline) CompleteTranscription(ctx context.Context, id string) (*models.Episode, error) {
	ep, err := p.Episode(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CanCompleteTranscription(ep, p.now()); err != nil {
		return nil, err
	}

	raw, err := p.store.Get(ctx, storage.TranscriptSourceKey(ep.Slug))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrTranscriptMissing
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript for %s: %w", ep.Slug, err)
	}
	segments, ok := transcript.Parse(raw)
	if !ok {
		return nil, ErrInvalidTranscript
	}

	key := storage.TranscriptKey(ep.Slug)
	if err := p.store.Put(ctx, key, []byte(transcript.ToVTT(segments)), storage.ContentType(key)); err != nil {
		return nil, fmt.Errorf("failed to store captions for %s: %w", ep.Slug, err)
	}

	res, err := lifecycle.CompleteTranscription(ep, p.publicURL(key), p.now())
	if err != nil {
		return nil, err
	}
	return ep, p.commit(ctx, ep, res)
}

// FailTranscription records a failed transcription.
func (p *Pipeline) FailTranscription(ctx context.Context, id string) (*models.Episode, error) {
	ep, err := p.Episode(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := lifecycle.FailTranscription(ep)
	if err != nil {
		return nil, err
	}
	return ep, p.commit(ctx, ep, res)
}

// Retry sends a failed episode back to transcription.
func (p *Pipeline) Retry(ctx context.Context, id string) (*models.Episode, error) {
	ep, err := p.Episode(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := lifecycle.Retry(ep)
	if err != nil {
		return nil, err
	}
	return ep, p.commit(ctx, ep, res)
}

// PendingTranscriptions returns episodes waiting for a transcriber: in
// transcription with no valid lock. The index narrows the candidates and
// each record is re-checked.
func (p *Pipeline) PendingTranscriptions(ctx context.Context) ([]models.Episode, error) {
	ix, err := p.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	now := p.now()
	var pending []models.Episode
	for _, entry := range ix.WithStatus(models.StatusTranscribing) {
		ep, err := p.loadBySlug(ctx, entry.Slug)
		if err != nil {
			p.logger.Warn().Err(err).Str("episode_id", entry.ID).Msg("Skipping unreadable transcription candidate")
			continue
		}
		if ep.Status == models.StatusTranscribing && !lifecycle.LockHeld(ep, now) {
			pending = append(pending, *ep)
		}
	}
	return pending, nil
}
