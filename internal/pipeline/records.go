package pipeline

import (
	"context"
	"errors"
	"fmt"

	"imagecaster/internal/lifecycle"
	"imagecaster/internal/models"
	"imagecaster/internal/storage"
)

func (p *Pipeline) loadIndex(ctx context.Context) (*models.Index, error) {
	var ix models.Index
	err := storage.GetJSON(ctx, p.store, storage.IndexKey, &ix)
	if errors.Is(err, storage.ErrNotFound) {
		return &models.Index{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}
	if err := ix.Validate(); err != nil {
		return nil, err
	}
	return &ix, nil
}

func (p *Pipeline) saveIndex(ctx context.Context, ix *models.Index) error {
	if err := storage.PutJSON(ctx, p.store, storage.IndexKey, ix); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}
	return nil
}

func (p *Pipeline) loadSettings(ctx context.Context) (*models.PodcastSettings, error) {
	var settings models.PodcastSettings
	err := storage.GetJSON(ctx, p.store, storage.SettingsKey, &settings)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrSettingsMissing
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load podcast settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (p *Pipeline) loadBySlug(ctx context.Context, slug string) (*models.Episode, error) {
	var ep models.Episode
	err := storage.GetJSON(ctx, p.store, storage.EpisodeKey(slug), &ep)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrEpisodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load episode %s: %w", slug, err)
	}
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	return &ep, nil
}

// Episode loads the authoritative record for id.
func (p *Pipeline) Episode(ctx context.Context, id string) (*models.Episode, error) {
	ix, err := p.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	entry := ix.Find(id)
	if entry == nil {
		return nil, ErrEpisodeNotFound
	}
	ep, err := p.loadBySlug(ctx, entry.Slug)
	if err != nil {
		return nil, err
	}
	if ep.ID != id {
		return nil, fmt.Errorf("index entry %s points at episode %s: %w", id, ep.ID, ErrEpisodeNotFound)
	}
	return ep, nil
}

func (p *Pipeline) saveEpisode(ctx context.Context, ep *models.Episode) error {
	if err := ep.Validate(); err != nil {
		return err
	}
	if err := storage.PutJSON(ctx, p.store, storage.EpisodeKey(ep.Slug), ep); err != nil {
		return fmt.Errorf("failed to save episode %s: %w", ep.Slug, err)
	}
	return nil
}

// syncIndex re-reads the index so the write window stays as short as possible.
func (p *Pipeline) syncIndex(ctx context.Context, ep *models.Episode) error {
	ix, err := p.loadIndex(ctx)
	if err != nil {
		return err
	}
	if !ix.Sync(ep) {
		return nil
	}
	return p.saveIndex(ctx, ix)
}

// commit persists a transition: episode first, then index, then the
// publication side effects.
func (p *Pipeline) commit(ctx context.Context, ep *models.Episode, res lifecycle.Result) error {
	if err := p.saveEpisode(ctx, ep); err != nil {
		return err
	}
	if err := p.syncIndex(ctx, ep); err != nil {
		return err
	}
	if res.Changed() {
		p.logger.Info().
			Str("episode_id", ep.ID).
			Str("slug", ep.Slug).
			Str("from", string(res.From)).
			Str("to", string(res.To)).
			Msg("Episode transition")
	}
	if res.Published {
		p.afterPublish(ctx, []*models.Episode{ep})
	}
	return nil
}
