package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"imagecaster/internal/models"
	"imagecaster/internal/storage"
)

// NewEpisodeInput is what an admin supplies when creating an episode.
type NewEpisodeInput struct {
	Title             string
	Slug              string
	Description       string
	PublishAt         *time.Time
	SkipTranscription bool
	SocialPostEnabled bool
	SocialPostText    string
	ReferenceLinks    []models.ReferenceLink
	SourceGUID        string
}

// CreateEpisode stores a new draft. Without a slug one is derived from the
// title; without a description the default template is used.
func (p *Pipeline) CreateEpisode(ctx context.Context, in NewEpisodeInput) (*models.Episode, error) {
	base := in.Slug
	if base == "" {
		base = Slugify(in.Title)
	}
	if !models.ValidSlug(base) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSlug, base)
	}

	var slug string
	var err error
	if in.Slug != "" {
		taken, err := p.slugTaken(ctx, in.Slug)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, fmt.Errorf("%w: %q", ErrSlugTaken, in.Slug)
		}
		slug = in.Slug
	} else if slug, err = p.uniqueSlug(ctx, base); err != nil {
		return nil, err
	}

	ep := models.NewEpisode(slug, in.Title, p.now())
	ep.Description = in.Description
	ep.PublishAt = in.PublishAt
	ep.SkipTranscription = in.SkipTranscription
	ep.SocialPostEnabled = in.SocialPostEnabled
	ep.SocialPostText = in.SocialPostText
	ep.ReferenceLinks = in.ReferenceLinks
	ep.SourceGUID = in.SourceGUID

	if ep.Description == "" {
		tmpl, err := p.DefaultTemplate(ctx)
		if err != nil {
			return nil, err
		}
		if tmpl != nil {
			ep.Description = tmpl.Content
		}
	}

	if err := p.saveEpisode(ctx, ep); err != nil {
		return nil, err
	}
	if err := p.syncIndex(ctx, ep); err != nil {
		return nil, err
	}
	p.logger.Info().Str("episode_id", ep.ID).Str("slug", ep.Slug).Msg("Episode created")
	return ep, nil
}

// Episodes lists the index, optionally narrowed to one cached status.
func (p *Pipeline) Episodes(ctx context.Context, status models.Status) ([]models.IndexEntry, error) {
	ix, err := p.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return ix.Episodes, nil
	}
	return ix.WithStatus(status), nil
}

// Settings returns the podcast settings.
func (p *Pipeline) Settings(ctx context.Context) (*models.PodcastSettings, error) {
	return p.loadSettings(ctx)
}

// SaveSettings validates and stores the podcast settings.
func (p *Pipeline) SaveSettings(ctx context.Context, settings *models.PodcastSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := storage.PutJSON(ctx, p.store, storage.SettingsKey, settings); err != nil {
		return fmt.Errorf("failed to save podcast settings: %w", err)
	}
	return nil
}

// Templates returns every stored description template.
func (p *Pipeline) Templates(ctx context.Context) ([]models.DescriptionTemplate, error) {
	var templates []models.DescriptionTemplate
	err := storage.GetJSON(ctx, p.store, storage.TemplatesKey, &templates)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	return templates, nil
}

// DefaultTemplate returns the template marked default, the first one if
// none is marked, or nil when there are none.
func (p *Pipeline) DefaultTemplate(ctx context.Context) (*models.DescriptionTemplate, error) {
	templates, err := p.Templates(ctx)
	if err != nil || len(templates) == 0 {
		return nil, err
	}
	for i := range templates {
		if templates[i].IsDefault {
			return &templates[i], nil
		}
	}
	return &templates[0], nil
}
