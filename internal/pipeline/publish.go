package pipeline

import (
	"context"
	"fmt"
	"sort"

	"imagecaster/internal/feed"
	"imagecaster/internal/lifecycle"
	"imagecaster/internal/models"
	"imagecaster/internal/storage"
)

// PublishReport summarizes one publish sweep.
type PublishReport struct {
	Checked   int
	Published []string
	Failed    map[string]error
}

// PublishDue publishes every scheduled episode whose time has come. A
// failure on one episode is recorded and the sweep moves on. The feed is
// regenerated once at the end if anything was published. Running it again
// with nothing due changes nothing.
func (p *Pipeline) PublishDue(ctx context.Context) (*PublishReport, error) {
	ix, err := p.loadIndex(ctx)
	if err != nil {
		return nil, err
	}

	report := &PublishReport{Failed: map[string]error{}}
	var published []*models.Episode
	for _, entry := range ix.Episodes {
		report.Checked++
		ep, err := p.publishOne(ctx, entry)
		if err != nil {
			report.Failed[entry.ID] = err
			p.logger.Error().Err(err).Str("episode_id", entry.ID).Msg("Failed to publish due episode")
			continue
		}
		if ep != nil {
			published = append(published, ep)
			report.Published = append(report.Published, ep.ID)
		}
	}

	if len(published) > 0 {
		p.afterPublish(ctx, published)
	}
	p.logger.Info().
		Int("checked", report.Checked).
		Int("published", len(report.Published)).
		Int("failed", len(report.Failed)).
		Msg("Publish sweep finished")
	return report, nil
}

func (p *Pipeline) publishOne(ctx context.Context, entry models.IndexEntry) (*models.Episode, error) {
	ep, err := p.loadBySlug(ctx, entry.Slug)
	if err != nil {
		return nil, err
	}
	res, due := lifecycle.PublishIfDue(ep, p.now())
	if !due {
		return nil, nil
	}
	if err := p.saveEpisode(ctx, ep); err != nil {
		return nil, err
	}
	if err := p.syncIndex(ctx, ep); err != nil {
		return nil, err
	}
	p.logger.Info().
		Str("episode_id", ep.ID).
		Str("slug", ep.Slug).
		Str("from", string(res.From)).
		Msg("Published scheduled episode")
	return ep, nil
}

// afterPublish runs the best-effort side effects of publication. Nothing
// here can undo the transition, so failures are only logged.
func (p *Pipeline) afterPublish(ctx context.Context, episodes []*models.Episode) {
	settings, err := p.loadSettings(ctx)
	if err != nil {
		p.logger.Error().Err(err).Msg("Cannot run publication side effects without settings")
		return
	}
	for _, ep := range episodes {
		p.postSocial(ctx, ep, settings.WebsiteURL)
	}
	if err := p.RegenerateFeed(ctx); err != nil {
		p.logger.Error().Err(err).Msg("Failed to regenerate feed after publishing")
	}
}

func (p *Pipeline) postSocial(ctx context.Context, ep *models.Episode, websiteURL string) {
	if ep.SocialPostedAt != nil {
		return
	}
	posted, err := p.poster.Post(ctx, ep, websiteURL)
	if err != nil {
		p.logger.Warn().Err(err).Str("episode_id", ep.ID).Msg("Social post failed")
		return
	}
	if !posted {
		return
	}
	postedAt := p.now().UTC()
	ep.SocialPostedAt = &postedAt
	if err := p.saveEpisode(ctx, ep); err != nil {
		p.logger.Error().Err(err).Str("episode_id", ep.ID).Msg("Failed to record social post")
	}
}

// RegenerateFeed renders feed.xml from every published episode, newest
// first, and requests a site rebuild.
func (p *Pipeline) RegenerateFeed(ctx context.Context) error {
	settings, err := p.loadSettings(ctx)
	if err != nil {
		return err
	}
	episodes, err := p.publishedEpisodes(ctx)
	if err != nil {
		return err
	}

	body := feed.Render(*settings, episodes, feed.Options{FeedURL: p.publicURL(storage.FeedKey)})
	if err := p.store.Put(ctx, storage.FeedKey, body, storage.ContentType(storage.FeedKey)); err != nil {
		return fmt.Errorf("failed to store feed: %w", err)
	}
	p.logger.Info().Int("episodes", len(episodes)).Msg("Feed regenerated")

	if err := p.rebuilder.RequestRebuild(ctx); err != nil {
		p.logger.Warn().Err(err).Msg("Site rebuild request failed")
	}
	return nil
}

// publishedEpisodes reads every indexed record and keeps those whose
// authoritative status is published, so a stale index cannot hide one.
func (p *Pipeline) publishedEpisodes(ctx context.Context) ([]models.Episode, error) {
	ix, err := p.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Episode
	for _, entry := range ix.Episodes {
		ep, err := p.loadBySlug(ctx, entry.Slug)
		if err != nil {
			p.logger.Warn().Err(err).Str("episode_id", entry.ID).Msg("Leaving unreadable episode out of feed")
			continue
		}
		if ep.Status == models.StatusPublished {
			out = append(out, *ep)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].PublishedAt, out[j].PublishedAt
		if !a.Equal(*b) {
			return a.After(*b)
		}
		return out[i].Slug < out[j].Slug
	})
	return out, nil
}
