package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"imagecaster/internal/lifecycle"
	"imagecaster/internal/models"
	"imagecaster/internal/storage"
)

// Slugify turns a title into a slug: accents are folded, letters are
// lowercased and every other run of characters becomes one hyphen.
func Slugify(title string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if hyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			hyphen = false
			b.WriteRune(r)
			continue
		}
		hyphen = true
	}
	return b.String()
}

// RenameSlug changes a draft episode's slug, normalized with Slugify, and
// moves everything stored under the old one. The move copies before deleting, so a failure leaves
// the old directory intact.
func (p *Pipeline) RenameSlug(ctx context.Context, id, newSlug string) (*models.Episode, error) {
	ep, err := p.Episode(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CheckRename(ep); err != nil {
		return nil, err
	}
	requested := newSlug
	newSlug = Slugify(newSlug)
	if !models.ValidSlug(newSlug) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSlug, requested)
	}
	if newSlug == ep.Slug {
		return ep, nil
	}
	taken, err := p.slugTaken(ctx, newSlug)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: %q", ErrSlugTaken, newSlug)
	}

	oldSlug := ep.Slug
	if err := storage.Move(ctx, p.store, storage.EpisodePrefix(oldSlug), storage.EpisodePrefix(newSlug)); err != nil {
		return nil, fmt.Errorf("failed to move episode %s to %s: %w", oldSlug, newSlug, err)
	}

	ep.Slug = newSlug
	if ep.AudioFile != "" {
		ep.AudioURL = p.publicURL(storage.AudioKey(newSlug, ep.AudioFile))
	}
	if ep.TranscriptURL != "" {
		ep.TranscriptURL = p.publicURL(storage.TranscriptKey(newSlug))
	}
	if err := p.commit(ctx, ep, lifecycle.Result{From: ep.Status, To: ep.Status}); err != nil {
		return nil, err
	}
	p.logger.Info().Str("episode_id", ep.ID).Str("from", oldSlug).Str("to", newSlug).Msg("Episode renamed")
	return ep, nil
}

func (p *Pipeline) slugTaken(ctx context.Context, slug string) (bool, error) {
	ix, err := p.loadIndex(ctx)
	if err != nil {
		return false, err
	}
	if ix.FindSlug(slug) != nil {
		return true, nil
	}
	return storage.Exists(ctx, p.store, storage.EpisodeKey(slug))
}

// uniqueSlug returns base, or base with the smallest numeric suffix that
// is not already in use.
func (p *Pipeline) uniqueSlug(ctx context.Context, base string) (string, error) {
	candidate := base
	for n := 2; ; n++ {
		taken, err := p.slugTaken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}
