// Package app wires configuration into a ready pipeline for the binaries.
package app

import (
	"context"

	"github.com/rs/zerolog"
	"imagecaster/internal/config"
	"imagecaster/internal/pipeline"
	"imagecaster/internal/rebuild"
	"imagecaster/internal/social"
	"imagecaster/pkg/tasks"
)

// NewPipeline opens the configured store and builds a pipeline whose
// rebuild requests go through the task queue.
func NewPipeline(ctx context.Context, cfg *config.Config, enqueuer tasks.TaskEnqueuer, logger zerolog.Logger) (*pipeline.Pipeline, error) {
	store, err := config.NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return pipeline.New(store, rebuild.NewQueueTrigger(enqueuer), NewPoster(cfg, logger), cfg.MediaBaseURL, logger), nil
}

// NewPoster returns the Telegram channel poster, or a poster that never
// posts when no channel is configured or the bot cannot be reached.
func NewPoster(cfg *config.Config, logger zerolog.Logger) pipeline.SocialPoster {
	if cfg.TelegramBotToken == "" || cfg.TelegramChannel == "" {
		return social.Disabled{}
	}
	poster, err := social.NewTelegramPoster(cfg.TelegramBotToken, cfg.TelegramChannel)
	if err != nil {
		logger.Warn().Err(err).Msg("Social posting disabled")
		return social.Disabled{}
	}
	return poster
}
