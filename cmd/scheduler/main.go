package main

import (
	"errors"
	"os"

	"github.com/hibiken/asynq"
	"imagecaster/internal/config"
	"imagecaster/internal/logging"
	"imagecaster/pkg/tasks"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		return
	}
	if err != nil {
		logging.Fatal().Err(err).Msg("could not load configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		&asynq.SchedulerOpts{},
	)

	task, err := tasks.NewPublishDueTask()
	if err != nil {
		logging.Fatal().Err(err).Msg("could not create task")
	}

	// A sweep that overlaps the next tick is dropped rather than queued twice.
	_, err = scheduler.Register("@every "+cfg.PublishInterval.String(), task, asynq.Unique(cfg.PublishInterval))
	if err != nil {
		logging.Fatal().Err(err).Msg("could not register task")
	}

	logging.Info().Str("commit", CommitSHA).Dur("interval", cfg.PublishInterval).Msg("Scheduler starting")
	if err := scheduler.Run(); err != nil {
		logging.Fatal().Err(err).Msg("could not run scheduler")
	}
}
