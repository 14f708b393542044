package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"imagecaster/internal/app"
	"imagecaster/internal/config"
	"imagecaster/internal/logging"
	"imagecaster/internal/rebuild"
	"imagecaster/internal/worker"
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
	logger := *logging.GlobalLogger()

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer client.Close()

	p, err := app.NewPipeline(context.Background(), cfg, client, logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("could not build pipeline")
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				"high":    2,
				"default": 1,
			},
			// Exponential backoff: 1min, 2min, 4min ... capped at 6h.
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := time.Minute
				maxDelay := 6 * time.Hour
				for i := 0; i < n; i++ {
					delay *= 2
					if delay > maxDelay {
						delay = maxDelay
						break
					}
				}
				logging.Warn().Str("task", task.Type()).Int("attempt", n+1).Dur("delay", delay).Err(err).Msg("Task failed, retrying")
				return delay
			},
		},
	)

	mux := asynq.NewServeMux()
	taskHandler := worker.NewTaskHandler(p, rebuild.NewWebhook(cfg.RebuildWebhookURL), cfg.MaxFetchSize, logger)

	mux.HandleFunc(tasks.TypeFetchAudio, taskHandler.HandleFetchAudioTask)
	mux.HandleFunc(tasks.TypePublishDue, taskHandler.HandlePublishDueTask)
	mux.HandleFunc(tasks.TypeRebuildSite, taskHandler.HandleRebuildSiteTask)

	logging.Info().Str("commit", CommitSHA).Msg("Worker starting")
	if err := srv.Run(mux); err != nil {
		logging.Fatal().Err(err).Msg("could not run worker")
	}
}
