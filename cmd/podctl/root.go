package main

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"imagecaster/internal/app"
	"imagecaster/internal/config"
	"imagecaster/internal/logging"
	"imagecaster/internal/pipeline"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "podctl",
		Short:         "Inspect audio and transcripts and run pipeline chores",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newDurationCommand(),
		newVTTCommand(),
		newFeedCommand(),
		newPublishDueCommand(),
		newPendingCommand(),
	)
	return root
}

// withPipeline builds a pipeline from the environment for the duration of fn.
func withPipeline(ctx context.Context, fn func(p *pipeline.Pipeline) error) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return err
	}
	logging.Setup(cfg.LogLevel, "console")

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer client.Close()

	p, err := app.NewPipeline(ctx, cfg, client, *logging.GlobalLogger())
	if err != nil {
		return err
	}
	return fn(p)
}
