package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"imagecaster/internal/audio"
	"imagecaster/internal/pipeline"
	"imagecaster/internal/transcript"
)

func newDurationCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "duration <file>...",
		Short: "Print the duration of MPEG audio files in seconds",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				buf, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", path, audio.Duration(buf), humanize.Bytes(uint64(len(buf))))
			}
			return nil
		},
	}
}

func newVTTCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "vtt <transcript.json>",
		Short: "Convert a transcript document to WebVTT on stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			segments, ok := transcript.Parse(data)
			if !ok {
				return fmt.Errorf("%s is not a valid transcript", args[0])
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), transcript.ToVTT(segments))
			return err
		},
	}
}

func newFeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "feed",
		Short: "Regenerate feed.xml from the published episodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(cmd.Context(), func(p *pipeline.Pipeline) error {
				return p.RegenerateFeed(cmd.Context())
			})
		},
	}
}

func newPublishDueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "publish-due",
		Short: "Publish every scheduled episode whose time has come",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(cmd.Context(), func(p *pipeline.Pipeline) error {
				report, err := p.PublishDue(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "checked %d, published %d, failed %d\n", report.Checked, len(report.Published), len(report.Failed))
				for id, err := range report.Failed {
					fmt.Fprintf(out, "  %s: %v\n", id, err)
				}
				return nil
			})
		},
	}
}

func newPendingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List episodes waiting for a transcriber",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(cmd.Context(), func(p *pipeline.Pipeline) error {
				pending, err := p.PendingTranscriptions(cmd.Context())
				if err != nil {
					return err
				}
				for _, ep := range pending {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", ep.ID, ep.Slug, ep.Title)
				}
				return nil
			})
		},
	}
}
