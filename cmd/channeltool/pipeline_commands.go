package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"channel-digest/internal/models"
	"channel-digest/shared/ai"
	"channel-digest/shared/monitoring"
	"channel-digest/shared/storage"
	"channel-digest/shared/youtube"
	"channel-digest/stages/lister"
	"channel-digest/stages/transcriber"
)

type fetchFlags struct {
	output      string
	after       string
	minDuration int
}

type transcribeFlags struct {
	output       string
	lang         string
	enhance      bool
	noTimestamps bool
}

func addFetchFlags(cmd *cobra.Command, f *fetchFlags) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Channel output directory (default: pipeline.output_dir)")
	cmd.Flags().StringVar(&f.after, "after", "", "Only list videos published on or after this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&f.minDuration, "min-duration", 0, "Skip videos shorter than this many seconds")
}

func addTranscribeFlags(cmd *cobra.Command, f *transcribeFlags, withOutput bool) {
	if withOutput {
		cmd.Flags().StringVarP(&f.output, "output", "o", "", "Channel output directory (default: pipeline.output_dir)")
	}
	cmd.Flags().StringVar(&f.lang, "lang", "", "Caption language (default: youtube.caption_language)")
	cmd.Flags().BoolVar(&f.enhance, "enhance", false, "Run caption text through the readability editor")
	cmd.Flags().BoolVar(&f.noTimestamps, "no-timestamps", false, "Omit inline timestamp markers from caption transcripts")
}

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var flags fetchFlags
	cmd := &cobra.Command{
		Use:   "fetch <channel>",
		Short: "List channel videos and write or update index.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := ctx.applyFetchFlags(cmd, &flags)
			if err != nil {
				return err
			}
			return ctx.runFetch(cmd.Context(), cmd.OutOrStdout(), args[0], dir)
		},
	}
	addFetchFlags(cmd, &flags)
	return cmd
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var flags transcribeFlags
	cmd := &cobra.Command{
		Use:   "transcribe",
		Short: "Transcribe every pending video in index.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ctx.outputDir([]string{flags.output})
			ctx.applyTranscribeFlags(cmd, &flags)
			return ctx.runTranscribe(cmd.Context(), cmd.OutOrStdout(), dir)
		},
	}
	addTranscribeFlags(cmd, &flags, true)
	return cmd
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var fetch fetchFlags
	var transcribe transcribeFlags
	cmd := &cobra.Command{
		Use:   "run <channel>",
		Short: "Fetch the channel listing, then transcribe pending videos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := ctx.applyFetchFlags(cmd, &fetch)
			if err != nil {
				return err
			}
			ctx.applyTranscribeFlags(cmd, &transcribe)
			err = ctx.runFetch(cmd.Context(), cmd.OutOrStdout(), args[0], dir)
			if err == nil {
				err = ctx.runTranscribe(cmd.Context(), cmd.OutOrStdout(), dir)
			}
			printRunSummary(cmd.OutOrStdout(), ctx.monitor)
			return err
		},
	}
	addFetchFlags(cmd, &fetch)
	addTranscribeFlags(cmd, &transcribe, false)
	return cmd
}

func (c *commandContext) applyFetchFlags(cmd *cobra.Command, f *fetchFlags) (string, error) {
	if cmd.Flags().Changed("after") {
		c.config.Pipeline.After = f.after
		if _, err := c.config.AfterDate(); err != nil {
			return "", err
		}
	}
	if cmd.Flags().Changed("min-duration") {
		if f.minDuration < 0 {
			return "", fmt.Errorf("--min-duration must not be negative")
		}
		c.config.Pipeline.MinDurationSeconds = &f.minDuration
	}
	return c.outputDir([]string{f.output}), nil
}

func (c *commandContext) applyTranscribeFlags(cmd *cobra.Command, f *transcribeFlags) {
	if f.lang != "" {
		c.config.YouTube.CaptionLanguage = f.lang
	}
	if f.noTimestamps {
		off := false
		c.config.Pipeline.Timestamps = &off
	}
	if cmd.Flags().Changed("enhance") {
		c.config.Pipeline.Enhance = f.enhance
	}
}

func (c *commandContext) runFetch(ctx context.Context, out io.Writer, channel, dir string) error {
	ref, err := youtube.ParseChannelRef(channel)
	if err != nil {
		return err
	}
	after, err := c.config.AfterDate()
	if err != nil {
		return err
	}

	scraper := youtube.NewScraper(youtube.ScraperOptionsFromConfig(c.config, c.logger))
	client, err := youtube.NewClient(ctx, c.config, scraper, c.logger)
	if err != nil {
		return err
	}

	l := lister.New(client, lister.Options{
		After:              after,
		MinDurationSeconds: c.config.MinDuration(),
		StaleStreak:        c.config.Pipeline.StaleStreak,
	}, c.logger)

	var result *lister.Result
	err = c.monitor.Track(ctx, "fetch", func(ctx context.Context) (monitoring.Metrics, error) {
		r, runErr := l.Run(ctx, ref, dir)
		result = r
		return r, runErr
	})
	if result != nil {
		t := newReportTable(label("Channel"), count("Scanned"), count("Listed"), count("New"),
			count("Too old"), count("Too short"), count("Total"))
		t.add(result.Channel, result.Scanned, result.Listed, result.Added,
			result.SkippedOld, result.SkippedShort, result.Total)
		t.write(out)
	}
	return err
}

func (c *commandContext) runTranscribe(ctx context.Context, out io.Writer, dir string) error {
	captions := youtube.NewScraper(youtube.ScraperOptionsFromConfig(c.config, c.logger))
	fallback, enhancer, err := c.transcriptionModel(ctx)
	if err != nil {
		return err
	}

	t := transcriber.New(captions, fallback, enhancer, transcriber.Options{
		Language:   c.config.YouTube.CaptionLanguage,
		Timestamps: c.config.TimestampsEnabled(),
		Enhance:    c.config.Pipeline.Enhance,
	}, c.logger)

	err = c.monitor.Track(ctx, "transcribe", func(ctx context.Context) (monitoring.Metrics, error) {
		return t.Run(ctx, dir)
	})
	printStatusTable(out, dir)
	return err
}

// transcriptionModel builds the fallback transcriber and enhancer. Without a
// Gemini key both stay nil and only captions are used, unless enhancement was
// requested.
func (c *commandContext) transcriptionModel(ctx context.Context) (ai.VideoTranscriber, transcriber.TextEnhancer, error) {
	if err := c.config.RequireGemini(); err != nil {
		if c.config.Pipeline.Enhance {
			return nil, nil, err
		}
		c.logger.Warn("no Gemini key configured; fallback transcription and enhancement are disabled")
		return nil, nil, nil
	}
	gemini, err := ai.NewGemini(ctx, c.config, c.logger)
	if err != nil {
		return nil, nil, err
	}
	return gemini, ai.NewEnhancer(gemini, c.config.Pipeline.Concurrency, c.logger), nil
}

func printStatusTable(out io.Writer, dir string) {
	store, err := storage.OpenManifest(dir)
	if err != nil {
		return
	}
	counts := store.Counts()
	statuses := []models.Status{
		models.StatusPending,
		models.StatusCaptionsOK,
		models.StatusTranscribedFallback,
		models.StatusFailed,
	}
	t := newReportTable(label("Status"), count("Videos"))
	for _, s := range statuses {
		t.add(string(s), counts[s])
	}
	t.write(out)
}

func printOutcomes(out io.Writer, outcomes []monitoring.Outcome) {
	t := newReportTable(label("Stage"), label("Result"), count("Took"))
	for _, o := range outcomes {
		state := "ok"
		switch {
		case o.Err != nil:
			state = "failed"
		case !o.Succeeded():
			state = fmt.Sprintf("%d failed", o.Failures)
		}
		t.add(o.Stage, state, o.Duration.Round(time.Second).String())
	}
	t.write(out)
}

// printRunSummary prints the stage table and the last stage's status line.
func printRunSummary(out io.Writer, monitor *monitoring.Monitor) {
	printOutcomes(out, monitor.Outcomes())
	status := monitor.GetStatusSummary()
	if !monitor.IsHealthy() {
		status = "unhealthy: " + status
	}
	fmt.Fprintln(out, status)
}
