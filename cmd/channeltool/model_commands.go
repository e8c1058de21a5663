package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"channel-digest/shared/ai"
	"channel-digest/shared/monitoring"
	"channel-digest/stages/analyzer"
	"channel-digest/stages/summarizer"
)

func newSummarizeCommand(ctx *commandContext) *cobra.Command {
	var promptFile string
	var concurrency int
	cmd := &cobra.Command{
		Use:   "summarize [dir]",
		Short: "Summarize transcribed videos into summaries.md",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("concurrency") {
				ctx.config.Pipeline.Concurrency = concurrency
			}
			prompt, err := ai.LoadPrompt(promptFile, ai.DefaultSummaryPrompt)
			if err != nil {
				return err
			}
			gemini, err := ai.NewGemini(cmd.Context(), ctx.config, ctx.logger)
			if err != nil {
				return err
			}

			s := summarizer.New(gemini, summarizer.Options{
				Prompt:          prompt,
				Concurrency:     ctx.config.Pipeline.Concurrency,
				MaxOutputTokens: ctx.config.AI.MaxOutputTokens,
			}, ctx.logger)
			dir := ctx.outputDir(args)
			return ctx.monitor.Track(cmd.Context(), "summarize", func(c context.Context) (monitoring.Metrics, error) {
				result, err := s.Run(c, dir)
				if result != nil {
					fmt.Fprintln(cmd.OutOrStdout(), result.GetSummary())
				}
				return result, err
			})
		},
	}
	cmd.Flags().StringVar(&promptFile, "prompt-file", "", "Summarization prompt file; may use {bullet_count}")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Maximum model calls in flight (default: pipeline.concurrency)")
	return cmd
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var (
		promptFile  string
		output      string
		batchSize   int
		concurrency int
		titlesOnly  bool
	)
	cmd := &cobra.Command{
		Use:   "analyze [dir]",
		Short: "Run a prompt over batches of the latest summaries and write one report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if promptFile == "" {
				return errors.New("--prompt-file is required")
			}
			if cmd.Flags().Changed("batch-size") {
				ctx.config.Pipeline.BatchSize = batchSize
			}
			if cmd.Flags().Changed("concurrency") {
				ctx.config.Pipeline.Concurrency = concurrency
			}
			prompt, err := ai.LoadPrompt(promptFile, "")
			if err != nil {
				return err
			}
			gemini, err := ai.NewGemini(cmd.Context(), ctx.config, ctx.logger)
			if err != nil {
				return err
			}

			a := analyzer.New(gemini, analyzer.Options{
				Prompt:          prompt,
				BatchSize:       ctx.config.Pipeline.BatchSize,
				Concurrency:     ctx.config.Pipeline.Concurrency,
				TitlesOnly:      titlesOnly,
				MaxOutputTokens: ctx.config.AI.MaxOutputTokens,
			}, ctx.logger)
			dir := ctx.outputDir(args)
			return ctx.monitor.Track(cmd.Context(), "analyze", func(c context.Context) (monitoring.Metrics, error) {
				result, err := a.Run(c, dir, output)
				if result != nil {
					fmt.Fprintln(cmd.OutOrStdout(), result.GetSummary())
				}
				return result, err
			})
		},
	}
	cmd.Flags().StringVar(&promptFile, "prompt-file", "", "Instruction prompt file (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Report path (default: <dir>/analysis.md)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Summary entries per model call (default: pipeline.batch_size)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Maximum model calls in flight (default: pipeline.concurrency)")
	cmd.Flags().BoolVar(&titlesOnly, "titles-only", false, "Send one call with only titles and URLs")
	return cmd
}
