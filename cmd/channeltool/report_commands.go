package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"channel-digest/shared/monitoring"
	"channel-digest/shared/storage"
	"channel-digest/stages/analyzer"
	"channel-digest/stages/pruner"
	"channel-digest/stages/splitter"
)

const (
	defaultTemplateFile = "categorize_template.txt"
	defaultRunPrompt    = "categorize_run.txt"
)

func newPruneCommand(ctx *commandContext) *cobra.Command {
	var (
		reportPath string
		opts       pruner.Options
	)
	cmd := &cobra.Command{
		Use:   "prune [dir]",
		Short: "Remove the videos flagged in an analysis report from the latest summaries",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ctx.outputDir(args)
			p := pruner.New(opts, ctx.logger)
			return ctx.monitor.Track(cmd.Context(), "prune", func(c context.Context) (monitoring.Metrics, error) {
				result, err := p.Run(c, dir, reportOrDefault(reportPath, dir))
				if result != nil {
					fmt.Fprintln(cmd.OutOrStdout(), result.GetSummary())
				}
				return result, err
			})
		},
	}
	cmd.Flags().StringVar(&reportPath, "analysis", "", "Analysis report (default: <dir>/analysis.md)")
	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "Overwrite the latest summaries in place")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Explicit output path")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "Refuse reports generated from a different summary version")
	return cmd
}

func newSplitCommand(ctx *commandContext) *cobra.Command {
	var (
		reportPath string
		opts       splitter.Options
	)
	cmd := &cobra.Command{
		Use:   "split [dir]",
		Short: "Split the latest summaries into one file per category",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ctx.outputDir(args)
			s := splitter.New(opts, ctx.logger)
			return ctx.monitor.Track(cmd.Context(), "split", func(c context.Context) (monitoring.Metrics, error) {
				result, err := s.Run(c, dir, reportOrDefault(reportPath, dir))
				if result != nil && len(result.Groups) > 0 {
					printCategoryTable(cmd.OutOrStdout(), result)
				}
				return result, err
			})
		},
	}
	cmd.Flags().StringVar(&reportPath, "analysis", "", "Categorization report (default: <dir>/analysis.md)")
	cmd.Flags().StringVarP(&opts.OutputDir, "output-dir", "o", "", "Category directory (default: <dir>/categories)")
	return cmd
}

func newBuildPromptCommand(ctx *commandContext) *cobra.Command {
	var templatePath, output string
	cmd := &cobra.Command{
		Use:   "build-prompt <analysis>",
		Short: "Inject discovered categories into the categorization prompt template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reportText, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read analysis report: %w", err)
			}
			template, err := os.ReadFile(templatePath)
			if err != nil {
				return fmt.Errorf("failed to read template: %w", err)
			}
			prompt, categories, err := splitter.BuildPrompt(string(reportText), string(template))
			if err != nil {
				return err
			}
			if err := storage.WriteFileAtomic(output, []byte(prompt), 0644); err != nil {
				return err
			}
			ctx.logger.Info("wrote categorization prompt",
				slog.Int("categories", len(categories)),
				slog.String("output", output))
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s with %d categories\n", output, len(categories))
			return nil
		},
	}
	cmd.Flags().StringVar(&templatePath, "template", defaultTemplateFile, "Prompt template containing {categories}")
	cmd.Flags().StringVarP(&output, "output", "o", defaultRunPrompt, "Output prompt file")
	return cmd
}

func reportOrDefault(path, dir string) string {
	if path != "" {
		return path
	}
	return filepath.Join(dir, analyzer.ReportFile)
}

func printCategoryTable(out io.Writer, result *splitter.Result) {
	t := newReportTable(label("Category"), label("File"), count("Count"))
	total := 0
	for _, g := range result.Groups {
		t.add(g.Category, g.File(), len(g.Entries))
		total += len(g.Entries)
	}
	t.total("Total", "", total)
	t.write(out)
	if len(result.Missing) > 0 {
		fmt.Fprintf(out, "%d video(s) in the report were not found in %s\n", len(result.Missing), result.Source)
	}
}
