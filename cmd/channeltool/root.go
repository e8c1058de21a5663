package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var flags globalFlags
	ctx := newCommandContext(&flags)

	rootCmd := &cobra.Command{
		Use:           "channeltool",
		Short:         "Fetch, transcribe, summarize and curate the videos of a YouTube channel",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Configuration file path (or CONFIG_FILE)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flags.logFormat, "log-format", "", "Log format: auto, text, json")
	pf.StringVar(&flags.geminiKey, "gemini-key", "", "Gemini API key (or GEMINI_API_KEY)")
	pf.StringVar(&flags.youtubeKey, "youtube-key", "", "YouTube Data API key (or YOUTUBE_API_KEY)")
	pf.StringVar(&flags.model, "model", "", "Gemini model (or GEMINI_MODEL)")

	rootCmd.AddCommand(newFetchCommand(ctx))
	rootCmd.AddCommand(newTranscribeCommand(ctx))
	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newSummarizeCommand(ctx))
	rootCmd.AddCommand(newAnalyzeCommand(ctx))
	rootCmd.AddCommand(newPruneCommand(ctx))
	rootCmd.AddCommand(newSplitCommand(ctx))
	rootCmd.AddCommand(newBuildPromptCommand(ctx))

	return rootCmd
}
