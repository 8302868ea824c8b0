package main

import (
	"log/slog"

	"github.com/mlship/mlship/internal/credentials"
	"github.com/spf13/cobra"
)

var version = "dev"

var envFile string

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mlship",
		Short: "mlship - CI/CD glue for machine learning projects",
		Long: `mlship runs the train-evaluate-publish pipeline of an ML project.

It installs dependencies, formats and runs the training script, turns the
training metrics into a Markdown report and a CI comment, pushes the
artifacts to a results branch, and deploys the app to a hub space.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from a dotenv file before running")
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
		return credentials.LoadEnvFile(envFile)
	}

	// Add subcommands
	cmd.AddCommand(newRunCommand())
	for _, sc := range newStageCommands() {
		cmd.AddCommand(sc)
	}
	cmd.AddCommand(newCheckCommand())
	cmd.AddCommand(newCompareCommand())
	cmd.AddCommand(newInitCommand())
	cmd.AddCommand(newCacheCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
