package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfig   string
	flagLogLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "elsabot",
	Short: "Goal-oriented dialog engine",
	Long: `elsabot is a goal-oriented dialog engine: it tracks entities across a
conversation and selects template responses with a recurrent tracker,
falling back to scripted, generative, or remote skills per topic.

Usage:
  elsabot index --config bot.yaml
  elsabot interact --config bot.yaml
  elsabot serve --config bot.yaml --listen :8080`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(flagLogLevel)
	},
}

// Command returns the root cobra command for mounting into a parent CLI.
func Command() *cobra.Command {
	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "bot.yaml", "Bot configuration file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(interactCmd)
	rootCmd.AddCommand(serveCmd)
}

func setupLogging(level string) error {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: lv,
	})))
	return nil
}
