// Package main provides ragctl, the command line interface for ingesting
// documents and asking questions over them.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bull/ragchain/internal/app"
	"github.com/bull/ragchain/internal/config"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "ragctl",
	Short: "Retrieval augmented generation over your documents",
	Long: `ragctl ingests documents into a vector index and answers questions over them
with a conversational retrieval chain or a tool-using agent.

Configuration is read from ragchain.toml (or --config), a .env file and the
environment. See the README for the keys.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(ingestCmd, askCmd, agentCmd, sqlCmd, statusCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads configuration for a command.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// openApp loads configuration and connects the backends.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, slog.Default())
}
