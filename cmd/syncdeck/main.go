package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"syncdeck/internal/app"
	"syncdeck/pkg/config"
	"syncdeck/pkg/logger"
	"syncdeck/pkg/session"
)

var (
	configPath  string
	application *app.App
)

var term = newTerminal(os.Stdout)

var rootCmd = &cobra.Command{
	Use:   "syncdeck",
	Short: "Browse local and remote trees and run sync jobs",
	Long: `syncdeck talks to a sync backend: it lists the local tree and the
configured remotes, starts transfer jobs and follows their progress.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		application, err = app.New(cfg, session.Views{
			Browser: term,
			Job:     term,
			JobList: term,
		})
		if err != nil {
			return fmt.Errorf("failed to create app: %w", err)
		}
		return application.Ping(cmd.Context())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if application != nil {
			application.Close()
		}
	},
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.LoadDefaults()
	}
	return config.LoadFromFile(configPath)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (defaults and SYNCDECK_* env when empty)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if application != nil {
			application.Close()
		}
		logger.Fatal("command failed", map[string]any{"error": err.Error()})
	}
}
