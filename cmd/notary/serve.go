package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/zulandar/notary/internal/capture"
	"github.com/zulandar/notary/internal/capture/slackbridge"
	"github.com/zulandar/notary/internal/config"
	"github.com/zulandar/notary/internal/docstore"
	"github.com/zulandar/notary/internal/status"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the capture daemon",
		Long:  "Connects to Slack over Socket Mode and serves the message-capture workflow until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "notary.yaml", "path to Notary config file")
	return cmd
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	creds, err := config.LoadCredentials()
	if err != nil {
		return err
	}

	logger := buildLogger(cfg.LogLevel)

	store, err := docstore.NewHTTPClient(docstore.Opts{
		BaseURL:    cfg.DocStore.BaseURL,
		Token:      creds.DocStoreToken,
		APIVersion: cfg.DocStore.APIVersion,
		Timeout:    time.Duration(cfg.DocStore.TimeoutSec) * time.Second,
	})
	if err != nil {
		return err
	}

	bridge, err := slackbridge.New(slackbridge.Opts{
		AppToken: creds.SlackAppToken,
		BotToken: creds.SlackBotToken,
		Logger:   logger.With().Str("component", "slackbridge").Logger(),
	})
	if err != nil {
		return err
	}

	daemon, err := capture.NewDaemon(capture.DaemonOpts{
		Source: bridge,
		Chat:   bridge,
		Store:  store,
		Allow:  capture.NewAllowlist(cfg.AllowedDatabases),
		Logger: logger.With().Str("component", "capture").Logger(),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Status.Enabled {
		go func() {
			err := status.Start(ctx, status.Opts{
				Port:    cfg.Status.Port,
				Version: Version,
				Logger:  logger.With().Str("component", "status").Logger(),
			})
			if err != nil {
				logger.Error().Err(err).Msg("status server exited")
			}
		}()
	}

	return daemon.Run(ctx)
}

// buildLogger creates the root logger at the configured level.
func buildLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
