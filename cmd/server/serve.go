package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/meetpoint-server/internal/app"
	"github.com/vovakirdan/meetpoint-server/internal/config"
	"github.com/vovakirdan/meetpoint-server/internal/log"
)

var overrides config.Config

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	registerServeFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func registerServeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&overrides.LogFile, "log-file", "", "also write logs to this file")
	cmd.Flags().StringVar(&overrides.AuditDBPath, "audit-db", "", "sqlite path for the room audit log")
	cmd.Flags().DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	cmd.Flags().DurationVar(&overrides.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
}

func runServe(cmd *cobra.Command, _ []string) error {
	bootstrap := log.New("info", "")

	cfg, path, err := config.Load(bootstrap, configFile)
	if err != nil {
		bootstrap.Error().Err(err).Msg("load config")
		return err
	}
	cfg.UpdateFrom(overrides)
	if err := cfg.Validate(); err != nil {
		bootstrap.Error().Err(err).Str("path", path).Msg("invalid config")
		return err
	}

	logger := log.New(cfg.LogLevel, cfg.LogFile)
	logger.Info().Str("config", path).Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, &cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("init app")
		return err
	}

	start := time.Now()
	logger.Info().Str("addr", cfg.Addr).Msg("starting meetpoint server")
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Dur("uptime", time.Since(start)).Msg("server stopped")
	return nil
}
