package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/race/dragrace/config"
	"github.com/race/dragrace/internal/log"
)

func newServeCmd() *cobra.Command {
	cfg := config.DefaultServerConfig()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "starts the race server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.Host, "host", cfg.Host, "listen host")
	cmd.Flags().IntVarP(&cfg.Port, "port", "p", cfg.Port, "listen port")
	cmd.Flags().BoolVar(&cfg.EnableCORS, "enable-cors", cfg.EnableCORS,
		"accept cross-origin requests and WebSocket upgrades")
	cmd.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel,
		"controls the log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat,
		"controls the log output format (json, console)")
	cmd.Flags().IntVar(&cfg.MaxRooms, "max-rooms", cfg.MaxRooms,
		"maximum number of concurrent rooms")
	cmd.Flags().DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout,
		"rooms without client activity for this long are closed")
	return cmd
}

func serve(ctx context.Context, cfg *config.ServerConfig) error {
	logger, err := log.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // stderr sync fails on some terminals

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting dragserver",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Int("physicsRate", config.PhysicsTickRate),
		zap.Int("broadcastRate", config.NetworkBroadcastRate),
		zap.Int("maxRooms", cfg.MaxRooms),
		zap.Bool("cors", cfg.EnableCORS))

	if err := NewGameServer(cfg, logger).Run(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	logger.Info("server terminated")
	return nil
}
