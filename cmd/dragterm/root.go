package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/race/dragrace/internal/log"
	"github.com/race/dragrace/internal/race"
)

type options struct {
	mode     string
	laps     int
	server   string
	noAudio  bool
	logFile  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:          "dragterm",
		Short:        "Terminal race client",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "drag", "race mode (drag, circuit)")
	cmd.Flags().IntVar(&opts.laps, "laps", 0, "circuit race length (0 uses the default)")
	cmd.Flags().StringVarP(&opts.server, "server", "s", "",
		"dragserver WebSocket URL, e.g. ws://localhost:8080/ws (empty runs locally)")
	cmd.Flags().BoolVar(&opts.noAudio, "no-audio", false, "disable the engine sound")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "", "write logs to this file")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "controls the log level")
	return cmd
}

func run(ctx context.Context, opts options) error {
	mode, err := race.ParseMode(opts.mode)
	if err != nil {
		return err
	}

	// the screen owns the terminal, so logs only go to a file
	logger := zap.NewNop()
	if opts.logFile != "" {
		if logger, err = log.New(opts.logLevel, "console", opts.logFile); err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck // best effort
	}

	var b backend
	if opts.server != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		b, err = dialRemote(dialCtx, opts.server, mode, logger)
		cancel()
		if err != nil {
			return fmt.Errorf("connect %s: %w", opts.server, err)
		}
	} else {
		b = newLocalBackend(mode, opts.laps, logger)
	}
	defer b.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	a := &app{
		screen:  screen,
		backend: b,
		keys:    newKeyboard(holdWindow),
		log:     logger,
	}
	if !opts.noAudio {
		engine := newEngineSound()
		if err := engine.start(); err != nil {
			// non-fatal, the race runs without sound
			logger.Warn("audio init failed", zap.Error(err))
		} else {
			a.engine = engine
			defer engine.close()
		}
	}
	return a.run(ctx)
}
