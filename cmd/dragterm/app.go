package main

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"github.com/race/dragrace/internal/race"
)

const frameInterval = 16 * time.Millisecond // ~60 FPS

type app struct {
	screen  tcell.Screen
	backend backend
	keys    *keyboard
	engine  *engineSound // nil without audio
	log     *zap.Logger
}

// run drives the frame loop until the player quits or ctx ends.
func (a *app) run(ctx context.Context) error {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := a.screen.PollEvent()
			if ev == nil {
				// screen finalized
				return
			}
			events <- ev
		}
	}()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-events:
			if !a.handleEvent(ev) {
				return nil
			}

		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if err := a.frame(now, dt); err != nil {
				return err
			}
		}
	}
}

// handleEvent reports false when the player asked to quit.
func (a *app) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		cmd := a.keys.press(ev.Key(), ev.Rune(), time.Now())
		if cmd == cmdQuit {
			return false
		}
		if action, ok := commandAction(cmd, a.backend.Mode(), a.backend.Snapshot().Phase); ok {
			if err := a.backend.Dispatch(action); err != nil {
				a.log.Warn("command failed", zap.String("action", race.ActionName(action)), zap.Error(err))
			}
		}

	case *tcell.EventResize:
		a.screen.Sync()
	}
	return true
}

func (a *app) frame(now time.Time, dt float64) error {
	if err := a.backend.Step(dt, a.keys.bits(now)); err != nil {
		return err
	}

	snap := a.backend.Snapshot()
	if a.engine != nil {
		a.engine.setSpeed(snap.Speed, snap.Phase == race.PhaseRacing || snap.Phase == race.PhaseCountdown)
	}
	drawHUD(a.screen, snap)
	a.screen.Show()
	return nil
}
