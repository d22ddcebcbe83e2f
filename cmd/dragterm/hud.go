package main

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/samber/lo"

	"github.com/race/dragrace/config"
	"github.com/race/dragrace/internal/race"
)

type tone int

const (
	toneNormal tone = iota
	toneTitle
	toneAmber
	toneGreen
	toneRed
	toneDim
)

type hudLine struct {
	text string
	tone tone
}

var toneStyles = map[tone]tcell.Style{
	toneNormal: tcell.StyleDefault,
	toneTitle:  tcell.StyleDefault.Bold(true),
	toneAmber:  tcell.StyleDefault.Foreground(tcell.ColorYellow),
	toneGreen:  tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true),
	toneRed:    tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true),
	toneDim:    tcell.StyleDefault.Foreground(tcell.ColorGray),
}

// hudLines lays out the heads-up display for s.
func hudLines(s race.Snapshot) []hudLine {
	lines := []hudLine{
		{fmt.Sprintf("%s race  |  %s  |  camera %s", strings.ToUpper(s.Mode.String()), s.Phase, s.CameraMode), toneTitle},
		{fmt.Sprintf("Speed %6.1f km/h", s.Speed), toneNormal},
	}

	switch s.Mode {
	case race.ModeDrag:
		lines = append(lines, dragLines(s)...)
	case race.ModeCircuit:
		lines = append(lines, circuitLines(s)...)
	}

	lines = append(lines, hudLine{"", toneNormal}, hudLine{helpText(s.Mode), toneDim})
	return lines
}

func dragLines(s race.Snapshot) []hudLine {
	treeTone := toneAmber
	switch {
	case s.FalseStart():
		treeTone = toneRed
	case s.TreeState == config.TreeGreen:
		treeTone = toneGreen
	}

	lines := []hudLine{
		{treeLights(s.TreeState), treeTone},
		{fmt.Sprintf("You %6.1f m   Opponent %6.1f m  (%5.1f km/h)",
			s.Position.Z, s.OpponentPosition.Z, s.OpponentSpeed), toneNormal},
		{"", toneNormal},
	}

	if rt, ok := s.ReactionTime.Get(); ok {
		if rt < 0 {
			lines = append(lines, hudLine{"Reaction  FALSE START", toneRed})
		} else {
			lines = append(lines, hudLine{fmt.Sprintf("Reaction  %.3f s", rt), toneNormal})
		}
	}
	if et, ok := s.ElapsedTime.Get(); ok {
		lines = append(lines, hudLine{fmt.Sprintf("You       ET %.3f s  trap %.1f km/h", et, s.TrapSpeed.GetOrZero()), toneNormal})
	}
	if et, ok := s.OpponentElapsedTime.Get(); ok {
		lines = append(lines, hudLine{fmt.Sprintf("Opponent  ET %.3f s  trap %.1f km/h  RT %.3f s",
			et, s.OpponentTrapSpeed.GetOrZero(), s.OpponentReactionTime.GetOrZero()), toneNormal})
	}

	switch s.Winner {
	case race.WinnerPlayer:
		lines = append(lines, hudLine{"YOU WIN", toneGreen})
	case race.WinnerOpponent:
		lines = append(lines, hudLine{"OPPONENT WINS", toneRed})
	}
	return lines
}

// treeLights renders the start lights: one stage bulb, three ambers and the green.
func treeLights(state int) string {
	bulb := func(lit bool) string { return lo.Ternary(lit, "●", "○") }

	ambers := min(max(state-config.TreeStage, 0), config.TreeLastYellow-config.TreeStage)
	amberBulbs := lo.Times(config.TreeLastYellow-config.TreeStage, func(i int) string {
		return bulb(i < ambers)
	})
	return fmt.Sprintf("Tree  %s  %s  %s",
		bulb(state >= config.TreeStage),
		strings.Join(amberBulbs, " "),
		bulb(state == config.TreeGreen))
}

func circuitLines(s race.Snapshot) []hudLine {
	lap := min(max(s.CurrentLap, 1), s.TotalLaps)
	lines := []hudLine{
		{fmt.Sprintf("Lap %d/%d   Time %s", lap, s.TotalLaps, race.FormatLapTime(s.CurrentLapTime)), toneNormal},
	}
	if best, ok := s.BestLapTime.Get(); ok {
		lines = append(lines, hudLine{"Best " + race.FormatLapTime(best), toneGreen})
	}
	lines = append(lines, lo.Map(s.LapTimes, func(r race.LapRecord, _ int) hudLine {
		return hudLine{fmt.Sprintf("  lap %d  %s", r.Lap, race.FormatLapTime(r.Time)), toneDim}
	})...)
	lines = append(lines, hudLine{fmt.Sprintf("Position x %.1f z %.1f", s.Position.X, s.Position.Z), toneDim})
	if s.Phase == race.PhaseFinished {
		lines = append(lines, hudLine{"FINISHED", toneGreen})
	}
	return lines
}

func helpText(mode race.Mode) string {
	start := lo.Ternary(mode == race.ModeDrag, "space stage", "space start")
	return start + "  w/↑ throttle  s/↓ brake  a d steer  c camera  p pause  r reset  f finish  q quit"
}

// drawHUD paints the display and, for drag races, a strip showing both cars.
func drawHUD(screen tcell.Screen, s race.Snapshot) {
	screen.Clear()
	width, height := screen.Size()

	for y, line := range hudLines(s) {
		if y >= height {
			break
		}
		drawText(screen, 1, y, toneStyles[line.tone], line.text)
	}

	if s.Mode == race.ModeDrag && height > 4 {
		drawStrip(screen, height-3, width, s)
	}
}

// drawStrip draws the quarter mile as two lanes with the finish line on the right.
func drawStrip(screen tcell.Screen, y, width int, s race.Snapshot) {
	lane := width - 4
	if lane < 10 {
		return
	}
	pos := func(z float64) int {
		return min(max(int(z/config.FinishLineZ*float64(lane-1)), 0), lane-1)
	}

	for i := 0; i < lane; i++ {
		screen.SetContent(2+i, y, '·', nil, toneStyles[toneDim])
		screen.SetContent(2+i, y+1, '·', nil, toneStyles[toneDim])
	}
	screen.SetContent(2+lane, y, '|', nil, toneStyles[toneNormal])
	screen.SetContent(2+lane, y+1, '|', nil, toneStyles[toneNormal])
	screen.SetContent(2+pos(s.Position.Z), y, '>', nil, toneStyles[toneGreen])
	screen.SetContent(2+pos(s.OpponentPosition.Z), y+1, '>', nil, toneStyles[toneRed])
}

func drawText(screen tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		screen.SetContent(x, y, r, nil, style)
		x++
	}
}
