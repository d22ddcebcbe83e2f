package main

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

const (
	sampleRate = beep.SampleRate(44100)

	idleFrequency  = 55.0 // Hz
	freqPerKmh     = 1.6
	engineVolume   = 0.12
	maxEngineSpeed = 400.0 // km/h
)

// engineSound is an endless sawtooth whose pitch follows the car's speed. The frame loop
// sets the pitch and the speaker goroutine streams it, so the frequency is atomic.
type engineSound struct {
	freq  atomic.Uint64 // math.Float64bits
	phase float64
	rate  beep.SampleRate
}

func newEngineSound() *engineSound {
	e := &engineSound{rate: sampleRate}
	e.setSpeed(0, false)
	return e
}

func (e *engineSound) start() error {
	if err := speaker.Init(e.rate, e.rate.N(time.Second/10)); err != nil {
		return err
	}
	speaker.Play(e)
	return nil
}

func (e *engineSound) close() {
	speaker.Clear()
	speaker.Close()
}

// setSpeed retunes the engine. A stopped engine is silent.
func (e *engineSound) setSpeed(kmh float64, running bool) {
	freq := 0.0
	if running {
		freq = engineFrequency(kmh)
	}
	e.freq.Store(math.Float64bits(freq))
}

func engineFrequency(kmh float64) float64 {
	return idleFrequency + math.Min(math.Max(kmh, 0), maxEngineSpeed)*freqPerKmh
}

// Stream implements beep.Streamer.
func (e *engineSound) Stream(samples [][2]float64) (n int, ok bool) {
	freq := math.Float64frombits(e.freq.Load())
	for i := range samples {
		val := 0.0
		if freq > 0 {
			val = engineVolume * (2*e.phase - 1)
			e.phase += freq / float64(e.rate)
			e.phase -= math.Floor(e.phase)
		}
		samples[i][0] = val
		samples[i][1] = val
	}
	return len(samples), true
}

// Err implements beep.Streamer.
func (e *engineSound) Err() error { return nil }
