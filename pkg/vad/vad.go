// Package vad implements an energy-based voice activity detector.
//
// A Detector is a pure state machine: Process takes one frame and returns a
// Transition describing what changed, without doing any I/O itself. The
// turn controller owns the clock (frame arrival) and acts on transitions;
// the detector only tracks energy and frame counts.
package vad

import (
	"time"

	"github.com/voxdial/scheduler/pkg/audio"
)

// Transition reports what a call to Process changed, if anything.
type Transition int

const (
	// NoChange means the detector's speaking/silent state did not flip.
	NoChange Transition = iota
	// SpeechStarted means the detector just confirmed the caller started talking.
	SpeechStarted
	// SpeechEnded means the detector just confirmed a long enough silence gap.
	SpeechEnded
	// HardCapReached means the utterance has run past MaxDuration regardless
	// of silence; the caller should be cut off to bound worst-case latency.
	HardCapReached
)

// Config parameterizes a Detector. The zero value is not valid; use
// NewListening or NewBargeIn, or set every field explicitly.
type Config struct {
	// EnergyThreshold is the RMS amplitude (0..32767 scale) above which a
	// frame counts as speech.
	EnergyThreshold int

	// SpeechConfirmFrames is how many consecutive above-threshold frames are
	// required before declaring SpeechStarted.
	SpeechConfirmFrames int

	// SilenceGapFrames is how many consecutive below-threshold frames are
	// required, once speaking, before declaring SpeechEnded.
	SilenceGapFrames int

	// MaxDuration bounds an utterance regardless of silence detection; zero
	// disables the cap.
	MaxDuration time.Duration
}

// Listening returns the Config used while the session is waiting for the
// caller to speak: a low threshold so first-syllable speech is never
// clipped, confirmed in a single frame, ended after an 8-frame (~160ms at
// 20ms/frame) silence gap, capped at 30 seconds of continuous talking.
func Listening() Config {
	return Config{
		EnergyThreshold:     300,
		SpeechConfirmFrames: 1,
		SilenceGapFrames:    8,
		MaxDuration:         30 * time.Second,
	}
}

// BargeIn returns the Config used while the assistant is speaking: a higher
// threshold and a two-frame confirm so playback bleed and room noise don't
// falsely interrupt the assistant.
func BargeIn() Config {
	return Config{
		EnergyThreshold:     600,
		SpeechConfirmFrames: 2,
		SilenceGapFrames:    8,
	}
}

// Detector tracks speech/silence across a sequence of frames.
type Detector struct {
	cfg Config

	speaking      bool
	aboveCount    int
	belowCount    int
	speechElapsed time.Duration
}

// New creates a Detector with the given Config.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// NewListening creates a Detector configured for listen-mode endpointing.
func NewListening() *Detector { return New(Listening()) }

// NewBargeIn creates a Detector configured for barge-in detection.
func NewBargeIn() *Detector { return New(BargeIn()) }

// Speaking reports whether the detector currently considers the caller to
// be mid-utterance.
func (d *Detector) Speaking() bool { return d.speaking }

// Reset clears all frame counters and elapsed time, as if freshly constructed.
func (d *Detector) Reset() {
	d.speaking = false
	d.aboveCount = 0
	d.belowCount = 0
	d.speechElapsed = 0
}

// Process feeds one frame through the detector and returns what changed.
func (d *Detector) Process(frame audio.Frame) Transition {
	energy := audio.RMSEnergy(frame.Samples())
	above := energy >= float64(d.cfg.EnergyThreshold)

	if above {
		d.aboveCount++
		d.belowCount = 0
	} else {
		d.belowCount++
		d.aboveCount = 0
	}

	if d.speaking {
		d.speechElapsed += frame.Duration()
		if d.cfg.MaxDuration > 0 && d.speechElapsed >= d.cfg.MaxDuration {
			d.speaking = false
			return HardCapReached
		}
		if d.belowCount >= d.cfg.SilenceGapFrames {
			d.speaking = false
			d.speechElapsed = 0
			return SpeechEnded
		}
		return NoChange
	}

	if d.aboveCount >= d.cfg.SpeechConfirmFrames {
		d.speaking = true
		d.speechElapsed = frame.Duration() * time.Duration(d.aboveCount)
		d.aboveCount = 0
		return SpeechStarted
	}
	return NoChange
}
