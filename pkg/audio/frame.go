// Package audio holds the transport-agnostic PCM representation shared by
// every Channel adapter, plus the pure sample-rate conversion and encoding
// helpers they build on.
package audio

import "time"

// CanonicalSampleRate is the sample rate every Frame is normalized to before
// it reaches the turn controller, the VAD, or a transcription provider.
const CanonicalSampleRate = 16000

// Frame is a chunk of mono, little-endian PCM16 audio at SampleRate.
// Frame is a value type: callers that need to retain a frame across a
// channel send should not mutate PCM after handing it off.
type Frame struct {
	PCM        []byte
	SampleRate int
}

// NewFrame wraps raw little-endian PCM16 bytes captured at sampleRate.
func NewFrame(pcm []byte, sampleRate int) Frame {
	return Frame{PCM: pcm, SampleRate: sampleRate}
}

// FromSamples builds a Frame from int16 samples at sampleRate.
func FromSamples(samples []int16, sampleRate int) Frame {
	return Frame{PCM: SamplesToBytes(samples), SampleRate: sampleRate}
}

// Samples decodes the frame's PCM bytes into int16 samples.
func (f Frame) Samples() []int16 {
	return BytesToSamples(f.PCM)
}

// SampleCount returns the number of int16 samples in the frame.
func (f Frame) SampleCount() int {
	return len(f.PCM) / 2
}

// Duration returns the playback duration of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	seconds := float64(f.SampleCount()) / float64(f.SampleRate)
	return time.Duration(seconds * float64(time.Second))
}

// ToCanonicalRate resamples the frame to CanonicalSampleRate if needed.
func (f Frame) ToCanonicalRate() Frame {
	if f.SampleRate == CanonicalSampleRate {
		return f
	}
	return Frame{
		PCM:        ResampleBytes(f.PCM, f.SampleRate, CanonicalSampleRate),
		SampleRate: CanonicalSampleRate,
	}
}

// Resampled returns a copy of the frame resampled to toRate.
func (f Frame) Resampled(toRate int) Frame {
	if f.SampleRate == toRate {
		return f
	}
	return Frame{
		PCM:        ResampleBytes(f.PCM, f.SampleRate, toRate),
		SampleRate: toRate,
	}
}
