// Package channel provides transport-agnostic duplex audio carriers. A
// Channel always moves canonical 16kHz mono int16 frames; adapters perform
// whatever codec and rate conversion their transport requires at the edge.
package channel

import (
	"context"
	"errors"

	"github.com/voxdial/scheduler/pkg/audio"
)

// ErrClosed is returned by operations attempted on a closed Channel.
var ErrClosed = errors.New("channel: closed")

// ConnState describes the lifecycle state of a Channel's underlying transport.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateOpen
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Info describes the caller/session identifiers a transport learned during
// its handshake. Fields are populated as available; zero values mean unknown.
type Info struct {
	Transport   string
	CallID      string
	StreamID    string
	SessionID   string
	PhoneNumber string
	UserAgent   string
}

// Channel is the narrow contract every transport adapter implements. It
// never exposes transport internals: callers drain frames, enqueue
// playback, ask for connection state, and close — nothing else.
type Channel interface {
	// ReceiveAudio returns a channel of canonical-rate frames. The channel
	// closes when the transport closes or Close is called; it is not
	// restartable.
	ReceiveAudio() <-chan audio.Frame

	// SendAudio blocks until frames have been accepted by the transport
	// (or handed to its outbound buffer) or the context is done.
	SendAudio(ctx context.Context, frames []audio.Frame) error

	// StopSpeaking discards any outbound audio still queued for playback,
	// used on barge-in to stop mid-utterance immediately.
	StopSpeaking()

	// CallerInfo returns what the transport learned about the caller.
	CallerInfo() Info

	// ConnectionState reports the transport's current lifecycle state.
	ConnectionState() ConnState

	// Close releases transport resources. Idempotent.
	Close() error
}
