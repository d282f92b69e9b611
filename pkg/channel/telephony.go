package channel

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/voxdial/scheduler/pkg/audio"
	"github.com/voxdial/scheduler/pkg/protocol"
)

const telephonySampleRate = 8000

// HandshakeTimeout bounds how long a Telephony adapter waits for the
// transport's "connected" and "start" events before giving up.
var HandshakeTimeout = 10 * time.Second

// Telephony adapts a media-stream WebSocket (JSON-wrapped base64 mulaw
// frames at 8kHz) to the canonical Channel contract.
type Telephony struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	frames chan audio.Frame
	info   Info

	state    atomic.Int32
	speakGen atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

// NewTelephony performs the protocol handshake on conn (waiting for
// "connected" then "start") and returns a ready Telephony channel. It
// blocks until the handshake completes, fails, or HandshakeTimeout elapses.
func NewTelephony(conn *websocket.Conn) (*Telephony, error) {
	t := &Telephony{
		conn:   conn,
		frames: make(chan audio.Frame, 32),
	}
	t.state.Store(int32(StateConnecting))

	if err := t.handshake(); err != nil {
		conn.Close()
		return nil, err
	}

	t.state.Store(int32(StateOpen))
	go t.readLoop()
	return t, nil
}

func (t *Telephony) handshake() error {
	t.conn.SetReadDeadline(time.Now().Add(HandshakeTimeout))
	defer t.conn.SetReadDeadline(time.Time{})

	for {
		var env protocol.Envelope
		if err := t.conn.ReadJSON(&env); err != nil {
			return fmt.Errorf("channel: telephony handshake: %w", err)
		}
		switch env.Event {
		case protocol.TelephonyEventConnected:
			continue
		case protocol.TelephonyEventStart:
			var start protocol.StartPayload
			if err := env.Decode(&start); err != nil {
				return fmt.Errorf("channel: telephony start payload: %w", err)
			}
			t.info = Info{
				Transport:   "telephony",
				CallID:      start.CallSID,
				StreamID:    start.StreamSID,
				PhoneNumber: start.FromNumber,
			}
			return nil
		default:
			return fmt.Errorf("channel: telephony handshake: unexpected event %q", env.Event)
		}
	}
}

func (t *Telephony) readLoop() {
	defer close(t.frames)
	defer t.state.Store(int32(StateClosed))

	for {
		var env protocol.Envelope
		if err := t.conn.ReadJSON(&env); err != nil {
			return
		}

		switch env.Event {
		case protocol.TelephonyEventMedia:
			var media protocol.MediaPayload
			if err := env.Decode(&media); err != nil {
				continue
			}
			frame, err := t.decodeMedia(media)
			if err != nil {
				continue
			}
			select {
			case t.frames <- frame:
			default:
				// Drop the oldest buffered frame rather than stall the socket
				// reader behind a slow VAD/session consumer.
				select {
				case <-t.frames:
				default:
				}
				select {
				case t.frames <- frame:
				default:
				}
			}
		case protocol.TelephonyEventStop:
			return
		}
	}
}

func (t *Telephony) decodeMedia(m protocol.MediaPayload) (audio.Frame, error) {
	raw, err := base64.StdEncoding.DecodeString(m.Payload)
	if err != nil {
		return audio.Frame{}, fmt.Errorf("channel: decode mulaw payload: %w", err)
	}
	pcm := audio.MulawToPCM16(raw)
	samples := audio.BytesToSamples(pcm)
	upsampled := audio.Resample(samples, telephonySampleRate, audio.CanonicalSampleRate)
	return audio.FromSamples(upsampled, audio.CanonicalSampleRate), nil
}

// ReceiveAudio implements Channel.
func (t *Telephony) ReceiveAudio() <-chan audio.Frame { return t.frames }

// SendAudio implements Channel. It downsamples each canonical-rate frame to
// 8kHz, mulaw-encodes it, and writes one media event per frame, stopping
// early if StopSpeaking is called concurrently.
func (t *Telephony) SendAudio(ctx context.Context, frames []audio.Frame) error {
	gen := t.speakGen.Load()

	for _, frame := range frames {
		if t.speakGen.Load() != gen {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		samples := frame.Samples()
		downsampled := audio.Resample(samples, frame.SampleRate, telephonySampleRate)
		mulaw := audio.PCM16ToMulaw(audio.SamplesToBytes(downsampled))

		env, err := protocol.NewEnvelope(protocol.TelephonyEventMedia, protocol.MediaPayload{
			StreamSID: t.info.StreamID,
			Track:     "outbound",
			Payload:   base64.StdEncoding.EncodeToString(mulaw),
		})
		if err != nil {
			return fmt.Errorf("channel: build media envelope: %w", err)
		}

		if err := t.writeJSON(env); err != nil {
			// Transport write error: log-and-drop semantics belong to the
			// caller (turn controller); report once here and stop this send.
			return fmt.Errorf("channel: telephony write: %w", err)
		}
	}
	return nil
}

func (t *Telephony) writeJSON(v any) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteJSON(v)
}

// StopSpeaking implements Channel by invalidating any in-flight SendAudio
// call's generation token, causing it to return on its next frame.
func (t *Telephony) StopSpeaking() {
	t.speakGen.Add(1)
}

// CallerInfo implements Channel.
func (t *Telephony) CallerInfo() Info { return t.info }

// ConnectionState implements Channel.
func (t *Telephony) ConnectionState() ConnState { return ConnState(t.state.Load()) }

// Close implements Channel.
func (t *Telephony) Close() error {
	t.closeOnce.Do(func() {
		t.state.Store(int32(StateClosed))
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
