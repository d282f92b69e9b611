package channel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"gopkg.in/hraban/opus.v2"

	"github.com/voxdial/scheduler/pkg/audio"
)

// peerSampleRate is the rate the browser peer's audio track runs at.
const peerSampleRate = 48000

const (
	opusFrameSamples = 960 // 20ms at 48kHz
	rtpClockRate     = 48000
)

// TrackReadyTimeout bounds how long NewWebRTC waits for the remote peer's
// audio track to arrive after SetRemoteDescription.
var TrackReadyTimeout = 15 * time.Second

// WebRTC adapts a pion PeerConnection carrying a single Opus audio track to
// the canonical Channel contract.
type WebRTC struct {
	pc *webrtc.PeerConnection

	localTrack *webrtc.TrackLocalStaticSample
	decoder    *opus.Decoder
	encoder    *opus.Encoder

	frames chan audio.Frame
	info   Info

	state    atomic.Int32
	speakGen atomic.Uint64

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewWebRTC builds a PeerConnection configured for one recvonly+sendonly
// Opus audio transceiver, sets offer as the remote description, and returns
// a Channel plus the SDP answer to send back. The caller still owns ICE
// gathering/signaling; this only wires the audio path.
func NewWebRTC(ctx context.Context, offer webrtc.SessionDescription, iceServers []webrtc.ICEServer, callID string) (*WebRTC, webrtc.SessionDescription, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, webrtc.SessionDescription{}, fmt.Errorf("channel: new peer connection: %w", err)
	}

	decoder, err := opus.NewDecoder(peerSampleRate, 1)
	if err != nil {
		pc.Close()
		return nil, webrtc.SessionDescription{}, fmt.Errorf("channel: new opus decoder: %w", err)
	}
	encoder, err := opus.NewEncoder(peerSampleRate, 1, opus.AppVoIP)
	if err != nil {
		pc.Close()
		return nil, webrtc.SessionDescription{}, fmt.Errorf("channel: new opus encoder: %w", err)
	}

	localTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: rtpClockRate, Channels: 1},
		"audio", "scheduler",
	)
	if err != nil {
		pc.Close()
		return nil, webrtc.SessionDescription{}, fmt.Errorf("channel: new local track: %w", err)
	}
	if _, err := pc.AddTrack(localTrack); err != nil {
		pc.Close()
		return nil, webrtc.SessionDescription{}, fmt.Errorf("channel: add local track: %w", err)
	}

	w := &WebRTC{
		pc:         pc,
		localTrack: localTrack,
		decoder:    decoder,
		encoder:    encoder,
		frames:     make(chan audio.Frame, 32),
		info:       Info{Transport: "webrtc", CallID: callID},
	}
	w.state.Store(int32(StateConnecting))

	trackReady := make(chan struct{}, 1)
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		select {
		case trackReady <- struct{}{}:
		default:
		}
		go w.readRemoteTrack(track)
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		switch s {
		case webrtc.PeerConnectionStateConnected:
			w.state.Store(int32(StateOpen))
		case webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected:
			w.state.Store(int32(StateClosed))
		}
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		return nil, webrtc.SessionDescription{}, fmt.Errorf("channel: set remote description: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return nil, webrtc.SessionDescription{}, fmt.Errorf("channel: create answer: %w", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		return nil, webrtc.SessionDescription{}, fmt.Errorf("channel: set local description: %w", err)
	}

	select {
	case <-trackReady:
	case <-time.After(TrackReadyTimeout):
		pc.Close()
		return nil, webrtc.SessionDescription{}, fmt.Errorf("channel: timed out waiting for remote audio track")
	case <-ctx.Done():
		pc.Close()
		return nil, webrtc.SessionDescription{}, ctx.Err()
	}

	return w, answer, nil
}

// readRemoteTrack decodes inbound Opus RTP packets to PCM16@48kHz, downsamples
// 3:1 by stride selection to the canonical rate, and publishes frames.
func (w *WebRTC) readRemoteTrack(track *webrtc.TrackRemote) {
	defer close(w.frames)
	defer w.state.Store(int32(StateClosed))

	pcmBuf := make([]int16, opusFrameSamples*6)
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		n, err := w.decoder.Decode(pkt.Payload, pcmBuf)
		if err != nil {
			continue
		}
		downsampled := audio.Resample(pcmBuf[:n], peerSampleRate, audio.CanonicalSampleRate)
		frame := audio.FromSamples(downsampled, audio.CanonicalSampleRate)

		select {
		case w.frames <- frame:
		default:
			select {
			case <-w.frames:
			default:
			}
			select {
			case w.frames <- frame:
			default:
			}
		}
	}
}

// ReceiveAudio implements Channel.
func (w *WebRTC) ReceiveAudio() <-chan audio.Frame { return w.frames }

// SendAudio implements Channel. It upsamples each canonical-rate frame to
// 48kHz, Opus-encodes it in 20ms chunks, and writes RTP samples to the
// local track, stopping early if StopSpeaking is called concurrently.
func (w *WebRTC) SendAudio(ctx context.Context, frames []audio.Frame) error {
	gen := w.speakGen.Load()

	for _, frame := range frames {
		if w.speakGen.Load() != gen {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		upsampled := audio.Resample(frame.Samples(), frame.SampleRate, peerSampleRate)
		for start := 0; start < len(upsampled); start += opusFrameSamples {
			end := start + opusFrameSamples
			if end > len(upsampled) {
				end = len(upsampled)
			}
			chunk := upsampled[start:end]
			if len(chunk) < opusFrameSamples {
				padded := make([]int16, opusFrameSamples)
				copy(padded, chunk)
				chunk = padded
			}

			encoded := make([]byte, 4000)
			w.writeMu.Lock()
			n, err := w.encoder.Encode(chunk, encoded)
			w.writeMu.Unlock()
			if err != nil {
				return fmt.Errorf("channel: opus encode: %w", err)
			}

			duration := time.Duration(opusFrameSamples) * time.Second / peerSampleRate
			if err := w.localTrack.WriteSample(media.Sample{Data: encoded[:n], Duration: duration}); err != nil {
				return fmt.Errorf("channel: write sample: %w", err)
			}
		}
	}
	return nil
}

// StopSpeaking implements Channel by invalidating any in-flight SendAudio
// call's generation token.
func (w *WebRTC) StopSpeaking() {
	w.speakGen.Add(1)
}

// CallerInfo implements Channel.
func (w *WebRTC) CallerInfo() Info { return w.info }

// ConnectionState implements Channel.
func (w *WebRTC) ConnectionState() ConnState { return ConnState(w.state.Load()) }

// Close implements Channel.
func (w *WebRTC) Close() error {
	w.closeOnce.Do(func() {
		w.state.Store(int32(StateClosed))
		w.closeErr = w.pc.Close()
	})
	return w.closeErr
}
