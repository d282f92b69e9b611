// Package turnctl runs one per-call goroutine that alternates listening and
// speaking: it drains audio from a channel.Channel, endpoints utterances
// with pkg/vad, transcribes and hands them to a pkg/session.Session, and
// speaks the reply back while watching for caller barge-in.
package turnctl

import (
	"context"
	"errors"
	"time"

	"github.com/voxdial/scheduler/pkg/audio"
	"github.com/voxdial/scheduler/pkg/channel"
	"github.com/voxdial/scheduler/pkg/debugbus"
	"github.com/voxdial/scheduler/pkg/session"
	"github.com/voxdial/scheduler/pkg/stt"
	"github.com/voxdial/scheduler/pkg/tts"
	"github.com/voxdial/scheduler/pkg/vad"
)

// Errors returned by Run to describe why the call ended.
var (
	ErrTransportIdle   = errors.New("turnctl: no audio received within idle timeout")
	ErrTransportClosed = errors.New("turnctl: transport closed")
)

// IdleTimeout is how long the controller waits for audio before declaring
// the transport dead.
var IdleTimeout = 10 * time.Second

// bargeInPollChunk is the duration of outbound audio written between
// barge-in checks during playback, matching the ~100ms poll cadence.
const bargeInPollChunk = 100 * time.Millisecond

// outboundChunkDuration is the size of each frame handed to Channel.SendAudio.
const outboundChunkDuration = 20 * time.Millisecond

// Controller drives one call end to end.
type Controller struct {
	ch          channel.Channel
	sess        *session.Session
	stt         stt.Provider
	tts         tts.Provider
	broadcaster *debugbus.Broadcaster
}

// New builds a Controller for one call. sess must already be registered by
// the caller; Controller only drives it.
func New(ch channel.Channel, sess *session.Session, sttProvider stt.Provider, ttsProvider tts.Provider, broadcaster *debugbus.Broadcaster) *Controller {
	return &Controller{ch: ch, sess: sess, stt: sttProvider, tts: ttsProvider, broadcaster: broadcaster}
}

func (c *Controller) emit(eventType string, data map[string]any) {
	if c.broadcaster == nil {
		return
	}
	c.broadcaster.Emit(debugbus.Event{
		Type:      eventType,
		SessionID: c.sess.ID(),
		Timestamp: time.Now(),
		Data:      data,
	})
}

// Run drives the call until the Session is done, the transport dies, or ctx
// is cancelled. It always attempts to close the channel on the way out.
func (c *Controller) Run(ctx context.Context) error {
	defer c.ch.Close()

	greeting, err := c.sess.Start(ctx)
	if err != nil {
		return err
	}
	if _, _, err := c.speak(ctx, greeting); err != nil {
		return err
	}

	var carryover []audio.Frame
	for !c.sess.IsDone() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		utterance, err := c.listen(ctx, carryover)
		carryover = nil
		if err != nil {
			return err
		}

		text, err := c.transcribe(ctx, utterance)
		if err != nil {
			return err
		}

		reply, err := c.sess.HandleUtterance(ctx, text)
		if err != nil {
			return err
		}
		if c.sess.IsDone() && reply == "" {
			return nil
		}

		barged, leftover, err := c.speak(ctx, reply)
		if err != nil {
			return err
		}
		if barged {
			carryover = leftover
		}
	}
	return nil
}

// listen accumulates frames (starting from any carried-over barge-in
// frames) until the VAD reports an endpoint, hard cap, or the transport
// goes quiet for IdleTimeout.
func (c *Controller) listen(ctx context.Context, carryover []audio.Frame) ([]int16, error) {
	detector := vad.NewListening()
	var samples []int16
	for _, f := range carryover {
		samples = append(samples, f.Samples()...)
		detector.Process(f)
	}

	idle := time.NewTimer(IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-idle.C:
			return nil, ErrTransportIdle
		case frame, ok := <-c.ch.ReceiveAudio():
			if !ok {
				return nil, ErrTransportClosed
			}
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(IdleTimeout)

			samples = append(samples, frame.Samples()...)
			switch detector.Process(frame) {
			case vad.SpeechStarted:
				c.emit("speech_start", nil)
			case vad.SpeechEnded, vad.HardCapReached:
				c.emit("speech_end", map[string]any{"samples": len(samples)})
				return samples, nil
			}
		}
	}
}

func (c *Controller) transcribe(ctx context.Context, samples []int16) (string, error) {
	if c.stt == nil || len(samples) == 0 {
		return "", nil
	}
	result, err := c.stt.Transcribe(ctx, audio.SamplesToBytes(samples))
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// speak synthesizes text and plays it back, watching incoming audio for
// barge-in. It returns (barged, preservedFrames, err). preservedFrames are
// the frames that triggered barge-in detection; the caller should feed them
// straight back into listen rather than discard them.
func (c *Controller) speak(ctx context.Context, text string) (bool, []audio.Frame, error) {
	if c.tts == nil || text == "" {
		return false, nil, nil
	}

	result, err := c.tts.Synthesize(ctx, text)
	if err != nil {
		return false, nil, err
	}

	frames := chunkFrames(result.Audio, result.Format.SampleRate, outboundChunkDuration)

	playCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	bargeCh := make(chan []audio.Frame, 1)
	go c.watchBargeIn(playCtx, bargeCh)

	perChunk := int(bargeInPollChunk / outboundChunkDuration)
	var sendErr error
	for start := 0; ; start += perChunk {
		select {
		case preserved := <-bargeCh:
			cancel()
			c.ch.StopSpeaking()
			c.emit("barge_in", nil)
			return true, preserved, nil
		default:
		}
		if start >= len(frames) || sendErr != nil {
			break
		}
		sendErr = c.ch.SendAudio(playCtx, frames[start:min(start+perChunk, len(frames))])
	}

	if sendErr != nil && !errors.Is(sendErr, context.Canceled) {
		return false, nil, sendErr
	}
	return false, nil, nil
}

// watchBargeIn polls incoming audio during playback using the higher
// barge-in threshold. On confirmed speech it sends the frames that
// triggered detection on found and returns.
func (c *Controller) watchBargeIn(ctx context.Context, found chan<- []audio.Frame) {
	detector := vad.NewBargeIn()
	var recent []audio.Frame
	const recentWindow = 5

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-c.ch.ReceiveAudio():
			if !ok {
				return
			}
			recent = append(recent, frame)
			if len(recent) > recentWindow {
				recent = recent[len(recent)-recentWindow:]
			}
			if detector.Process(frame) == vad.SpeechStarted {
				preserved := make([]audio.Frame, len(recent))
				copy(preserved, recent)
				select {
				case found <- preserved:
				default:
				}
				return
			}
		}
	}
}

// chunkFrames splits raw PCM16 audio into fixed-duration frames at rate.
func chunkFrames(pcm []byte, rate int, chunkDur time.Duration) []audio.Frame {
	if rate == 0 {
		rate = audio.CanonicalSampleRate
	}
	samples := audio.BytesToSamples(pcm)
	chunkSize := int(float64(rate) * chunkDur.Seconds())
	if chunkSize <= 0 {
		chunkSize = len(samples)
	}

	var frames []audio.Frame
	for start := 0; start < len(samples); start += chunkSize {
		end := start + chunkSize
		if end > len(samples) {
			end = len(samples)
		}
		frames = append(frames, audio.FromSamples(samples[start:end], rate))
	}
	return frames
}
