// Package protocol defines the JSON wire envelopes for the two inbound
// transports: the telephony media-stream socket and the WebRTC signaling
// socket. Both share an envelope shape (typed event, raw payload) so a
// handler can dispatch on Event before decoding the specific payload.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Telephony media-stream event types.
const (
	TelephonyEventConnected = "connected"
	TelephonyEventStart     = "start"
	TelephonyEventMedia     = "media"
	TelephonyEventStop      = "stop"
)

// WebRTC signaling event types.
const (
	SignalEventHello    = "hello"
	SignalEventOffer    = "webrtc_offer"
	SignalEventHangup   = "hangup"
	SignalEventPing     = "ping"
	SignalEventHelloAck = "hello_ack"
	SignalEventAnswer   = "webrtc_answer"
	SignalEventPong     = "pong"
	SignalEventError    = "error"
)

// Envelope is the shared shape of every inbound/outbound message on both
// sockets: a discriminator plus a raw payload decoded once the event type
// is known.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals e.Payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("protocol: %s event has no payload", e.Event)
	}
	return json.Unmarshal(e.Payload, v)
}

// NewEnvelope builds an Envelope carrying v as its payload.
func NewEnvelope(event string, v any) (Envelope, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, fmt.Errorf("protocol: marshal %s payload: %w", event, err)
	}
	return Envelope{Event: event, Payload: raw}, nil
}

// StartPayload carries call metadata delivered with a telephony "start" event.
type StartPayload struct {
	CallSID    string `json:"call_sid"`
	StreamSID  string `json:"stream_sid"`
	FromNumber string `json:"from_number"`
	ToNumber   string `json:"to_number"`
}

// MediaPayload carries one frame of base64-encoded mu-law audio.
type MediaPayload struct {
	StreamSID string `json:"stream_sid"`
	Track     string `json:"track"`
	Payload   string `json:"payload"` // base64 mu-law
}

// StopPayload marks the end of a telephony stream.
type StopPayload struct {
	StreamSID string `json:"stream_sid"`
	Reason    string `json:"reason,omitempty"`
}

// HelloPayload opens a WebRTC signaling session.
type HelloPayload struct {
	CallID string `json:"call_id"`
}

// OfferPayload carries an SDP offer from the browser peer.
type OfferPayload struct {
	SDP string `json:"sdp"`
}

// AnswerPayload carries our SDP answer back to the browser peer.
type AnswerPayload struct {
	SDP string `json:"sdp"`
}

// ICEServer mirrors the subset of RTCIceServer the browser peer needs.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// HelloAckPayload responds to HelloPayload with the ICE servers to use.
type HelloAckPayload struct {
	CallID     string      `json:"call_id"`
	ICEServers []ICEServer `json:"ice_servers"`
}

// ErrorPayload reports a protocol-level error to the peer.
type ErrorPayload struct {
	Message string `json:"message"`
}
