package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"

	"github.com/voxdial/scheduler/internal/log"
	"github.com/voxdial/scheduler/pkg/channel"
	"github.com/voxdial/scheduler/pkg/ice"
	"github.com/voxdial/scheduler/pkg/protocol"
)

// signalingHandshakeTimeout bounds how long a signaling socket may sit idle
// between "hello" and a "webrtc_offer".
const signalingHandshakeTimeout = 30 * time.Second

// SignalingHandler upgrades r to a WebSocket and speaks the browser
// peer-connection signaling protocol: hello/hello_ack exchanges ICE
// servers, webrtc_offer/webrtc_answer establishes the media path, after
// which the call runs on its own goroutine until hangup or socket close.
func (g *Gateway) SignalingHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("gateway: signaling upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(signalingHandshakeTimeout))

	var callID string
	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}

		switch env.Event {
		case protocol.SignalEventHello:
			var hello protocol.HelloPayload
			if err := env.Decode(&hello); err != nil {
				writeSignalError(conn, "invalid hello payload")
				return
			}
			callID = hello.CallID

			servers := ice.Resolve(r.Context(), g.ICEProvider, g.ICEFallback)
			ack, err := protocol.NewEnvelope(protocol.SignalEventHelloAck, protocol.HelloAckPayload{
				CallID:     callID,
				ICEServers: servers,
			})
			if err != nil {
				return
			}
			if err := conn.WriteJSON(ack); err != nil {
				return
			}

		case protocol.SignalEventOffer:
			var offer protocol.OfferPayload
			if err := env.Decode(&offer); err != nil {
				writeSignalError(conn, "invalid offer payload")
				return
			}

			servers := ice.Resolve(r.Context(), g.ICEProvider, g.ICEFallback)
			ch, answer, err := channel.NewWebRTC(r.Context(), webrtc.SessionDescription{
				Type: webrtc.SDPTypeOffer,
				SDP:  offer.SDP,
			}, toPionICEServers(servers), callID)
			if err != nil {
				log.Warn("gateway: webrtc negotiation failed", "call_id", callID, "error", err)
				writeSignalError(conn, "negotiation failed")
				return
			}

			answerEnv, err := protocol.NewEnvelope(protocol.SignalEventAnswer, protocol.AnswerPayload{SDP: answer.SDP})
			if err != nil {
				ch.Close()
				return
			}
			conn.SetWriteDeadline(time.Now().Add(idleWriteTimeout))
			if err := conn.WriteJSON(answerEnv); err != nil {
				ch.Close()
				return
			}
			conn.SetReadDeadline(time.Time{})

			sess, broadcaster, err := g.newSession()
			if err != nil {
				log.Error("gateway: could not start session", "error", err)
				ch.Close()
				return
			}
			go g.runCall(ch, sess, broadcaster)

			// The signaling socket's job is done once the media path is
			// negotiated; keep it open only to detect an explicit hangup.
			waitForHangup(conn)
			return

		case protocol.SignalEventPing:
			pong, err := protocol.NewEnvelope(protocol.SignalEventPong, nil)
			if err != nil {
				return
			}
			if err := conn.WriteJSON(pong); err != nil {
				return
			}

		case protocol.SignalEventHangup:
			return
		}
	}
}

func waitForHangup(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Time{})
	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		if env.Event == protocol.SignalEventHangup {
			return
		}
	}
}

func writeSignalError(conn *websocket.Conn, message string) {
	env, err := protocol.NewEnvelope(protocol.SignalEventError, protocol.ErrorPayload{Message: message})
	if err != nil {
		return
	}
	conn.WriteJSON(env)
}

func toPionICEServers(servers []ice.Server) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		out = append(out, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return out
}
