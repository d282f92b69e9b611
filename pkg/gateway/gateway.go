// Package gateway accepts inbound calls on the two public transports
// (telephony media-stream and WebRTC signaling), builds the matching
// channel.Channel adapter, starts a session against the default workflow,
// and hands both off to a turnctl.Controller for the life of the call.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxdial/scheduler/internal/log"
	"github.com/voxdial/scheduler/pkg/channel"
	"github.com/voxdial/scheduler/pkg/debugbus"
	"github.com/voxdial/scheduler/pkg/ice"
	"github.com/voxdial/scheduler/pkg/llm"
	"github.com/voxdial/scheduler/pkg/session"
	"github.com/voxdial/scheduler/pkg/stt"
	"github.com/voxdial/scheduler/pkg/tool"
	"github.com/voxdial/scheduler/pkg/tts"
	"github.com/voxdial/scheduler/pkg/turnctl"
	"github.com/voxdial/scheduler/pkg/workflow"
)

// Gateway wires every dependency a new call needs: which workflow starts
// it, how it talks to the LLM and tools, and which STT/TTS providers and
// NAT-traversal credentials its channel adapter uses.
type Gateway struct {
	Workflows       *workflow.Registry
	DefaultWorkflow string
	LLMClient       llm.Client
	Tools           *tool.Registry
	STT             stt.Provider
	TTS             tts.Provider
	ICEProvider     ice.CredentialProvider
	ICEFallback     []ice.Server

	upgrader websocket.Upgrader
}

// New builds a Gateway. Pass a nil ICEProvider to always use ICEFallback.
func New(workflows *workflow.Registry, defaultWorkflow string, llmClient llm.Client, tools *tool.Registry, sttProvider stt.Provider, ttsProvider tts.Provider, iceProvider ice.CredentialProvider, iceFallback []ice.Server) *Gateway {
	return &Gateway{
		Workflows:       workflows,
		DefaultWorkflow: defaultWorkflow,
		LLMClient:       llmClient,
		Tools:           tools,
		STT:             sttProvider,
		TTS:             ttsProvider,
		ICEProvider:     iceProvider,
		ICEFallback:     iceFallback,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The telephony and browser signaling sockets are both accessed
			// cross-origin by design (a carrier media gateway, a widget
			// embedded on an arbitrary site); origin is not a trust boundary
			// here, auth is handled at the call/session layer instead.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// newSession starts a Session over the default workflow, registers it, and
// wires a fresh debug broadcaster into it.
func (g *Gateway) newSession() (*session.Session, *debugbus.Broadcaster, error) {
	w, ok := g.Workflows.Get(g.DefaultWorkflow)
	if !ok {
		return nil, nil, errNoDefaultWorkflow(g.DefaultWorkflow)
	}

	sess := session.New(w, g.LLMClient, g.Tools)
	broadcaster := debugbus.Register(sess.ID())
	sess.AttachBroadcaster(broadcaster)
	session.Register(sess)
	return sess, broadcaster, nil
}

func (g *Gateway) cleanupSession(sess *session.Session) {
	session.Unregister(sess.ID())
	debugbus.Unregister(sess.ID())
}

// runCall drives ch to completion on its own goroutine, logging the
// outcome and cleaning up the session registry entry on exit.
func (g *Gateway) runCall(ch channel.Channel, sess *session.Session, broadcaster *debugbus.Broadcaster) {
	defer g.cleanupSession(sess)

	ctrl := turnctl.New(ch, sess, g.STT, g.TTS, broadcaster)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ctrl.Run(ctx); err != nil {
		log.Warn("gateway: call ended", "session_id", sess.ID(), "transport", ch.CallerInfo().Transport, "error", err)
		return
	}
	log.Info("gateway: call completed", "session_id", sess.ID(), "transport", ch.CallerInfo().Transport)
}

type errNoDefaultWorkflow string

func (e errNoDefaultWorkflow) Error() string {
	return "gateway: no such default workflow " + string(e)
}

// TelephonyHandler upgrades r to a WebSocket, performs the media-stream
// handshake, and starts the call. It returns once the handshake either
// succeeds (the call runs on its own goroutine) or fails.
func (g *Gateway) TelephonyHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("gateway: telephony upgrade failed", "error", err)
		return
	}

	ch, err := channel.NewTelephony(conn)
	if err != nil {
		log.Warn("gateway: telephony handshake failed", "error", err)
		conn.Close()
		return
	}

	sess, broadcaster, err := g.newSession()
	if err != nil {
		log.Error("gateway: could not start session", "error", err)
		ch.Close()
		return
	}

	go g.runCall(ch, sess, broadcaster)
}

// idleWriteTimeout bounds how long a signaling write may block.
const idleWriteTimeout = 5 * time.Second
