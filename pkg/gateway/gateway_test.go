package gateway

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxdial/scheduler/pkg/audio"
	"github.com/voxdial/scheduler/pkg/llm"
	"github.com/voxdial/scheduler/pkg/protocol"
	"github.com/voxdial/scheduler/pkg/stt"
	"github.com/voxdial/scheduler/pkg/tool"
	"github.com/voxdial/scheduler/pkg/tts"
	"github.com/voxdial/scheduler/pkg/workflow"
)

func testRegistry(t *testing.T) *workflow.Registry {
	t.Helper()
	reg := workflow.NewRegistry()
	require.NoError(t, reg.Replace(&workflow.Workflow{
		Name:         "greet-only",
		InitialState: "greet",
		States: map[string]workflow.State{
			"greet": {
				ID:          "greet",
				Narration:   "Hi there!",
				Transitions: map[string]string{"*": "exit:Goodbye."},
			},
		},
	}))
	return reg
}

func TestTelephonyHandlerHandshakeAndMedia(t *testing.T) {
	gw := New(
		testRegistry(t), "greet-only",
		llm.ClientFunc(func(ctx context.Context, msgs []llm.Message) (string, error) {
			return "Hi there!", nil
		}),
		tool.NewRegistry(),
		stt.NewMock("book me a tour"),
		tts.NewMock(),
		nil, nil,
	)

	srv := httptest.NewServer(http.HandlerFunc(gw.TelephonyHandler))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	connectedEnv, err := protocol.NewEnvelope(protocol.TelephonyEventConnected, struct{}{})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(connectedEnv))

	startEnv, err := protocol.NewEnvelope(protocol.TelephonyEventStart, protocol.StartPayload{
		CallSID: "CA123", StreamSID: "MZ456", FromNumber: "+15551234567",
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(startEnv))

	samples := make([]int16, 160)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 8000
		}
	}
	mulaw := audio.PCM16ToMulaw(audio.SamplesToBytes(samples))
	for i := 0; i < 10; i++ {
		mediaEnv, err := protocol.NewEnvelope(protocol.TelephonyEventMedia, protocol.MediaPayload{
			StreamSID: "MZ456",
			Track:     "inbound",
			Payload:   base64.StdEncoding.EncodeToString(mulaw),
		})
		require.NoError(t, err)
		require.NoError(t, conn.WriteJSON(mediaEnv))
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var gotMedia bool
	for i := 0; i < 5; i++ {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			break
		}
		if env.Event == protocol.TelephonyEventMedia {
			gotMedia = true
			break
		}
	}
	assert.True(t, gotMedia, "expected at least one outbound media frame (the greeting)")
}

func TestNewSessionErrorsOnMissingDefaultWorkflow(t *testing.T) {
	gw := New(workflow.NewRegistry(), "missing", llm.NewMock(""), tool.NewRegistry(), stt.NewMock(""), tts.NewMock(), nil, nil)
	_, _, err := gw.newSession()
	assert.Error(t, err)
}
