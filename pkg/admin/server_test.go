package admin

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxdial/scheduler/internal/config"
	"github.com/voxdial/scheduler/pkg/llm"
	"github.com/voxdial/scheduler/pkg/session"
	"github.com/voxdial/scheduler/pkg/tool"
	"github.com/voxdial/scheduler/pkg/workflow"
)

func testWorkflow() *workflow.Workflow {
	return &workflow.Workflow{
		Name:         "greet-only",
		InitialState: "greet",
		States: map[string]workflow.State{
			"greet": {
				ID:          "greet",
				Narration:   "Hi there!",
				Transitions: map[string]string{"*": "exit:Goodbye."},
			},
		},
	}
}

func newTestServer(t *testing.T, apiKey string, debugOpen bool) *Server {
	t.Helper()
	registry := workflow.NewRegistry()
	require.NoError(t, registry.Replace(testWorkflow()))
	return New("127.0.0.1", 0, apiKey, debugOpen, config.DefaultRuntimeSettings(), registry)
}

func doRequest(t *testing.T, s *Server, method, path, body, bearer string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestAdminTokenMatrix(t *testing.T) {
	t.Run("key set, valid token allows", func(t *testing.T) {
		s := newTestServer(t, "secret", false)
		resp := doRequest(t, s, http.MethodGet, "/api/config", "", "secret")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("key set, wrong token denies", func(t *testing.T) {
		s := newTestServer(t, "secret", false)
		resp := doRequest(t, s, http.MethodGet, "/api/config", "", "wrong")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("key set, missing token denies", func(t *testing.T) {
		s := newTestServer(t, "secret", false)
		resp := doRequest(t, s, http.MethodGet, "/api/config", "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("key unset, debug open allows", func(t *testing.T) {
		s := newTestServer(t, "", true)
		resp := doRequest(t, s, http.MethodGet, "/api/config", "", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("key unset, debug closed forbids", func(t *testing.T) {
		s := newTestServer(t, "", false)
		resp := doRequest(t, s, http.MethodGet, "/api/config", "", "")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestAdminConfigRoundTrip(t *testing.T) {
	s := newTestServer(t, "", true)

	resp := doRequest(t, s, http.MethodPatch, "/api/config", `{"vad_energy_threshold": 450}`, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	snap := s.runtime.Snapshot()
	assert.Equal(t, 450, snap.VADEnergyThreshold)
}

func TestAdminSessionLifecycle(t *testing.T) {
	s := newTestServer(t, "", true)

	sess := session.New(testWorkflow(), llm.ClientFunc(func(ctx context.Context, msgs []llm.Message) (string, error) {
		return "", nil
	}), tool.NewRegistry())
	session.Register(sess)
	defer session.Unregister(sess.ID())

	resp := doRequest(t, s, http.MethodGet, "/api/sessions", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, s, http.MethodGet, "/api/sessions/"+sess.ID(), "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, s, http.MethodPost, "/api/sessions/"+sess.ID()+"/pause", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, sess.IsPaused())

	resp = doRequest(t, s, http.MethodGet, "/api/sessions/bad%20id", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminWorkflowPatch(t *testing.T) {
	s := newTestServer(t, "", true)

	resp := doRequest(t, s, http.MethodPatch, "/api/workflows/greet-only/states/greet",
		`{"narration": "Welcome!"}`, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	w, ok := s.workflows.Get("greet-only")
	require.True(t, ok)
	assert.Equal(t, "Welcome!", w.States["greet"].Narration)
}

func TestAdminWorkflowPatchRejectsBadStateID(t *testing.T) {
	s := newTestServer(t, "", true)

	resp := doRequest(t, s, http.MethodPatch, "/api/workflows/greet-only/states/no-such-state",
		`{"narration": "Welcome!"}`, "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}
