// Package session drives a single call's conversation: it owns the
// caller's accumulated state, the message history sent to the LLM, and the
// current position in a workflow.Workflow, and it executes one state
// transition per caller utterance (or, for tool-backed states, a chain of
// automatic transitions with no utterance at all).
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voxdial/scheduler/pkg/debugbus"
	"github.com/voxdial/scheduler/pkg/llm"
	"github.com/voxdial/scheduler/pkg/tool"
	"github.com/voxdial/scheduler/pkg/workflow"
)

// maxToolChainSteps bounds automatic tool-state chaining so a workflow
// authoring mistake (a loop of tool states with no LLM or exit in between)
// can't hang a call forever.
const maxToolChainSteps = 10

// greetingPrompt is the fixed instruction used for the very first LLM call
// of a call, before the caller has said anything.
const greetingPrompt = "A caller just connected. Greet them warmly. " +
	"Keep it brief — just introduce yourself and welcome them."

// Session drives one call's conversation through a workflow.Workflow.
type Session struct {
	mu sync.Mutex

	id           string
	startedAt    time.Time
	workflow     *workflow.Workflow
	currentState string

	callerState map[string]any
	stepData    map[string]any
	history     []llm.Message

	paused      bool
	done        bool
	exitMessage string

	llmClient   llm.Client
	tools       *tool.Registry
	broadcaster *debugbus.Broadcaster
}

// New creates a Session over w, starting at w.InitialState. The caller
// must have validated w already (workflow.Registry does this on load/PUT).
func New(w *workflow.Workflow, llmClient llm.Client, tools *tool.Registry) *Session {
	return &Session{
		id:           uuid.NewString(),
		startedAt:    time.Now(),
		workflow:     w,
		currentState: w.InitialState,
		callerState:  make(map[string]any),
		stepData:     make(map[string]any),
		llmClient:    llmClient,
		tools:        tools,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// AttachBroadcaster wires a debug event sink; nil disables event emission.
func (s *Session) AttachBroadcaster(b *debugbus.Broadcaster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcaster = b
}

// IsDone reports whether the session has reached an exit state.
func (s *Session) IsDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// IsPaused reports whether the session is currently paused.
func (s *Session) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Pause suspends HandleUtterance until Resume is called, for admin inspection.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	s.emit("pause", map[string]any{"state": s.currentState})
}

// Resume clears a prior Pause.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	s.emit("resume", map[string]any{"state": s.currentState})
}

// Start enters the workflow's initial state and returns the opening line to
// speak: it runs the initial state's tool chain if it is tool-backed,
// otherwise it calls the LLM with the fixed greeting prompt, exactly like
// GetGreeting, so the very first thing a caller hears is the model's own
// words rather than a canned line.
func (s *Session) Start(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.workflow.State(s.currentState)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNoSuchState, s.currentState)
	}

	if state.IsToolState() {
		chained, err := s.runToolChain(ctx)
		if err != nil {
			return "", err
		}
		if chained != "" {
			return chained, nil
		}
	}

	greeting, err := s.callLLM(ctx, s.renderSystemPrompt(), greetingPrompt)
	if err != nil {
		s.emit("error", map[string]any{"state": s.currentState, "error": err.Error()})
		return "Hello! How can I help you?", nil
	}
	_, _, spoken := extractJSONSignal(greeting)
	return strings.TrimSpace(spoken), nil
}

// GetGreeting runs the LLM once in the current state with the fixed
// greeting prompt and returns the spoken text. Unlike Start, it never runs
// a tool chain and never parses a JSON completion signal out of the
// reply for routing — it is a read-mostly preview (e.g. for admin replay)
// that still participates in the session's message history like any other
// turn, but never advances the state machine.
func (s *Session) GetGreeting(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workflow.State(s.currentState); !ok {
		return "", fmt.Errorf("%w: %q", ErrNoSuchState, s.currentState)
	}

	reply, err := s.callLLM(ctx, s.renderSystemPrompt(), greetingPrompt)
	if err != nil {
		s.emit("error", map[string]any{"state": s.currentState, "error": err.Error()})
		return "Hello! How can I help you?", nil
	}
	_, _, spoken := extractJSONSignal(reply)
	return strings.TrimSpace(spoken), nil
}

// CurrentStateID returns the id of the state the session is currently in.
func (s *Session) CurrentStateID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentState
}

// Detail controls how much of a session's internal state Snapshot reveals.
type Detail int

const (
	// DetailSummary exposes id, workflow name, current state, lifecycle
	// flags, start time, and history length.
	DetailSummary Detail = iota
	// DetailFull additionally exposes caller state and step data, redacted.
	DetailFull
)

// View is the JSON-serializable projection of a Session returned to the
// admin surface.
type View struct {
	ID           string         `json:"id"`
	WorkflowName string         `json:"workflow_name"`
	CurrentState string         `json:"current_state"`
	Paused       bool           `json:"paused"`
	Done         bool           `json:"done"`
	StartedAt    time.Time      `json:"started_at"`
	HistoryLen   int            `json:"history_len"`
	CallerState  map[string]any `json:"caller_state,omitempty"`
	StepData     map[string]any `json:"step_data,omitempty"`
}

// Snapshot returns a point-in-time View of the session for admin inspection.
// At DetailFull, every string value stored directly in CallerState/StepData
// is passed through Redact before being returned; strings nested inside map
// or slice values are returned unredacted.
func (s *Session) Snapshot(detail Detail) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:           s.id,
		WorkflowName: s.workflow.Name,
		CurrentState: s.currentState,
		Paused:       s.paused,
		Done:         s.done,
		StartedAt:    s.startedAt,
		HistoryLen:   len(s.history),
	}
	if detail == DetailFull {
		v.CallerState = redactMap(s.callerState)
		v.StepData = redactMap(s.stepData)
	}
	return v
}

func redactMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if str, ok := v.(string); ok {
			out[k] = Redact(str)
		} else {
			out[k] = v
		}
	}
	return out
}

func (s *Session) emit(eventType string, data map[string]any) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Emit(debugbus.Event{
		Type:      eventType,
		SessionID: s.id,
		Timestamp: time.Now(),
		Data:      data,
	})
}
