package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxdial/scheduler/pkg/llm"
	"github.com/voxdial/scheduler/pkg/tool"
	"github.com/voxdial/scheduler/pkg/workflow"
)

func TestRedactPII(t *testing.T) {
	assert.Equal(t, "+15***67", Redact("+15551234567"))
	assert.Equal(t, "***", Redact("abc"))
	assert.Equal(t, "***", Redact(""))
	assert.Equal(t, "use***om", Redact("user@example.com"))
}

func TestExtractJSONSignalFenced(t *testing.T) {
	text := "Got it!\n```json\n{\"intent\": \"found\", \"name\": \"Jane\"}\n```\nAnything else?"
	signal, ok, spoken := extractJSONSignal(text)
	require.True(t, ok)
	assert.Equal(t, "found", signal["intent"])
	assert.Equal(t, "Jane", signal["name"])
	assert.NotContains(t, spoken, "```")
	assert.Contains(t, spoken, "Got it!")
	assert.Contains(t, spoken, "Anything else?")
}

func TestExtractJSONSignalBareLine(t *testing.T) {
	text := "Sure thing.\n{\"intent\": \"continue\"}\nOne moment."
	signal, ok, spoken := extractJSONSignal(text)
	require.True(t, ok)
	assert.Equal(t, "continue", signal["intent"])
	assert.NotContains(t, spoken, "{")
}

func TestExtractJSONSignalAbsent(t *testing.T) {
	text := "Just a normal reply, no signal here."
	signal, ok, spoken := extractJSONSignal(text)
	assert.False(t, ok)
	assert.Nil(t, signal)
	assert.Equal(t, text, spoken)
}

// sequencedClient returns each of responses in turn, repeating the last one
// once exhausted, so a test can script exactly what each successive LLM
// call in a turn (greeting, turn, on_enter follow-up) returns.
func sequencedClient(responses ...string) llm.Client {
	i := 0
	return llm.ClientFunc(func(ctx context.Context, msgs []llm.Message) (string, error) {
		r := responses[i]
		if i < len(responses)-1 {
			i++
		}
		return r, nil
	})
}

func simpleWorkflow() *workflow.Workflow {
	return &workflow.Workflow{
		Name:         "test",
		InitialState: "greet",
		ExitMessage:  "Goodbye!",
		States: map[string]workflow.State{
			"greet": {
				ID:           "greet",
				Narration:    "Hello, how can I help?",
				SystemPrompt: "Ask what the caller needs.",
				StateFields:  map[string]string{"caller_name": "state.caller_name"},
				Transitions:  map[string]string{"continue": "search"},
			},
			"search": {
				ID:          "search",
				ToolNames:   []string{"echo"},
				ToolArgsMap: map[string]string{"q": "step_data.query"},
				Transitions: map[string]string{"found": "done:Great, all set.", "*": "exit:Sorry, goodbye."},
			},
			"done": {
				ID:          "done",
				OnEnter:     "ask if there's anything else",
				Transitions: map[string]string{"*": "exit"},
			},
		},
	}
}

type echoTool struct{ intent string }

func (e echoTool) Name() string { return "echo" }
func (e echoTool) Execute(ctx context.Context, args map[string]string) (tool.Result, error) {
	return tool.Result{Intent: e.intent, Message: "echoed: " + args["q"], Data: map[string]any{"echoed_query": args["q"]}}, nil
}

func TestStartCallsLLMForGreeting(t *testing.T) {
	w := simpleWorkflow()
	s := New(w, sequencedClient("Hello there! How can I help you today?"), tool.NewRegistry())

	greeting, err := s.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hello there! How can I help you today?", greeting)
	assert.Equal(t, "greet", s.CurrentStateID())
}

func TestGetGreetingIgnoresJSONSignalAndDoesNotAdvance(t *testing.T) {
	w := simpleWorkflow()
	s := New(w, sequencedClient("Hi!\n```json\n{\"intent\": \"continue\"}\n```"), tool.NewRegistry())

	greeting, err := s.GetGreeting(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hi!", greeting)
	assert.Equal(t, "greet", s.CurrentStateID())
}

func TestHandleUtteranceAppliesStateFieldsAndTransitions(t *testing.T) {
	w := simpleWorkflow()
	llmClient := sequencedClient(
		"Hello there!", // Start's greeting call
		"Nice to meet you!\n```json\n{\"intent\": \"continue\", \"caller_name\": \"Jane\"}\n```", // the turn itself
		"Anything else?", // on_enter follow-up into "done"
	)
	tools := tool.NewRegistry()
	tools.Register(echoTool{intent: "found"})

	s := New(w, llmClient, tools)
	_, err := s.Start(context.Background())
	require.NoError(t, err)

	resp, err := s.HandleUtterance(context.Background(), "I need a 2 bedroom")
	require.NoError(t, err)
	assert.Contains(t, resp, "Nice to meet you!")
	assert.Contains(t, resp, "Anything else?")
	assert.Equal(t, "done", s.CurrentStateID())
	assert.Equal(t, "Jane", s.callerState["caller_name"])
}

func TestToolChainAdvancesThroughMultipleToolStates(t *testing.T) {
	w := &workflow.Workflow{
		Name:         "chain",
		InitialState: "search",
		States: map[string]workflow.State{
			"search": {
				ID:          "search",
				ToolNames:   []string{"echo"},
				Transitions: map[string]string{"found": "book"},
			},
			"book": {
				ID:          "book",
				ToolNames:   []string{"echo"},
				Transitions: map[string]string{"*": "exit:All done."},
			},
		},
	}
	tools := tool.NewRegistry()
	tools.Register(echoTool{intent: "found"})

	s := New(w, sequencedClient(""), tools)
	s.stepData["query"] = "downtown"

	resp, err := s.runToolChain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "All done.", resp)
	assert.True(t, s.done)
	assert.Contains(t, s.stepData["search"], "echoed")
	assert.Contains(t, s.stepData["book"], "echoed")
}

func TestToolChainWildcardFallbackEndsCall(t *testing.T) {
	w := simpleWorkflow()
	tools := tool.NewRegistry()
	tools.Register(echoTool{intent: "not_found"})

	s := New(w, sequencedClient(""), tools)
	s.currentState = "search"

	resp, err := s.runToolChain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Sorry, goodbye.", resp)
	assert.True(t, s.IsDone())
}

func TestHandleUtteranceRejectsWhenDone(t *testing.T) {
	w := simpleWorkflow()
	s := New(w, sequencedClient(""), tool.NewRegistry())
	s.done = true

	_, err := s.HandleUtterance(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrAlreadyDone)
}

func TestHandleUtteranceRejectsWhenPaused(t *testing.T) {
	w := simpleWorkflow()
	s := New(w, sequencedClient(""), tool.NewRegistry())
	s.Pause()

	_, err := s.HandleUtterance(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrPaused)
}

func TestSnapshotRedactsFullDetail(t *testing.T) {
	w := simpleWorkflow()
	s := New(w, sequencedClient(""), tool.NewRegistry())
	s.callerState["phone"] = "+15551234567"

	v := s.Snapshot(DetailFull)
	assert.Equal(t, "+15***67", v.CallerState["phone"])
}

func TestRegistryRoundTrip(t *testing.T) {
	w := simpleWorkflow()
	s := New(w, sequencedClient(""), tool.NewRegistry())
	Register(s)
	defer Unregister(s.ID())

	got, ok := Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)
}
