// Package workflow defines the branching state machine a Session drives:
// a JSONL-persisted set of named states, each with an intent->target
// transition table, optional declarative field mappings, and an optional
// chain of tool invocations.
package workflow

import "fmt"

// ExitState is the reserved transition target that ends a call.
const ExitState = "exit"

// WildcardIntent is the reserved transition key consulted when no other
// intent in a State's Transitions matches the session's resolved intent.
const WildcardIntent = "*"

// Step types a State can take. StepTypeLLM is the default when StepType is
// left empty.
const (
	StepTypeLLM  = "llm"
	StepTypeTool = "tool"
)

// State is one node of a Workflow's branching state machine.
type State struct {
	// ID uniquely identifies this state within its Workflow.
	ID string `json:"id"`

	// StepType is "llm" or "tool". Empty is treated as "llm" unless
	// ToolNames is non-empty, in which case it's treated as "tool" — see
	// IsToolState.
	StepType string `json:"step_type,omitempty"`

	// SystemPrompt is the instruction fragment given to the LLM while this
	// state is active; empty for a pure tool state.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Narration is the literal line spoken to the caller when the LLM call
	// that narrates entry into this state fails. It may contain
	// {placeholder} references resolved against CallerState/step_data.
	Narration string `json:"narration,omitempty"`

	// OnEnter, if non-empty, is the gist of what the caller should be told
	// on entering this state; the Session puts it to the LLM with a
	// "rephrase naturally" instruction rather than speaking it verbatim,
	// so the transition into this state reads as part of the same turn.
	OnEnter string `json:"on_enter,omitempty"`

	// ToolNames, if non-empty, names registered tools this state invokes
	// automatically on entry, in order, rather than waiting for an LLM turn.
	ToolNames []string `json:"tool_names,omitempty"`

	// ToolArgsMap maps a tool parameter name to a data path
	// ("state.<field>", "step_data.<key>", or a literal string with no
	// dot-prefix convention). It is the only source of tool arguments: a
	// tool state with no ToolArgsMap calls its tools with an empty arg map.
	ToolArgsMap map[string]string `json:"tool_args_map,omitempty"`

	// StateFields maps a field name found in the LLM's JSON completion
	// signal to a data path ("state.<field>" or "step_data.<key>") the
	// session should write the value into.
	StateFields map[string]string `json:"state_fields,omitempty"`

	// Transitions maps an intent (or WildcardIntent) to a target string:
	// "<id>", "<id>:<message>", "exit", or "exit:<message>".
	Transitions map[string]string `json:"transitions,omitempty"`

	// AutoIntent is the intent used to route a tool state's success
	// outcome when the tool itself doesn't report one. Defaults to
	// "success".
	AutoIntent string `json:"auto_intent,omitempty"`

	// Handler names a post-processing hint for this state's captured data
	// (e.g. "accumulate", "bullets"); authoring metadata, not interpreted
	// by the Session directly.
	Handler string `json:"handler,omitempty"`

	// MaxTurns is a per-state turn limit carried as workflow data: it is
	// loaded, saved, and patched, but the Session does not count caller
	// utterances or act on it. Zero means unbounded.
	MaxTurns int `json:"max_turns,omitempty"`

	// MaxTurnsTarget is the transition target paired with MaxTurns.
	// Validate parses and checks it like any Transitions value; the Session
	// never routes to it.
	MaxTurnsTarget string `json:"max_turns_target,omitempty"`
}

// IsToolState reports whether this state auto-invokes its tool chain on
// entry rather than waiting on an LLM turn.
func (s State) IsToolState() bool {
	if s.StepType != "" {
		return s.StepType == StepTypeTool
	}
	return len(s.ToolNames) > 0
}

// EffectiveAutoIntent returns AutoIntent, defaulting to "success".
func (s State) EffectiveAutoIntent() string {
	if s.AutoIntent == "" {
		return "success"
	}
	return s.AutoIntent
}

// Workflow is a named, loaded branching state machine.
type Workflow struct {
	Name                 string   `json:"name"`
	InitialState         string   `json:"initial_state"`
	SystemPromptTemplate string   `json:"system_prompt_template,omitempty"`
	ExitMessage          string   `json:"exit_message,omitempty"`
	ExitPhrases          []string `json:"exit_phrases,omitempty"`
	TriggerKeywords      []string `json:"trigger_keywords,omitempty"`

	States     map[string]State `json:"-"`
	StateOrder []string         `json:"-"`
}

// State looks up a state by id.
func (w *Workflow) State(id string) (State, bool) {
	s, ok := w.States[id]
	return s, ok
}

// Target describes a parsed transition target.
type Target struct {
	// StateID is the destination state id, or ExitState.
	StateID string
	// Message is an optional line carried with the target. For an
	// ExitState target the Session speaks it as the goodbye; for any other
	// target the Session does not speak it.
	Message    string
	HasMessage bool
}

// ParseTarget parses a transition target string of the form
// "<id>", "<id>:<message>", "exit", or "exit:<message>".
func ParseTarget(raw string) (Target, error) {
	if raw == "" {
		return Target{}, fmt.Errorf("workflow: empty transition target")
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] == ':' {
			return Target{StateID: raw[:i], Message: raw[i+1:], HasMessage: true}, nil
		}
	}
	return Target{StateID: raw}, nil
}

// Resolve looks up the transition target for intent in state, falling back
// to WildcardIntent if intent has no explicit entry.
func (s State) Resolve(intent string) (Target, bool, error) {
	raw, ok := s.Transitions[intent]
	if !ok {
		raw, ok = s.Transitions[WildcardIntent]
	}
	if !ok {
		return Target{}, false, nil
	}
	t, err := ParseTarget(raw)
	return t, true, err
}
