package workflow

import "fmt"

// StatePatch is a sparse update to one State, applied by the admin surface.
// Only these fields are patchable; anything else about a state (its id, its
// position in StateOrder) requires a full PUT of the workflow.
type StatePatch struct {
	OnEnter        *string           `json:"on_enter"`
	SystemPrompt   *string           `json:"system_prompt"`
	Narration      *string           `json:"narration"`
	ToolNames      []string          `json:"tool_names"`
	Transitions    map[string]string `json:"transitions"`
	StateFields    map[string]string `json:"state_fields"`
	ToolArgsMap    map[string]string `json:"tool_args_map"`
	AutoIntent     *string           `json:"auto_intent"`
	StepType       *string           `json:"step_type"`
	Handler        *string           `json:"handler"`
	MaxTurns       *int              `json:"max_turns"`
	MaxTurnsTarget *string           `json:"max_turns_target"`
}

// ApplyPatch merges p into the named state and re-validates the resulting
// workflow, returning an error (and leaving w unchanged) if the patch would
// make the workflow invalid.
func (w *Workflow) ApplyPatch(stateID string, p StatePatch) error {
	s, ok := w.States[stateID]
	if !ok {
		return fmt.Errorf("workflow %q: no such state %q", w.Name, stateID)
	}

	before := s

	if p.OnEnter != nil {
		s.OnEnter = *p.OnEnter
	}
	if p.SystemPrompt != nil {
		s.SystemPrompt = *p.SystemPrompt
	}
	if p.Narration != nil {
		s.Narration = *p.Narration
	}
	if p.ToolNames != nil {
		s.ToolNames = p.ToolNames
	}
	if p.Transitions != nil {
		merged := make(map[string]string, len(s.Transitions)+len(p.Transitions))
		for k, v := range s.Transitions {
			merged[k] = v
		}
		for k, v := range p.Transitions {
			merged[k] = v
		}
		s.Transitions = merged
	}
	if p.StateFields != nil {
		s.StateFields = p.StateFields
	}
	if p.ToolArgsMap != nil {
		s.ToolArgsMap = p.ToolArgsMap
	}
	if p.AutoIntent != nil {
		s.AutoIntent = *p.AutoIntent
	}
	if p.StepType != nil {
		s.StepType = *p.StepType
	}
	if p.Handler != nil {
		s.Handler = *p.Handler
	}
	if p.MaxTurns != nil {
		s.MaxTurns = *p.MaxTurns
	}
	if p.MaxTurnsTarget != nil {
		s.MaxTurnsTarget = *p.MaxTurnsTarget
	}

	w.States[stateID] = s
	if err := w.Validate(); err != nil {
		w.States[stateID] = before
		return fmt.Errorf("workflow %q: patch to state %q rejected: %w", w.Name, stateID, err)
	}
	return nil
}
