package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/voxdial/scheduler/pkg/llm"
	"github.com/voxdial/scheduler/pkg/workflow"
)

// HandleUtterance advances the session by one caller turn: it sends the
// utterance and current state's prompt to the LLM, detects field progress,
// applies any field mappings and transition the LLM's completion signal
// triggers, chains through any tool states that follow, and returns the
// text to speak back.
func (s *Session) HandleUtterance(ctx context.Context, utterance string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return "", ErrAlreadyDone
	}
	if s.paused {
		return "", ErrPaused
	}

	state, ok := s.workflow.State(s.currentState)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNoSuchState, s.currentState)
	}
	if state.IsToolState() {
		return "", fmt.Errorf("session: state %q is tool-backed and cannot accept an utterance", s.currentState)
	}

	s.emit("stt", map[string]any{"text": Redact(utterance)})

	raw, err := s.callLLM(ctx, s.renderSystemPrompt(), utterance)
	if err != nil {
		s.emit("error", map[string]any{"state": s.currentState, "error": err.Error()})
		return "Sorry, something went wrong. Could you say that again?", nil
	}

	if fields := detectFieldProgress(state, utterance, raw); len(fields) > 0 {
		s.emit("field_progress", map[string]any{"state": s.currentState, "fields": fields})
	}

	signal, hasSignal, spoken := extractJSONSignal(raw)
	response := strings.TrimSpace(spoken)

	if !hasSignal {
		return response, nil
	}

	s.applyStateFields(state, signal)
	s.emit("step_complete", map[string]any{"state": s.currentState, "extracted_data": signal})

	intent := signalIntent(signal)
	if intent == "" {
		intent = "success"
	}
	target, matched, err := state.Resolve(intent)
	if err != nil {
		return "", fmt.Errorf("session: resolve transition: %w", err)
	}
	if !matched {
		// No transition fires for this intent; stay put and let the caller
		// respond to whatever the LLM just said.
		return response, nil
	}

	fromState := s.currentState
	if target.StateID == workflow.ExitState {
		s.done = true
		text := s.resolveExitMessage(target)
		s.exitMessage = text
		s.emit("transition", map[string]any{"from": fromState, "to": workflow.ExitState, "intent": intent})
		return text, nil
	}

	s.currentState = target.StateID
	s.emit("transition", map[string]any{"from": fromState, "to": s.currentState, "intent": intent})

	followUp, err := s.enterState(ctx)
	if err != nil {
		return "", err
	}
	if followUp != "" {
		response = strings.TrimSpace(response + " " + followUp)
	}
	return response, nil
}

// resolveExitMessage returns the text to speak for an exit transition: the
// transition's own override message if present, else the workflow's
// exit_message, else a generic farewell.
func (s *Session) resolveExitMessage(target workflow.Target) string {
	if target.HasMessage && target.Message != "" {
		return target.Message
	}
	if s.workflow.ExitMessage != "" {
		return s.workflow.ExitMessage
	}
	return "Goodbye!"
}

// enterState is called immediately after advancing into a new (non-exit)
// state, whether directly from an LLM turn or after a chain of tool
// states. If the landed-on state is tool-backed it runs the chain; if it's
// an LLM state it issues the on_enter rephrase call (or a generic
// "continue the conversation" prompt if on_enter is empty) so the
// transition reads as part of the same spoken turn.
func (s *Session) enterState(ctx context.Context) (string, error) {
	state, ok := s.workflow.State(s.currentState)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNoSuchState, s.currentState)
	}
	if state.IsToolState() {
		return s.runToolChain(ctx)
	}
	return s.enterLLMState(ctx, state)
}

// enterLLMState asks the LLM to narrate the entry into an LLM state, using
// its on_enter gist rephrased naturally, or a generic continuation prompt
// if on_enter is empty.
func (s *Session) enterLLMState(ctx context.Context, state workflow.State) (string, error) {
	prompt := "Continue the conversation."
	if state.OnEnter != "" {
		prompt = fmt.Sprintf("You are now entering this conversation step. Say this to the caller (rephrase naturally): %s", state.OnEnter)
	}
	reply, err := s.callLLM(ctx, s.renderSystemPrompt(), prompt)
	if err != nil {
		s.emit("error", map[string]any{"state": s.currentState, "error": err.Error()})
		return s.renderTemplate(state.Narration), nil
	}
	_, _, spoken := extractJSONSignal(reply)
	return strings.TrimSpace(spoken), nil
}

// callLLM issues one LLM completion with systemPrompt and userText appended
// to the session's running history, emitting the llm_call/llm_response
// event pair and truncating history to the last 20 entries once it exceeds
// 30, matching the conversational window the rest of the turn logic
// assumes.
func (s *Session) callLLM(ctx context.Context, systemPrompt, userText string) (string, error) {
	messages := make([]llm.Message, 0, len(s.history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})
	messages = append(messages, s.history...)
	messages = append(messages, llm.Message{Role: "user", Content: userText})

	s.emit("llm_call", map[string]any{
		"state":         s.currentState,
		"system_prompt": truncate(systemPrompt, 100),
		"user_text":     Redact(userText),
	})

	reply, err := s.llmClient.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("session: llm completion: %w", err)
	}

	_, hasSignal, _ := extractJSONSignal(reply)
	s.emit("llm_response", map[string]any{"state": s.currentState, "has_json_signal": hasSignal})

	s.history = append(s.history, llm.Message{Role: "user", Content: userText}, llm.Message{Role: "assistant", Content: reply})
	if len(s.history) > 30 {
		s.history = s.history[len(s.history)-20:]
	}
	return reply, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// applyStateFields writes every field named in state.StateFields that is
// present in signal into caller state / step data, per its mapped path.
func (s *Session) applyStateFields(state workflow.State, signal map[string]any) {
	for jsonKey, path := range state.StateFields {
		if v, ok := signal[jsonKey]; ok {
			s.writeDataPath(path, v)
		}
	}
}

// detectFieldProgress scans utterance and reply for mentions of any key
// named in state.StateFields, matching the key itself, the key with
// underscores replaced by spaces, or the key with underscores replaced by
// hyphens, case-insensitively. It runs regardless of
// whether the turn produced a JSON completion signal — it's a passive
// heuristic for "pill lighting up" UI, not a data-extraction mechanism.
func detectFieldProgress(state workflow.State, utterance, reply string) []string {
	if len(state.StateFields) == 0 {
		return nil
	}
	combined := strings.ToLower(utterance + " " + reply)

	var matched []string
	for key := range state.StateFields {
		lower := strings.ToLower(key)
		patterns := []string{lower, strings.ReplaceAll(lower, "_", " "), strings.ReplaceAll(lower, "_", "-")}
		for _, pat := range patterns {
			if pat != "" && strings.Contains(combined, pat) {
				matched = append(matched, key)
				break
			}
		}
	}
	return matched
}

// runToolChain executes the session's current state (which must be
// tool-backed) and follows its transition, repeating for as long as the
// resulting state is also tool-backed. Once it lands on a non-tool state
// it either returns the exit text (if the chain ended the call) or hands
// off to enterLLMState for the narrated transition into that state. It
// stops without further transition, leaving the caller in the last tool
// state reached, if a tool state's result has no matching transition (the
// workflow author chose to leave the caller there) or after
// maxToolChainSteps, whichever comes first.
func (s *Session) runToolChain(ctx context.Context) (string, error) {
	for step := 0; step < maxToolChainSteps; step++ {
		state, ok := s.workflow.State(s.currentState)
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrNoSuchState, s.currentState)
		}
		if !state.IsToolState() {
			return s.enterLLMState(ctx, state)
		}

		intent, err := s.runToolState(ctx, state)
		if err != nil {
			return "", err
		}

		fromState := s.currentState
		target, matched, err := state.Resolve(intent)
		if err != nil {
			return "", fmt.Errorf("session: resolve tool transition: %w", err)
		}
		if !matched {
			return "", nil
		}

		s.emit("transition", map[string]any{"from": fromState, "to": target.StateID, "intent": intent})

		if target.StateID == workflow.ExitState {
			s.done = true
			text := s.resolveExitMessage(target)
			s.exitMessage = text
			return text, nil
		}
		s.currentState = target.StateID
	}

	return "", nil
}

// runToolState executes every tool named in state.ToolNames in order,
// storing the joined results in step_data under the state's own id (so a
// later prompt placeholder can surface them) and merging any structured
// Data each tool returns. It returns the intent that should drive
// transition routing: "error" if any tool failed, else the last tool's own
// reported intent if non-empty, else the state's auto_intent.
func (s *Session) runToolState(ctx context.Context, state workflow.State) (string, error) {
	args := s.buildToolArgs(state)

	var messages []string
	lastIntent := ""
	failed := false

	for _, name := range state.ToolNames {
		t, ok := s.tools.Get(name)
		if !ok {
			messages = append(messages, fmt.Sprintf("Tool %s not available", name))
			s.emit("tool_exec", map[string]any{"state": state.ID, "tool_name": name, "intent": "error"})
			failed = true
			continue
		}

		result, err := t.Execute(ctx, args)
		if err != nil {
			messages = append(messages, fmt.Sprintf("Error: %s", err))
			s.emit("tool_exec", map[string]any{"state": state.ID, "tool_name": name, "args": args, "intent": "error"})
			failed = true
			continue
		}

		if result.Message != "" {
			messages = append(messages, result.Message)
		}
		for k, v := range result.Data {
			s.stepData[k] = v
		}
		lastIntent = result.Intent
		s.emit("tool_exec", map[string]any{"state": state.ID, "tool_name": name, "args": args, "intent": result.Intent})
	}

	s.stepData[state.ID] = strings.Join(messages, "\n")

	switch {
	case failed:
		return "error", nil
	case lastIntent != "":
		return lastIntent, nil
	default:
		return state.EffectiveAutoIntent(), nil
	}
}
