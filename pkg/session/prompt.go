package session

import (
	"fmt"
	"strings"

	"github.com/voxdial/scheduler/pkg/workflow"
)

// renderTemplate substitutes {field} placeholders in tmpl against the
// session's caller state first, then step data, leaving any placeholder
// with no match untouched so a workflow authoring typo is visible in the
// spoken output rather than silently eaten.
func (s *Session) renderTemplate(tmpl string) string {
	if tmpl == "" || !strings.Contains(tmpl, "{") {
		return tmpl
	}
	var b strings.Builder
	i := 0
	for i < len(tmpl) {
		open := strings.IndexByte(tmpl[i:], '{')
		if open == -1 {
			b.WriteString(tmpl[i:])
			break
		}
		open += i
		close := strings.IndexByte(tmpl[open:], '}')
		if close == -1 {
			b.WriteString(tmpl[i:])
			break
		}
		close += open
		b.WriteString(tmpl[i:open])

		key := tmpl[open+1 : close]
		if v, ok := s.callerState[key]; ok {
			fmt.Fprintf(&b, "%v", v)
		} else if v, ok := s.stepData[key]; ok {
			fmt.Fprintf(&b, "%v", v)
		} else {
			b.WriteString(tmpl[open : close+1])
		}
		i = close + 1
	}
	return b.String()
}

// ttsFormattingDirective tells the model its spoken text is read aloud by
// TTS, so numbers belong in words, not digits or symbols; JSON signal
// blocks are explicitly exempted since those are parsed, not spoken.
const ttsFormattingDirective = "\n\nFORMATTING: Your responses will be read aloud by text-to-speech. " +
	"Write all numbers as spoken words in your conversational text " +
	"(e.g., say \"two thousand five hundred dollars a month\" not \"$2,500/mo\", " +
	"\"three bedrooms\" not \"3 bedrooms\", \"fourteen hundred square feet\" not \"1,400 sq ft\"). " +
	"This only applies to your spoken text — JSON output blocks must still use numeric values."

// nullValueDirective keeps the model from ever speaking a missing-value
// placeholder verbatim to the caller.
const nullValueDirective = "\n\nCRITICAL: NEVER say \"null\", \"none\", \"not set\", \"no value\", \"N/A\", or " +
	"\"not available\" to the caller. If a piece of information hasn't been gathered yet, " +
	"simply skip it or don't mention it. Only reference information you actually have."

// renderSystemPrompt combines the workflow's system prompt template with
// the current state's prompt fragment, substitutes the built-in
// placeholders backed by step_data/caller_state, and appends the fixed
// TTS-formatting and null-value directives every state's prompt carries.
func (s *Session) renderSystemPrompt() string {
	base := s.renderTemplate(s.workflow.SystemPromptTemplate)
	state, ok := s.workflow.State(s.currentState)

	prompt := base
	if ok {
		fragment := s.renderTemplate(state.SystemPrompt)
		switch {
		case base == "":
			prompt = fragment
		case fragment == "":
			prompt = base
		default:
			prompt = base + "\n\n" + fragment
		}
	}

	prompt = s.replaceBuiltinPlaceholders(prompt)
	return prompt + ttsFormattingDirective + nullValueDirective
}

// replaceBuiltinPlaceholders substitutes the fixed {{placeholder}} set every
// workflow prompt may reference, each backed by a specific step_data key or
// CallerState field. Unknown {{...}} placeholders are left untouched.
func (s *Session) replaceBuiltinPlaceholders(prompt string) string {
	replacements := map[string]string{
		"{{search_results}}":       fmt.Sprintf("%v", s.stepData["search_listings"]),
		"{{available_slots}}":      fmt.Sprintf("%v", s.stepData["check_availability"]),
		"{{selected_address}}":     fmt.Sprintf("%v", s.callerState["selected_listing_address"]),
		"{{selected_time_display}}": fmt.Sprintf("%v", s.callerState["selected_time_slot"]),
		"{{caller_email}}":         fmt.Sprintf("%v", s.callerState["caller_email"]),
		"{{booking_confirmation}}": fmt.Sprintf("%v", s.stepData["create_booking"]),
	}
	for placeholder, value := range replacements {
		if value == "<nil>" {
			value = ""
		}
		prompt = strings.ReplaceAll(prompt, placeholder, value)
	}
	return prompt
}

// resolveDataPath resolves a tool_args_map / state_fields path against the
// session's caller state and step data. "state.<field>" and
// "step_data.<key>" are looked up; anything else is returned as a literal.
func (s *Session) resolveDataPath(path string) (string, bool) {
	switch {
	case strings.HasPrefix(path, "state."):
		v, ok := s.callerState[strings.TrimPrefix(path, "state.")]
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%v", v), true
	case strings.HasPrefix(path, "step_data."):
		v, ok := s.stepData[strings.TrimPrefix(path, "step_data.")]
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%v", v), true
	default:
		return path, true
	}
}

// writeDataPath writes value to the location path names; it is the inverse
// of resolveDataPath, used when applying state_fields mappings from an LLM
// completion signal. Paths without a recognized prefix are written into
// step_data under the bare key, matching the legacy builder's behavior of
// treating unscoped keys as transient per-step data.
func (s *Session) writeDataPath(path string, value any) {
	switch {
	case strings.HasPrefix(path, "state."):
		s.callerState[strings.TrimPrefix(path, "state.")] = value
	case strings.HasPrefix(path, "step_data."):
		s.stepData[strings.TrimPrefix(path, "step_data.")] = value
	default:
		s.stepData[path] = value
	}
}

// buildToolArgs resolves a tool state's tool_args_map into a flat string
// arg map for Tool.Execute. A state with no tool_args_map gets an empty
// arg map; there is no per-tool fallback builder.
func (s *Session) buildToolArgs(st workflow.State) map[string]string {
	args := make(map[string]string, len(st.ToolArgsMap))
	for param, path := range st.ToolArgsMap {
		if v, ok := s.resolveDataPath(path); ok {
			args[param] = v
		}
	}
	return args
}
