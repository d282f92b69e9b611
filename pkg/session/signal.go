package session

import (
	"encoding/json"
	"strings"
)

const jsonFenceOpen = "```json"
const jsonFenceClose = "```"

// extractJSONSignal looks for a structured completion signal embedded in an
// LLM's response text and returns it along with the text the caller should
// actually hear (the signal removed). It tries a fenced ```json block
// first, since that is unambiguous, then falls back to scanning for a bare
// line that parses as a JSON object — the model sometimes emits the signal
// without fencing despite being told to fence it.
func extractJSONSignal(text string) (map[string]any, bool, string) {
	if start := strings.Index(text, jsonFenceOpen); start != -1 {
		bodyStart := start + len(jsonFenceOpen)
		if end := strings.Index(text[bodyStart:], jsonFenceClose); end != -1 {
			body := strings.TrimSpace(text[bodyStart : bodyStart+end])
			var signal map[string]any
			if err := json.Unmarshal([]byte(body), &signal); err == nil {
				remaining := text[:start] + text[bodyStart+end+len(jsonFenceClose):]
				return signal, true, strings.TrimSpace(remaining)
			}
		}
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
			continue
		}
		var signal map[string]any
		if err := json.Unmarshal([]byte(trimmed), &signal); err == nil {
			remainingLines := append(append([]string{}, lines[:i]...), lines[i+1:]...)
			return signal, true, strings.TrimSpace(strings.Join(remainingLines, "\n"))
		}
	}

	return nil, false, text
}

// signalIntent extracts the "intent" field from a completion signal as a
// string, returning "" if absent or not a string.
func signalIntent(signal map[string]any) string {
	if signal == nil {
		return ""
	}
	if v, ok := signal["intent"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
