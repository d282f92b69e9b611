package workflow

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// record is the on-disk JSONL shape: one workflow-metadata record followed
// by one record per state, distinguished by RecordType.
type record struct {
	RecordType           string   `json:"record_type"`
	Name                 string   `json:"name,omitempty"`
	InitialState         string   `json:"initial_state,omitempty"`
	SystemPromptTemplate string   `json:"system_prompt_template,omitempty"`
	ExitMessage          string   `json:"exit_message,omitempty"`
	ExitPhrases          []string `json:"exit_phrases,omitempty"`
	TriggerKeywords      []string `json:"trigger_keywords,omitempty"`

	ID             string            `json:"id,omitempty"`
	StepType       string            `json:"step_type,omitempty"`
	SystemPrompt   string            `json:"system_prompt,omitempty"`
	Narration      string            `json:"narration,omitempty"`
	OnEnter        string            `json:"on_enter,omitempty"`
	ToolNames      []string          `json:"tool_names,omitempty"`
	ToolArgsMap    map[string]string `json:"tool_args_map,omitempty"`
	StateFields    map[string]string `json:"state_fields,omitempty"`
	Transitions    map[string]string `json:"transitions,omitempty"`
	AutoIntent     string            `json:"auto_intent,omitempty"`
	Handler        string            `json:"handler,omitempty"`
	MaxTurns       int               `json:"max_turns,omitempty"`
	MaxTurnsTarget string            `json:"max_turns_target,omitempty"`
}

const (
	recordWorkflow = "workflow"
	recordState    = "state"
)

// LoadJSONL reads a single workflow from a JSONL file: the first
// record_type="workflow" line carries the workflow's name and initial
// state, and every record_type="state" line that follows defines one State.
func LoadJSONL(path string) (*Workflow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("workflow: open %s: %w", path, err)
	}
	defer f.Close()

	w := &Workflow{States: make(map[string]State)}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("workflow: %s:%d: %w", path, lineNo, err)
		}

		switch rec.RecordType {
		case recordWorkflow:
			w.Name = rec.Name
			w.InitialState = rec.InitialState
			w.SystemPromptTemplate = rec.SystemPromptTemplate
			w.ExitMessage = rec.ExitMessage
			w.ExitPhrases = rec.ExitPhrases
			w.TriggerKeywords = rec.TriggerKeywords
		case recordState:
			if rec.ID == "" {
				return nil, fmt.Errorf("workflow: %s:%d: state record missing id", path, lineNo)
			}
			w.States[rec.ID] = State{
				ID:             rec.ID,
				StepType:       rec.StepType,
				SystemPrompt:   rec.SystemPrompt,
				Narration:      rec.Narration,
				OnEnter:        rec.OnEnter,
				ToolNames:      rec.ToolNames,
				ToolArgsMap:    rec.ToolArgsMap,
				StateFields:    rec.StateFields,
				Transitions:    rec.Transitions,
				AutoIntent:     rec.AutoIntent,
				Handler:        rec.Handler,
				MaxTurns:       rec.MaxTurns,
				MaxTurnsTarget: rec.MaxTurnsTarget,
			}
			w.StateOrder = append(w.StateOrder, rec.ID)
		default:
			return nil, fmt.Errorf("workflow: %s:%d: unknown record_type %q", path, lineNo, rec.RecordType)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("workflow: reading %s: %w", path, err)
	}
	if w.Name == "" {
		return nil, fmt.Errorf("workflow: %s has no workflow record", path)
	}
	return w, nil
}

// LoadDirJSONL loads every *.jsonl file in dir, keyed by workflow name.
func LoadDirJSONL(dir string) (map[string]*Workflow, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("workflow: read dir %s: %w", dir, err)
	}

	out := make(map[string]*Workflow)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" {
			continue
		}
		w, err := LoadJSONL(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out[w.Name] = w
	}
	return out, nil
}

// SaveJSONL writes w to path in the same record format LoadJSONL reads,
// creating parent directories as needed. State order follows w.StateOrder,
// falling back to map iteration for states not present there (e.g. appended
// after load).
func SaveJSONL(path string, w *Workflow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("workflow: mkdir for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("workflow: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)

	if err := enc.Encode(record{
		RecordType:           recordWorkflow,
		Name:                 w.Name,
		InitialState:         w.InitialState,
		SystemPromptTemplate: w.SystemPromptTemplate,
		ExitMessage:          w.ExitMessage,
		ExitPhrases:          w.ExitPhrases,
		TriggerKeywords:      w.TriggerKeywords,
	}); err != nil {
		return fmt.Errorf("workflow: write %s: %w", path, err)
	}

	seen := make(map[string]bool, len(w.States))
	order := append([]string(nil), w.StateOrder...)
	for _, id := range order {
		seen[id] = true
	}
	for id := range w.States {
		if !seen[id] {
			order = append(order, id)
			seen[id] = true
		}
	}

	for _, id := range order {
		s, ok := w.States[id]
		if !ok {
			continue
		}
		if err := enc.Encode(record{
			RecordType:     recordState,
			ID:             s.ID,
			StepType:       s.StepType,
			SystemPrompt:   s.SystemPrompt,
			Narration:      s.Narration,
			OnEnter:        s.OnEnter,
			ToolNames:      s.ToolNames,
			ToolArgsMap:    s.ToolArgsMap,
			StateFields:    s.StateFields,
			Transitions:    s.Transitions,
			AutoIntent:     s.AutoIntent,
			Handler:        s.Handler,
			MaxTurns:       s.MaxTurns,
			MaxTurnsTarget: s.MaxTurnsTarget,
		}); err != nil {
			return fmt.Errorf("workflow: write %s: %w", path, err)
		}
	}
	return nil
}
