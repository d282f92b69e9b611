package workflow

import (
	"fmt"
	"sync"
)

// Registry holds the live, validated set of workflows the service can
// start sessions against. Swaps are atomic: LoadDir validates every loaded
// workflow and Replace validates its workflow before any session can
// observe them, so a bad PUT never leaves the registry half-updated.
type Registry struct {
	mu        sync.RWMutex
	workflows map[string]*Workflow
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{workflows: make(map[string]*Workflow)}
}

// LoadDir loads every *.jsonl workflow under dir, validates each, and
// installs them atomically.
func (r *Registry) LoadDir(dir string) error {
	loaded, err := LoadDirJSONL(dir)
	if err != nil {
		return err
	}
	for name, w := range loaded {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("workflow registry: %s: %w", name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.workflows = loaded
	return nil
}

// Get returns the named workflow, or false if it is not registered.
func (r *Registry) Get(name string) (*Workflow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workflows[name]
	return w, ok
}

// Names returns the names of every registered workflow.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.workflows))
	for name := range r.workflows {
		names = append(names, name)
	}
	return names
}

// Replace validates w and installs it under w.Name, replacing any existing
// workflow of that name. On validation failure the current registry is
// left untouched.
func (r *Registry) Replace(w *Workflow) error {
	if err := w.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workflows[w.Name] = w
	return nil
}

// Patch applies a StatePatch to one state of the named workflow, atomically:
// it works on a copy so a rejected patch never mutates the live workflow a
// session might be mid-turn against.
func (r *Registry) Patch(workflowName, stateID string, p StatePatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workflows[workflowName]
	if !ok {
		return fmt.Errorf("workflow registry: no such workflow %q", workflowName)
	}

	clone := cloneWorkflow(w)
	if err := clone.ApplyPatch(stateID, p); err != nil {
		return err
	}
	r.workflows[workflowName] = clone
	return nil
}

func cloneWorkflow(w *Workflow) *Workflow {
	clone := &Workflow{
		Name:                 w.Name,
		InitialState:         w.InitialState,
		SystemPromptTemplate: w.SystemPromptTemplate,
		ExitMessage:          w.ExitMessage,
		ExitPhrases:          append([]string(nil), w.ExitPhrases...),
		TriggerKeywords:      append([]string(nil), w.TriggerKeywords...),
		States:               make(map[string]State, len(w.States)),
		StateOrder:           append([]string(nil), w.StateOrder...),
	}
	for id, s := range w.States {
		clone.States[id] = s
	}
	return clone
}
