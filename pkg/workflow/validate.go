package workflow

import (
	"fmt"
	"sort"
	"strings"
)

// Validate checks that w is internally consistent:
//   - InitialState names an existing state
//   - every transition target (including max_turns_target) resolves to an
//     existing state or ExitState
//   - every state is reachable from InitialState
//   - every non-exit state can reach ExitState (no dead ends)
//   - every state_fields/tool_args_map data path is well-formed
func (w *Workflow) Validate() error {
	if w.InitialState == "" {
		return fmt.Errorf("workflow %q: initial_state is required", w.Name)
	}
	if _, ok := w.States[w.InitialState]; !ok {
		return fmt.Errorf("workflow %q: initial_state %q is not a defined state", w.Name, w.InitialState)
	}

	ids := make([]string, 0, len(w.States))
	for id := range w.States {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		s := w.States[id]
		for intent, raw := range s.Transitions {
			target, err := ParseTarget(raw)
			if err != nil {
				return fmt.Errorf("workflow %q: state %q: transition %q: %w", w.Name, id, intent, err)
			}
			if target.StateID == ExitState {
				continue
			}
			if _, ok := w.States[target.StateID]; !ok {
				return fmt.Errorf("workflow %q: state %q: transition %q targets undefined state %q", w.Name, id, intent, target.StateID)
			}
		}
		if s.MaxTurnsTarget != "" {
			target, err := ParseTarget(s.MaxTurnsTarget)
			if err != nil {
				return fmt.Errorf("workflow %q: state %q: max_turns_target: %w", w.Name, id, err)
			}
			if target.StateID != ExitState {
				if _, ok := w.States[target.StateID]; !ok {
					return fmt.Errorf("workflow %q: state %q: max_turns_target targets undefined state %q", w.Name, id, target.StateID)
				}
			}
		}
		for field, path := range s.StateFields {
			if err := validateDataPath(path); err != nil {
				return fmt.Errorf("workflow %q: state %q: state_fields[%q]: %w", w.Name, id, field, err)
			}
		}
		for arg, path := range s.ToolArgsMap {
			if err := validateDataPath(path); err != nil {
				return fmt.Errorf("workflow %q: state %q: tool_args_map[%q]: %w", w.Name, id, arg, err)
			}
		}
	}

	if err := w.validateForwardReachability(ids); err != nil {
		return err
	}
	return w.validateReachability()
}

// validateForwardReachability confirms every defined state is reachable
// from InitialState via some sequence of forward transitions (a BFS over
// the transition graph starting at InitialState). This is the mirror of
// validateReachability, which checks that every state can reach exit —
// together they rule out both dead ends and orphaned islands.
func (w *Workflow) validateForwardReachability(ids []string) error {
	visited := map[string]bool{w.InitialState: true}
	queue := []string{w.InitialState}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		s, ok := w.States[id]
		if !ok {
			continue
		}
		for _, raw := range s.Transitions {
			target, err := ParseTarget(raw)
			if err != nil || target.StateID == ExitState {
				continue
			}
			if !visited[target.StateID] {
				visited[target.StateID] = true
				queue = append(queue, target.StateID)
			}
		}
	}

	var unreached []string
	for _, id := range ids {
		if !visited[id] {
			unreached = append(unreached, id)
		}
	}
	if len(unreached) > 0 {
		return fmt.Errorf("workflow %q: states not reachable from initial_state %q: %s", w.Name, w.InitialState, strings.Join(unreached, ", "))
	}
	return nil
}

// validateDataPath checks that path is either a literal (no recognized
// prefix) or a well-formed "state.<field>"/"step_data.<key>" reference with
// a non-empty suffix.
func validateDataPath(path string) error {
	for _, prefix := range []string{"state.", "step_data."} {
		if strings.HasPrefix(path, prefix) {
			if len(path) == len(prefix) {
				return fmt.Errorf("data path %q has empty suffix after %q", path, prefix)
			}
			return nil
		}
	}
	return nil // bare literal
}

// validateReachability confirms every state can reach ExitState via some
// sequence of transitions, via a memoized depth-first search over the
// transition graph starting from each state.
func (w *Workflow) validateReachability() error {
	canReachExit := make(map[string]bool)

	var reaches func(id string, visiting map[string]bool) bool
	reaches = func(id string, visiting map[string]bool) bool {
		if v, ok := canReachExit[id]; ok {
			return v
		}
		if visiting[id] {
			return false // cycle without a discovered exit; treat as non-terminating from here
		}
		visiting[id] = true
		defer delete(visiting, id)

		s, ok := w.States[id]
		if !ok {
			return false
		}
		for _, raw := range s.Transitions {
			target, err := ParseTarget(raw)
			if err != nil {
				continue
			}
			if target.StateID == ExitState {
				canReachExit[id] = true
				return true
			}
			if reaches(target.StateID, visiting) {
				canReachExit[id] = true
				return true
			}
		}
		return false
	}

	ids := make([]string, 0, len(w.States))
	for id := range w.States {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var unreachable []string
	for _, id := range ids {
		if !reaches(id, make(map[string]bool)) {
			unreachable = append(unreachable, id)
		}
	}
	if len(unreachable) > 0 {
		return fmt.Errorf("workflow %q: states cannot reach exit: %s", w.Name, strings.Join(unreachable, ", "))
	}
	return nil
}
