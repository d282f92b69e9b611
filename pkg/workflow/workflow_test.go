package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleWorkflow() *Workflow {
	return &Workflow{
		Name:         "sample",
		InitialState: "greet",
		ExitMessage:  "Goodbye!",
		States: map[string]State{
			"greet": {
				ID:          "greet",
				Narration:   "Hi there!",
				Transitions: map[string]string{"continue": "search", WildcardIntent: "greet"},
			},
			"search": {
				ID:          "search",
				ToolNames:   []string{"apartment_search"},
				Transitions: map[string]string{"found": "done:Great, found some options.", "not_found": "exit:Sorry, nothing matched."},
			},
			"done": {
				ID:          "done",
				Transitions: map[string]string{"*": "exit"},
			},
		},
		StateOrder: []string{"greet", "search", "done"},
	}
}

func TestParseTargetPlainID(t *testing.T) {
	target, err := ParseTarget("search")
	require.NoError(t, err)
	assert.Equal(t, "search", target.StateID)
	assert.False(t, target.HasMessage)
}

func TestParseTargetWithMessage(t *testing.T) {
	target, err := ParseTarget("done:Great, found some options.")
	require.NoError(t, err)
	assert.Equal(t, "done", target.StateID)
	assert.True(t, target.HasMessage)
	assert.Equal(t, "Great, found some options.", target.Message)
}

func TestParseTargetExit(t *testing.T) {
	target, err := ParseTarget("exit:Goodbye")
	require.NoError(t, err)
	assert.Equal(t, ExitState, target.StateID)
	assert.Equal(t, "Goodbye", target.Message)
}

func TestParseTargetEmptyIsError(t *testing.T) {
	_, err := ParseTarget("")
	assert.Error(t, err)
}

func TestStateResolveFallsBackToWildcard(t *testing.T) {
	s := State{Transitions: map[string]string{WildcardIntent: "fallback"}}
	target, ok, err := s.Resolve("anything")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "fallback", target.StateID)
}

func TestStateResolveNoMatch(t *testing.T) {
	s := State{Transitions: map[string]string{"specific": "x"}}
	_, ok, err := s.Resolve("other")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidateAcceptsWellFormedWorkflow(t *testing.T) {
	assert.NoError(t, sampleWorkflow().Validate())
}

func TestValidateRejectsMissingInitialState(t *testing.T) {
	w := sampleWorkflow()
	w.InitialState = "nope"
	assert.Error(t, w.Validate())
}

func TestValidateRejectsDanglingTransition(t *testing.T) {
	w := sampleWorkflow()
	s := w.States["greet"]
	s.Transitions["continue"] = "nonexistent_state"
	w.States["greet"] = s
	assert.Error(t, w.Validate())
}

func TestValidateRejectsUnreachableExit(t *testing.T) {
	w := sampleWorkflow()
	s := w.States["done"]
	s.Transitions = map[string]string{"*": "done"} // self-loop, never exits
	w.States["done"] = s
	assert.Error(t, w.Validate())
}

func TestValidateRejectsMalformedDataPath(t *testing.T) {
	w := sampleWorkflow()
	s := w.States["search"]
	s.ToolArgsMap = map[string]string{"query": "state."}
	w.States["search"] = s
	assert.Error(t, w.Validate())
}

func TestSaveAndLoadJSONLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.jsonl")
	w := sampleWorkflow()

	require.NoError(t, SaveJSONL(path, w))

	loaded, err := LoadJSONL(path)
	require.NoError(t, err)
	assert.Equal(t, w.Name, loaded.Name)
	assert.Equal(t, w.InitialState, loaded.InitialState)
	assert.Equal(t, len(w.States), len(loaded.States))
	assert.NoError(t, loaded.Validate())
}

func TestLoadDirJSONLSkipsNonJSONL(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveJSONL(filepath.Join(dir, "sample.jsonl"), sampleWorkflow()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644))

	all, err := LoadDirJSONL(dir)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Contains(t, all, "sample")
}

func TestRegistryReplaceRejectsInvalidWorkflow(t *testing.T) {
	r := NewRegistry()
	w := sampleWorkflow()
	w.InitialState = "missing"
	assert.Error(t, r.Replace(w))
	_, ok := r.Get("sample")
	assert.False(t, ok)
}

func TestRegistryPatchIsAtomic(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Replace(sampleWorkflow()))

	badTransitions := map[string]string{"*": "no_such_state"}
	err := r.Patch("sample", "done", StatePatch{Transitions: badTransitions})
	assert.Error(t, err)

	w, _ := r.Get("sample")
	assert.NoError(t, w.Validate()) // registry untouched by the rejected patch

	newLine := "Hello again!"
	require.NoError(t, r.Patch("sample", "greet", StatePatch{Narration: &newLine}))
	w, _ = r.Get("sample")
	s, _ := w.State("greet")
	assert.Equal(t, newLine, s.Narration)
}
