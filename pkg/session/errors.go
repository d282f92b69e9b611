package session

import "errors"

// Sentinel errors for the session package.
var (
	// ErrNotFound indicates no session is registered under the given id.
	ErrNotFound = errors.New("session: not found")

	// ErrAlreadyDone indicates an operation was attempted on a session
	// that has already reached an exit state.
	ErrAlreadyDone = errors.New("session: already done")

	// ErrPaused indicates HandleUtterance was called while the session is
	// paused for admin inspection.
	ErrPaused = errors.New("session: paused")

	// ErrNoSuchState indicates the workflow has no state with the given id.
	ErrNoSuchState = errors.New("session: no such state")

	// ErrToolNotRegistered indicates a workflow state names a tool that was
	// never registered with the session's tool registry.
	ErrToolNotRegistered = errors.New("session: tool not registered")
)
