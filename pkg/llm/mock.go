package llm

import (
	"context"
	"sync"
)

// Mock implements Client for testing and for running the service without a
// configured LLM backend wired in.
type Mock struct {
	CompleteFunc func(ctx context.Context, messages []Message) (string, error)

	mu    sync.Mutex
	calls int
}

// NewMock returns a mock that replies with a fixed string for every call.
func NewMock(reply string) *Mock {
	return &Mock{
		CompleteFunc: func(ctx context.Context, messages []Message) (string, error) {
			return reply, nil
		},
	}
}

func (m *Mock) Complete(ctx context.Context, messages []Message) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, messages)
	}
	return "", ErrEmptyResponse
}

// CallCount returns how many times Complete has been invoked.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var _ Client = (*Mock)(nil)
