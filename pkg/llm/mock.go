package llm

import (
	"context"
	"sync"
)

// Mock is a Classifier for tests.
type Mock struct {
	// ClassifyFunc is called by Classify. When nil, Reply and Err are
	// returned as-is.
	ClassifyFunc func(ctx context.Context, text string) (Reply, error)

	Reply Reply
	Err   error

	mu    sync.Mutex
	texts []string
}

// NewMock returns a Mock answering with reply.
func NewMock(reply Reply) *Mock {
	return &Mock{Reply: reply}
}

// Classify records text and returns the configured result.
func (m *Mock) Classify(ctx context.Context, text string) (Reply, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	fn, reply, err := m.ClassifyFunc, m.Reply, m.Err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	return reply, err
}

// Calls returns the texts Classify received.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.texts))
	copy(out, m.texts)
	return out
}
