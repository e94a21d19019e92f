package llm

import (
	"context"
	"fmt"
	"sync"
)

// Mock is a scripted client for tests and dry runs: it replays a
// fixed sequence of responses and records every prompt it saw.
type Mock struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
	Prompts   []string
}

func NewMock(responses ...string) *Mock {
	return &Mock{responses: responses}
}

// FailWith makes the nth call (zero-based) return err instead of a
// response.
func (m *Mock) FailWith(n int, err error) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.errs) <= n {
		m.errs = append(m.errs, nil)
	}
	m.errs[n] = err
	return m
}

func (m *Mock) Generate(_ context.Context, req *Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := m.calls
	m.calls++
	m.Prompts = append(m.Prompts, req.Prompt)
	if call < len(m.errs) && m.errs[call] != nil {
		return nil, m.errs[call]
	}
	if call >= len(m.responses) {
		return nil, fmt.Errorf("mock llm: no scripted response for call %d", call)
	}
	return &Response{
		Content:    m.responses[call],
		ModelID:    "mock",
		StopReason: "stop",
	}, nil
}

// Calls reports how many times Generate ran.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
