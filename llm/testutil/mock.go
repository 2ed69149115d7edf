// Package testutil provides test utilities for the llm package.
package testutil

import (
	"context"
	"sync"

	"github.com/studysprint/studysprint/llm"
)

// Step scripts one Complete() call: either a response or an error.
type Step struct {
	Response *llm.Response
	Err      error
}

// MockCompleter is a thread-safe scripted completion client for testing.
// Each call to Complete consumes the next Step in order; once the script
// is exhausted the last step repeats.
//
// Usage:
//
//	mock := &testutil.MockCompleter{
//	    Steps: []testutil.Step{
//	        {Response: &llm.Response{Content: "not json", Model: "test-model"}},
//	        {Response: &llm.Response{Content: `{"ok": true}`, Model: "test-model"}},
//	    },
//	}
type MockCompleter struct {
	mu        sync.Mutex
	Steps     []Step
	requests  []llm.Request
	callCount int
}

// Complete implements the completer contract used by the agent package.
func (m *MockCompleter) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	idx := m.callCount
	m.callCount++

	if len(m.Steps) == 0 {
		return &llm.Response{Content: "", Model: "test-model", Primary: true}, nil
	}
	if idx >= len(m.Steps) {
		idx = len(m.Steps) - 1
	}

	step := m.Steps[idx]
	if step.Err != nil {
		return nil, step.Err
	}
	resp := *step.Response
	if resp.Model == "" {
		resp.Model = "test-model"
	}
	return &resp, nil
}

// CallCount returns the number of times Complete() was called.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Requests returns a copy of all captured requests.
func (m *MockCompleter) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent captured request, or a zero Request.
func (m *MockCompleter) LastRequest() llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return llm.Request{}
	}
	return m.requests[len(m.requests)-1]
}

// Reset clears captured state.
func (m *MockCompleter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.requests = nil
}
