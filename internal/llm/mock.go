package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// MockResponse is one scripted reply.
type MockResponse struct {
	Content json.RawMessage
	Usage   Usage
	Err     error
}

// MockProvider replays scripted replies in order and records requests.
// Once the script runs out it calls Fallback, or fails when Fallback is nil.
type MockProvider struct {
	mu       sync.Mutex
	script   []MockResponse
	Calls    []Request
	Fallback func(Request) (*Response, error)
}

func NewMockProvider(script ...MockResponse) *MockProvider {
	return &MockProvider{script: script}
}

// NewOfflineProvider answers every schema request with the schema's zero
// value. It backs the "mock" provider so the server runs without keys;
// document questions then get the not-found answer.
func NewOfflineProvider() *MockProvider {
	m := NewMockProvider()
	m.Fallback = func(req Request) (*Response, error) {
		var v any = ""
		if req.Schema != nil {
			v = zeroValue(req.Schema.Definition)
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return &Response{Content: b, Model: "mock", StopReason: StopEnd}, nil
	}
	return m
}

func (m *MockProvider) Generate(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)
	if len(m.script) == 0 {
		if m.Fallback != nil {
			return m.Fallback(req)
		}
		return nil, &ErrProviderUnavailable{}
	}

	next := m.script[0]
	m.script = m.script[1:]
	if next.Err != nil {
		return nil, next.Err
	}
	return &Response{Content: next.Content, Usage: next.Usage, Model: "mock", StopReason: StopEnd}, nil
}

func (m *MockProvider) ModelID() string { return "mock" }

// AddResponse appends to the script.
func (m *MockProvider) AddResponse(r MockResponse) {
	m.mu.Lock()
	m.script = append(m.script, r)
	m.mu.Unlock()
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// zeroValue builds the empty instance of a JSON Schema definition with
// every required property present.
func zeroValue(def map[string]any) any {
	t, _ := def["type"].(string)
	switch t {
	case "object":
		out := map[string]any{}
		props, _ := def["properties"].(map[string]any)
		for _, name := range stringList(def["required"]) {
			sub, _ := props[name].(map[string]any)
			out[name] = zeroValue(sub)
		}
		return out
	case "array":
		return []any{}
	case "integer", "number":
		return 0
	case "boolean":
		return false
	default:
		if enum := stringList(def["enum"]); len(enum) > 0 {
			return enum[0]
		}
		return ""
	}
}
