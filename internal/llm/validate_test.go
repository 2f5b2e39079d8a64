package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

func quizSchema() *Schema {
	return &Schema{
		Name: "test-quiz-item",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"prompt":  map[string]any{"type": "string"},
				"options": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "minItems": 2},
				"correct": map[string]any{"type": "integer", "minimum": 0},
				"lang":    map[string]any{"type": "string", "enum": []string{"ar", "fr"}},
			},
			"required": []string{"prompt", "options", "correct"},
		},
	}
}

func TestValidateResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", `{"prompt":"2+2?","options":["3","4"],"correct":1,"lang":"fr"}`, false},
		{"optional field omitted", `{"prompt":"2+2?","options":["3","4"],"correct":1}`, false},
		{"missing required", `{"prompt":"2+2?","options":["3","4"]}`, true},
		{"wrong type", `{"prompt":"2+2?","options":["3","4"],"correct":"1"}`, true},
		{"enum", `{"prompt":"2+2?","options":["3","4"],"correct":1,"lang":"en"}`, true},
		{"min items", `{"prompt":"2+2?","options":["4"],"correct":0}`, true},
		{"negative", `{"prompt":"2+2?","options":["3","4"],"correct":-1}`, true},
		{"item type", `{"prompt":"2+2?","options":[3,4],"correct":1}`, true},
		{"malformed", `{"prompt":`, true},
		{"empty", ``, true},
		{"whitespace", " \n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateResponse(quizSchema(), json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			var invalid *ErrInvalidResponse
			if err != nil && !errors.As(err, &invalid) {
				t.Fatalf("err = %T, want *ErrInvalidResponse", err)
			}
		})
	}
}

func TestValidateResponseNilSchema(t *testing.T) {
	if err := validateResponse(nil, json.RawMessage(`anything`)); err != nil {
		t.Fatalf("nil schema: %v", err)
	}
}

func TestCompileCachesByName(t *testing.T) {
	a, err := compile(quizSchema())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	b, err := compile(quizSchema())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if a != b {
		t.Error("second compile should hit the cache")
	}
}

func TestCompileRejectsBadSchema(t *testing.T) {
	_, err := compile(&Schema{Name: "test-bad", Definition: map[string]any{"type": 12}})
	if err == nil {
		t.Fatal("expected compile error")
	}
}
