package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCleanJSON(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\": 1}\n```": `{"a": 1}`,
		"```\n{\"a\": 1}```":       `{"a": 1}`,
		"  {\"a\": 1}  ":           `{"a": 1}`,
	}
	for in, want := range tests {
		if got := CleanJSON(in); got != want {
			t.Errorf("CleanJSON(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(nil) {
		t.Error("nil error should not be retryable")
	}
	if Retryable(fmt.Errorf("wrapped: %w", context.Canceled)) {
		t.Error("cancellation should not be retryable")
	}
	if !Retryable(errors.New("connection reset by peer")) {
		t.Error("transport errors should be retryable")
	}
	if Retryable(&StatusError{Provider: "x", StatusCode: 403}) {
		t.Error("403 should be permanent")
	}
	if !Retryable(fmt.Errorf("call: %w", &StatusError{Provider: "x", StatusCode: 502})) {
		t.Error("wrapped 502 should be retryable")
	}
}

func TestNewProvider(t *testing.T) {
	for _, name := range []string{"", "mock", "MOCK"} {
		p, err := NewProvider(context.Background(), Config{Provider: name})
		if err != nil || p != nil {
			t.Errorf("NewProvider(%q) = %v, %v; want nil, nil", name, p, err)
		}
	}

	if _, err := NewProvider(context.Background(), Config{Provider: "unknown"}); err == nil {
		t.Error("Expected error for unknown provider")
	}

	p, err := NewProvider(context.Background(), Config{Provider: "ollama", Model: "mistral"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p.Name() != "ollama" {
		t.Errorf("Expected ollama provider, got %s", p.Name())
	}
}
