package openai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kotodama-ai/kotodama/pkg/provider/llm"
)

// TestNew_MissingAPIKey checks that an empty API key is rejected.
func TestNew_MissingAPIKey(t *testing.T) {
	_, err := New("", "gpt-5-mini")
	if !errors.Is(err, llm.ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

// TestNew_MissingModel checks that an empty model is rejected.
func TestNew_MissingModel(t *testing.T) {
	if _, err := New("sk-test", ""); err == nil {
		t.Fatal("expected error for empty model")
	}
}

func TestIsReasoningModel(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{"gpt-5", true},
		{"gpt-5-mini", true},
		{"gpt-5-nano", true},
		{"GPT-5-MINI", true},
		{"gpt-4o", false},
		{"gpt-4o-mini", false},
		{"gpt-3.5-turbo", false},
	}
	for _, tt := range tests {
		if got := IsReasoningModel(tt.model); got != tt.want {
			t.Errorf("IsReasoningModel(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestReasoningBudget(t *testing.T) {
	tests := []struct {
		maxTokens int
		want      int
	}{
		{0, 1200},
		{300, 1200},
		{600, 1200},
		{601, 1202},
		{1000, 2000},
	}
	for _, tt := range tests {
		if got := ReasoningBudget(tt.maxTokens); got != tt.want {
			t.Errorf("ReasoningBudget(%d) = %d, want %d", tt.maxTokens, got, tt.want)
		}
	}
}

// TestBuildParams_ReasoningModel verifies gpt-5 shaping: no temperature,
// doubled completion budget, minimal reasoning effort.
func TestBuildParams_ReasoningModel(t *testing.T) {
	p, err := New("sk-test", "gpt-5-mini")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	params, err := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "あなたは講演内容の専門家です。",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "黄金率とは?"}},
		Temperature:  0.7,
		MaxTokens:    500,
	})
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}

	if params.Temperature.Valid() {
		t.Error("reasoning models must not set temperature")
	}
	if params.MaxTokens.Valid() {
		t.Error("reasoning models must not set max_tokens")
	}
	if got := params.MaxCompletionTokens.Or(0); got != 1200 {
		t.Errorf("max_completion_tokens = %d, want 1200 floor", got)
	}
	if string(params.ReasoningEffort) != "minimal" {
		t.Errorf("reasoning_effort = %q, want minimal", params.ReasoningEffort)
	}
	// System prompt plus the one user message.
	if len(params.Messages) != 2 {
		t.Errorf("messages = %d, want 2", len(params.Messages))
	}
}

// TestBuildParams_ChatModel verifies standard shaping for non-reasoning
// models.
func TestBuildParams_ChatModel(t *testing.T) {
	p, err := New("sk-test", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	params, err := p.buildParams(llm.CompletionRequest{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: "こんにちは"}},
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}

	if got := params.Temperature.Or(0); got != 0.7 {
		t.Errorf("temperature = %v, want 0.7", got)
	}
	if got := params.MaxTokens.Or(0); got != 500 {
		t.Errorf("max_tokens = %d, want 500", got)
	}
	if params.MaxCompletionTokens.Valid() {
		t.Error("chat models must not set max_completion_tokens")
	}
}

// TestComplete_EmptyContentReportsFinishReason verifies that an empty message
// is rejected with the finish reason in the error. Reasoning models can spend
// the whole completion budget on hidden tokens and stop with "length".
func TestComplete_EmptyContentReportsFinishReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-test",
			"object": "chat.completion",
			"model": "gpt-5-mini",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": ""},
				"finish_reason": "length"
			}],
			"usage": {"prompt_tokens": 42, "completion_tokens": 1200, "total_tokens": 1242}
		}`))
	}))
	defer srv.Close()

	p, err := New("sk-test", "gpt-5-mini", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = p.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "黄金率とは?"}},
	})
	if err == nil {
		t.Fatal("expected error for empty content")
	}
	if !strings.Contains(err.Error(), "length") {
		t.Errorf("error %q does not carry the finish reason", err)
	}
}

// TestBuildParams_UnknownRole verifies that unknown roles are rejected.
func TestBuildParams_UnknownRole(t *testing.T) {
	p, err := New("sk-test", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "tool", Content: "x"}},
	})
	if err == nil {
		t.Fatal("expected error for unknown role")
	}
}
