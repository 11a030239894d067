package ai_test

import (
	"context"
	"testing"

	"github.com/p-n-ai/pai-courses/internal/ai"
)

func TestMockProvider_Complete(t *testing.T) {
	mock := ai.NewMockProvider("test response")

	resp, err := mock.Complete(context.Background(), ai.Prompt(ai.TaskObjective, "", "Hello"))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "test response" {
		t.Errorf("Content = %q, want %q", resp.Content, "test response")
	}
	if resp.Model != "mock" {
		t.Errorf("Model = %q, want %q", resp.Model, "mock")
	}
	if mock.Calls() != 1 {
		t.Errorf("Calls() = %d, want 1", mock.Calls())
	}
}

func TestMockProvider_Respond(t *testing.T) {
	mock := &ai.MockProvider{Respond: func(req ai.CompletionRequest) (string, error) {
		return req.Task.String(), nil
	}}

	resp, err := mock.Complete(context.Background(), ai.Prompt(ai.TaskQuiz, "", "x"))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "quiz" {
		t.Errorf("Content = %q, want quiz", resp.Content)
	}
}

func TestPrompt(t *testing.T) {
	req := ai.Prompt(ai.TaskLesson, "be brief", "explain loops")
	if len(req.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(req.Messages))
	}
	if req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
		t.Errorf("roles = %q, %q", req.Messages[0].Role, req.Messages[1].Role)
	}

	req = ai.Prompt(ai.TaskLesson, "", "explain loops")
	if len(req.Messages) != 1 {
		t.Errorf("messages without system = %d, want 1", len(req.Messages))
	}
}

func TestTaskType_String(t *testing.T) {
	tests := []struct {
		task     ai.TaskType
		expected string
	}{
		{ai.TaskObjective, "objective"},
		{ai.TaskOutcome, "outcome"},
		{ai.TaskIndex, "index"},
		{ai.TaskLesson, "lesson"},
		{ai.TaskQuiz, "quiz"},
		{ai.TaskType(99), "unknown"},
	}
	for _, tt := range tests {
		if tt.task.String() != tt.expected {
			t.Errorf("TaskType.String() = %q, want %q", tt.task.String(), tt.expected)
		}
	}
}

func TestCompletionResponse_TotalTokens(t *testing.T) {
	resp := ai.CompletionResponse{InputTokens: 100, OutputTokens: 50}
	if got := resp.TotalTokens(); got != 150 {
		t.Errorf("TotalTokens() = %d, want 150", got)
	}
}
