package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-courses/internal/ai"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		id       string
		data     Data
		wantTask ai.TaskType
		wantJSON bool
		contains string
	}{
		{Objective, Data{Topic: "Python Basics", LanguageName: "English"}, ai.TaskObjective, false, `"Python Basics"`},
		{Outcome, Data{Topic: "Go", LanguageName: "Malay", Objectives: []string{"Write loops"}}, ai.TaskOutcome, false, "- Write loops"},
		{Index, Data{Topic: "Go", LanguageName: "English", NumSubtopics: 3}, ai.TaskIndex, true, "exactly 3 subtopics"},
		{Lesson, Data{Topic: "Go", LanguageName: "English", SubtopicTitle: "Basics", LessonTitle: "Loops"}, ai.TaskLesson, false, "Lesson: Loops"},
		{Quiz, Data{Topic: "Go", LanguageName: "English", NumQuestions: 10, Content: "loops"}, ai.TaskQuiz, true, "exactly 10 multiple-choice"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			req, err := c.Render(tt.id, tt.data)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if req.Task != tt.wantTask {
				t.Errorf("Task = %s, want %s", req.Task, tt.wantTask)
			}
			if req.JSON != tt.wantJSON {
				t.Errorf("JSON = %v, want %v", req.JSON, tt.wantJSON)
			}
			if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
				t.Fatalf("messages = %+v", req.Messages)
			}
			if !strings.Contains(req.Messages[1].Content, tt.contains) {
				t.Errorf("user prompt missing %q:\n%s", tt.contains, req.Messages[1].Content)
			}
			if req.MaxTokens == 0 {
				t.Error("MaxTokens should be set")
			}
		})
	}
}

func TestLoad_Override(t *testing.T) {
	dir := t.TempDir()
	override := `
- id: objective
  task: objective
  system: "Custom system"
  user: "Objectives for {{.Topic}} please"
`
	if err := os.WriteFile(filepath.Join(dir, "custom.yaml"), []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}
	// Non-YAML files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# notes"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	req, err := c.Render(Objective, Data{Topic: "Rust"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if req.Messages[0].Content != "Custom system" || req.Messages[1].Content != "Objectives for Rust please" {
		t.Errorf("override not applied: %+v", req.Messages)
	}

	// Untouched prompts keep their defaults.
	if _, err := c.Render(Quiz, Data{NumQuestions: 10}); err != nil {
		t.Errorf("Render(quiz) error = %v", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "- id: [unclosed"},
		{"bad template", "- id: objective\n  task: objective\n  user: '{{.Topic'"},
		{"unknown task", "- id: objective\n  task: poetry\n  user: hi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "p.yaml"), []byte(tt.yaml), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(dir); err == nil {
				t.Error("Load() should fail")
			}
		})
	}
}

func TestRender_Unknown(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := c.Render("missing", Data{}); err == nil {
		t.Error("Render() should fail for unknown prompt")
	}
}
