// Package prompts loads and renders the generation prompt catalog.
package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/pai-courses/internal/ai"
)

// Prompt identifiers.
const (
	Objective = "objective"
	Outcome   = "outcome"
	Index     = "index"
	Lesson    = "lesson"
	Quiz      = "quiz"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Definition is one prompt as written in YAML.
type Definition struct {
	ID          string  `yaml:"id"`
	Task        string  `yaml:"task"`
	System      string  `yaml:"system"`
	User        string  `yaml:"user"`
	JSON        bool    `yaml:"json"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// Data is the template input. Prompts use the fields they need.
type Data struct {
	Topic         string
	LanguageName  string
	Objectives    []string
	Outcome       string
	NumSubtopics  int
	SubtopicTitle string
	LessonTitle   string
	NumQuestions  int
	Content       string
}

type compiled struct {
	def    Definition
	task   ai.TaskType
	system *template.Template
	user   *template.Template
}

// Catalog holds compiled prompts keyed by ID.
type Catalog struct {
	mu      sync.RWMutex
	prompts map[string]compiled
}

// Load builds a catalog from the embedded defaults, then applies overrides
// from every .yaml/.yml file under dir. An empty dir means defaults only.
func Load(dir string) (*Catalog, error) {
	c := &Catalog{prompts: make(map[string]compiled)}

	if err := c.add(defaultsYAML, "defaults.yaml"); err != nil {
		return nil, fmt.Errorf("loading default prompts: %w", err)
	}

	if dir != "" {
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || !(strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")) {
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			return c.add(data, path)
		})
		if err != nil {
			return nil, fmt.Errorf("loading prompts from %s: %w", dir, err)
		}
	}

	for _, id := range []string{Objective, Outcome, Index, Lesson, Quiz} {
		if _, ok := c.prompts[id]; !ok {
			return nil, fmt.Errorf("prompt %q missing from catalog", id)
		}
	}

	slog.Info("prompt catalog loaded", "prompts", len(c.prompts), "dir", dir)
	return c, nil
}

func (c *Catalog) add(data []byte, source string) error {
	var defs []Definition
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}

	for _, d := range defs {
		if d.ID == "" {
			slog.Warn("skipping prompt without id", "source", source)
			continue
		}
		p, err := compile(d)
		if err != nil {
			return fmt.Errorf("%s: prompt %q: %w", source, d.ID, err)
		}
		c.mu.Lock()
		c.prompts[d.ID] = p
		c.mu.Unlock()
	}
	return nil
}

func compile(d Definition) (compiled, error) {
	task, err := parseTask(d.Task)
	if err != nil {
		return compiled{}, err
	}
	sys, err := template.New(d.ID + ".system").Option("missingkey=error").Parse(d.System)
	if err != nil {
		return compiled{}, fmt.Errorf("system template: %w", err)
	}
	usr, err := template.New(d.ID + ".user").Option("missingkey=error").Parse(d.User)
	if err != nil {
		return compiled{}, fmt.Errorf("user template: %w", err)
	}
	return compiled{def: d, task: task, system: sys, user: usr}, nil
}

func parseTask(s string) (ai.TaskType, error) {
	for _, t := range []ai.TaskType{ai.TaskObjective, ai.TaskOutcome, ai.TaskIndex, ai.TaskLesson, ai.TaskQuiz} {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown task %q", s)
}

// Render fills prompt id with data and returns a ready request.
func (c *Catalog) Render(id string, data Data) (ai.CompletionRequest, error) {
	c.mu.RLock()
	p, ok := c.prompts[id]
	c.mu.RUnlock()
	if !ok {
		return ai.CompletionRequest{}, fmt.Errorf("unknown prompt %q", id)
	}

	var sys, usr bytes.Buffer
	if err := p.system.Execute(&sys, data); err != nil {
		return ai.CompletionRequest{}, fmt.Errorf("render %s system: %w", id, err)
	}
	if err := p.user.Execute(&usr, data); err != nil {
		return ai.CompletionRequest{}, fmt.Errorf("render %s user: %w", id, err)
	}

	req := ai.Prompt(p.task, strings.TrimSpace(sys.String()), strings.TrimSpace(usr.String()))
	req.JSON = p.def.JSON
	req.MaxTokens = p.def.MaxTokens
	req.Temperature = p.def.Temperature
	return req, nil
}
