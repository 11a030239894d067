package pipeline_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/p-n-ai/pai-courses/internal/ai"
	"github.com/p-n-ai/pai-courses/internal/course"
	"github.com/p-n-ai/pai-courses/internal/events"
	"github.com/p-n-ai/pai-courses/internal/media"
	"github.com/p-n-ai/pai-courses/internal/pipeline"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fixture wires a Service to fakes. Responses are chosen by task and can be
// overridden per test.
type fixture struct {
	svc    *pipeline.Service
	ai     *ai.MockProvider
	store  *course.MemoryStore
	events *events.Memory
	budget *ai.InMemoryBudget

	mu        sync.Mutex
	subtopics int
	lessons   int
	questions int
	override  map[ai.TaskType]string
	videos    []media.Video
	searches  int
	taskCalls map[ai.TaskType]int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     course.NewMemoryStore(),
		events:    events.NewMemory(),
		budget:    ai.NewInMemoryBudget(0),
		subtopics: 1,
		lessons:   4,
		questions: 10,
		override:  map[ai.TaskType]string{},
		taskCalls: map[ai.TaskType]int{},
		videos: []media.Video{
			{ID: "short1", Title: "Loops in 60 seconds #shorts"},
			{ID: "v1", Title: "Python Basics full course"},
			{ID: "v2", Title: "Lesson 1 explained"},
			{ID: "v3", Title: "Random programming talk"},
			{ID: "v4", Title: "Another tutorial"},
			{ID: "v5", Title: "Yet another tutorial"},
		},
	}
	f.ai = &ai.MockProvider{Respond: f.respond}

	svc, err := pipeline.NewService(pipeline.Config{
		AI:         f.ai,
		Store:      f.store,
		Videos:     media.SearcherFunc(f.search),
		Thumbnails: thumbFunc(func(context.Context, string) (string, error) { return "https://images.test/cover.jpg", nil }),
		Budget:     f.budget,
		Events:     f.events,
		Now:        func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	f.svc = svc
	return f
}

type thumbFunc func(ctx context.Context, topic string) (string, error)

func (f thumbFunc) Fetch(ctx context.Context, topic string) (string, error) { return f(ctx, topic) }

func (f *fixture) respond(req ai.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taskCalls[req.Task]++
	if out, ok := f.override[req.Task]; ok {
		return out, nil
	}
	switch req.Task {
	case ai.TaskObjective:
		return "1. Understand variables\n2. Write **loops**\n3. Use functions", nil
	case ai.TaskOutcome:
		return "- Build a small script\n- Debug common errors", nil
	case ai.TaskIndex:
		return "```json\n" + indexJSON(f.subtopics, f.lessons) + "\n```", nil
	case ai.TaskLesson:
		return "## Welcome\nHello **learner**.\n\n## Explanation\nVariables hold values.", nil
	case ai.TaskQuiz:
		return quizJSON(f.questions), nil
	}
	return "", fmt.Errorf("unexpected task %s", req.Task)
}

func (f *fixture) search(_ context.Context, _ string) []media.Video {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	return append([]media.Video(nil), f.videos...)
}

func (f *fixture) set(task ai.TaskType, out string) {
	f.mu.Lock()
	f.override[task] = out
	f.mu.Unlock()
}

func (f *fixture) calls(task ai.TaskType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.taskCalls[task]
}

func (f *fixture) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searches
}

func indexJSON(subtopics, lessons int) string {
	type lesson struct {
		Title        string `json:"title"`
		TitleEnglish string `json:"titleEnglish"`
	}
	type subtopic struct {
		Title        string   `json:"title"`
		TitleEnglish string   `json:"titleEnglish"`
		Lessons      []lesson `json:"lessons"`
	}
	var idx struct {
		Subtopics []subtopic `json:"subtopics"`
	}
	for i := range subtopics {
		st := subtopic{Title: fmt.Sprintf("Subtopic %d", i+1), TitleEnglish: fmt.Sprintf("Subtopic %d", i+1)}
		for j := range lessons {
			title := fmt.Sprintf("Lesson %d", j+1)
			if j == 1 {
				title = "Loops"
			}
			st.Lessons = append(st.Lessons, lesson{Title: title, TitleEnglish: title})
		}
		idx.Subtopics = append(idx.Subtopics, st)
	}
	b, _ := json.Marshal(idx)
	return string(b)
}

func quizJSON(n int) string {
	var qs []course.Question
	for i := range n {
		qs = append(qs, course.Question{
			Question:      fmt.Sprintf("Question %d?", i+1),
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: "B",
		})
	}
	b, _ := json.Marshal(map[string]any{"questions": qs})
	return "Here is your quiz:\n" + string(b)
}

// indexed runs objective, outcome and index for "Python Basics".
func (f *fixture) indexed(t *testing.T) *course.Course {
	t.Helper()
	ctx := t.Context()
	c, err := f.svc.GenerateObjective(ctx, pipeline.ObjectiveRequest{
		TenantID:     "tenant-1",
		UserID:       "user-1",
		Topic:        "Python Basics",
		Language:     "en",
		NumSubtopics: f.subtopics,
	})
	if err != nil {
		t.Fatalf("GenerateObjective() error = %v", err)
	}
	if _, err := f.svc.GenerateOutcome(ctx, c.ID); err != nil {
		t.Fatalf("GenerateOutcome() error = %v", err)
	}
	c, err = f.svc.GenerateIndex(ctx, pipeline.IndexRequest{CourseID: c.ID})
	if err != nil {
		t.Fatalf("GenerateIndex() error = %v", err)
	}
	return c
}

// populated additionally generates every lesson.
func (f *fixture) populated(t *testing.T) *course.Course {
	t.Helper()
	c := f.indexed(t)
	for _, st := range c.Subtopics {
		for _, l := range st.Lessons {
			if _, err := f.svc.GenerateLessonContent(t.Context(), c.ID, st.ID, l.ID); err != nil {
				t.Fatalf("GenerateLessonContent() error = %v", err)
			}
		}
	}
	got, err := f.store.Get(t.Context(), c.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	return got
}

func firstLesson(c *course.Course) (course.Subtopic, course.Lesson) {
	st := c.Subtopics[0]
	return st, st.Lessons[0]
}
