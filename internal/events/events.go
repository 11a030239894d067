// Package events records course pipeline events and fans them out to live
// subscribers.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the pipeline.
const (
	TypeCourseCreated      = "course_created"
	TypeObjectiveGenerated = "objective_generated"
	TypeOutcomeGenerated   = "outcome_generated"
	TypeIndexGenerated     = "index_generated"
	TypeLessonGenerated    = "lesson_generated"
	TypeVideoChanged       = "video_changed"
	TypeQuizGenerated      = "quiz_generated"
	TypeQuizCompleted      = "quiz_completed"
	TypeTemplateStarted    = "template_started"
	TypeStageFailed        = "stage_failed"
	TypeTemplateBuilt      = "template_built"
)

// Event is one pipeline occurrence for a course. ID is assigned on first
// log and stays the same in every sink.
type Event struct {
	ID        string         `json:"id"`
	CourseID  string         `json:"courseId"`
	TenantID  string         `json:"tenantId"`
	UserID    string         `json:"userId"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (e *Event) validate() error {
	if e.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if e.CourseID == "" {
		return fmt.Errorf("course id is required")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return nil
}

// Logger records events.
type Logger interface {
	LogEvent(ctx context.Context, event Event) error
}

// Nop ignores all events.
type Nop struct{}

func (Nop) LogEvent(context.Context, Event) error {
	return nil
}

// Memory stores events in memory for tests.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory {
	return &Memory{events: []Event{}}
}

func (l *Memory) LogEvent(_ context.Context, event Event) error {
	if err := event.validate(); err != nil {
		return err
	}
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
	return nil
}

// Events returns a copy of everything logged so far.
func (l *Memory) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event{}, l.events...)
}

// Types returns the logged event types in order.
func (l *Memory) Types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type
	}
	return out
}

// Multi sends every event to each logger and joins their errors. The event
// is stamped once so all loggers record the same id.
type Multi []Logger

func (m Multi) LogEvent(ctx context.Context, event Event) error {
	if err := event.validate(); err != nil {
		return err
	}
	var errs []error
	for _, l := range m {
		if err := l.LogEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
