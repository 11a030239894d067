// Package pipeline assembles courses stage by stage: objective, outcome,
// index, lesson content with video, and quiz.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/p-n-ai/pai-courses/internal/ai"
	"github.com/p-n-ai/pai-courses/internal/course"
	"github.com/p-n-ai/pai-courses/internal/events"
	"github.com/p-n-ai/pai-courses/internal/media"
	"github.com/p-n-ai/pai-courses/internal/prompts"
)

var (
	// ErrMalformedGeneration means model output did not have the expected shape.
	ErrMalformedGeneration = errors.New("malformed generation")
	// ErrNotFound is course.ErrNotFound, so either sentinel matches.
	ErrNotFound = course.ErrNotFound
	// ErrLimitExceeded covers the video change cap and exhausted token budgets.
	ErrLimitExceeded = errors.New("limit exceeded")
	// ErrInvalidStage means the course has not reached the stage an operation needs.
	ErrInvalidStage = errors.New("invalid stage")
	// ErrInvalidInput means the caller's arguments were rejected.
	ErrInvalidInput = errors.New("invalid input")
)

const (
	defaultLanguage = "en"
	maxSubtopics    = 20
)

// Thumbnailer finds a cover image URL for a topic. An empty URL with a nil
// error means nothing suitable was found.
type Thumbnailer interface {
	Fetch(ctx context.Context, topic string) (string, error)
}

// Config holds the service dependencies. AI is required; the rest default
// to in-memory or no-op implementations.
type Config struct {
	AI         ai.Completer
	Prompts    *prompts.Catalog
	Store      course.Store
	Videos     media.Searcher
	Thumbnails Thumbnailer
	Budget     ai.BudgetChecker
	Events     events.Logger
	Now        func() time.Time
}

// Service runs the course generation stages. Each stage is idempotent: work
// already stored is returned instead of regenerated.
type Service struct {
	ai         ai.Completer
	prompts    *prompts.Catalog
	store      course.Store
	videos     media.Searcher
	thumbnails Thumbnailer
	budget     ai.BudgetChecker
	events     events.Logger
	now        func() time.Time

	lessons singleflight.Group
}

// NewService creates a pipeline service.
func NewService(cfg Config) (*Service, error) {
	if cfg.AI == nil {
		return nil, fmt.Errorf("pipeline: AI completer is required")
	}
	catalog := cfg.Prompts
	if catalog == nil {
		var err error
		if catalog, err = prompts.Load(""); err != nil {
			return nil, err
		}
	}
	store := cfg.Store
	if store == nil {
		store = course.NewMemoryStore()
	}
	videos := cfg.Videos
	if videos == nil {
		videos = media.SearcherFunc(func(context.Context, string) []media.Video { return nil })
	}
	logger := cfg.Events
	if logger == nil {
		logger = events.Nop{}
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		ai:         cfg.AI,
		prompts:    catalog,
		store:      store,
		videos:     videos,
		thumbnails: cfg.Thumbnails,
		budget:     cfg.Budget,
		events:     logger,
		now:        now,
	}, nil
}

// generate renders a prompt, charges the course owner's budget and returns
// the raw model output.
func (s *Service) generate(ctx context.Context, c *course.Course, id string, data prompts.Data) (string, error) {
	if s.budget != nil {
		ok, err := s.budget.Check(ctx, c.TenantID, c.UserID)
		if err != nil {
			return "", fmt.Errorf("checking budget: %w", err)
		}
		if !ok {
			return "", fmt.Errorf("token budget exhausted for user %s: %w", c.UserID, ErrLimitExceeded)
		}
	}

	req, err := s.prompts.Render(id, data)
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := s.ai.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generating %s: %w", id, err)
	}
	slog.Info("generation complete",
		"prompt", id,
		"course_id", c.ID,
		"provider", resp.Provider,
		"model", resp.Model,
		"tokens", resp.TotalTokens(),
		"duration", time.Since(start),
	)

	if s.budget != nil {
		if err := s.budget.Record(ctx, c.TenantID, c.UserID, resp.TotalTokens()); err != nil {
			slog.Warn("failed to record token usage", "course_id", c.ID, "error", err)
		}
	}
	return resp.Content, nil
}

func (s *Service) emit(ctx context.Context, c *course.Course, typ string, data map[string]any) {
	err := s.events.LogEvent(ctx, events.Event{
		CourseID: c.ID,
		TenantID: c.TenantID,
		UserID:   c.UserID,
		Type:     typ,
		Data:     data,
	})
	if err != nil {
		slog.Warn("failed to log event", "type", typ, "course_id", c.ID, "error", err)
	}
}

// fail records a stage failure and returns err unchanged.
func (s *Service) fail(ctx context.Context, c *course.Course, stage string, err error) error {
	slog.Error("stage failed", "stage", stage, "course_id", c.ID, "error", err)
	s.emit(ctx, c, events.TypeStageFailed, map[string]any{"stage": stage, "error": err.Error()})
	return err
}

func (s *Service) load(ctx context.Context, courseID string) (*course.Course, error) {
	if courseID == "" {
		return nil, fmt.Errorf("course id is required: %w", ErrInvalidInput)
	}
	return s.store.Get(ctx, courseID)
}

func (s *Service) save(ctx context.Context, c *course.Course) error {
	c.UpdatedAt = s.now()
	if err := s.store.Update(ctx, c); err != nil {
		return fmt.Errorf("saving course %s: %w", c.ID, err)
	}
	return nil
}

func require(c *course.Course, min course.Stage) error {
	if err := c.Require(min); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidStage, err)
	}
	return nil
}

// resolveLanguage validates a BCP-47 code and returns its English display
// name and whether it is English.
func resolveLanguage(code string) (string, string, bool, error) {
	if code == "" {
		code = defaultLanguage
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", "", false, fmt.Errorf("language %q: %w", code, ErrInvalidInput)
	}
	base, _ := tag.Base()
	name := display.English.Tags().Name(tag)
	if name == "" {
		name = code
	}
	return tag.String(), name, base.String() == "en", nil
}

// QuestionCount is the quiz size for a course with n subtopics.
func QuestionCount(numSubtopics int) int {
	switch numSubtopics {
	case 10:
		return 20
	case 15:
		return 30
	default:
		return 10
	}
}

// GetCourse returns a stored course.
func (s *Service) GetCourse(ctx context.Context, courseID string) (*course.Course, error) {
	return s.load(ctx, courseID)
}

// ListCourses returns a learner's courses, newest first.
func (s *Service) ListCourses(ctx context.Context, tenantID, userID string) ([]*course.Course, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required: %w", ErrInvalidInput)
	}
	return s.store.ListByUser(ctx, tenantID, userID)
}
