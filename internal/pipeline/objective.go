package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/p-n-ai/pai-courses/internal/course"
	"github.com/p-n-ai/pai-courses/internal/events"
	"github.com/p-n-ai/pai-courses/internal/prompts"
	"github.com/p-n-ai/pai-courses/internal/textclean"
)

// ObjectiveRequest starts a course.
type ObjectiveRequest struct {
	TenantID string
	UserID   string
	Topic    string
	// TopicEnglish is optional; English courses reuse Topic.
	TopicEnglish string
	Language     string
	NumSubtopics int
}

func (r *ObjectiveRequest) validate() error {
	r.Topic = strings.TrimSpace(r.Topic)
	switch {
	case r.UserID == "":
		return fmt.Errorf("user id is required: %w", ErrInvalidInput)
	case r.Topic == "":
		return fmt.Errorf("topic is required: %w", ErrInvalidInput)
	case r.NumSubtopics < 1 || r.NumSubtopics > maxSubtopics:
		return fmt.Errorf("subtopics must be between 1 and %d: %w", maxSubtopics, ErrInvalidInput)
	}
	return nil
}

// GenerateObjective finds or creates the learner's course for the topic and
// fills its objectives in the course language and in English. A course that
// already has objectives is returned unchanged.
func (s *Service) GenerateObjective(ctx context.Context, req ObjectiveRequest) (*course.Course, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	code, name, english, err := resolveLanguage(req.Language)
	if err != nil {
		return nil, err
	}

	c, err := s.store.FindByTopic(ctx, req.TenantID, req.UserID, req.Topic)
	switch {
	case err == nil:
		if len(c.Objectives) > 0 {
			return c, nil
		}
	case errors.Is(err, course.ErrNotFound):
		c, err = s.createCourse(ctx, req, code, name, english)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("finding course: %w", err)
	}

	data := prompts.Data{Topic: c.Topic, LanguageName: c.LanguageName}
	out, err := s.generate(ctx, c, prompts.Objective, data)
	if err != nil {
		return nil, s.fail(ctx, c, prompts.Objective, err)
	}
	objectives := textclean.ParseList(out)
	if len(objectives) == 0 {
		return nil, s.fail(ctx, c, prompts.Objective, fmt.Errorf("empty objective list: %w", ErrMalformedGeneration))
	}

	objectivesEnglish := objectives
	if !english {
		data.Topic, data.LanguageName = c.TopicEnglishOrTopic(), "English"
		out, err := s.generate(ctx, c, prompts.Objective, data)
		if err != nil {
			return nil, s.fail(ctx, c, prompts.Objective, err)
		}
		if objectivesEnglish = textclean.ParseList(out); len(objectivesEnglish) == 0 {
			return nil, s.fail(ctx, c, prompts.Objective, fmt.Errorf("empty english objective list: %w", ErrMalformedGeneration))
		}
	}

	c.Objectives = objectives
	c.ObjectivesEnglish = objectivesEnglish
	c.Advance(course.StageObjectiveSet)
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}

	s.emit(ctx, c, events.TypeObjectiveGenerated, map[string]any{"objectives": len(objectives)})
	return c, nil
}

func (s *Service) createCourse(ctx context.Context, req ObjectiveRequest, code, name string, english bool) (*course.Course, error) {
	c := course.New(req.TenantID, req.UserID, req.Topic, code, req.NumSubtopics)
	c.LanguageName = name
	c.TopicEnglish = strings.TrimSpace(req.TopicEnglish)
	if english && c.TopicEnglish == "" {
		c.TopicEnglish = c.Topic
	}
	c.CreatedAt, c.UpdatedAt = s.now(), s.now()

	if s.thumbnails != nil {
		thumb, err := s.thumbnails.Fetch(ctx, c.TopicEnglishOrTopic())
		if err != nil {
			slog.Warn("thumbnail lookup failed", "topic", c.Topic, "error", err)
		}
		c.Thumbnail = thumb
	}

	if err := s.store.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("creating course: %w", err)
	}
	slog.Info("course created",
		"course_id", c.ID,
		"user_id", c.UserID,
		"topic", c.Topic,
		"language", c.Language,
	)
	s.emit(ctx, c, events.TypeCourseCreated, map[string]any{"topic": c.Topic, "language": c.Language})
	return c, nil
}

// GenerateOutcome fills the course outcome from its stored objectives, in the
// course language and in English, each stored one item per line.
func (s *Service) GenerateOutcome(ctx context.Context, courseID string) (*course.Course, error) {
	c, err := s.load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if c.Outcome != "" {
		return c, nil
	}
	if err := require(c, course.StageObjectiveSet); err != nil {
		return nil, err
	}

	out, err := s.generate(ctx, c, prompts.Outcome, prompts.Data{
		Topic:        c.Topic,
		LanguageName: c.LanguageName,
		Objectives:   c.Objectives,
	})
	if err != nil {
		return nil, s.fail(ctx, c, prompts.Outcome, err)
	}
	outcome := textclean.ParseList(out)
	if len(outcome) == 0 {
		return nil, s.fail(ctx, c, prompts.Outcome, fmt.Errorf("empty outcome list: %w", ErrMalformedGeneration))
	}

	outcomeEnglish := outcome
	if _, _, english, _ := resolveLanguage(c.Language); !english {
		out, err := s.generate(ctx, c, prompts.Outcome, prompts.Data{
			Topic:        c.TopicEnglishOrTopic(),
			LanguageName: "English",
			Objectives:   c.ObjectivesEnglish,
		})
		if err != nil {
			return nil, s.fail(ctx, c, prompts.Outcome, err)
		}
		if outcomeEnglish = textclean.ParseList(out); len(outcomeEnglish) == 0 {
			return nil, s.fail(ctx, c, prompts.Outcome, fmt.Errorf("empty english outcome list: %w", ErrMalformedGeneration))
		}
	}

	c.Outcome = textclean.JoinLines(outcome)
	c.OutcomeEnglish = textclean.JoinLines(outcomeEnglish)
	c.Advance(course.StageOutcomeSet)
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}

	s.emit(ctx, c, events.TypeOutcomeGenerated, map[string]any{"outcomes": len(outcome)})
	return c, nil
}
