package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/pai-courses/internal/course"
	"github.com/p-n-ai/pai-courses/internal/events"
)

// StartFromTemplate gives a learner their own copy of a catalog course. The
// copy shares nothing with the template. Starting the same template twice
// returns the existing copy.
func (s *Service) StartFromTemplate(ctx context.Context, templateID, tenantID, userID string) (*course.Course, error) {
	if templateID == "" || userID == "" {
		return nil, fmt.Errorf("template and user ids are required: %w", ErrInvalidInput)
	}
	t, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.FindByTemplate(ctx, tenantID, userID, t.ID)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, course.ErrNotFound):
		return nil, fmt.Errorf("finding course: %w", err)
	}

	c := t.Clone(tenantID, userID)
	c.CreatedAt, c.UpdatedAt = s.now(), s.now()
	if err := s.store.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("creating course from template %s: %w", t.ID, err)
	}

	slog.Info("course started from template",
		"course_id", c.ID,
		"template_id", t.ID,
		"user_id", userID,
	)
	s.emit(ctx, c, events.TypeTemplateStarted, map[string]any{"template_id": t.ID})
	return c, nil
}
