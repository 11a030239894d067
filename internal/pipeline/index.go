package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/text/cases"

	"github.com/p-n-ai/pai-courses/internal/course"
	"github.com/p-n-ai/pai-courses/internal/events"
	"github.com/p-n-ai/pai-courses/internal/prompts"
)

// CustomLesson is a learner-supplied lesson for the subtopic at position
// Subtopic (zero based).
type CustomLesson struct {
	Subtopic     int    `json:"subtopic"`
	Title        string `json:"title"`
	TitleEnglish string `json:"titleEnglish,omitempty"`
}

// IndexRequest asks for a course outline.
type IndexRequest struct {
	CourseID string
	// NumSubtopics overrides the count chosen at course creation when > 0.
	NumSubtopics  int
	CustomLessons []CustomLesson
}

type generatedIndex struct {
	Subtopics []struct {
		Title        string `json:"title"`
		TitleEnglish string `json:"titleEnglish"`
		Lessons      []struct {
			Title        string `json:"title"`
			TitleEnglish string `json:"titleEnglish"`
		} `json:"lessons"`
	} `json:"subtopics"`
}

// GenerateIndex builds the subtopic and lesson outline with one structured
// generation. The result must have exactly the requested number of
// subtopics, each with 3 to 5 lessons. Custom lessons are merged into their
// subtopic unless a lesson with the same title already exists. When an
// outline is already stored only the custom lessons are merged.
func (s *Service) GenerateIndex(ctx context.Context, req IndexRequest) (*course.Course, error) {
	c, err := s.load(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}

	if len(c.Subtopics) > 0 {
		if len(req.CustomLessons) == 0 {
			return c, nil
		}
		if err := mergeCustomLessons(c.Subtopics, req.CustomLessons); err != nil {
			return nil, err
		}
		if err := s.save(ctx, c); err != nil {
			return nil, err
		}
		return c, nil
	}

	if err := require(c, course.StageOutcomeSet); err != nil {
		return nil, err
	}
	n := c.NumSubtopics
	if req.NumSubtopics > 0 {
		n = req.NumSubtopics
	}
	if n < 1 || n > maxSubtopics {
		return nil, fmt.Errorf("subtopics must be between 1 and %d: %w", maxSubtopics, ErrInvalidInput)
	}
	for _, cl := range req.CustomLessons {
		if cl.Subtopic < 0 || cl.Subtopic >= n {
			return nil, fmt.Errorf("custom lesson %q targets subtopic %d of %d: %w", cl.Title, cl.Subtopic, n, ErrInvalidInput)
		}
	}

	out, err := s.generate(ctx, c, prompts.Index, prompts.Data{
		Topic:        c.Topic,
		LanguageName: c.LanguageName,
		Objectives:   c.Objectives,
		Outcome:      c.Outcome,
		NumSubtopics: n,
	})
	if err != nil {
		return nil, s.fail(ctx, c, prompts.Index, err)
	}

	var idx generatedIndex
	if err := decodeStrict(out, gojsonschema.NewGoLoader(indexSchema(n)), &idx); err != nil {
		return nil, s.fail(ctx, c, prompts.Index, err)
	}

	subtopics := make([]course.Subtopic, 0, len(idx.Subtopics))
	for _, gs := range idx.Subtopics {
		st := course.Subtopic{
			ID:           course.NewID(),
			Title:        strings.TrimSpace(gs.Title),
			TitleEnglish: englishOr(gs.TitleEnglish, gs.Title),
			Lessons:      make([]course.Lesson, 0, len(gs.Lessons)),
		}
		for _, gl := range gs.Lessons {
			st.Lessons = append(st.Lessons, course.Lesson{
				ID:           course.NewID(),
				Title:        strings.TrimSpace(gl.Title),
				TitleEnglish: englishOr(gl.TitleEnglish, gl.Title),
				VideoHistory: []course.VideoRef{},
			})
		}
		subtopics = append(subtopics, st)
	}
	if err := mergeCustomLessons(subtopics, req.CustomLessons); err != nil {
		return nil, err
	}

	c.NumSubtopics = n
	c.Subtopics = subtopics
	c.Advance(course.StageIndexSet)
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}

	s.emit(ctx, c, events.TypeIndexGenerated, map[string]any{
		"subtopics": len(subtopics),
		"custom":    len(req.CustomLessons),
	})
	return c, nil
}

func englishOr(english, native string) string {
	if e := strings.TrimSpace(english); e != "" {
		return e
	}
	return strings.TrimSpace(native)
}

// mergeCustomLessons appends custom lessons to their subtopics, skipping
// titles that already exist there, compared case-insensitively.
func mergeCustomLessons(subtopics []course.Subtopic, custom []CustomLesson) error {
	fold := cases.Fold()
	for _, cl := range custom {
		if cl.Subtopic < 0 || cl.Subtopic >= len(subtopics) {
			return fmt.Errorf("custom lesson %q targets subtopic %d of %d: %w", cl.Title, cl.Subtopic, len(subtopics), ErrInvalidInput)
		}
		title := strings.TrimSpace(cl.Title)
		if title == "" {
			return fmt.Errorf("custom lesson title is required: %w", ErrInvalidInput)
		}

		st := &subtopics[cl.Subtopic]
		key := fold.String(title)
		duplicate := false
		for _, l := range st.Lessons {
			if fold.String(strings.TrimSpace(l.Title)) == key {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		st.Lessons = append(st.Lessons, course.Lesson{
			ID:           course.NewID(),
			Title:        title,
			TitleEnglish: englishOr(cl.TitleEnglish, title),
			VideoHistory: []course.VideoRef{},
			Custom:       true,
		})
	}
	return nil
}
