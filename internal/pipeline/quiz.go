package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/p-n-ai/pai-courses/internal/course"
	"github.com/p-n-ai/pai-courses/internal/events"
	"github.com/p-n-ai/pai-courses/internal/prompts"
)

type generatedQuiz struct {
	Questions []course.Question `json:"questions"`
}

// GenerateQuiz returns the course quiz, generating it at most once. The
// model output must be a JSON object with at least QuestionCount questions,
// each with exactly four options and a correct answer equal to one of them
// once surrounding whitespace is trimmed. Extra questions are dropped.
// Anything else fails with ErrMalformedGeneration and no quiz is stored.
func (s *Service) GenerateQuiz(ctx context.Context, courseID string) ([]course.Question, error) {
	c, err := s.load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if len(c.Quiz) > 0 {
		return c.Quiz, nil
	}
	if err := require(c, course.StageIndexSet); err != nil {
		return nil, err
	}

	material := lessonMaterial(c)
	if material == "" {
		return nil, fmt.Errorf("course %s has no lesson content: %w", c.ID, ErrInvalidStage)
	}
	n := QuestionCount(c.NumSubtopics)

	out, err := s.generate(ctx, c, prompts.Quiz, prompts.Data{
		Topic:        c.Topic,
		LanguageName: c.LanguageName,
		NumQuestions: n,
		Content:      material,
	})
	if err != nil {
		return nil, s.fail(ctx, c, prompts.Quiz, err)
	}

	var quiz generatedQuiz
	if err := decodeStrict(out, quizSchema, &quiz); err != nil {
		return nil, s.fail(ctx, c, prompts.Quiz, err)
	}
	questions, err := validateQuestions(quiz.Questions)
	if err != nil {
		return nil, s.fail(ctx, c, prompts.Quiz, err)
	}
	if len(questions) < n {
		err := fmt.Errorf("quiz has %d of %d questions: %w", len(questions), n, ErrMalformedGeneration)
		return nil, s.fail(ctx, c, prompts.Quiz, err)
	}
	questions = questions[:n]

	c.Quiz = questions
	c.Advance(course.StageQuizzed)
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}

	s.emit(ctx, c, events.TypeQuizGenerated, map[string]any{"questions": len(questions)})
	return c.Quiz, nil
}

func validateQuestions(in []course.Question) ([]course.Question, error) {
	out := make([]course.Question, 0, len(in))
	for i, q := range in {
		q.Question = strings.TrimSpace(q.Question)
		if q.Question == "" {
			return nil, fmt.Errorf("question %d is empty: %w", i+1, ErrMalformedGeneration)
		}
		if len(q.Options) != 4 {
			return nil, fmt.Errorf("question %d has %d options: %w", i+1, len(q.Options), ErrMalformedGeneration)
		}
		options := make([]string, len(q.Options))
		for j, o := range q.Options {
			options[j] = strings.TrimSpace(o)
		}
		q.Options = options
		q.CorrectAnswer = strings.TrimSpace(q.CorrectAnswer)
		if !slices.Contains(q.Options, q.CorrectAnswer) {
			return nil, fmt.Errorf("question %d answer %q is not an option: %w", i+1, q.CorrectAnswer, ErrMalformedGeneration)
		}
		out = append(out, q)
	}
	return out, nil
}

// lessonMaterial concatenates every generated lesson under its titles.
func lessonMaterial(c *course.Course) string {
	var b strings.Builder
	for _, st := range c.Subtopics {
		for _, l := range st.Lessons {
			if !l.HasContent() {
				continue
			}
			fmt.Fprintf(&b, "## %s / %s\n%s\n\n", st.Title, l.Title, strings.TrimSpace(l.Content))
		}
	}
	return strings.TrimSpace(b.String())
}

// CompleteQuiz records a quiz attempt. A percentage of course.PassPercentage
// or more completes the course; anything lower leaves it Active.
func (s *Service) CompleteQuiz(ctx context.Context, courseID string, score, total int) (*course.Course, error) {
	if total <= 0 || score < 0 || score > total {
		return nil, fmt.Errorf("score %d of %d: %w", score, total, ErrInvalidInput)
	}
	c, err := s.load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := require(c, course.StageQuizzed); err != nil {
		return nil, err
	}

	c.Complete(score, total, s.now())
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}

	s.emit(ctx, c, events.TypeQuizCompleted, map[string]any{
		"score":      score,
		"total":      total,
		"percentage": c.Percentage,
		"status":     string(c.Status),
	})
	return c, nil
}
