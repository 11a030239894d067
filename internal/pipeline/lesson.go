package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/p-n-ai/pai-courses/internal/course"
	"github.com/p-n-ai/pai-courses/internal/events"
	"github.com/p-n-ai/pai-courses/internal/media"
	"github.com/p-n-ai/pai-courses/internal/prompts"
	"github.com/p-n-ai/pai-courses/internal/textclean"
)

// GenerateLessonContent fills whatever the lesson is missing: long-form
// content, a video, or both. A lesson that has both is returned as stored.
// Concurrent calls for the same lesson share one generation. The shared work
// is detached from the caller's cancellation, so a caller that gives up
// returns ctx.Err() while the others still get the lesson.
func (s *Service) GenerateLessonContent(ctx context.Context, courseID, subtopicID, lessonID string) (*course.Lesson, error) {
	key := courseID + "/" + subtopicID + "/" + lessonID
	work := context.WithoutCancel(ctx)
	ch := s.lessons.DoChan(key, func() (any, error) {
		return s.populateLesson(work, courseID, subtopicID, lessonID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			slog.Debug("lesson generation shared", "course_id", courseID, "lesson_id", lessonID)
		}
		l := res.Val.(course.Lesson)
		return &l, nil
	}
}

func (s *Service) populateLesson(ctx context.Context, courseID, subtopicID, lessonID string) (course.Lesson, error) {
	c, err := s.load(ctx, courseID)
	if err != nil {
		return course.Lesson{}, err
	}
	if err := require(c, course.StageIndexSet); err != nil {
		return course.Lesson{}, err
	}
	st, l, err := c.Lesson(subtopicID, lessonID)
	if err != nil {
		return course.Lesson{}, err
	}
	if l.HasContent() && l.HasVideo() {
		return *l, nil
	}

	if !l.HasContent() {
		out, err := s.generate(ctx, c, prompts.Lesson, prompts.Data{
			Topic:         c.Topic,
			LanguageName:  c.LanguageName,
			SubtopicTitle: st.Title,
			LessonTitle:   l.Title,
		})
		if err != nil {
			return course.Lesson{}, s.fail(ctx, c, prompts.Lesson, err)
		}
		content := textclean.StripMarkdown(out)
		if content == "" {
			return course.Lesson{}, s.fail(ctx, c, prompts.Lesson, fmt.Errorf("empty lesson content: %w", ErrMalformedGeneration))
		}
		l.Content = content
	}

	if !l.HasVideo() {
		if v, ok := s.findVideo(ctx, c, st, l); ok {
			l.SetVideo(v)
		} else {
			slog.Warn("no video found for lesson", "course_id", c.ID, "lesson_id", l.ID, "title", l.Title)
		}
	}

	if err := s.store.UpdateLesson(ctx, c.ID, st.ID, *l); err != nil {
		return course.Lesson{}, fmt.Errorf("saving lesson %s: %w", l.ID, err)
	}
	s.emit(ctx, c, events.TypeLessonGenerated, map[string]any{
		"subtopic_id": st.ID,
		"lesson_id":   l.ID,
		"has_video":   l.HasVideo(),
	})

	s.markPopulated(ctx, c.ID)
	return *l, nil
}

// markPopulated advances the course once every lesson has content and a
// video. Version conflicts are ignored.
func (s *Service) markPopulated(ctx context.Context, courseID string) {
	c, err := s.store.Get(ctx, courseID)
	if err != nil || c.Stage >= course.StageContentPopulated || !c.Populated() {
		return
	}
	c.Advance(course.StageContentPopulated)
	if err := s.save(ctx, c); err != nil && !errors.Is(err, course.ErrConflict) {
		slog.Warn("failed to advance course stage", "course_id", courseID, "error", err)
	}
}

func (s *Service) findVideo(ctx context.Context, c *course.Course, st *course.Subtopic, l *course.Lesson) (course.VideoRef, bool) {
	query := strings.Join([]string{l.Title, c.Topic}, " ")
	candidates := s.videos.Search(ctx, query)
	best, ok := media.SelectBestVideo(candidates, media.Criteria{
		LessonTitle:   l.Title,
		SubtopicTitle: st.Title,
		CourseTopic:   c.Topic,
		Exclude:       l.HistoryIDs(),
	})
	if !ok {
		return course.VideoRef{}, false
	}
	return course.VideoRef{
		VideoID:      best.ID,
		URL:          best.URL(),
		Title:        best.Title,
		ChannelID:    best.ChannelID,
		ChannelTitle: best.ChannelTitle,
	}, true
}

// ChangeVideo replaces a lesson's video with one never assigned before. A
// lesson allows course.MaxVideoChanges changes; further requests fail with
// ErrLimitExceeded. When no unseen candidate exists the result is ErrNotFound
// and the lesson is unchanged.
func (s *Service) ChangeVideo(ctx context.Context, courseID, subtopicID, lessonID string) (*course.Lesson, error) {
	c, err := s.load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := require(c, course.StageIndexSet); err != nil {
		return nil, err
	}
	st, l, err := c.Lesson(subtopicID, lessonID)
	if err != nil {
		return nil, err
	}
	if l.VideoChangeCount >= course.MaxVideoChanges {
		return nil, fmt.Errorf("lesson %s changed video %d times: %w", l.ID, l.VideoChangeCount, ErrLimitExceeded)
	}

	v, ok := s.findVideo(ctx, c, st, l)
	if !ok {
		return nil, fmt.Errorf("no alternative video for lesson %s: %w", l.ID, ErrNotFound)
	}
	previous := ""
	if l.Video != nil {
		previous = l.Video.VideoID
	}
	l.SetVideo(v)
	l.VideoChangeCount++

	// Whole-document compare-and-swap so two concurrent changes cannot both
	// pass the cap check.
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}

	s.emit(ctx, c, events.TypeVideoChanged, map[string]any{
		"lesson_id": l.ID,
		"from":      previous,
		"to":        v.VideoID,
		"changes":   l.VideoChangeCount,
	})
	out := *l
	return &out, nil
}

// MarkLessonComplete sets a lesson's completion flag.
func (s *Service) MarkLessonComplete(ctx context.Context, courseID, subtopicID, lessonID string, done bool) (*course.Lesson, error) {
	c, err := s.load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	st, l, err := c.Lesson(subtopicID, lessonID)
	if err != nil {
		return nil, err
	}
	if l.IsCompleted == done {
		out := *l
		return &out, nil
	}
	l.IsCompleted = done
	if err := s.store.UpdateLesson(ctx, c.ID, st.ID, *l); err != nil {
		return nil, fmt.Errorf("saving lesson %s: %w", l.ID, err)
	}
	out := *l
	return &out, nil
}
