package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/p-n-ai/pai-courses/internal/course"
	"github.com/p-n-ai/pai-courses/internal/pipeline"
)

const readyTimeout = 2 * time.Second

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	failed := map[string]string{}
	for name, check := range h.cfg.Ready {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// owned loads the course named in the path and hides it unless it belongs to
// the caller.
func (h *handler) owned(w http.ResponseWriter, r *http.Request) (*course.Course, bool) {
	id := identityFrom(r.Context())
	c, err := h.cfg.Courses.GetCourse(r.Context(), chi.URLParam(r, "courseID"))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	if c.TenantID != id.TenantID || c.UserID != id.UserID {
		writeError(w, r, fmt.Errorf("course %s: %w", c.ID, pipeline.ErrNotFound))
		return nil, false
	}
	return c, true
}

type objectiveRequest struct {
	Topic        string `json:"topic"`
	TopicEnglish string `json:"topicEnglish"`
	Language     string `json:"language"`
	NumSubtopics int    `json:"numSubtopics"`
}

func (h *handler) generateObjective(w http.ResponseWriter, r *http.Request) {
	var req objectiveRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id := identityFrom(r.Context())
	c, err := h.cfg.Courses.GenerateObjective(r.Context(), pipeline.ObjectiveRequest{
		TenantID:     id.TenantID,
		UserID:       id.UserID,
		Topic:        req.Topic,
		TopicEnglish: req.TopicEnglish,
		Language:     req.Language,
		NumSubtopics: req.NumSubtopics,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) generateOutcome(w http.ResponseWriter, r *http.Request) {
	c, ok := h.owned(w, r)
	if !ok {
		return
	}
	c, err := h.cfg.Courses.GenerateOutcome(r.Context(), c.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type indexRequest struct {
	NumSubtopics  int                     `json:"numSubtopics"`
	CustomLessons []pipeline.CustomLesson `json:"customLessons"`
}

func (h *handler) generateIndex(w http.ResponseWriter, r *http.Request) {
	c, ok := h.owned(w, r)
	if !ok {
		return
	}
	var req indexRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.cfg.Courses.GenerateIndex(r.Context(), pipeline.IndexRequest{
		CourseID:      c.ID,
		NumSubtopics:  req.NumSubtopics,
		CustomLessons: req.CustomLessons,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) generateLesson(w http.ResponseWriter, r *http.Request) {
	c, ok := h.owned(w, r)
	if !ok {
		return
	}
	l, err := h.cfg.Courses.GenerateLessonContent(r.Context(), c.ID, chi.URLParam(r, "subtopicID"), chi.URLParam(r, "lessonID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *handler) changeVideo(w http.ResponseWriter, r *http.Request) {
	c, ok := h.owned(w, r)
	if !ok {
		return
	}
	l, err := h.cfg.Courses.ChangeVideo(r.Context(), c.ID, chi.URLParam(r, "subtopicID"), chi.URLParam(r, "lessonID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

type completeLessonRequest struct {
	Completed *bool `json:"completed"`
}

func (h *handler) completeLesson(w http.ResponseWriter, r *http.Request) {
	c, ok := h.owned(w, r)
	if !ok {
		return
	}
	var req completeLessonRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	done := req.Completed == nil || *req.Completed
	l, err := h.cfg.Courses.MarkLessonComplete(r.Context(), c.ID, chi.URLParam(r, "subtopicID"), chi.URLParam(r, "lessonID"), done)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *handler) generateQuiz(w http.ResponseWriter, r *http.Request) {
	c, ok := h.owned(w, r)
	if !ok {
		return
	}
	questions, err := h.cfg.Courses.GenerateQuiz(r.Context(), c.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

type completeQuizRequest struct {
	Score int `json:"score"`
	Total int `json:"total"`
}

func (h *handler) completeQuiz(w http.ResponseWriter, r *http.Request) {
	c, ok := h.owned(w, r)
	if !ok {
		return
	}
	var req completeQuizRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.cfg.Courses.CompleteQuiz(r.Context(), c.ID, req.Score, req.Total)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) getCourse(w http.ResponseWriter, r *http.Request) {
	c, ok := h.owned(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) listCourses(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	courses, err := h.cfg.Courses.ListCourses(r.Context(), id.TenantID, id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if courses == nil {
		courses = []*course.Course{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"courses": courses})
}

func (h *handler) startTemplate(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	c, err := h.cfg.Courses.StartFromTemplate(r.Context(), chi.URLParam(r, "templateID"), id.TenantID, id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *handler) bulkTemplates(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		writeError(w, r, fmt.Errorf("%w: reading upload: %w", pipeline.ErrInvalidInput, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: missing file field: %w", pipeline.ErrInvalidInput, err))
		return
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".xlsx" {
		writeError(w, r, fmt.Errorf("%w: expected an .xlsx file, got %q", pipeline.ErrInvalidInput, header.Filename))
		return
	}

	rows, err := h.cfg.ParseRows(file)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := h.cfg.Bulk.Run(r.Context(), identityFrom(r.Context()).TenantID, rows)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
