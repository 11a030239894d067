// Package httpapi exposes the course pipeline over HTTP.
package httpapi

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/p-n-ai/pai-courses/internal/course"
	"github.com/p-n-ai/pai-courses/internal/events"
	"github.com/p-n-ai/pai-courses/internal/pipeline"
)

const defaultMaxUploadBytes = 10 << 20

// Courses is the pipeline surface the API drives.
type Courses interface {
	GenerateObjective(ctx context.Context, req pipeline.ObjectiveRequest) (*course.Course, error)
	GenerateOutcome(ctx context.Context, courseID string) (*course.Course, error)
	GenerateIndex(ctx context.Context, req pipeline.IndexRequest) (*course.Course, error)
	GenerateLessonContent(ctx context.Context, courseID, subtopicID, lessonID string) (*course.Lesson, error)
	ChangeVideo(ctx context.Context, courseID, subtopicID, lessonID string) (*course.Lesson, error)
	MarkLessonComplete(ctx context.Context, courseID, subtopicID, lessonID string, done bool) (*course.Lesson, error)
	GenerateQuiz(ctx context.Context, courseID string) ([]course.Question, error)
	CompleteQuiz(ctx context.Context, courseID string, score, total int) (*course.Course, error)
	GetCourse(ctx context.Context, courseID string) (*course.Course, error)
	ListCourses(ctx context.Context, tenantID, userID string) ([]*course.Course, error)
	StartFromTemplate(ctx context.Context, templateID, tenantID, userID string) (*course.Course, error)
}

// BulkRunner builds templates from parsed spreadsheet rows.
type BulkRunner interface {
	Run(ctx context.Context, tenantID string, rows []pipeline.Row) (pipeline.Report, error)
}

// Subscriber streams live events for one course.
type Subscriber interface {
	Subscribe(courseID string) (<-chan events.Event, func())
}

// HistoryLister returns events already recorded for a course.
type HistoryLister interface {
	ListByCourse(ctx context.Context, courseID string) ([]events.Event, error)
}

// Checker reports whether a dependency is ready to serve.
type Checker func(ctx context.Context) error

// Config wires the router. Courses is required; Bulk and Progress disable
// their routes when nil.
type Config struct {
	Courses  Courses
	Bulk     BulkRunner
	Progress Subscriber
	History  HistoryLister
	// Ready maps dependency names to readiness checks for /readyz.
	Ready map[string]Checker
	// MaxUploadBytes caps bulk spreadsheet uploads.
	MaxUploadBytes int64
	// OriginPatterns lists extra hosts allowed to open progress sockets.
	OriginPatterns []string
	// ParseRows decodes uploaded spreadsheets. Defaults to pipeline.ParseRows.
	ParseRows func(io.Reader) ([]pipeline.Row, error)
}

type handler struct {
	cfg Config
}

// NewRouter builds the HTTP handler.
func NewRouter(cfg Config) http.Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.ParseRows == nil {
		cfg.ParseRows = pipeline.ParseRows
	}
	h := &handler{cfg: cfg}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)

	r.Route("/v1", func(r chi.Router) {
		r.Use(identify)

		r.Route("/courses", func(r chi.Router) {
			r.Get("/", h.listCourses)
			r.Post("/objective", h.generateObjective)

			r.Route("/{courseID}", func(r chi.Router) {
				r.Get("/", h.getCourse)
				r.Post("/outcome", h.generateOutcome)
				r.Post("/index", h.generateIndex)
				r.Post("/quiz", h.generateQuiz)
				r.Post("/quiz/complete", h.completeQuiz)
				if cfg.Progress != nil {
					r.Get("/progress", h.progress)
				}

				r.Route("/subtopics/{subtopicID}/lessons/{lessonID}", func(r chi.Router) {
					r.Post("/content", h.generateLesson)
					r.Post("/video", h.changeVideo)
					r.Post("/complete", h.completeLesson)
				})
			})
		})

		r.Route("/templates", func(r chi.Router) {
			r.Post("/{templateID}/start", h.startTemplate)
			if cfg.Bulk != nil {
				r.Post("/bulk", h.bulkTemplates)
			}
		})
	})

	return r
}
