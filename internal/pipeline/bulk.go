package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"github.com/p-n-ai/pai-courses/internal/course"
	"github.com/p-n-ai/pai-courses/internal/events"
)

const (
	defaultBulkSubtopics = 5
	maxBulkRows          = 500
)

// Row is one catalog course to build.
type Row struct {
	Line         int    `json:"line"`
	Topic        string `json:"topic"`
	Language     string `json:"language"`
	NumSubtopics int    `json:"numSubtopics"`

	invalid error
}

// RowResult reports the outcome of one row.
type RowResult struct {
	Row
	TemplateID string `json:"templateId,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Report summarizes a bulk run.
type Report struct {
	Results   []RowResult `json:"results"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

// TemplateStore persists built templates.
type TemplateStore interface {
	CreateTemplate(ctx context.Context, t *course.Template) error
}

// Bulk builds catalog templates from spreadsheet rows. Each row runs every
// stage, generating lessons one at a time in order. A failing row is
// reported and the batch continues.
type Bulk struct {
	cfg         Config
	templates   TemplateStore
	concurrency int
}

// BulkOption configures a Bulk runner.
type BulkOption func(*Bulk)

// WithConcurrency sets how many rows build at once (default 1).
func WithConcurrency(n int) BulkOption {
	return func(b *Bulk) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBulk creates a runner. Working courses live in a scratch in-memory
// store per run; only finished templates reach templates. cfg.Store is
// ignored.
func NewBulk(cfg Config, templates TemplateStore, opts ...BulkOption) *Bulk {
	b := &Bulk{cfg: cfg, templates: templates, concurrency: 1}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run builds one template per row.
func (b *Bulk) Run(ctx context.Context, tenantID string, rows []Row) (Report, error) {
	if len(rows) == 0 {
		return Report{}, fmt.Errorf("no rows: %w", ErrInvalidInput)
	}
	if len(rows) > maxBulkRows {
		return Report{}, fmt.Errorf("%d rows exceeds limit of %d: %w", len(rows), maxBulkRows, ErrInvalidInput)
	}

	cfg := b.cfg
	cfg.Store = course.NewMemoryStore()
	svc, err := NewService(cfg)
	if err != nil {
		return Report{}, err
	}

	start := time.Now()
	results := make([]RowResult, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, row := range rows {
		g.Go(func() error {
			res := RowResult{Row: row}
			id, err := b.buildTemplate(gctx, svc, tenantID, row)
			if err != nil {
				res.Error = err.Error()
				slog.Warn("bulk row failed", "line", row.Line, "topic", row.Topic, "error", err)
			}
			res.TemplateID = id
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Results: results}
	for _, r := range results {
		if r.Error == "" {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}
	slog.Info("bulk run finished",
		"rows", len(rows),
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"duration", time.Since(start),
	)
	return report, nil
}

func (b *Bulk) buildTemplate(ctx context.Context, svc *Service, tenantID string, row Row) (string, error) {
	if row.invalid != nil {
		return "", row.invalid
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c, err := svc.GenerateObjective(ctx, ObjectiveRequest{
		TenantID:     tenantID,
		UserID:       fmt.Sprintf("bulk-row-%d", row.Line),
		Topic:        row.Topic,
		Language:     row.Language,
		NumSubtopics: row.NumSubtopics,
	})
	if err != nil {
		return "", fmt.Errorf("objective: %w", err)
	}
	if _, err := svc.GenerateOutcome(ctx, c.ID); err != nil {
		return "", fmt.Errorf("outcome: %w", err)
	}
	c, err = svc.GenerateIndex(ctx, IndexRequest{CourseID: c.ID})
	if err != nil {
		return "", fmt.Errorf("index: %w", err)
	}
	for _, st := range c.Subtopics {
		for _, l := range st.Lessons {
			if _, err := svc.GenerateLessonContent(ctx, c.ID, st.ID, l.ID); err != nil {
				return "", fmt.Errorf("lesson %q: %w", l.Title, err)
			}
		}
	}
	if _, err := svc.GenerateQuiz(ctx, c.ID); err != nil {
		return "", fmt.Errorf("quiz: %w", err)
	}

	c, err = svc.GetCourse(ctx, c.ID)
	if err != nil {
		return "", err
	}
	t := course.TemplateFrom(c)
	if err := b.templates.CreateTemplate(ctx, t); err != nil {
		return "", fmt.Errorf("saving template: %w", err)
	}
	svc.emit(ctx, c, events.TypeTemplateBuilt, map[string]any{"template_id": t.ID, "line": row.Line})
	return t.ID, nil
}

// ParseRows reads catalog rows from the first sheet of an .xlsx workbook.
// The first row is a header naming the topic, language and subtopics
// columns in any order; only topic is required. Rows without a topic are
// skipped.
func ParseRows(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w: %w", ErrInvalidInput, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets: %w", ErrInvalidInput)
	}
	cells, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}
	if len(cells) == 0 {
		return nil, fmt.Errorf("sheet %s is empty: %w", sheets[0], ErrInvalidInput)
	}

	cols := map[string]int{"topic": -1, "language": -1, "subtopics": -1}
	for i, h := range cells[0] {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, ok := cols[name]; ok {
			cols[name] = i
		}
	}
	if cols["topic"] < 0 {
		return nil, fmt.Errorf("header has no topic column: %w", ErrInvalidInput)
	}

	cell := func(row []string, col int) string {
		if col < 0 || col >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[col])
	}

	var rows []Row
	for i, rec := range cells[1:] {
		topic := cell(rec, cols["topic"])
		if topic == "" {
			continue
		}
		row := Row{
			Line:         i + 2,
			Topic:        topic,
			Language:     cell(rec, cols["language"]),
			NumSubtopics: defaultBulkSubtopics,
		}
		if row.Language == "" {
			row.Language = defaultLanguage
		}
		if raw := cell(rec, cols["subtopics"]); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				row.invalid = fmt.Errorf("subtopics %q is not a number: %w", raw, ErrInvalidInput)
			}
			row.NumSubtopics = n
		}
		rows = append(rows, row)
	}
	return rows, nil
}
