package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/p-n-ai/pai-courses/internal/events"
)

func TestPostgres_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := t.Context()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("courses"),
		postgres.WithUsername("courses"),
		postgres.WithPassword("courses"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("ConnectionString() error = %v", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New() error = %v", err)
	}
	t.Cleanup(pool.Close)

	logger := events.NewPostgres(pool)
	if err := logger.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	// Second call must be a no-op.
	if err := logger.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() second call error = %v", err)
	}

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, typ := range []string{events.TypeCourseCreated, events.TypeObjectiveGenerated} {
		err := logger.LogEvent(ctx, events.Event{
			CourseID:  "course-1",
			TenantID:  "tenant-1",
			UserID:    "user-1",
			Type:      typ,
			Data:      map[string]any{"step": i},
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("LogEvent(%s) error = %v", typ, err)
		}
	}
	_ = logger.LogEvent(ctx, events.Event{CourseID: "course-2", Type: events.TypeCourseCreated})
	if err := logger.LogEvent(ctx, events.Event{ID: "not-a-uuid", CourseID: "course-2", Type: events.TypeCourseCreated}); err == nil {
		t.Error("LogEvent() should reject a malformed id")
	}

	got, err := logger.ListByCourse(ctx, "course-1")
	if err != nil {
		t.Fatalf("ListByCourse() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("events = %d, want 2", len(got))
	}
	if got[0].ID == "" || got[0].ID == got[1].ID {
		t.Errorf("ids = %q, %q, want distinct stored ids", got[0].ID, got[1].ID)
	}
	if got[0].Type != events.TypeCourseCreated || got[1].Type != events.TypeObjectiveGenerated {
		t.Errorf("order = %s, %s", got[0].Type, got[1].Type)
	}
	if step, ok := got[1].Data["step"].(float64); !ok || step != 1 {
		t.Errorf("data = %v", got[1].Data)
	}
}
