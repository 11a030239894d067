package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

const schema = `
CREATE TABLE IF NOT EXISTS course_events (
	id          UUID PRIMARY KEY,
	course_id   TEXT NOT NULL,
	tenant_id   TEXT NOT NULL DEFAULT '',
	user_id     TEXT NOT NULL DEFAULT '',
	event_type  TEXT NOT NULL,
	data        JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS course_events_course_idx ON course_events (course_id, created_at);
`

// Postgres inserts events into the course_events table.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the events table if needed.
func (l *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create course_events: %w", err)
	}
	return nil
}

func (l *Postgres) LogEvent(ctx context.Context, event Event) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("event logger pool is nil")
	}
	if err := event.validate(); err != nil {
		return err
	}
	id, err := uuid.Parse(event.ID)
	if err != nil {
		return fmt.Errorf("event id %q: %w", event.ID, err)
	}

	payload := event.Data
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	// Events outlive the request that produced them.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dbTimeout)
	defer cancel()

	_, err = l.pool.Exec(ctx,
		`INSERT INTO course_events (id, course_id, tenant_id, user_id, event_type, data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)`,
		id,
		event.CourseID,
		event.TenantID,
		event.UserID,
		event.Type,
		string(data),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	slog.Debug("event logged",
		"type", event.Type,
		"course_id", event.CourseID,
		"user_id", event.UserID,
	)
	return nil
}

// ListByCourse returns a course's events oldest first.
func (l *Postgres) ListByCourse(ctx context.Context, courseID string) ([]Event, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := l.pool.Query(ctx,
		`SELECT id, course_id, tenant_id, user_id, event_type, data, created_at
		 FROM course_events WHERE course_id = $1 ORDER BY created_at, id`,
		courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
		var (
			e   Event
			id  uuid.UUID
			raw []byte
		)
		if err := row.Scan(&id, &e.CourseID, &e.TenantID, &e.UserID, &e.Type, &raw, &e.CreatedAt); err != nil {
			return Event{}, err
		}
		e.ID = id.String()
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Data); err != nil {
				return Event{}, fmt.Errorf("decode event data: %w", err)
			}
		}
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return events, nil
}
