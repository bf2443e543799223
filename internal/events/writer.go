package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"genline/internal/domain"
)

// Lifecycle event types.
const (
	PlanCreated        = "plan.created"
	PlanUpdated        = "plan.updated"
	PlanDeleted        = "plan.deleted"
	PlanExpired        = "plan.expired"
	ExecutionCompleted = "execution.completed"
	ExecutionFailed    = "execution.failed"
)

// Entity kinds.
const (
	KindPlan      = "plan"
	KindExecution = "execution"
)

type EventPayload map[string]any

// Recorder receives lifecycle events. Failures to record never fail the
// operation that produced the event.
type Recorder interface {
	Record(ctx context.Context, evtType, entityKind, entityID string, payload EventPayload) error
}

// Writer persists events to the events table.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

func (w Writer) now() time.Time {
	if w.Now == nil {
		return time.Now()
	}
	return w.Now()
}

func (w Writer) Record(ctx context.Context, evtType, entityKind, entityID string, payload EventPayload) error {
	ts := w.now().UTC().Format(time.RFC3339Nano)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = w.DB.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		ts, evtType, entityKind, nullable(entityID), nullable(actorFromContext(ctx)), string(data))
	return err
}

// Filter narrows Tail results. Empty fields match everything.
type Filter struct {
	Type       string
	EntityKind string
	EntityID   string
}

// Tail returns the newest n events matching f, newest first.
func (w Writer) Tail(ctx context.Context, n int, f Filter) ([]domain.Event, error) {
	if n <= 0 {
		n = 20
	}
	var (
		where []string
		args  []any
	)
	if f.Type != "" {
		where = append(where, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityKind != "" {
		where = append(where, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID != "" {
		where = append(where, "entity_id=?")
		args = append(args, f.EntityID)
	}
	q := `SELECT id,ts,type,entity_kind,entity_id,actor_id,payload_json FROM events`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id DESC LIMIT ?"
	args = append(args, n)

	rows, err := w.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Event
	for rows.Next() {
		var (
			evt               domain.Event
			ts, payload       string
			entityID, actorID sql.NullString
		)
		if err := rows.Scan(&evt.ID, &ts, &evt.Type, &evt.EntityKind, &entityID, &actorID, &payload); err != nil {
			return nil, err
		}
		evt.TS, _ = time.Parse(time.RFC3339Nano, ts)
		evt.EntityID = entityID.String
		evt.ActorID = actorID.String
		if payload != "" {
			if err := json.Unmarshal([]byte(payload), &evt.Payload); err != nil {
				return nil, fmt.Errorf("decode event %d payload: %w", evt.ID, err)
			}
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

// LogRecorder writes events to a structured logger instead of a table.
type LogRecorder struct {
	Logger *slog.Logger
}

func (l LogRecorder) Record(ctx context.Context, evtType, entityKind, entityID string, payload EventPayload) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"event", evtType, "entity_kind", entityKind, "entity_id", entityID}
	if actor := actorFromContext(ctx); actor != "" {
		attrs = append(attrs, "actor_id", actor)
	}
	if len(payload) > 0 {
		attrs = append(attrs, "payload", map[string]any(payload))
	}
	logger.InfoContext(ctx, "lifecycle event", attrs...)
	return nil
}

type actorKey struct{}

// WithActor tags events recorded under ctx with the calling principal.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

func actorFromContext(ctx context.Context) string {
	s, _ := ctx.Value(actorKey{}).(string)
	return s
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
