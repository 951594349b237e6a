package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/campus-event-engine/internal/model"
)

// eventColumns selects an event with its derived registered_count.
const eventColumns = `
	e.id, e.title, e.description, e.location, e.category, e.starts_at,
	e.capacity, e.organizer_id, e.status, e.rejection_reason,
	e.created_at, e.updated_at,
	(SELECT COUNT(*) FROM registrations r
	  WHERE r.event_id = e.id AND r.status <> 'cancelled')`

// EventRepository handles persistence for events.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event.
func (r *EventRepository) Create(ctx context.Context, e *model.Event) error {
	_, err := conn(ctx, r.db).Exec(ctx,
		`INSERT INTO events (id, title, description, location, category, starts_at,
		                     capacity, organizer_id, status, rejection_reason, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, e.Title, e.Description, e.Location, e.Category, nullTime(e.StartsAt),
		e.Capacity, e.OrganizerID, e.Status, e.RejectionReason, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetByID returns a single event or model.ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	row := conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events e WHERE e.id = $1`, id)
	return scanEventRow(row, "get event")
}

// GetForUpdate returns the event and holds its row lock until the
// surrounding transaction ends. Every enroll and cancel for the event queues
// behind this lock, which is what serialises capacity admission.
func (r *EventRepository) GetForUpdate(ctx context.Context, id string) (*model.Event, error) {
	row := conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events e WHERE e.id = $1 FOR UPDATE OF e`, id)
	return scanEventRow(row, "lock event row")
}

// List returns events matching the filter, soonest first.
func (r *EventRepository) List(ctx context.Context, f model.EventFilter) ([]model.Event, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, strings.Replace(clause, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if f.Status != "" {
		add("e.status = ?", f.Status)
	}
	if f.Category != "" {
		add("e.category = ?", f.Category)
	}
	if f.OrganizerID != "" {
		add("e.organizer_id = ?", f.OrganizerID)
	}

	sql := `SELECT ` + eventColumns + ` FROM events e`
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY e.starts_at ASC NULLS LAST, e.created_at DESC"

	rows, err := conn(ctx, r.db).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// ListByIDs returns the events with the given ids, skipping unknown ones.
func (r *EventRepository) ListByIDs(ctx context.Context, ids []string) ([]model.Event, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := conn(ctx, r.db).Query(ctx,
		`SELECT `+eventColumns+` FROM events e
		 WHERE e.id::text = ANY($1)
		 ORDER BY e.starts_at ASC NULLS LAST`, ids)
	if err != nil {
		return nil, fmt.Errorf("list events by id: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// UpdateContent rewrites the organizer-owned fields while the event is still
// editable. It reports false when the event was not in an editable state.
func (r *EventRepository) UpdateContent(ctx context.Context, e *model.Event) (bool, error) {
	tag, err := conn(ctx, r.db).Exec(ctx,
		`UPDATE events
		    SET title = $2, description = $3, location = $4, category = $5,
		        starts_at = $6, capacity = $7, updated_at = $8
		  WHERE id = $1 AND status IN ('draft', 'rejected')`,
		e.ID, e.Title, e.Description, e.Location, e.Category,
		nullTime(e.StartsAt), e.Capacity, e.UpdatedAt,
	)
	if err != nil {
		if isInvalidID(err) {
			return false, model.ErrNotFound
		}
		return false, fmt.Errorf("update event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CompareAndSetStatus moves the event from one status to another only if it
// is still in the expected status. It reports false when another writer got
// there first.
func (r *EventRepository) CompareAndSetStatus(ctx context.Context, id string, from, to model.EventStatus, reason string, at time.Time) (bool, error) {
	tag, err := conn(ctx, r.db).Exec(ctx,
		`UPDATE events
		    SET status = $3, rejection_reason = $4, updated_at = $5
		  WHERE id = $1 AND status = $2`,
		id, from, to, reason, at,
	)
	if err != nil {
		if isInvalidID(err) {
			return false, model.ErrNotFound
		}
		return false, fmt.Errorf("set event status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes the event; its registrations cascade.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	tag, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		if isInvalidID(err) {
			return model.ErrNotFound
		}
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func scanEventRow(row pgx.Row, op string) (*model.Event, error) {
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidID(err) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var (
		e        model.Event
		startsAt *time.Time
	)
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Location, &e.Category, &startsAt,
		&e.Capacity, &e.OrganizerID, &e.Status, &e.RejectionReason,
		&e.CreatedAt, &e.UpdatedAt, &e.RegisteredCount,
	)
	if err != nil {
		return nil, err
	}
	if startsAt != nil {
		e.StartsAt = startsAt.UTC()
	}
	return &e, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
