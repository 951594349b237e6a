package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/campus-event-engine/internal/model"
)

const registrationColumns = `id, event_id, student_id, status, qr_token, checked_in_at, cancelled_at, created_at`

// activeRegistrationIndex is the partial unique index guarding one live
// registration per (event, student).
const activeRegistrationIndex = "idx_registrations_active"

// RegistrationRepository handles persistence for registrations.
type RegistrationRepository struct {
	db *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// CountActive returns the number of non-cancelled registrations for the event.
// This is the derived registered_count; no separate counter exists.
func (r *RegistrationRepository) CountActive(ctx context.Context, eventID string) (int, error) {
	var n int
	err := conn(ctx, r.db).QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND status <> 'cancelled'`,
		eventID,
	).Scan(&n)
	if err != nil {
		if isInvalidID(err) {
			return 0, model.ErrNotFound
		}
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return n, nil
}

// FindActive returns the student's live registration for the event, or nil.
func (r *RegistrationRepository) FindActive(ctx context.Context, eventID, studentID string) (*model.Registration, error) {
	row := conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		 WHERE event_id = $1 AND student_id = $2 AND status <> 'cancelled'`,
		eventID, studentID,
	)
	reg, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if isInvalidID(err) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return reg, nil
}

// Create inserts a confirmed registration. A second live registration for
// the same (event, student) is reported as model.ErrAlreadyRegistered.
func (r *RegistrationRepository) Create(ctx context.Context, reg *model.Registration) error {
	_, err := conn(ctx, r.db).Exec(ctx,
		`INSERT INTO registrations (`+registrationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		reg.ID, reg.EventID, reg.StudentID, reg.Status, reg.QRToken,
		reg.CheckedInAt, reg.CancelledAt, reg.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, activeRegistrationIndex) {
			return model.ErrAlreadyRegistered
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

// GetByID returns a registration or model.ErrNotFound.
func (r *RegistrationRepository) GetByID(ctx context.Context, id string) (*model.Registration, error) {
	row := conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id)
	return scanRegistrationRow(row, "get registration")
}

// GetForUpdate returns the registration and locks its row.
func (r *RegistrationRepository) GetForUpdate(ctx context.Context, id string) (*model.Registration, error) {
	row := conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1 FOR UPDATE`, id)
	return scanRegistrationRow(row, "lock registration")
}

// GetByTokenForUpdate looks a registration up by its QR token and locks it,
// so two scans of the same ticket check in one after the other.
func (r *RegistrationRepository) GetByTokenForUpdate(ctx context.Context, token string) (*model.Registration, error) {
	row := conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE qr_token = $1 FOR UPDATE`, token)
	return scanRegistrationRow(row, "lock registration by token")
}

// MarkCheckedIn moves a confirmed registration to checked_in. It reports
// false when the registration was not confirmed.
func (r *RegistrationRepository) MarkCheckedIn(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := conn(ctx, r.db).Exec(ctx,
		`UPDATE registrations SET status = 'checked_in', checked_in_at = $2
		  WHERE id = $1 AND status = 'confirmed'`,
		id, at,
	)
	if err != nil {
		return false, fmt.Errorf("check in registration: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkCancelled moves a confirmed registration to cancelled. It reports
// false when the registration was not confirmed.
func (r *RegistrationRepository) MarkCancelled(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := conn(ctx, r.db).Exec(ctx,
		`UPDATE registrations SET status = 'cancelled', cancelled_at = $2
		  WHERE id = $1 AND status = 'confirmed'`,
		id, at,
	)
	if err != nil {
		return false, fmt.Errorf("cancel registration: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CancelConfirmed cancels every confirmed registration of the event and
// returns the rows it changed. Checked-in registrations are left alone.
func (r *RegistrationRepository) CancelConfirmed(ctx context.Context, eventID string, at time.Time) ([]model.Registration, error) {
	rows, err := conn(ctx, r.db).Query(ctx,
		`UPDATE registrations SET status = 'cancelled', cancelled_at = $2
		  WHERE event_id = $1 AND status = 'confirmed'
		  RETURNING `+registrationColumns,
		eventID, at,
	)
	if err != nil {
		return nil, fmt.Errorf("cancel event registrations: %w", err)
	}
	return collectRegistrations(rows)
}

// ListByEvent returns all registrations for an event in arrival order.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	rows, err := conn(ctx, r.db).Query(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		 WHERE event_id = $1
		 ORDER BY created_at ASC`,
		eventID,
	)
	if err != nil {
		if isInvalidID(err) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return collectRegistrations(rows)
}

// ListByStudent returns a student's registrations, newest first.
func (r *RegistrationRepository) ListByStudent(ctx context.Context, studentID string) ([]model.Registration, error) {
	rows, err := conn(ctx, r.db).Query(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		 WHERE student_id = $1
		 ORDER BY created_at DESC`,
		studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list student registrations: %w", err)
	}
	return collectRegistrations(rows)
}

// Stats aggregates registration counts for reporting. It takes no locks, so
// it never blocks enroll or check-in.
func (r *RegistrationRepository) Stats(ctx context.Context, eventID string) (model.EventStats, error) {
	s := model.EventStats{EventID: eventID}
	err := conn(ctx, r.db).QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE status <> 'cancelled'),
		   COUNT(*) FILTER (WHERE status = 'checked_in'),
		   COUNT(*) FILTER (WHERE status = 'cancelled')
		 FROM registrations WHERE event_id = $1`,
		eventID,
	).Scan(&s.Registered, &s.CheckedIn, &s.Cancelled)
	if err != nil {
		if isInvalidID(err) {
			return s, model.ErrNotFound
		}
		return s, fmt.Errorf("registration stats: %w", err)
	}
	return s, nil
}

func collectRegistrations(rows pgx.Rows) ([]model.Registration, error) {
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

func scanRegistrationRow(row pgx.Row, op string) (*model.Registration, error) {
	reg, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidID(err) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return reg, nil
}

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var reg model.Registration
	err := row.Scan(
		&reg.ID, &reg.EventID, &reg.StudentID, &reg.Status, &reg.QRToken,
		&reg.CheckedInAt, &reg.CancelledAt, &reg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}
