package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/campus-event-engine/internal/model"
)

const defaultInboxLimit = 50

// NotificationRepository is the append-only inbox clients poll.
type NotificationRepository struct {
	db *pgxpool.Pool
}

// NewNotificationRepository constructs a NotificationRepository.
func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Insert appends a notification. Re-inserting the same id is a no-op so
// redelivered fan-out jobs do not duplicate inbox rows.
func (r *NotificationRepository) Insert(ctx context.Context, n model.Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	_, err = conn(ctx, r.db).Exec(ctx,
		`INSERT INTO notifications (id, recipient_id, type, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		n.ID, n.RecipientID, n.Type, payload, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListByRecipient returns the newest notifications for a recipient.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = defaultInboxLimit
	}
	rows, err := conn(ctx, r.db).Query(ctx,
		`SELECT id, recipient_id, type, payload, created_at, read_at
		 FROM notifications
		 WHERE recipient_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		recipientID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var (
			n       model.Notification
			payload []byte
		)
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &payload, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if err := json.Unmarshal(payload, &n.Payload); err != nil {
			return nil, fmt.Errorf("decode notification payload: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead stamps read_at on one of the recipient's notifications.
func (r *NotificationRepository) MarkRead(ctx context.Context, recipientID, id string, at time.Time) error {
	tag, err := conn(ctx, r.db).Exec(ctx,
		`UPDATE notifications SET read_at = COALESCE(read_at, $3)
		  WHERE id = $1 AND recipient_id = $2`,
		id, recipientID, at,
	)
	if err != nil {
		if isInvalidID(err) {
			return model.ErrNotFound
		}
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
