package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/certifytrack-api/internal/models"
)

// NotificationRepository persists in-app notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create stores a notification.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Type == "" {
		n.Type = models.NotificationInfo
	}
	const query = `INSERT INTO notifications (id, user_id, event_id, title, message, notification_type, is_read, created_at)
VALUES (:id, :user_id, :event_id, :title, :message, :notification_type, :is_read, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListByUser returns a page of a user's notifications, newest first, with the total.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, page, pageSize int) ([]models.Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	where := `WHERE user_id = $1`
	if unreadOnly {
		where += ` AND is_read = FALSE`
	}

	listQuery := fmt.Sprintf(`SELECT id, user_id, event_id, title, message, notification_type, is_read, created_at FROM notifications %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, where, pageSize, (page-1)*pageSize)
	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, listQuery, userID); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM notifications `+where, userID); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return items, total, nil
}

// CountUnread returns the number of unread notifications of a user.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return total, nil
}

// MarkRead flags one notification as read. It reports false when the
// notification does not belong to userID.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return affected > 0, nil
}

// MarkAllRead flags every unread notification of a user as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return int(affected), nil
}
