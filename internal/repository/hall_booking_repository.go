package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/certifytrack-api/internal/models"
)

const bookingColumns = `id, hall_id, event_id, booked_by, booking_date, start_time, end_time, status, approved_by, rejection_reason, created_at, updated_at`

var blockingStatuses = []string{string(models.BookingStatusPending), string(models.BookingStatusApproved)}

// HallBookingRepository persists hall bookings.
type HallBookingRepository struct {
	db *sqlx.DB
}

// NewHallBookingRepository constructs the repository.
func NewHallBookingRepository(db *sqlx.DB) *HallBookingRepository {
	return &HallBookingRepository{db: db}
}

func (r *HallBookingRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// HallDateLockKey names the advisory lock serialising writers of one hall on one date.
func HallDateLockKey(hallID string, date time.Time) string {
	return "hall:" + hallID + ":" + date.Format(models.DateLayout)
}

// LockHallDate takes a transaction-scoped advisory lock for (hall, date). It
// must run inside a transaction; the lock is released on commit or rollback.
func (r *HallBookingRepository) LockHallDate(ctx context.Context, exec sqlx.ExtContext, hallID string, date time.Time) error {
	if exec == nil {
		return fmt.Errorf("lock hall date: transaction required")
	}
	const query = `SELECT pg_advisory_xact_lock(hashtext($1))`
	if _, err := exec.ExecContext(ctx, query, HallDateLockKey(hallID, date)); err != nil {
		return fmt.Errorf("lock hall date: %w", err)
	}
	return nil
}

// ListBlocking returns PENDING/APPROVED bookings of a hall on a date.
func (r *HallBookingRepository) ListBlocking(ctx context.Context, exec sqlx.ExtContext, hallID string, date time.Time) ([]models.HallBooking, error) {
	const query = `SELECT ` + bookingColumns + ` FROM hall_bookings WHERE hall_id = $1 AND booking_date = $2 AND status = ANY($3) ORDER BY start_time`
	var bookings []models.HallBooking
	if err := sqlx.SelectContext(ctx, r.exec(exec), &bookings, query, hallID, date.Format(models.DateLayout), pq.Array(blockingStatuses)); err != nil {
		return nil, fmt.Errorf("list blocking bookings: %w", err)
	}
	return bookings, nil
}

// ListBlockingOnDate returns PENDING/APPROVED bookings of every hall on a date.
func (r *HallBookingRepository) ListBlockingOnDate(ctx context.Context, date time.Time) ([]models.HallBooking, error) {
	const query = `SELECT ` + bookingColumns + ` FROM hall_bookings WHERE booking_date = $1 AND status = ANY($2) ORDER BY hall_id, start_time`
	var bookings []models.HallBooking
	if err := r.db.SelectContext(ctx, &bookings, query, date.Format(models.DateLayout), pq.Array(blockingStatuses)); err != nil {
		return nil, fmt.Errorf("list bookings on date: %w", err)
	}
	return bookings, nil
}

// FindByID returns a booking. Inside a transaction the row is locked.
func (r *HallBookingRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.HallBooking, error) {
	query := `SELECT ` + bookingColumns + ` FROM hall_bookings WHERE id = $1`
	if exec != nil {
		query += ` FOR UPDATE`
	}
	var booking models.HallBooking
	if err := sqlx.GetContext(ctx, r.exec(exec), &booking, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find booking: %w", err)
	}
	return &booking, nil
}

// List returns bookings matching the filter, newest date first.
func (r *HallBookingRepository) List(ctx context.Context, filter models.HallBookingFilter) ([]models.HallBooking, error) {
	var conditions []string
	var args []interface{}
	if filter.HallID != "" {
		args = append(args, filter.HallID)
		conditions = append(conditions, fmt.Sprintf("hall_id = $%d", len(args)))
	}
	if filter.BookedBy != "" {
		args = append(args, filter.BookedBy)
		conditions = append(conditions, fmt.Sprintf("booked_by = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Date != nil {
		args = append(args, filter.Date.Format(models.DateLayout))
		conditions = append(conditions, fmt.Sprintf("booking_date = $%d", len(args)))
	}

	query := `SELECT ` + bookingColumns + ` FROM hall_bookings`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY booking_date DESC, start_time"

	var bookings []models.HallBooking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// Create inserts a booking.
func (r *HallBookingRepository) Create(ctx context.Context, exec sqlx.ExtContext, booking *models.HallBooking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.BookingDate = models.DateOf(booking.BookingDate)

	const query = `INSERT INTO hall_bookings (id, hall_id, event_id, booked_by, booking_date, start_time, end_time, status, approved_by, rejection_reason, created_at, updated_at)
VALUES (:id, :hall_id, :event_id, :booked_by, :booking_date, :start_time, :end_time, :status, :approved_by, :rejection_reason, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, booking); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// UpdateStatus records a decision on a booking.
func (r *HallBookingRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.HallBookingStatus, approvedBy, reason *string) error {
	const query = `UPDATE hall_bookings SET status = $2, approved_by = $3, rejection_reason = $4, updated_at = $5 WHERE id = $1`
	res, err := r.exec(exec).ExecContext(ctx, query, id, string(status), approvedBy, reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CancelForEvent cancels the live bookings attached to an event.
func (r *HallBookingRepository) CancelForEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) error {
	const query = `UPDATE hall_bookings SET status = $2, updated_at = $3 WHERE event_id = $1 AND status = ANY($4)`
	if _, err := r.exec(exec).ExecContext(ctx, query, eventID, string(models.BookingStatusCancelled), time.Now().UTC(), pq.Array(blockingStatuses)); err != nil {
		return fmt.Errorf("cancel event bookings: %w", err)
	}
	return nil
}
