package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/certifytrack-api/internal/models"
)

// AttendanceRepository persists registrations and attendance.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

func (r *AttendanceRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Register signs a student up for an event and fills in the row's id and
// timestamp. It reports false when the pair was already registered.
func (r *AttendanceRepository) Register(ctx context.Context, reg *models.EventRegistration) (bool, error) {
	const query = `INSERT INTO event_registrations (id, event_id, student_id, registered_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (event_id, student_id) DO NOTHING`
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	if reg.RegisteredAt.IsZero() {
		reg.RegisteredAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, query, reg.ID, reg.EventID, reg.StudentID, reg.RegisteredAt)
	if err != nil {
		return false, fmt.Errorf("register for event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("register for event: %w", err)
	}
	return affected > 0, nil
}

// MarkPresent upserts a present attendance row.
func (r *AttendanceRepository) MarkPresent(ctx context.Context, exec sqlx.ExtContext, eventID, studentID, markedBy string) error {
	const query = `INSERT INTO event_attendance (id, event_id, student_id, is_present, marked_by, marked_at) VALUES ($1, $2, $3, TRUE, $4, $5)
ON CONFLICT (event_id, student_id) DO UPDATE SET is_present = TRUE, marked_by = EXCLUDED.marked_by, marked_at = EXCLUDED.marked_at`
	if _, err := r.exec(exec).ExecContext(ctx, query, uuid.NewString(), eventID, studentID, markedBy, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark attendance: %w", err)
	}
	return nil
}

// ListPresent returns the present attendees of an event.
func (r *AttendanceRepository) ListPresent(ctx context.Context, eventID string) ([]models.EventAttendance, error) {
	const query = `SELECT id, event_id, student_id, is_present, marked_by, marked_at FROM event_attendance WHERE event_id = $1 AND is_present = TRUE ORDER BY marked_at`
	var rows []models.EventAttendance
	if err := r.db.SelectContext(ctx, &rows, query, eventID); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return rows, nil
}

// DuplicateAttendance lists (event, student) pairs with more than one attendance row.
func (r *AttendanceRepository) DuplicateAttendance(ctx context.Context) ([]models.DuplicateKey, error) {
	return r.duplicates(ctx, "event_attendance")
}

// DuplicateRegistrations lists (event, student) pairs with more than one registration.
func (r *AttendanceRepository) DuplicateRegistrations(ctx context.Context) ([]models.DuplicateKey, error) {
	return r.duplicates(ctx, "event_registrations")
}

func (r *AttendanceRepository) duplicates(ctx context.Context, table string) ([]models.DuplicateKey, error) {
	query := fmt.Sprintf(`SELECT student_id, event_id, COUNT(*) AS count FROM %s GROUP BY student_id, event_id HAVING COUNT(*) > 1 ORDER BY student_id, event_id`, table)
	var keys []models.DuplicateKey
	if err := r.db.SelectContext(ctx, &keys, query); err != nil {
		return nil, fmt.Errorf("find duplicate %s: %w", table, err)
	}
	return keys, nil
}
