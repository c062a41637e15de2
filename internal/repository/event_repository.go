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

const eventSelect = `SELECT e.id, e.club_id, e.name, e.description, e.event_date, e.end_date, e.start_time, e.end_time, e.status,
e.preferred_hall_id, e.backup_hall_id, e.assigned_hall_id, e.hall_assigned_at, e.aicte_category_id, e.points_awarded,
e.created_by, e.created_at, e.updated_at,
(SELECT co.user_id FROM club_organizers co WHERE co.club_id = e.club_id ORDER BY co.created_at LIMIT 1) AS organizer_user_id
FROM events e`

// EventRepository persists events.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID returns an event with its organizer.
func (r *EventRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Event, error) {
	query := eventSelect + ` WHERE e.id = $1`
	if exec != nil {
		query += ` FOR UPDATE OF e`
	}
	var event models.Event
	if err := sqlx.GetContext(ctx, r.exec(exec), &event, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find event: %w", err)
	}
	return &event, nil
}

// ListActive returns every event that is neither completed nor cancelled.
func (r *EventRepository) ListActive(ctx context.Context) ([]models.Event, error) {
	query := eventSelect + ` WHERE e.status NOT IN ('completed', 'cancelled') ORDER BY e.event_date, e.start_time`
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query); err != nil {
		return nil, fmt.Errorf("list active events: %w", err)
	}
	return events, nil
}

// List returns events matching filter with a total count.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error) {
	var conditions []string
	var args []interface{}
	if filter.ClubID != "" {
		args = append(args, filter.ClubID)
		conditions = append(conditions, fmt.Sprintf("e.club_id = $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		conditions = append(conditions, fmt.Sprintf("e.status = ANY($%d)", len(args)))
	}
	if filter.From != nil {
		args = append(args, filter.From.Format(models.DateLayout))
		conditions = append(conditions, fmt.Sprintf("e.event_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, filter.To.Format(models.DateLayout))
		conditions = append(conditions, fmt.Sprintf("e.event_date <= $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("%s%s ORDER BY e.event_date DESC, e.start_time LIMIT %d OFFSET %d", eventSelect, where, pageSize, offset)
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM events e"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}
	return events, total, nil
}

// Create inserts an event.
func (r *EventRepository) Create(ctx context.Context, exec sqlx.ExtContext, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now

	const query = `INSERT INTO events (id, club_id, name, description, event_date, end_date, start_time, end_time, status,
preferred_hall_id, backup_hall_id, assigned_hall_id, hall_assigned_at, aicte_category_id, points_awarded, created_by, created_at, updated_at)
VALUES (:id, :club_id, :name, :description, :event_date, :end_date, :start_time, :end_time, :status,
:preferred_hall_id, :backup_hall_id, :assigned_hall_id, :hall_assigned_at, :aicte_category_id, :points_awarded, :created_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// UpdateStatus moves an event to status only if it is still in expected.
// It returns sql.ErrNoRows when another writer moved the event first.
func (r *EventRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, expected, status models.EventStatus) error {
	const query = `UPDATE events SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	res, err := r.exec(exec).ExecContext(ctx, query, id, string(expected), string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update event status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update event status: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetAssignedHall stores the outcome of hall assignment; nil clears it.
func (r *EventRepository) SetAssignedHall(ctx context.Context, exec sqlx.ExtContext, id string, hallID *string, assignedAt *time.Time) error {
	const query = `UPDATE events SET assigned_hall_id = $2, hall_assigned_at = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, hallID, assignedAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("set assigned hall: %w", err)
	}
	return nil
}
