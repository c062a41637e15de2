package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/certifytrack-api/internal/models"
)

const hallColumns = `id, name, code, location, capacity, is_available, created_at, updated_at`

// HallRepository reads and seeds halls.
type HallRepository struct {
	db *sqlx.DB
}

// NewHallRepository constructs the repository.
func NewHallRepository(db *sqlx.DB) *HallRepository {
	return &HallRepository{db: db}
}

// List returns halls ordered by name, optionally only those flagged available.
func (r *HallRepository) List(ctx context.Context, onlyAvailable bool) ([]models.Hall, error) {
	query := `SELECT ` + hallColumns + ` FROM halls`
	if onlyAvailable {
		query += ` WHERE is_available = TRUE`
	}
	query += ` ORDER BY name`
	var halls []models.Hall
	if err := r.db.SelectContext(ctx, &halls, query); err != nil {
		return nil, fmt.Errorf("list halls: %w", err)
	}
	return halls, nil
}

// FindByID returns a hall by identifier.
func (r *HallRepository) FindByID(ctx context.Context, id string) (*models.Hall, error) {
	const query = `SELECT ` + hallColumns + ` FROM halls WHERE id = $1`
	var hall models.Hall
	if err := r.db.GetContext(ctx, &hall, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find hall: %w", err)
	}
	return &hall, nil
}

// FindByIDs returns the halls matching ids, in the order of ids.
func (r *HallRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Hall, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT ` + hallColumns + ` FROM halls WHERE id = ANY($1)`
	var found []models.Hall
	if err := r.db.SelectContext(ctx, &found, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find halls: %w", err)
	}
	byID := make(map[string]models.Hall, len(found))
	for _, h := range found {
		byID[h.ID] = h
	}
	ordered := make([]models.Hall, 0, len(ids))
	for _, id := range ids {
		if h, ok := byID[id]; ok {
			ordered = append(ordered, h)
		}
	}
	return ordered, nil
}

// Create inserts a hall.
func (r *HallRepository) Create(ctx context.Context, hall *models.Hall) error {
	if hall.ID == "" {
		hall.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	hall.CreatedAt = now
	hall.UpdatedAt = now
	const query = `INSERT INTO halls (id, name, code, location, capacity, is_available, created_at, updated_at)
VALUES (:id, :name, :code, :location, :capacity, :is_available, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, hall); err != nil {
		return fmt.Errorf("create hall: %w", err)
	}
	return nil
}
