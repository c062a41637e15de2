package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/certifytrack-api/internal/models"
)

// ClubRepository reads clubs and their organizers.
type ClubRepository struct {
	db *sqlx.DB
}

// NewClubRepository constructs the repository.
func NewClubRepository(db *sqlx.DB) *ClubRepository {
	return &ClubRepository{db: db}
}

// FindByID returns a club.
func (r *ClubRepository) FindByID(ctx context.Context, id string) (*models.Club, error) {
	const query = `SELECT id, name, description, created_at FROM clubs WHERE id = $1`
	var club models.Club
	if err := r.db.GetContext(ctx, &club, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find club: %w", err)
	}
	return &club, nil
}

// IsOrganizer reports whether userID organizes clubID.
func (r *ClubRepository) IsOrganizer(ctx context.Context, clubID, userID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM club_organizers WHERE club_id = $1 AND user_id = $2)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, clubID, userID); err != nil {
		return false, fmt.Errorf("check club organizer: %w", err)
	}
	return ok, nil
}
