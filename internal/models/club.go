package models

import "time"

// Club groups events and organizers.
type Club struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ClubOrganizer links an organizer account to a club.
type ClubOrganizer struct {
	ID        string    `db:"id" json:"id"`
	ClubID    string    `db:"club_id" json:"club_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
