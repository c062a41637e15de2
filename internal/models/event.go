package models

import "time"

// EventStatus enumerates the event lifecycle.
type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusScheduled EventStatus = "scheduled"
	EventStatusOngoing   EventStatus = "ongoing"
	EventStatusCompleted EventStatus = "completed"
	EventStatusCancelled EventStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s EventStatus) Terminal() bool {
	return s == EventStatusCompleted || s == EventStatusCancelled
}

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusDraft, EventStatusScheduled, EventStatusOngoing, EventStatusCompleted, EventStatusCancelled:
		return true
	}
	return false
}

// Event is a club activity, optionally spanning several days.
type Event struct {
	ID              string      `db:"id" json:"id"`
	ClubID          string      `db:"club_id" json:"club_id"`
	Name            string      `db:"name" json:"name"`
	Description     string      `db:"description" json:"description"`
	EventDate       time.Time   `db:"event_date" json:"event_date"`
	EndDate         *time.Time  `db:"end_date" json:"end_date,omitempty"`
	StartTime       TimeOfDay   `db:"start_time" json:"start_time"`
	EndTime         *TimeOfDay  `db:"end_time" json:"end_time,omitempty"`
	Status          EventStatus `db:"status" json:"status"`
	PreferredHallID *string     `db:"preferred_hall_id" json:"preferred_hall_id,omitempty"`
	BackupHallID    *string     `db:"backup_hall_id" json:"backup_hall_id,omitempty"`
	AssignedHallID  *string     `db:"assigned_hall_id" json:"assigned_hall_id,omitempty"`
	HallAssignedAt  *time.Time  `db:"hall_assigned_at" json:"hall_assigned_at,omitempty"`
	AICTECategoryID *string     `db:"aicte_category_id" json:"aicte_category_id,omitempty"`
	PointsAwarded   int         `db:"points_awarded" json:"points_awarded"`
	CreatedBy       string      `db:"created_by" json:"created_by"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`

	// OrganizerUserID is the club's first organizer, joined in on reads.
	OrganizerUserID *string `db:"organizer_user_id" json:"-"`
}

// EventFilter narrows event listings.
type EventFilter struct {
	ClubID   string
	Statuses []EventStatus
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// CreateEventRequest is submitted by a club organizer.
type CreateEventRequest struct {
	ClubID          string      `json:"club_id" validate:"required,uuid"`
	Name            string      `json:"name" validate:"required,max=200"`
	Description     string      `json:"description"`
	EventDate       string      `json:"event_date" validate:"required"`
	EndDate         *string     `json:"end_date"`
	StartTime       TimeOfDay   `json:"start_time"`
	EndTime         *TimeOfDay  `json:"end_time"`
	Status          EventStatus `json:"status" validate:"omitempty,oneof=draft scheduled"`
	PreferredHallID *string     `json:"preferred_hall_id" validate:"omitempty,uuid"`
	BackupHallID    *string     `json:"backup_hall_id" validate:"omitempty,uuid"`
	AICTECategoryID *string     `json:"aicte_category_id" validate:"omitempty,uuid"`
	PointsAwarded   int         `json:"points_awarded" validate:"min=0"`
}

// UpdateEventStatusRequest moves an event manually.
type UpdateEventStatusRequest struct {
	Status EventStatus `json:"status" validate:"required,oneof=scheduled ongoing completed cancelled"`
}

// StatusTransition records one hop applied (or planned) by the status sweep.
type StatusTransition struct {
	EventID   string      `json:"event_id"`
	EventName string      `json:"event_name"`
	From      EventStatus `json:"from"`
	To        EventStatus `json:"to"`
}

// SweepReport summarises one status sweep run.
type SweepReport struct {
	RanAt       time.Time          `json:"ran_at"`
	DryRun      bool               `json:"dry_run"`
	Evaluated   int                `json:"evaluated"`
	Transitions []StatusTransition `json:"transitions"`
	Errors      []ItemError        `json:"errors,omitempty"`
}

// ItemError is a per-item failure collected by batch jobs.
type ItemError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}
