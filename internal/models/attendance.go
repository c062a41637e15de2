package models

import "time"

// EventRegistration records a student signing up for an event.
type EventRegistration struct {
	ID           string    `db:"id" json:"id"`
	EventID      string    `db:"event_id" json:"event_id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	RegisteredAt time.Time `db:"registered_at" json:"registered_at"`
}

// EventAttendance records whether a student attended an event.
type EventAttendance struct {
	ID        string    `db:"id" json:"id"`
	EventID   string    `db:"event_id" json:"event_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	IsPresent bool      `db:"is_present" json:"is_present"`
	MarkedBy  string    `db:"marked_by" json:"marked_by"`
	MarkedAt  time.Time `db:"marked_at" json:"marked_at"`
}

// RecordAttendanceRequest marks the listed students present.
type RecordAttendanceRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1,dive,uuid"`
}

// AttendanceResult reports what an attendance submission produced.
type AttendanceResult struct {
	Marked              int `json:"marked"`
	TransactionsCreated int `json:"transactions_created"`
}
