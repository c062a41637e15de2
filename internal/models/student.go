package models

import "time"

// AdmissionType distinguishes regular entry from lateral (second-year) entry.
type AdmissionType string

const (
	AdmissionRegular AdmissionType = "REGULAR"
	AdmissionLateral AdmissionType = "LATERAL"
)

// Student is the academic profile attached to a STUDENT user.
type Student struct {
	ID            string        `db:"id" json:"id"`
	UserID        string        `db:"user_id" json:"user_id"`
	USN           string        `db:"usn" json:"usn"`
	FullName      string        `db:"full_name" json:"full_name"`
	Email         string        `db:"email" json:"email"`
	Department    string        `db:"department" json:"department"`
	Semester      int           `db:"semester" json:"semester"`
	AdmissionType AdmissionType `db:"admission_type" json:"admission_type"`
	MentorID      *string       `db:"mentor_id" json:"mentor_id,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// Mentor is the faculty profile attached to a MENTOR user.
type Mentor struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	EmployeeID string    `db:"employee_id" json:"employee_id"`
	Department string    `db:"department" json:"department"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// StudentFilter narrows the compliance report.
type StudentFilter struct {
	Department string
	Semester   int
}
