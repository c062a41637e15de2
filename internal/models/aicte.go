package models

import "time"

// AICTECategory groups activities with optional point bounds.
type AICTECategory struct {
	ID                string `db:"id" json:"id"`
	Name              string `db:"name" json:"name"`
	Description       string `db:"description" json:"description"`
	MinPointsRequired *int   `db:"min_points_required" json:"min_points_required,omitempty"`
	MaxPointsAllowed  *int   `db:"max_points_allowed" json:"max_points_allowed,omitempty"`
}

// TransactionStatus enumerates point transaction review states.
type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "PENDING"
	TransactionApproved TransactionStatus = "APPROVED"
	TransactionRejected TransactionStatus = "REJECTED"
)

// AICTETransaction awards activity points to a student for an event.
// VerificationCode is an 8-character public reference for the award.
type AICTETransaction struct {
	ID               string            `db:"id" json:"id"`
	StudentID        string            `db:"student_id" json:"student_id"`
	EventID          string            `db:"event_id" json:"event_id"`
	CategoryID       string            `db:"category_id" json:"category_id"`
	PointsAllocated  int               `db:"points_allocated" json:"points_allocated"`
	Status           TransactionStatus `db:"status" json:"status"`
	ApprovedBy       *string           `db:"approved_by" json:"approved_by,omitempty"`
	ApprovalDate     *time.Time        `db:"approval_date" json:"approval_date,omitempty"`
	RejectionReason  *string           `db:"rejection_reason" json:"rejection_reason,omitempty"`
	AutoApproved     bool              `db:"auto_approved" json:"auto_approved"`
	VerificationCode string            `db:"verification_code" json:"verification_code"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updated_at"`
}

// AICTETransactionFilter narrows transaction listings.
type AICTETransactionFilter struct {
	StudentID string
	MentorID  string
	Status    *TransactionStatus
}

// RejectTransactionRequest carries the mentor's reason.
type RejectTransactionRequest struct {
	Reason string `json:"reason" validate:"required,min=5"`
}

// DuplicateKey identifies a (student, event) pair holding more than one row.
type DuplicateKey struct {
	StudentID string `db:"student_id" json:"student_id"`
	EventID   string `db:"event_id" json:"event_id"`
	Count     int    `db:"count" json:"count"`
}

// ReconcileReport summarises a duplicate transaction cleanup.
type ReconcileReport struct {
	Groups           int         `json:"groups"`
	Cleaned          int         `json:"cleaned"`
	AffectedStudents []string    `json:"affected_students"`
	Errors           []ItemError `json:"errors,omitempty"`
}

// AutoApproveReport summarises an auto-approval run.
type AutoApproveReport struct {
	Cutoff   time.Time   `json:"cutoff"`
	Approved int         `json:"approved"`
	Errors   []ItemError `json:"errors,omitempty"`
}

// StudentPointsSummary is a student's AICTE standing.
type StudentPointsSummary struct {
	StudentID      string        `json:"student_id"`
	USN            string        `json:"usn"`
	FullName       string        `json:"full_name"`
	Department     string        `json:"department"`
	Semester       int           `json:"semester"`
	AdmissionType  AdmissionType `json:"admission_type"`
	TotalPoints    int           `json:"total_points"`
	PendingPoints  int           `json:"pending_points"`
	RequiredPoints int           `json:"required_points"`
	Remaining      int           `json:"remaining"`
	Completed      bool          `json:"completed"`
}

// StudentPointsRow is the aggregate read used by summaries and reports.
type StudentPointsRow struct {
	Student
	ApprovedPoints int `db:"approved_points"`
	PendingPoints  int `db:"pending_points"`
	ApprovedCount  int `db:"approved_count"`
	PendingCount   int `db:"pending_count"`
	RejectedCount  int `db:"rejected_count"`
}
