package models

import "time"

// Certificate is an issued participation certificate.
type Certificate struct {
	ID               string    `db:"id" json:"id"`
	EventID          string    `db:"event_id" json:"event_id"`
	StudentID        string    `db:"student_id" json:"student_id"`
	FilePath         string    `db:"file_path" json:"-"`
	FileHash         string    `db:"file_hash" json:"file_hash"`
	VerificationCode string    `db:"verification_code" json:"verification_code"`
	IssuedAt         time.Time `db:"issued_at" json:"issued_at"`
}

// CertificateVerification is the public view returned for a verification code.
type CertificateVerification struct {
	Valid            bool      `db:"-" json:"valid"`
	VerificationCode string    `db:"verification_code" json:"verification_code"`
	StudentName      string    `db:"student_name" json:"student_name"`
	USN              string    `db:"usn" json:"usn"`
	EventName        string    `db:"event_name" json:"event_name"`
	EventDate        time.Time `db:"event_date" json:"event_date"`
	ClubName         string    `db:"club_name" json:"club_name"`
	FileHash         string    `db:"file_hash" json:"file_hash"`
	IssuedAt         time.Time `db:"issued_at" json:"issued_at"`
}

// CertificateDownload is a time-limited link to the PDF.
type CertificateDownload struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CertificateIssueReport summarises certificate generation for an event.
type CertificateIssueReport struct {
	EventID string      `json:"event_id"`
	Issued  int         `json:"issued"`
	Skipped int         `json:"skipped"`
	Errors  []ItemError `json:"errors,omitempty"`
}

// CertificateCleanupReport summarises duplicate certificate removal.
type CertificateCleanupReport struct {
	Groups  int         `json:"groups"`
	Deleted int         `json:"deleted"`
	Errors  []ItemError `json:"errors,omitempty"`
}
