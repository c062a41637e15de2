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

const certificateColumns = `id, event_id, student_id, file_path, file_hash, verification_code, issued_at`

// CertificateRepository persists issued certificates.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs the repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

func (r *CertificateRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create records a certificate.
func (r *CertificateRepository) Create(ctx context.Context, cert *models.Certificate) error {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	if cert.IssuedAt.IsZero() {
		cert.IssuedAt = time.Now().UTC()
	}
	const query = `INSERT INTO certificates (` + certificateColumns + `) VALUES (:id, :event_id, :student_id, :file_path, :file_hash, :verification_code, :issued_at)`
	if _, err := r.db.NamedExecContext(ctx, query, cert); err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	return nil
}

// FindByID returns a certificate by identifier.
func (r *CertificateRepository) FindByID(ctx context.Context, id string) (*models.Certificate, error) {
	const query = `SELECT ` + certificateColumns + ` FROM certificates WHERE id = $1`
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find certificate: %w", err)
	}
	return &cert, nil
}

// Exists reports whether the student already holds a certificate for the event.
func (r *CertificateRepository) Exists(ctx context.Context, eventID, studentID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM certificates WHERE event_id = $1 AND student_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, eventID, studentID); err != nil {
		return false, fmt.Errorf("check certificate: %w", err)
	}
	return exists, nil
}

// CodeExists reports whether a verification code is taken.
func (r *CertificateRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM certificates WHERE verification_code = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, code); err != nil {
		return false, fmt.Errorf("check verification code: %w", err)
	}
	return exists, nil
}

// FindVerification resolves a verification code into its public view.
func (r *CertificateRepository) FindVerification(ctx context.Context, code string) (*models.CertificateVerification, error) {
	const query = `SELECT c.verification_code, u.full_name AS student_name, s.usn, e.name AS event_name, e.event_date,
cl.name AS club_name, c.file_hash, c.issued_at
FROM certificates c
JOIN students s ON s.id = c.student_id
JOIN users u ON u.id = s.user_id
JOIN events e ON e.id = c.event_id
JOIN clubs cl ON cl.id = e.club_id
WHERE c.verification_code = $1`
	var view models.CertificateVerification
	if err := r.db.GetContext(ctx, &view, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find certificate verification: %w", err)
	}
	view.Valid = true
	return &view, nil
}

// ListByStudent returns a student's certificates, newest first.
func (r *CertificateRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Certificate, error) {
	const query = `SELECT ` + certificateColumns + ` FROM certificates WHERE student_id = $1 ORDER BY issued_at DESC`
	var certs []models.Certificate
	if err := r.db.SelectContext(ctx, &certs, query, studentID); err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	return certs, nil
}

// FindDuplicateGroups returns (student, event) pairs with more than one certificate.
func (r *CertificateRepository) FindDuplicateGroups(ctx context.Context) ([]models.DuplicateKey, error) {
	const query = `SELECT student_id, event_id, COUNT(*) AS count FROM certificates GROUP BY student_id, event_id HAVING COUNT(*) > 1 ORDER BY student_id, event_id`
	var keys []models.DuplicateKey
	if err := r.db.SelectContext(ctx, &keys, query); err != nil {
		return nil, fmt.Errorf("find duplicate certificates: %w", err)
	}
	return keys, nil
}

// ListGroup locks and returns the certificates of one (student, event) pair, newest first.
func (r *CertificateRepository) ListGroup(ctx context.Context, exec sqlx.ExtContext, studentID, eventID string) ([]models.Certificate, error) {
	const query = `SELECT ` + certificateColumns + ` FROM certificates WHERE student_id = $1 AND event_id = $2 ORDER BY issued_at DESC, id DESC FOR UPDATE`
	var certs []models.Certificate
	if err := sqlx.SelectContext(ctx, r.exec(exec), &certs, query, studentID, eventID); err != nil {
		return nil, fmt.Errorf("list certificate group: %w", err)
	}
	return certs, nil
}

// DeleteByIDs removes certificates and returns how many went.
func (r *CertificateRepository) DeleteByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM certificates WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete certificates: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete certificates: %w", err)
	}
	return int(affected), nil
}
