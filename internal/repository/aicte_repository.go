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

const transactionColumns = `id, student_id, event_id, category_id, points_allocated, status, approved_by, approval_date, rejection_reason, auto_approved, verification_code, created_at, updated_at`

// AICTERepository persists categories and point transactions.
type AICTERepository struct {
	db *sqlx.DB
}

// NewAICTERepository constructs the repository.
func NewAICTERepository(db *sqlx.DB) *AICTERepository {
	return &AICTERepository{db: db}
}

func (r *AICTERepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindCategory returns a category by identifier.
func (r *AICTERepository) FindCategory(ctx context.Context, id string) (*models.AICTECategory, error) {
	const query = `SELECT id, name, description, min_points_required, max_points_allowed FROM aicte_categories WHERE id = $1`
	var category models.AICTECategory
	if err := r.db.GetContext(ctx, &category, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find aicte category: %w", err)
	}
	return &category, nil
}

// ListCategories returns all categories by name.
func (r *AICTERepository) ListCategories(ctx context.Context) ([]models.AICTECategory, error) {
	const query = `SELECT id, name, description, min_points_required, max_points_allowed FROM aicte_categories ORDER BY name`
	var categories []models.AICTECategory
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("list aicte categories: %w", err)
	}
	return categories, nil
}

// CreateTransaction inserts a transaction unless one already exists for the
// (student, event) pair. It reports whether a row was written.
func (r *AICTERepository) CreateTransaction(ctx context.Context, exec sqlx.ExtContext, tx *models.AICTETransaction) (bool, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	const query = `INSERT INTO aicte_point_transactions (id, student_id, event_id, category_id, points_allocated, status, approved_by, approval_date, rejection_reason, auto_approved, verification_code, created_at, updated_at)
VALUES (:id, :student_id, :event_id, :category_id, :points_allocated, :status, :approved_by, :approval_date, :rejection_reason, :auto_approved, :verification_code, :created_at, :updated_at)
ON CONFLICT (student_id, event_id) DO NOTHING`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, tx)
	if err != nil {
		return false, fmt.Errorf("create aicte transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create aicte transaction: %w", err)
	}
	return affected > 0, nil
}

// TransactionCodeExists reports whether a transaction verification code is taken.
func (r *AICTERepository) TransactionCodeExists(ctx context.Context, exec sqlx.ExtContext, code string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM aicte_point_transactions WHERE verification_code = $1)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, code); err != nil {
		return false, fmt.Errorf("check transaction verification code: %w", err)
	}
	return exists, nil
}

// FindTransaction returns a transaction by identifier.
func (r *AICTERepository) FindTransaction(ctx context.Context, id string) (*models.AICTETransaction, error) {
	const query = `SELECT ` + transactionColumns + ` FROM aicte_point_transactions WHERE id = $1`
	var tx models.AICTETransaction
	if err := r.db.GetContext(ctx, &tx, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find aicte transaction: %w", err)
	}
	return &tx, nil
}

// ListTransactions returns transactions matching filter, newest first.
func (r *AICTERepository) ListTransactions(ctx context.Context, filter models.AICTETransactionFilter) ([]models.AICTETransaction, error) {
	var conditions []string
	var args []interface{}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("t.student_id = $%d", len(args)))
	}
	if filter.MentorID != "" {
		args = append(args, filter.MentorID)
		conditions = append(conditions, fmt.Sprintf("s.mentor_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conditions = append(conditions, fmt.Sprintf("t.status = $%d", len(args)))
	}
	query := `SELECT t.id, t.student_id, t.event_id, t.category_id, t.points_allocated, t.status, t.approved_by, t.approval_date,
t.rejection_reason, t.auto_approved, t.verification_code, t.created_at, t.updated_at
FROM aicte_point_transactions t JOIN students s ON s.id = t.student_id`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY t.created_at DESC"

	var txs []models.AICTETransaction
	if err := r.db.SelectContext(ctx, &txs, query, args...); err != nil {
		return nil, fmt.Errorf("list aicte transactions: %w", err)
	}
	return txs, nil
}

// Decide moves a PENDING transaction to APPROVED or REJECTED. It returns
// sql.ErrNoRows when the transaction is no longer pending.
func (r *AICTERepository) Decide(ctx context.Context, exec sqlx.ExtContext, id string, status models.TransactionStatus, approvedBy *string, reason *string, auto bool, at time.Time) error {
	const query = `UPDATE aicte_point_transactions
SET status = $2, approved_by = $3, approval_date = $4, rejection_reason = $5, auto_approved = $6, updated_at = $4
WHERE id = $1 AND status = 'PENDING'`
	res, err := r.exec(exec).ExecContext(ctx, query, id, string(status), approvedBy, at, reason, auto)
	if err != nil {
		return fmt.Errorf("decide aicte transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decide aicte transaction: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListPendingBefore returns PENDING transactions created before cutoff.
func (r *AICTERepository) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]models.AICTETransaction, error) {
	const query = `SELECT ` + transactionColumns + ` FROM aicte_point_transactions WHERE status = 'PENDING' AND created_at < $1 ORDER BY created_at`
	var txs []models.AICTETransaction
	if err := r.db.SelectContext(ctx, &txs, query, cutoff); err != nil {
		return nil, fmt.Errorf("list stale pending transactions: %w", err)
	}
	return txs, nil
}

// FindDuplicateGroups returns (student, event) pairs holding more than one transaction.
func (r *AICTERepository) FindDuplicateGroups(ctx context.Context) ([]models.DuplicateKey, error) {
	const query = `SELECT student_id, event_id, COUNT(*) AS count FROM aicte_point_transactions GROUP BY student_id, event_id HAVING COUNT(*) > 1 ORDER BY student_id, event_id`
	var keys []models.DuplicateKey
	if err := r.db.SelectContext(ctx, &keys, query); err != nil {
		return nil, fmt.Errorf("find duplicate transactions: %w", err)
	}
	return keys, nil
}

// ListGroup locks and returns every transaction of one (student, event) pair.
func (r *AICTERepository) ListGroup(ctx context.Context, exec sqlx.ExtContext, studentID, eventID string) ([]models.AICTETransaction, error) {
	const query = `SELECT ` + transactionColumns + ` FROM aicte_point_transactions WHERE student_id = $1 AND event_id = $2 ORDER BY updated_at DESC FOR UPDATE`
	var txs []models.AICTETransaction
	if err := sqlx.SelectContext(ctx, r.exec(exec), &txs, query, studentID, eventID); err != nil {
		return nil, fmt.Errorf("list transaction group: %w", err)
	}
	return txs, nil
}

// UpdatePoints rewrites the points of a transaction.
func (r *AICTERepository) UpdatePoints(ctx context.Context, exec sqlx.ExtContext, id string, points int) error {
	const query = `UPDATE aicte_point_transactions SET points_allocated = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, points, time.Now().UTC()); err != nil {
		return fmt.Errorf("update transaction points: %w", err)
	}
	return nil
}

// DeleteTransactions removes transactions by id and returns how many went.
func (r *AICTERepository) DeleteTransactions(ctx context.Context, exec sqlx.ExtContext, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const query = `DELETE FROM aicte_point_transactions WHERE id = ANY($1)`
	res, err := r.exec(exec).ExecContext(ctx, query, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete transactions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete transactions: %w", err)
	}
	return int(affected), nil
}

const studentPointsSelect = `SELECT s.id, s.user_id, s.usn, u.full_name, u.email, s.department, s.semester, s.admission_type, s.mentor_id, s.created_at, s.updated_at,
COALESCE(SUM(t.points_allocated) FILTER (WHERE t.status = 'APPROVED'), 0) AS approved_points,
COALESCE(SUM(t.points_allocated) FILTER (WHERE t.status = 'PENDING'), 0) AS pending_points,
COUNT(t.id) FILTER (WHERE t.status = 'APPROVED') AS approved_count,
COUNT(t.id) FILTER (WHERE t.status = 'PENDING') AS pending_count,
COUNT(t.id) FILTER (WHERE t.status = 'REJECTED') AS rejected_count
FROM students s
JOIN users u ON u.id = s.user_id
LEFT JOIN aicte_point_transactions t ON t.student_id = s.id`

const studentPointsGroup = ` GROUP BY s.id, s.user_id, s.usn, u.full_name, u.email, s.department, s.semester, s.admission_type, s.mentor_id, s.created_at, s.updated_at`

// StudentPoints aggregates one student's approved and pending points.
func (r *AICTERepository) StudentPoints(ctx context.Context, studentID string) (*models.StudentPointsRow, error) {
	query := studentPointsSelect + ` WHERE s.id = $1` + studentPointsGroup
	var row models.StudentPointsRow
	if err := r.db.GetContext(ctx, &row, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("student points: %w", err)
	}
	return &row, nil
}

// ListStudentPoints aggregates points for every student matching filter, by USN.
func (r *AICTERepository) ListStudentPoints(ctx context.Context, filter models.StudentFilter) ([]models.StudentPointsRow, error) {
	var conditions []string
	var args []interface{}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("s.department = $%d", len(args)))
	}
	if filter.Semester > 0 {
		args = append(args, filter.Semester)
		conditions = append(conditions, fmt.Sprintf("s.semester = $%d", len(args)))
	}
	query := studentPointsSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += studentPointsGroup + " ORDER BY s.usn"

	var rows []models.StudentPointsRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list student points: %w", err)
	}
	return rows, nil
}
