package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/certifytrack-api/internal/models"
)

const studentSelect = `SELECT s.id, s.user_id, s.usn, u.full_name, u.email, s.department, s.semester, s.admission_type, s.mentor_id, s.created_at, s.updated_at
FROM students s JOIN users u ON u.id = s.user_id`

// StudentRepository manages persistence for student and mentor profiles.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student with user details.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	return r.findOne(ctx, studentSelect+` WHERE s.id = $1`, id)
}

// FindByUserID returns the student profile of a user account.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	return r.findOne(ctx, studentSelect+` WHERE s.user_id = $1`, userID)
}

func (r *StudentRepository) findOne(ctx context.Context, query string, arg string) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, arg); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// ListByIDs returns the students among ids, ordered by USN. Unknown ids are skipped.
func (r *StudentRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Student, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(studentSelect+` WHERE s.id IN (?) ORDER BY s.usn`, ids)
	if err != nil {
		return nil, fmt.Errorf("build student lookup: %w", err)
	}
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// ExistsUSN reports whether a USN is already registered.
func (r *StudentRepository) ExistsUSN(ctx context.Context, usn string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM students WHERE usn = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, strings.ToUpper(usn)); err != nil {
		return false, fmt.Errorf("check usn: %w", err)
	}
	return exists, nil
}

// Create inserts a student profile, normally inside the same transaction
// as the owning user row.
func (r *StudentRepository) Create(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	if exec == nil {
		exec = r.db
	}

	const query = `INSERT INTO students (id, user_id, usn, department, semester, admission_type, mentor_id, created_at, updated_at)
VALUES (:id, :user_id, :usn, :department, :semester, :admission_type, :mentor_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// FindMentorByID returns a mentor profile.
func (r *StudentRepository) FindMentorByID(ctx context.Context, id string) (*models.Mentor, error) {
	return r.findMentor(ctx, `SELECT id, user_id, employee_id, department, created_at FROM mentors WHERE id = $1`, id)
}

// FindMentorByUserID returns the mentor profile of a user account.
func (r *StudentRepository) FindMentorByUserID(ctx context.Context, userID string) (*models.Mentor, error) {
	return r.findMentor(ctx, `SELECT id, user_id, employee_id, department, created_at FROM mentors WHERE user_id = $1`, userID)
}

func (r *StudentRepository) findMentor(ctx context.Context, query, arg string) (*models.Mentor, error) {
	var mentor models.Mentor
	if err := r.db.GetContext(ctx, &mentor, query, arg); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find mentor: %w", err)
	}
	return &mentor, nil
}
