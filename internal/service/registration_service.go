package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/certifytrack-api/internal/ledger"
	"github.com/noah-isme/certifytrack-api/internal/models"
	"github.com/noah-isme/certifytrack-api/pkg/database"
	appErrors "github.com/noah-isme/certifytrack-api/pkg/errors"
)

type registrationUsers interface {
	ExistsEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, user *models.User) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type registrationStudents interface {
	ExistsUSN(ctx context.Context, usn string) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error
	FindMentorByID(ctx context.Context, id string) (*models.Mentor, error)
}

// RegistrationService signs students up.
type RegistrationService struct {
	db        database.TxBeginner
	users     registrationUsers
	students  registrationStudents
	validator *validator.Validate
	logger    *zap.Logger
	cost      int
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(db database.TxBeginner, users registrationUsers, students registrationStudents, validate *validator.Validate, logger *zap.Logger) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		db:        db,
		users:     users,
		students:  students,
		validator: validate,
		logger:    logger,
		cost:      bcrypt.DefaultCost,
	}
}

// RegisterStudent creates the user account and student profile together.
// The admission type comes from the USN roll number.
func (s *RegistrationService) RegisterStudent(ctx context.Context, req models.RegisterStudentRequest, ip, userAgent string) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	usn, err := ledger.ParseUSN(req.USN, req.Department)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	taken, err := s.users.ExistsEmail(ctx, email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email is already registered")
	}
	taken, err = s.students.ExistsUSN(ctx, usn.Value)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check usn")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "usn is already registered")
	}
	if req.MentorID != nil {
		if _, err := s.students.FindMentorByID(ctx, *req.MentorID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "mentor not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         models.RoleStudent,
		Active:       true,
	}
	student := &models.Student{
		USN:           usn.Value,
		FullName:      user.FullName,
		Email:         email,
		Department:    strings.ToUpper(strings.TrimSpace(req.Department)),
		Semester:      req.Semester,
		AdmissionType: usn.AdmissionType,
		MentorID:      req.MentorID,
	}
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.users.Create(ctx, tx, user); err != nil {
			return err
		}
		student.UserID = user.ID
		return s.students.Create(ctx, tx, student)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register student")
	}

	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &user.ID,
		Action:     models.AuditActionRegister,
		Resource:   "student",
		ResourceID: &student.ID,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}); err != nil {
		s.logger.Warn("failed to record registration audit log", zap.Error(err))
	}
	s.logger.Info("student registered", zap.String("student_id", student.ID), zap.String("admission_type", string(student.AdmissionType)))
	return student, nil
}
