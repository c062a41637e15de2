package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/certifytrack-api/internal/ledger"
	"github.com/noah-isme/certifytrack-api/internal/models"
	"github.com/noah-isme/certifytrack-api/pkg/database"
	appErrors "github.com/noah-isme/certifytrack-api/pkg/errors"
	"github.com/noah-isme/certifytrack-api/pkg/export"
)

type aicteStore interface {
	FindCategory(ctx context.Context, id string) (*models.AICTECategory, error)
	ListCategories(ctx context.Context) ([]models.AICTECategory, error)
	CreateTransaction(ctx context.Context, exec sqlx.ExtContext, tx *models.AICTETransaction) (bool, error)
	TransactionCodeExists(ctx context.Context, exec sqlx.ExtContext, code string) (bool, error)
	FindTransaction(ctx context.Context, id string) (*models.AICTETransaction, error)
	ListTransactions(ctx context.Context, filter models.AICTETransactionFilter) ([]models.AICTETransaction, error)
	Decide(ctx context.Context, exec sqlx.ExtContext, id string, status models.TransactionStatus, approvedBy *string, reason *string, auto bool, at time.Time) error
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]models.AICTETransaction, error)
	FindDuplicateGroups(ctx context.Context) ([]models.DuplicateKey, error)
	ListGroup(ctx context.Context, exec sqlx.ExtContext, studentID, eventID string) ([]models.AICTETransaction, error)
	UpdatePoints(ctx context.Context, exec sqlx.ExtContext, id string, points int) error
	DeleteTransactions(ctx context.Context, exec sqlx.ExtContext, ids []string) (int, error)
	StudentPoints(ctx context.Context, studentID string) (*models.StudentPointsRow, error)
	ListStudentPoints(ctx context.Context, filter models.StudentFilter) ([]models.StudentPointsRow, error)
}

type attendanceStore interface {
	Register(ctx context.Context, reg *models.EventRegistration) (bool, error)
	MarkPresent(ctx context.Context, exec sqlx.ExtContext, eventID, studentID, markedBy string) error
	ListPresent(ctx context.Context, eventID string) ([]models.EventAttendance, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Student, error)
	FindMentorByUserID(ctx context.Context, userID string) (*models.Mentor, error)
}

// AICTEConfig holds activity-point thresholds.
type AICTEConfig struct {
	Thresholds       ledger.Thresholds
	AutoApproveAfter time.Duration
	SummaryTTL       time.Duration
}

var complianceColumns = []export.Column{
	{Key: "usn", Title: "USN"},
	{Key: "name", Title: "Name"},
	{Key: "department", Title: "Department"},
	{Key: "semester", Title: "Semester"},
	{Key: "admission_type", Title: "Admission Type"},
	{Key: "current_points", Title: "Current Points"},
	{Key: "required_points", Title: "Required Points"},
	{Key: "points_needed", Title: "Points Needed"},
	{Key: "is_completed", Title: "Completed"},
	{Key: "approved_transactions", Title: "Approved"},
	{Key: "pending_transactions", Title: "Pending"},
	{Key: "rejected_transactions", Title: "Rejected"},
}

// AICTEService turns attendance into activity-point transactions and drives
// their review.
type AICTEService struct {
	db         database.TxBeginner
	points     aicteStore
	attendance attendanceStore
	students   studentReader
	events     eventStore
	clubs      clubReader
	audit      auditRecorder
	notifier   Notifier
	cache      *CacheService
	metrics    *MetricsService
	exporter   *export.CSVExporter
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        AICTEConfig
	now        func() time.Time
	newCode    func() (string, error)
}

// NewAICTEService constructs an AICTEService.
func NewAICTEService(
	db database.TxBeginner,
	points aicteStore,
	attendance attendanceStore,
	students studentReader,
	events eventStore,
	clubs clubReader,
	audit auditRecorder,
	notifier Notifier,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg AICTEConfig,
) *AICTEService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if cfg.Thresholds.Regular <= 0 || cfg.Thresholds.Lateral <= 0 {
		cfg.Thresholds = ledger.DefaultThresholds
	}
	if cfg.AutoApproveAfter <= 0 {
		cfg.AutoApproveAfter = 7 * 24 * time.Hour
	}
	if cfg.SummaryTTL <= 0 {
		cfg.SummaryTTL = 5 * time.Minute
	}
	return &AICTEService{
		db:         db,
		points:     points,
		attendance: attendance,
		students:   students,
		events:     events,
		clubs:      clubs,
		audit:      audit,
		notifier:   notifier,
		cache:      cache,
		metrics:    metrics,
		exporter:   export.NewCSVExporter(),
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
		newCode:    randomVerificationCode,
	}
}

// RegisterForEvent signs the calling student up for a scheduled or ongoing event.
func (s *AICTEService) RegisterForEvent(ctx context.Context, actor models.Actor, eventID string) (*models.EventRegistration, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can register for events")
	}
	student, err := s.students.FindByUserID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	event, err := s.events.FindByID(ctx, nil, eventID)
	if err != nil {
		return nil, eventError(err, "failed to load event")
	}
	if event.Status != models.EventStatusScheduled && event.Status != models.EventStatusOngoing {
		return nil, appErrors.Clone(appErrors.ErrValidation, "event registration is closed")
	}

	reg := &models.EventRegistration{EventID: event.ID, StudentID: student.ID, RegisteredAt: s.now()}
	created, err := s.attendance.Register(ctx, reg)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register for event")
	}
	if !created {
		return nil, appErrors.Clone(appErrors.ErrConflict, "already registered for this event")
	}
	s.logger.Info("student registered for event", zap.String("event_id", event.ID), zap.String("student_id", student.ID))
	return reg, nil
}

// RecordAttendance marks students present at an ongoing or completed event.
// When the event awards points in an AICTE category, each newly present
// student receives one PENDING transaction.
func (s *AICTEService) RecordAttendance(ctx context.Context, actor models.Actor, eventID string, req models.RecordAttendanceRequest) (*models.AttendanceResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	event, err := s.events.FindByID(ctx, nil, eventID)
	if err != nil {
		return nil, eventError(err, "failed to load event")
	}
	if !actor.IsAdmin() {
		ok, err := s.clubs.IsOrganizer(ctx, event.ClubID, actor.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check club organizer")
		}
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only the club's organizers can record attendance")
		}
	}
	if event.Status != models.EventStatusOngoing && event.Status != models.EventStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attendance can only be recorded for ongoing or completed events")
	}

	ids := uniqueStrings(req.StudentIDs)
	students, err := s.students.ListByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	if len(students) != len(ids) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "one or more students not found")
	}

	var category *models.AICTECategory
	if event.AICTECategoryID != nil && event.PointsAwarded > 0 {
		category, err = s.points.FindCategory(ctx, *event.AICTECategoryID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "AICTE category not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load AICTE category")
		}
		if err := ledger.ValidatePoints(event.PointsAwarded, category); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
	}

	result := &models.AttendanceResult{}
	var awarded []models.Student
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for _, student := range students {
			if err := s.attendance.MarkPresent(ctx, tx, event.ID, student.ID, actor.ID); err != nil {
				return err
			}
			result.Marked++
			if category == nil {
				continue
			}
			code, err := uniqueVerificationCode(s.newCode, func(code string) (bool, error) {
				return s.points.TransactionCodeExists(ctx, tx, code)
			})
			if err != nil {
				return err
			}
			created, err := s.points.CreateTransaction(ctx, tx, &models.AICTETransaction{
				StudentID:        student.ID,
				EventID:          event.ID,
				CategoryID:       category.ID,
				PointsAllocated:  event.PointsAwarded,
				Status:           models.TransactionPending,
				VerificationCode: code,
			})
			if err != nil {
				return err
			}
			if created {
				result.TransactionsCreated++
				awarded = append(awarded, student)
			}
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}

	for _, student := range awarded {
		s.cache.Invalidate(ctx, summaryCacheKey(student.ID))
		s.notifier.Notify(ctx, models.Notification{
			UserID:  student.UserID,
			EventID: &event.ID,
			Title:   "AICTE Points Pending",
			Message: fmt.Sprintf("You earned %d AICTE points for attending '%s'. They are awaiting mentor approval.", event.PointsAwarded, event.Name),
			Type:    models.NotificationInfo,
		})
	}
	s.logger.Info("attendance recorded",
		zap.String("event_id", event.ID),
		zap.Int("marked", result.Marked),
		zap.Int("transactions", result.TransactionsCreated),
	)
	return result, nil
}

// Approve accepts a PENDING transaction. Only the student's mentor or an admin may decide.
func (s *AICTEService) Approve(ctx context.Context, actor models.Actor, id string) (*models.AICTETransaction, error) {
	return s.decide(ctx, actor, id, models.TransactionApproved, "")
}

// Reject declines a PENDING transaction with a reason.
func (s *AICTEService) Reject(ctx context.Context, actor models.Actor, id string, req models.RejectTransactionRequest) (*models.AICTETransaction, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "rejection reason must be at least 5 characters")
	}
	return s.decide(ctx, actor, id, models.TransactionRejected, req.Reason)
}

func (s *AICTEService) decide(ctx context.Context, actor models.Actor, id string, status models.TransactionStatus, reason string) (*models.AICTETransaction, error) {
	tx, err := s.points.FindTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "transaction not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transaction")
	}
	student, err := s.students.FindByID(ctx, tx.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.ensureMentor(ctx, actor, student); err != nil {
		return nil, err
	}
	if tx.Status != models.TransactionPending {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("transaction is already %s", strings.ToLower(string(tx.Status))))
	}

	at := s.now()
	approver := actor.ID
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	if err := s.points.Decide(ctx, nil, tx.ID, status, &approver, reasonPtr, false, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "transaction was decided concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update transaction")
	}
	tx.Status = status
	tx.ApprovedBy = &approver
	tx.ApprovalDate = &at
	tx.RejectionReason = reasonPtr

	if s.audit != nil {
		payload := fmt.Sprintf(`{"status":%q,"reason":%q}`, status, reason)
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actor.ID,
			Action:     models.AuditActionPointsDecision,
			Resource:   "aicte_transaction",
			ResourceID: &tx.ID,
			NewValues:  []byte(payload),
		}); err != nil {
			s.logger.Warn("failed to record transaction audit log", zap.Error(err))
		}
	}
	s.cache.Invalidate(ctx, summaryCacheKey(student.ID))
	s.notifyDecision(ctx, student.UserID, tx, reason)
	return tx, nil
}

func (s *AICTEService) notifyDecision(ctx context.Context, userID string, tx *models.AICTETransaction, reason string) {
	n := models.Notification{UserID: userID, EventID: &tx.EventID}
	if tx.Status == models.TransactionApproved {
		n.Title = "AICTE Points Approved"
		n.Message = fmt.Sprintf("%d AICTE points have been approved.", tx.PointsAllocated)
		n.Type = models.NotificationSuccess
	} else {
		n.Title = "AICTE Points Rejected"
		n.Message = fmt.Sprintf("%d AICTE points were rejected: %s", tx.PointsAllocated, reason)
		n.Type = models.NotificationError
	}
	s.notifier.Notify(ctx, n)
}

func (s *AICTEService) ensureMentor(ctx context.Context, actor models.Actor, student *models.Student) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.Role != models.RoleMentor {
		return appErrors.Clone(appErrors.ErrForbidden, "only mentors can review AICTE points")
	}
	mentor, err := s.students.FindMentorByUserID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrForbidden, "mentor profile not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor")
	}
	if student.MentorID == nil || *student.MentorID != mentor.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the student's assigned mentor can review these points")
	}
	return nil
}

// AutoApprove approves every PENDING transaction created before now minus the
// configured window. Rows decided meanwhile are skipped.
func (s *AICTEService) AutoApprove(ctx context.Context, now time.Time) (*models.AutoApproveReport, error) {
	cutoff := now.Add(-s.cfg.AutoApproveAfter)
	pending, err := s.points.ListPendingBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list pending transactions: %w", err)
	}

	report := &models.AutoApproveReport{Cutoff: cutoff}
	var approved []models.AICTETransaction
	for _, tx := range pending {
		err := s.points.Decide(ctx, nil, tx.ID, models.TransactionApproved, nil, nil, true, now)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			report.Errors = append(report.Errors, models.ItemError{ID: tx.ID, Error: err.Error()})
			continue
		}
		tx.Status = models.TransactionApproved
		tx.AutoApproved = true
		approved = append(approved, tx)
	}
	report.Approved = len(approved)

	if len(approved) > 0 {
		s.notifyStudents(ctx, approved, func(tx models.AICTETransaction) models.Notification {
			return models.Notification{
				EventID: &tx.EventID,
				Title:   "AICTE Points Approved",
				Message: fmt.Sprintf("%d AICTE points have been approved automatically.", tx.PointsAllocated),
				Type:    models.NotificationSuccess,
			}
		})
	}
	s.logger.Info("aicte auto-approval finished", zap.Int("approved", report.Approved), zap.Int("errors", len(report.Errors)))
	return report, nil
}

func (s *AICTEService) notifyStudents(ctx context.Context, txs []models.AICTETransaction, build func(models.AICTETransaction) models.Notification) {
	ids := make([]string, 0, len(txs))
	for _, tx := range txs {
		ids = append(ids, tx.StudentID)
	}
	ids = uniqueStrings(ids)
	s.invalidateSummaries(ctx, ids)

	students, err := s.students.ListByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("failed to load students for notifications", zap.Error(err))
		return
	}
	users := make(map[string]string, len(students))
	for _, st := range students {
		users[st.ID] = st.UserID
	}
	for _, tx := range txs {
		userID, ok := users[tx.StudentID]
		if !ok {
			continue
		}
		n := build(tx)
		n.UserID = userID
		s.notifier.Notify(ctx, n)
	}
}

// ReconcileDuplicateTransactions collapses every (student, event) pair that
// holds more than one transaction. Each pair is repaired in its own database
// transaction; a failing pair is reported and the batch continues.
func (s *AICTEService) ReconcileDuplicateTransactions(ctx context.Context) (*models.ReconcileReport, error) {
	groups, err := s.points.FindDuplicateGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("find duplicate transactions: %w", err)
	}

	report := &models.ReconcileReport{Groups: len(groups), AffectedStudents: []string{}}
	affected := make(map[string]struct{})
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		var cleaned int
		err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
			rows, err := s.points.ListGroup(ctx, tx, group.StudentID, group.EventID)
			if err != nil {
				return err
			}
			plan := ledger.PlanGroup(rows)
			if plan.Noop() {
				return nil
			}
			if plan.NewPoints != nil {
				if err := s.points.UpdatePoints(ctx, tx, plan.KeepID, *plan.NewPoints); err != nil {
					return err
				}
			}
			n, err := s.points.DeleteTransactions(ctx, tx, plan.DeleteIDs)
			if err != nil {
				return err
			}
			cleaned = n
			return nil
		})
		if err != nil {
			s.logger.Warn("duplicate transaction group failed",
				zap.String("student_id", group.StudentID),
				zap.String("event_id", group.EventID),
				zap.Error(err),
			)
			report.Errors = append(report.Errors, models.ItemError{ID: group.StudentID + ":" + group.EventID, Error: err.Error()})
			continue
		}
		if cleaned > 0 {
			report.Cleaned += cleaned
			affected[group.StudentID] = struct{}{}
		}
	}

	for id := range affected {
		report.AffectedStudents = append(report.AffectedStudents, id)
	}
	sort.Strings(report.AffectedStudents)
	s.invalidateSummaries(ctx, report.AffectedStudents)
	s.metrics.RecordReconciled(report.Cleaned)
	s.logger.Info("aicte reconciliation finished",
		zap.Int("groups", report.Groups),
		zap.Int("cleaned", report.Cleaned),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

// Summary returns a student's standing, served from cache when possible.
func (s *AICTEService) Summary(ctx context.Context, studentID string) (*models.StudentPointsSummary, bool, error) {
	var cached models.StudentPointsSummary
	if s.cache.Get(ctx, summaryCacheKey(studentID), &cached) {
		return &cached, true, nil
	}
	row, err := s.points.StudentPoints(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student points")
	}
	summary := s.cfg.Thresholds.Summarize(*row)
	s.cache.Set(ctx, summaryCacheKey(studentID), summary, s.cfg.SummaryTTL)
	return &summary, false, nil
}

// MySummary resolves the calling student's profile and returns its summary.
func (s *AICTEService) MySummary(ctx context.Context, actor models.Actor) (*models.StudentPointsSummary, bool, error) {
	student, err := s.students.FindByUserID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return s.Summary(ctx, student.ID)
}

// ListTransactions returns the transactions the actor may see: students see
// their own, mentors see their mentees', admins see everything.
func (s *AICTEService) ListTransactions(ctx context.Context, actor models.Actor, filter models.AICTETransactionFilter) ([]models.AICTETransaction, error) {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleMentor:
		mentor, err := s.students.FindMentorByUserID(ctx, actor.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrForbidden, "mentor profile not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor")
		}
		filter.MentorID = mentor.ID
	case models.RoleStudent:
		student, err := s.students.FindByUserID(ctx, actor.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrForbidden, "student profile not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		filter.StudentID = student.ID
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to list AICTE transactions")
	}

	txs, err := s.points.ListTransactions(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transactions")
	}
	return txs, nil
}

// ListCategories returns the AICTE activity categories.
func (s *AICTEService) ListCategories(ctx context.Context) ([]models.AICTECategory, error) {
	categories, err := s.points.ListCategories(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}
	return categories, nil
}

// ComplianceReport renders every matching student's standing as CSV.
func (s *AICTEService) ComplianceReport(ctx context.Context, filter models.StudentFilter) ([]byte, error) {
	rows, err := s.points.ListStudentPoints(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load compliance data")
	}

	dataset := export.Dataset{Columns: complianceColumns, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		summary := s.cfg.Thresholds.Summarize(row)
		dataset.Rows = append(dataset.Rows, map[string]string{
			"usn":                   summary.USN,
			"name":                  summary.FullName,
			"department":            summary.Department,
			"semester":              strconv.Itoa(summary.Semester),
			"admission_type":        string(summary.AdmissionType),
			"current_points":        strconv.Itoa(summary.TotalPoints),
			"required_points":       strconv.Itoa(summary.RequiredPoints),
			"points_needed":         strconv.Itoa(summary.Remaining),
			"is_completed":          strconv.FormatBool(summary.Completed),
			"approved_transactions": strconv.Itoa(row.ApprovedCount),
			"pending_transactions":  strconv.Itoa(row.PendingCount),
			"rejected_transactions": strconv.Itoa(row.RejectedCount),
		})
	}
	out, err := s.exporter.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render compliance report")
	}
	return out, nil
}

func (s *AICTEService) invalidateSummaries(ctx context.Context, studentIDs []string) {
	if len(studentIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(studentIDs))
	for _, id := range studentIDs {
		keys = append(keys, summaryCacheKey(id))
	}
	s.cache.Invalidate(ctx, keys...)
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
