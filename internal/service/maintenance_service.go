package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/certifytrack-api/internal/models"
	appErrors "github.com/noah-isme/certifytrack-api/pkg/errors"
	"github.com/noah-isme/certifytrack-api/pkg/lock"
)

// Maintenance job names, also used as lock keys.
const (
	JobSweepEvents        = "sweep:event-status"
	JobReconcileAICTE     = "reconcile:aicte"
	JobAutoApproveAICTE   = "auto-approve:aicte"
	JobCleanupCertificate = "cleanup:certificates"
)

type statusSweeper interface {
	AdvanceEventStatuses(ctx context.Context, now time.Time, dryRun bool) (*models.SweepReport, error)
}

type pointsMaintainer interface {
	ReconcileDuplicateTransactions(ctx context.Context) (*models.ReconcileReport, error)
	AutoApprove(ctx context.Context, now time.Time) (*models.AutoApproveReport, error)
}

type certificateCleaner interface {
	CleanupDuplicateCertificates(ctx context.Context) (*models.CertificateCleanupReport, error)
}

type duplicateFinder interface {
	DuplicateAttendance(ctx context.Context) ([]models.DuplicateKey, error)
	DuplicateRegistrations(ctx context.Context) ([]models.DuplicateKey, error)
}

type transactionDuplicates interface {
	FindDuplicateGroups(ctx context.Context) ([]models.DuplicateKey, error)
}

// MaintenanceService runs batch jobs one at a time across instances.
type MaintenanceService struct {
	sweeper      statusSweeper
	points       pointsMaintainer
	certificates certificateCleaner
	attendance   duplicateFinder
	transactions transactionDuplicates
	locker       lock.Locker
	audit        auditRecorder
	metrics      *MetricsService
	logger       *zap.Logger
	lockTTL      time.Duration
	now          func() time.Time
}

// NewMaintenanceService constructs a MaintenanceService. A nil locker means no
// cross-instance locking.
func NewMaintenanceService(
	sweeper statusSweeper,
	points pointsMaintainer,
	certificates certificateCleaner,
	attendance duplicateFinder,
	transactions transactionDuplicates,
	locker lock.Locker,
	audit auditRecorder,
	metrics *MetricsService,
	logger *zap.Logger,
	lockTTL time.Duration,
) *MaintenanceService {
	if locker == nil {
		locker = lock.NoopLock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &MaintenanceService{
		sweeper:      sweeper,
		points:       points,
		certificates: certificates,
		attendance:   attendance,
		transactions: transactions,
		locker:       locker,
		audit:        audit,
		metrics:      metrics,
		logger:       logger,
		lockTTL:      lockTTL,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SweepEvents advances event statuses. Dry runs skip the lock since they write nothing.
func (s *MaintenanceService) SweepEvents(ctx context.Context, actor models.Actor, dryRun bool) (*models.SweepReport, error) {
	if dryRun {
		return s.sweeper.AdvanceEventStatuses(ctx, s.now(), true)
	}
	return runLocked(ctx, s, actor, JobSweepEvents, func(ctx context.Context) (*models.SweepReport, error) {
		return s.sweeper.AdvanceEventStatuses(ctx, s.now(), false)
	})
}

// ReconcileTransactions collapses duplicate AICTE transactions.
func (s *MaintenanceService) ReconcileTransactions(ctx context.Context, actor models.Actor) (*models.ReconcileReport, error) {
	return runLocked(ctx, s, actor, JobReconcileAICTE, s.points.ReconcileDuplicateTransactions)
}

// AutoApproveTransactions approves stale PENDING transactions.
func (s *MaintenanceService) AutoApproveTransactions(ctx context.Context, actor models.Actor) (*models.AutoApproveReport, error) {
	return runLocked(ctx, s, actor, JobAutoApproveAICTE, func(ctx context.Context) (*models.AutoApproveReport, error) {
		return s.points.AutoApprove(ctx, s.now())
	})
}

// CleanupCertificates removes duplicate certificates.
func (s *MaintenanceService) CleanupCertificates(ctx context.Context, actor models.Actor) (*models.CertificateCleanupReport, error) {
	return runLocked(ctx, s, actor, JobCleanupCertificate, s.certificates.CleanupDuplicateCertificates)
}

// CheckUniqueness lists duplicate attendance, registration and transaction
// pairs without changing anything.
func (s *MaintenanceService) CheckUniqueness(ctx context.Context) (*models.UniquenessReport, error) {
	attendance, err := s.attendance.DuplicateAttendance(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check attendance")
	}
	registrations, err := s.attendance.DuplicateRegistrations(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check registrations")
	}
	transactions, err := s.transactions.FindDuplicateGroups(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check transactions")
	}
	return &models.UniquenessReport{
		Attendance:    nonNilKeys(attendance),
		Registrations: nonNilKeys(registrations),
		Transactions:  nonNilKeys(transactions),
	}, nil
}

func runLocked[T any](ctx context.Context, s *MaintenanceService, actor models.Actor, job string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	release, acquired, err := s.locker.Lock(ctx, job, s.lockTTL)
	if err != nil {
		return zero, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire job lock")
	}
	if !acquired {
		s.logger.Info("maintenance job already running", zap.String("job", job))
		return zero, appErrors.Clone(appErrors.ErrJobLocked, job+" is already running")
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			s.logger.Warn("failed to release job lock", zap.String("job", job), zap.Error(err))
		}
	}()

	start := time.Now()
	result, err := fn(ctx)
	s.metrics.ObserveJob(job, err, time.Since(start))
	if err != nil {
		s.logger.Error("maintenance job failed", zap.String("job", job), zap.Error(err))
		return zero, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, job+" failed")
	}
	s.record(ctx, actor, job, result)
	return result, nil
}

func (s *MaintenanceService) record(ctx context.Context, actor models.Actor, job string, result interface{}) {
	if s.audit == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		s.logger.Warn("failed to encode job result", zap.String("job", job), zap.Error(err))
		return
	}
	entry := &models.AuditLog{
		Action:     models.AuditActionMaintenance,
		Resource:   "maintenance",
		ResourceID: &job,
		NewValues:  payload,
	}
	if actor.ID != "" {
		entry.UserID = &actor.ID
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record maintenance audit log", zap.String("job", job), zap.Error(err))
	}
}

func nonNilKeys(keys []models.DuplicateKey) []models.DuplicateKey {
	if keys == nil {
		return []models.DuplicateKey{}
	}
	return keys
}
