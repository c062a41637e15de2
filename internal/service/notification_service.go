package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/certifytrack-api/internal/models"
	"github.com/noah-isme/certifytrack-api/pkg/broker"
	appErrors "github.com/noah-isme/certifytrack-api/pkg/errors"
	"github.com/noah-isme/certifytrack-api/pkg/jobs"
)

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, page, pageSize int) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, id string) (bool, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

// Notifier is the fire-and-forget side of NotificationService used by workflows.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, models.Notification) {}

// NotificationConfig tunes background delivery.
type NotificationConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// NotificationService stores in-app notifications and fans them out to the broker.
type NotificationService struct {
	repo      notificationRepository
	publisher broker.Publisher
	queue     *jobs.Queue[models.Notification]
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewNotificationService wires delivery. publisher may be nil when no broker is configured.
func NewNotificationService(repo notificationRepository, publisher broker.Publisher, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{repo: repo, publisher: publisher, metrics: metrics, logger: logger}
	svc.queue = jobs.NewQueue[models.Notification]("notifications", svc.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return svc
}

// Start launches background delivery.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop halts background delivery.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify hands a notification to the delivery queue. When the queue is not
// running or is full the notification is delivered inline. Errors are logged
// and never returned to the caller.
func (s *NotificationService) Notify(ctx context.Context, n models.Notification) {
	if n.UserID == "" {
		return
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	job := jobs.Job[models.Notification]{ID: n.ID, Kind: "notification", Payload: n}
	if err := s.queue.TryEnqueue(job); err == nil {
		s.metrics.RecordNotification("queued")
		return
	}
	if err := s.deliver(ctx, job); err != nil {
		s.logger.Warn("notification delivery failed", zap.String("user_id", n.UserID), zap.String("title", n.Title), zap.Error(err))
	}
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job[models.Notification]) error {
	n := job.Payload
	// Only the insert is retried; publish failures are logged and dropped.
	if err := s.repo.Create(ctx, &n); err != nil {
		s.metrics.RecordNotification("failed")
		return err
	}
	s.metrics.RecordNotification("stored")

	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.Publish(ctx, n); err != nil {
		s.logger.Warn("notification publish failed", zap.String("notification_id", n.ID), zap.Error(err))
		s.metrics.RecordNotification("publish_failed")
	}
	return nil
}

// List returns a page of the user's notifications.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, page, pageSize int) ([]models.Notification, *models.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	items, total, err := s.repo.ListByUser(ctx, userID, unreadOnly, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return items, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// UnreadCount returns how many notifications the user has not read.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}

// MarkRead flags one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	ok, err := s.repo.MarkRead(ctx, userID, id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notification")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}

// MarkAllRead flags all of the user's notifications as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notifications")
	}
	return n, nil
}
