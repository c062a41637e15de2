package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/certifytrack-api/internal/models"
	"github.com/noah-isme/certifytrack-api/internal/scheduling"
	"github.com/noah-isme/certifytrack-api/pkg/database"
	appErrors "github.com/noah-isme/certifytrack-api/pkg/errors"
)

type hallReader interface {
	List(ctx context.Context, onlyAvailable bool) ([]models.Hall, error)
	FindByID(ctx context.Context, id string) (*models.Hall, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Hall, error)
}

type bookingStore interface {
	LockHallDate(ctx context.Context, exec sqlx.ExtContext, hallID string, date time.Time) error
	ListBlocking(ctx context.Context, exec sqlx.ExtContext, hallID string, date time.Time) ([]models.HallBooking, error)
	ListBlockingOnDate(ctx context.Context, date time.Time) ([]models.HallBooking, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.HallBooking, error)
	List(ctx context.Context, filter models.HallBookingFilter) ([]models.HallBooking, error)
	Create(ctx context.Context, exec sqlx.ExtContext, booking *models.HallBooking) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.HallBookingStatus, approvedBy, reason *string) error
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// BookingConfig tunes booking validation.
type BookingConfig struct {
	MinRejectionReason int
}

// BookingService applies the hall booking conflict policy.
type BookingService struct {
	db        database.TxBeginner
	halls     hallReader
	bookings  bookingStore
	audit     auditRecorder
	notifier  Notifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       BookingConfig
}

// NewBookingService constructs a BookingService.
func NewBookingService(db database.TxBeginner, halls hallReader, bookings bookingStore, audit auditRecorder, notifier Notifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg BookingConfig) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if cfg.MinRejectionReason <= 0 {
		cfg.MinRejectionReason = 5
	}
	return &BookingService{
		db:        db,
		halls:     halls,
		bookings:  bookings,
		audit:     audit,
		notifier:  notifier,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Create books a hall directly. A free window is approved on the spot with the
// organizer as approver; an overlapping request waits as PENDING for an admin.
func (s *BookingService) Create(ctx context.Context, actor models.Actor, req models.CreateHallBookingRequest) (*models.HallBooking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	date, err := models.ParseDate(req.BookingDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking_date")
	}
	if !req.StartTime.Before(req.EndTime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}

	if _, err := s.halls.FindByID(ctx, req.HallID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "hall not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hall")
	}

	booking := &models.HallBooking{
		HallID:      req.HallID,
		EventID:     req.EventID,
		BookedBy:    actor.ID,
		BookingDate: date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	}
	window := scheduling.NewWindow(date, req.StartTime, req.EndTime)

	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.bookings.LockHallDate(ctx, tx, req.HallID, date); err != nil {
			return err
		}
		existing, err := s.bookings.ListBlocking(ctx, tx, req.HallID, date)
		if err != nil {
			return err
		}
		if len(window.Conflicts(existing, "")) == 0 {
			booking.Status = models.BookingStatusApproved
			approver := actor.ID
			booking.ApprovedBy = &approver
		} else {
			booking.Status = models.BookingStatusPending
		}
		return s.bookings.Create(ctx, tx, booking)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
	}

	s.metrics.RecordBookingOutcome(strings.ToLower(string(booking.Status)))
	s.logger.Info("hall booking created",
		zap.String("booking_id", booking.ID),
		zap.String("hall_id", booking.HallID),
		zap.String("status", string(booking.Status)),
	)
	return booking, nil
}

// Approve confirms a PENDING booking after re-checking it against every other
// live booking of the hall on that date.
func (s *BookingService) Approve(ctx context.Context, actor models.Actor, id string) (*models.HallBooking, error) {
	var booking *models.HallBooking
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		current, err := s.bookings.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		switch current.Status {
		case models.BookingStatusPending:
		case models.BookingStatusApproved:
			return appErrors.Clone(appErrors.ErrValidation, "booking is already approved")
		default:
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot approve a %s booking", strings.ToLower(string(current.Status))))
		}

		if err := s.bookings.LockHallDate(ctx, tx, current.HallID, current.BookingDate); err != nil {
			return err
		}
		others, err := s.bookings.ListBlocking(ctx, tx, current.HallID, current.BookingDate)
		if err != nil {
			return err
		}
		window := scheduling.NewWindow(current.BookingDate, current.StartTime, current.EndTime)
		if conflicts := window.Conflicts(others, current.ID); len(conflicts) > 0 {
			return appErrors.Clone(appErrors.ErrBookingConflict, fmt.Sprintf("booking overlaps %d existing booking(s)", len(conflicts)))
		}

		approver := actor.ID
		if err := s.bookings.UpdateStatus(ctx, tx, current.ID, models.BookingStatusApproved, &approver, nil); err != nil {
			return err
		}
		current.Status = models.BookingStatusApproved
		current.ApprovedBy = &approver
		booking = current
		return nil
	})
	if err != nil {
		if appErrors.IsCode(err, appErrors.ErrBookingConflict.Code) {
			s.metrics.RecordBookingOutcome("conflict")
		}
		return nil, s.bookingError(err, "failed to approve booking")
	}

	s.metrics.RecordBookingOutcome("approved")
	s.recordDecision(ctx, actor, booking, "")
	s.notifier.Notify(ctx, models.Notification{
		UserID:  booking.BookedBy,
		EventID: booking.EventID,
		Title:   "Hall Booking Approved",
		Message: fmt.Sprintf("Your hall booking on %s (%s-%s) has been approved.", booking.BookingDate.Format(models.DateLayout), booking.StartTime, booking.EndTime),
		Type:    models.NotificationSuccess,
	})
	return booking, nil
}

// Reject declines a PENDING booking. reason must carry at least the configured
// number of non-blank characters.
func (s *BookingService) Reject(ctx context.Context, actor models.Actor, id string, reason string) (*models.HallBooking, error) {
	reason = strings.TrimSpace(reason)
	if len([]rune(reason)) < s.cfg.MinRejectionReason {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("rejection reason must be at least %d characters", s.cfg.MinRejectionReason))
	}

	var booking *models.HallBooking
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		current, err := s.bookings.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status != models.BookingStatusPending {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot reject a %s booking", strings.ToLower(string(current.Status))))
		}
		if err := s.bookings.UpdateStatus(ctx, tx, current.ID, models.BookingStatusRejected, nil, &reason); err != nil {
			return err
		}
		current.Status = models.BookingStatusRejected
		current.RejectionReason = &reason
		booking = current
		return nil
	})
	if err != nil {
		return nil, s.bookingError(err, "failed to reject booking")
	}

	s.metrics.RecordBookingOutcome("rejected")
	s.recordDecision(ctx, actor, booking, reason)
	s.notifier.Notify(ctx, models.Notification{
		UserID:  booking.BookedBy,
		EventID: booking.EventID,
		Title:   "Hall Booking Rejected",
		Message: fmt.Sprintf("Your hall booking on %s was rejected: %s", booking.BookingDate.Format(models.DateLayout), reason),
		Type:    models.NotificationError,
	})
	return booking, nil
}

// Cancel withdraws a live booking. Only the organizer who booked it or an admin may cancel.
func (s *BookingService) Cancel(ctx context.Context, actor models.Actor, id string) (*models.HallBooking, error) {
	var booking *models.HallBooking
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		current, err := s.bookings.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.BookedBy != actor.ID && !actor.IsAdmin() {
			return appErrors.Clone(appErrors.ErrForbidden, "only the booking owner or an admin can cancel")
		}
		if !current.Status.Blocking() {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot cancel a %s booking", strings.ToLower(string(current.Status))))
		}
		if err := s.bookings.UpdateStatus(ctx, tx, current.ID, models.BookingStatusCancelled, current.ApprovedBy, nil); err != nil {
			return err
		}
		current.Status = models.BookingStatusCancelled
		booking = current
		return nil
	})
	if err != nil {
		return nil, s.bookingError(err, "failed to cancel booking")
	}
	s.metrics.RecordBookingOutcome("cancelled")
	return booking, nil
}

// ListPending returns bookings awaiting an admin decision.
func (s *BookingService) ListPending(ctx context.Context) ([]models.HallBooking, error) {
	status := models.BookingStatusPending
	return s.List(ctx, models.HallBookingFilter{Status: &status})
}

// List returns bookings matching filter.
func (s *BookingService) List(ctx context.Context, filter models.HallBookingFilter) ([]models.HallBooking, error) {
	bookings, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	return bookings, nil
}

// AvailableHalls lists halls flagged available with no live booking overlapping the window.
func (s *BookingService) AvailableHalls(ctx context.Context, query models.AvailableHallsQuery) ([]models.Hall, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date, start_time and end_time are required")
	}
	date, err := models.ParseDate(query.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	start, err := models.ParseTimeOfDay(query.StartTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start_time")
	}
	end, err := models.ParseTimeOfDay(query.EndTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid end_time")
	}
	if !start.Before(end) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}

	halls, err := s.halls.List(ctx, true)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list halls")
	}
	bookings, err := s.bookings.ListBlockingOnDate(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bookings")
	}
	byHall := make(map[string][]models.HallBooking)
	for _, b := range bookings {
		byHall[b.HallID] = append(byHall[b.HallID], b)
	}

	window := scheduling.NewWindow(date, start, end)
	free := make([]models.Hall, 0, len(halls))
	for _, hall := range halls {
		if len(window.Conflicts(byHall[hall.ID], "")) == 0 {
			free = append(free, hall)
		}
	}
	return free, nil
}

// ListHalls returns every hall.
func (s *BookingService) ListHalls(ctx context.Context) ([]models.Hall, error) {
	halls, err := s.halls.List(ctx, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list halls")
	}
	return halls, nil
}

func (s *BookingService) recordDecision(ctx context.Context, actor models.Actor, booking *models.HallBooking, reason string) {
	if s.audit == nil {
		return
	}
	payload := fmt.Sprintf(`{"status":%q,"reason":%q}`, booking.Status, reason)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.ID,
		Action:     models.AuditActionBookingDecision,
		Resource:   "hall_booking",
		ResourceID: &booking.ID,
		NewValues:  []byte(payload),
	}); err != nil {
		s.logger.Warn("failed to record booking audit log", zap.Error(err))
	}
}

func (s *BookingService) bookingError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "booking not found")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
