package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/certifytrack-api/internal/models"
	"github.com/noah-isme/certifytrack-api/internal/scheduling"
	"github.com/noah-isme/certifytrack-api/pkg/database"
	appErrors "github.com/noah-isme/certifytrack-api/pkg/errors"
)

type clubReader interface {
	FindByID(ctx context.Context, id string) (*models.Club, error)
	IsOrganizer(ctx context.Context, clubID, userID string) (bool, error)
}

type eventBookingCanceller interface {
	CancelForEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) error
}

// EventService manages club events and their manual lifecycle changes.
type EventService struct {
	db        database.TxBeginner
	events    eventStore
	clubs     clubReader
	bookings  eventBookingCanceller
	assigner  HallAssigner
	audit     auditRecorder
	notifier  Notifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEventService constructs an EventService.
func NewEventService(db database.TxBeginner, events eventStore, clubs clubReader, bookings eventBookingCanceller, assigner HallAssigner, audit auditRecorder, notifier Notifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &EventService{
		db:        db,
		events:    events,
		clubs:     clubs,
		bookings:  bookings,
		assigner:  assigner,
		audit:     audit,
		notifier:  notifier,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Create stores a new event for a club the actor organizes. Events created
// as scheduled get a hall straight away when one is free.
func (s *EventService) Create(ctx context.Context, actor models.Actor, req models.CreateEventRequest) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	eventDate, err := models.ParseDate(req.EventDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event_date")
	}
	var endDate *time.Time
	if req.EndDate != nil && *req.EndDate != "" {
		parsed, err := models.ParseDate(*req.EndDate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid end_date")
		}
		if parsed.Before(eventDate) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "end_date cannot be before event_date")
		}
		if parsed.After(eventDate) {
			endDate = &parsed
		}
	}
	// Bookings only cover event_date, so the daily window must not invert even across days.
	if req.EndTime != nil && !req.StartTime.Before(*req.EndTime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}

	if err := s.ensureOrganizer(ctx, actor, req.ClubID); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = models.EventStatusDraft
	}
	event := &models.Event{
		ClubID:          req.ClubID,
		Name:            req.Name,
		Description:     req.Description,
		EventDate:       eventDate,
		EndDate:         endDate,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		Status:          status,
		PreferredHallID: req.PreferredHallID,
		BackupHallID:    req.BackupHallID,
		AICTECategoryID: req.AICTECategoryID,
		PointsAwarded:   req.PointsAwarded,
		CreatedBy:       actor.ID,
	}
	if err := s.events.Create(ctx, nil, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}
	s.logger.Info("event created", zap.String("event_id", event.ID), zap.String("status", string(event.Status)))

	if event.Status == models.EventStatusScheduled {
		s.assignHall(ctx, event.ID)
	}
	return s.Get(ctx, event.ID)
}

// Get returns one event.
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.events.FindByID(ctx, nil, id)
	if err != nil {
		return nil, eventError(err, "failed to load event")
	}
	return event, nil
}

// List returns events matching filter along with pagination metadata.
func (s *EventService) List(ctx context.Context, filter models.EventFilter) ([]models.Event, *models.Pagination, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	events, total, err := s.events.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	return events, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// UpdateStatus moves an event forward manually. Entering scheduled without a
// hall triggers assignment; cancelling also releases the event's bookings.
func (s *EventService) UpdateStatus(ctx context.Context, actor models.Actor, id string, req models.UpdateEventStatusRequest) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status")
	}
	if req.Status == models.EventStatusCancelled {
		return s.Cancel(ctx, actor, id)
	}

	event, err := s.events.FindByID(ctx, nil, id)
	if err != nil {
		return nil, eventError(err, "failed to load event")
	}
	if err := s.ensureOrganizer(ctx, actor, event.ClubID); err != nil {
		return nil, err
	}
	from := event.Status
	if !scheduling.CanTransition(from, req.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move event from %s to %s", from, req.Status))
	}
	if err := s.events.UpdateStatus(ctx, nil, event.ID, from, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "event status changed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event status")
	}
	event.Status = req.Status
	s.afterTransition(ctx, actor, event, from)

	if req.Status == models.EventStatusScheduled && event.AssignedHallID == nil {
		s.assignHall(ctx, event.ID)
	}
	return s.Get(ctx, event.ID)
}

// Cancel cancels a non-terminal event and every live booking made for it.
func (s *EventService) Cancel(ctx context.Context, actor models.Actor, id string) (*models.Event, error) {
	var (
		event *models.Event
		from  models.EventStatus
	)
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		current, err := s.events.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.ensureOrganizer(ctx, actor, current.ClubID); err != nil {
			return err
		}
		if !scheduling.CanTransition(current.Status, models.EventStatusCancelled) {
			return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot cancel a %s event", current.Status))
		}
		if err := s.events.UpdateStatus(ctx, tx, current.ID, current.Status, models.EventStatusCancelled); err != nil {
			return err
		}
		if err := s.bookings.CancelForEvent(ctx, tx, current.ID); err != nil {
			return err
		}
		from = current.Status
		current.Status = models.EventStatusCancelled
		event = current
		return nil
	})
	if err != nil {
		return nil, eventError(err, "failed to cancel event")
	}
	s.afterTransition(ctx, actor, event, from)
	return event, nil
}

func (s *EventService) afterTransition(ctx context.Context, actor models.Actor, event *models.Event, from models.EventStatus) {
	s.metrics.RecordStatusTransition(from, event.Status)
	s.logger.Info("event status updated",
		zap.String("event_id", event.ID),
		zap.String("from", string(from)),
		zap.String("to", string(event.Status)),
	)
	if s.audit != nil {
		payload := fmt.Sprintf(`{"from":%q,"to":%q}`, from, event.Status)
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actor.ID,
			Action:     models.AuditActionEventStatus,
			Resource:   "event",
			ResourceID: &event.ID,
			NewValues:  []byte(payload),
		}); err != nil {
			s.logger.Warn("failed to record event audit log", zap.Error(err))
		}
	}
	if organizer := organizerOf(event); organizer != actor.ID {
		s.notifier.Notify(ctx, models.Notification{
			UserID:  organizer,
			EventID: &event.ID,
			Title:   "Event Status Updated",
			Message: fmt.Sprintf("Your event '%s' is now %s.", event.Name, event.Status),
			Type:    models.NotificationInfo,
		})
	}
}

// assignHall runs hall assignment without letting its failure surface.
func (s *EventService) assignHall(ctx context.Context, eventID string) {
	if s.assigner == nil {
		return
	}
	if _, err := s.assigner.AssignHallToEvent(ctx, eventID); err != nil {
		s.logger.Error("hall assignment failed", zap.String("event_id", eventID), zap.Error(err))
	}
}

func (s *EventService) ensureOrganizer(ctx context.Context, actor models.Actor, clubID string) error {
	if _, err := s.clubs.FindByID(ctx, clubID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "club not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load club")
	}
	if actor.IsAdmin() {
		return nil
	}
	ok, err := s.clubs.IsOrganizer(ctx, clubID, actor.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check club organizer")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "only the club's organizers can manage its events")
	}
	return nil
}

func eventError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "event not found")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
