package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/certifytrack-api/internal/models"
	"github.com/noah-isme/certifytrack-api/internal/scheduling"
	"github.com/noah-isme/certifytrack-api/pkg/database"
	appErrors "github.com/noah-isme/certifytrack-api/pkg/errors"
)

type eventStore interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Event, error)
	ListActive(ctx context.Context) ([]models.Event, error)
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error)
	Create(ctx context.Context, exec sqlx.ExtContext, event *models.Event) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, expected, status models.EventStatus) error
	SetAssignedHall(ctx context.Context, exec sqlx.ExtContext, id string, hallID *string, assignedAt *time.Time) error
}

// HallAssigner assigns a hall to an event that needs one.
type HallAssigner interface {
	AssignHallToEvent(ctx context.Context, eventID string) (*models.Hall, error)
}

// HallAssignmentService picks the preferred or backup hall for an event and
// books it under the event creator's name.
type HallAssignmentService struct {
	db       database.TxBeginner
	halls    hallReader
	bookings bookingStore
	events   eventStore
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewHallAssignmentService constructs a HallAssignmentService.
func NewHallAssignmentService(db database.TxBeginner, halls hallReader, bookings bookingStore, events eventStore, notifier Notifier, logger *zap.Logger) *HallAssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &HallAssignmentService{
		db:       db,
		halls:    halls,
		bookings: bookings,
		events:   events,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AssignHallToEvent resolves the event's preferred then backup hall. The first
// candidate free for the event window is booked (APPROVED, attributed to the
// event creator) and recorded on the event; otherwise the assignment is cleared
// and the organizer is told. Locks for every candidate (hall, date) are taken
// before any booking is read.
func (s *HallAssignmentService) AssignHallToEvent(ctx context.Context, eventID string) (*models.Hall, error) {
	event, err := s.events.FindByID(ctx, nil, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}

	ids := scheduling.CandidateHallIDs(event)
	candidates, err := s.halls.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate halls")
	}

	window := scheduling.EventWindow(event)
	var assigned *models.Hall
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		lockOrder := make([]string, 0, len(candidates))
		for _, h := range candidates {
			lockOrder = append(lockOrder, h.ID)
		}
		sort.Strings(lockOrder)
		for _, hallID := range lockOrder {
			if err := s.bookings.LockHallDate(ctx, tx, hallID, window.Date); err != nil {
				return err
			}
		}

		source := scheduling.BookingSourceFunc(func(ctx context.Context, hallID string, d time.Time) ([]models.HallBooking, error) {
			return s.bookings.ListBlocking(ctx, tx, hallID, d)
		})
		hall, err := scheduling.ResolveHall(ctx, source, event, candidates)
		if err != nil {
			return err
		}
		if hall == nil {
			return s.events.SetAssignedHall(ctx, tx, event.ID, nil, nil)
		}

		creator := event.CreatedBy
		eventRef := event.ID
		booking := &models.HallBooking{
			HallID:      hall.ID,
			EventID:     &eventRef,
			BookedBy:    creator,
			BookingDate: window.Date,
			StartTime:   window.Start,
			EndTime:     window.End,
			Status:      models.BookingStatusApproved,
			ApprovedBy:  &creator,
		}
		if err := s.bookings.Create(ctx, tx, booking); err != nil {
			return err
		}
		at := s.now()
		if err := s.events.SetAssignedHall(ctx, tx, event.ID, &hall.ID, &at); err != nil {
			return err
		}
		assigned = hall
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign hall")
	}

	if assigned == nil {
		s.logger.Warn("no hall available for event", zap.String("event_id", event.ID), zap.Strings("candidates", ids))
		if len(ids) > 0 {
			s.notifier.Notify(ctx, models.Notification{
				UserID:  organizerOf(event),
				EventID: &event.ID,
				Title:   "Hall Assignment Failed",
				Message: fmt.Sprintf("No hall could be assigned to '%s' on %s. Both the preferred and backup halls are booked.", event.Name, window.Date.Format(models.DateLayout)),
				Type:    models.NotificationWarning,
			})
		}
		return nil, nil
	}

	s.logger.Info("hall assigned to event", zap.String("event_id", event.ID), zap.String("hall_id", assigned.ID))
	return assigned, nil
}

// organizerOf returns the club organizer to notify, falling back to the creator.
func organizerOf(event *models.Event) string {
	if event.OrganizerUserID != nil && *event.OrganizerUserID != "" {
		return *event.OrganizerUserID
	}
	return event.CreatedBy
}
