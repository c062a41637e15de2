package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/certifytrack-api/internal/models"
	"github.com/noah-isme/certifytrack-api/internal/scheduling"
)

// EventStatusService runs the automatic event lifecycle sweep.
type EventStatusService struct {
	events   eventStore
	assigner HallAssigner
	notifier Notifier
	metrics  *MetricsService
	logger   *zap.Logger
	location *time.Location
}

// NewEventStatusService constructs an EventStatusService. loc is the campus
// time zone that event dates and times are expressed in.
func NewEventStatusService(events eventStore, assigner HallAssigner, notifier Notifier, metrics *MetricsService, logger *zap.Logger, loc *time.Location) *EventStatusService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &EventStatusService{
		events:   events,
		assigner: assigner,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		location: loc,
	}
}

// AdvanceEventStatuses evaluates every non-terminal event at now. Unless
// dryRun is set, each event's final status is written with a compare-and-set
// on its starting status and the organizer gets one notification per hop.
// A failing event is reported and the sweep moves on.
func (s *EventStatusService) AdvanceEventStatuses(ctx context.Context, now time.Time, dryRun bool) (*models.SweepReport, error) {
	events, err := s.events.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active events: %w", err)
	}

	local := now.In(s.location)
	report := &models.SweepReport{
		RanAt:       now.UTC(),
		DryRun:      dryRun,
		Evaluated:   len(events),
		Transitions: []models.StatusTransition{},
	}

	for i := range events {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		event := events[i]
		hops := scheduling.AdvanceStatus(event, local)
		if len(hops) == 0 {
			continue
		}
		if dryRun {
			report.Transitions = append(report.Transitions, hops...)
			continue
		}

		final := hops[len(hops)-1].To
		if err := s.events.UpdateStatus(ctx, nil, event.ID, event.Status, final); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				err = fmt.Errorf("status changed from %s during sweep", event.Status)
			}
			s.logger.Warn("event status sweep failed", zap.String("event_id", event.ID), zap.Error(err))
			report.Errors = append(report.Errors, models.ItemError{ID: event.ID, Error: err.Error()})
			continue
		}
		report.Transitions = append(report.Transitions, hops...)

		for _, hop := range hops {
			s.metrics.RecordStatusTransition(hop.From, hop.To)
			s.notifyHop(ctx, event, hop)
		}
		if needsHall(hops) && event.AssignedHallID == nil && s.assigner != nil {
			if _, err := s.assigner.AssignHallToEvent(ctx, event.ID); err != nil {
				s.logger.Error("hall assignment after sweep failed", zap.String("event_id", event.ID), zap.Error(err))
			}
		}
	}

	s.logger.Info("event status sweep finished",
		zap.Bool("dry_run", dryRun),
		zap.Int("evaluated", report.Evaluated),
		zap.Int("transitions", len(report.Transitions)),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

func (s *EventStatusService) notifyHop(ctx context.Context, event models.Event, hop models.StatusTransition) {
	recipient := organizerOf(&event)
	if recipient == "" {
		return
	}
	var message string
	switch hop.To {
	case models.EventStatusScheduled:
		message = fmt.Sprintf("Your event '%s' has been automatically set to scheduled status.", event.Name)
	case models.EventStatusOngoing:
		message = fmt.Sprintf("Your event '%s' is now ongoing.", event.Name)
	case models.EventStatusCompleted:
		message = fmt.Sprintf("Your event '%s' has been completed.", event.Name)
	default:
		return
	}
	eventID := event.ID
	s.notifier.Notify(ctx, models.Notification{
		UserID:  recipient,
		EventID: &eventID,
		Title:   "Event Status Updated",
		Message: message,
		Type:    models.NotificationInfo,
	})
}

// needsHall reports whether a sweep scheduled the event and left it in a
// state that still occupies a hall.
func needsHall(hops []models.StatusTransition) bool {
	if len(hops) == 0 {
		return false
	}
	switch hops[len(hops)-1].To {
	case models.EventStatusScheduled, models.EventStatusOngoing:
	default:
		return false
	}
	for _, hop := range hops {
		if hop.To == models.EventStatusScheduled {
			return true
		}
	}
	return false
}
