package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/certifytrack-api/internal/models"
)

var campus = time.FixedZone("IST", 5*3600+1800)

// 11:00 on 2024-03-15 campus time.
var sweepNow = time.Date(2024, 3, 15, 5, 30, 0, 0, time.UTC)

func sweepEvents() []models.Event {
	noon := tod("12:00")
	halfTen := tod("10:30")
	return []models.Event{
		{ID: "ev-draft", Name: "Quiz", Status: models.EventStatusDraft, EventDate: date(2024, 3, 15), StartTime: tod("10:00"), EndTime: &noon, OrganizerUserID: strPtr("org-1")},
		{ID: "ev-done", Name: "Workshop", Status: models.EventStatusOngoing, EventDate: date(2024, 3, 15), StartTime: tod("08:00"), EndTime: &halfTen, OrganizerUserID: strPtr("org-1"), AssignedHallID: strPtr("hall-a")},
		{ID: "ev-future", Name: "Fest", Status: models.EventStatusScheduled, EventDate: date(2024, 3, 20), StartTime: tod("09:00")},
		{ID: "ev-orphan", Name: "Talk", Status: models.EventStatusScheduled, EventDate: date(2024, 3, 15), StartTime: tod("09:00")},
	}
}

func TestAdvanceEventStatuses(t *testing.T) {
	store := newEventStoreStub(sweepEvents()...)
	assigner := &assignerStub{}
	notifier := &recordingNotifier{}
	metrics := NewMetricsService()
	svc := NewEventStatusService(store, assigner, notifier, metrics, nil, campus)

	report, err := svc.AdvanceEventStatuses(context.Background(), sweepNow, false)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Evaluated)
	assert.Empty(t, report.Errors)
	assert.Equal(t, []models.StatusTransition{
		{EventID: "ev-draft", EventName: "Quiz", From: models.EventStatusDraft, To: models.EventStatusScheduled},
		{EventID: "ev-draft", EventName: "Quiz", From: models.EventStatusScheduled, To: models.EventStatusOngoing},
		{EventID: "ev-done", EventName: "Workshop", From: models.EventStatusOngoing, To: models.EventStatusCompleted},
		{EventID: "ev-orphan", EventName: "Talk", From: models.EventStatusScheduled, To: models.EventStatusOngoing},
	}, report.Transitions)

	assert.Equal(t, models.EventStatusOngoing, store.get("ev-draft").Status)
	assert.Equal(t, models.EventStatusCompleted, store.get("ev-done").Status)
	assert.Equal(t, models.EventStatusScheduled, store.get("ev-future").Status)

	sent := notifier.all()
	require.Len(t, sent, 3, "one per hop, skipping events with no organizer or creator")
	assert.Equal(t, "Your event 'Quiz' has been automatically set to scheduled status.", sent[0].Message)
	assert.Equal(t, "Your event 'Quiz' is now ongoing.", sent[1].Message)
	assert.Equal(t, "Your event 'Workshop' has been completed.", sent[2].Message)

	assert.Equal(t, []string{"ev-draft"}, assigner.calls)
	assert.EqualValues(t, 4, metrics.Snapshot().StatusTransitions)
}

func TestAdvanceEventStatusesDryRun(t *testing.T) {
	store := newEventStoreStub(sweepEvents()...)
	assigner := &assignerStub{}
	notifier := &recordingNotifier{}
	svc := NewEventStatusService(store, assigner, notifier, nil, nil, campus)

	report, err := svc.AdvanceEventStatuses(context.Background(), sweepNow, true)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Len(t, report.Transitions, 4)
	assert.Equal(t, models.EventStatusDraft, store.get("ev-draft").Status)
	assert.Empty(t, notifier.all())
	assert.Empty(t, assigner.calls)

	again, err := svc.AdvanceEventStatuses(context.Background(), sweepNow, true)
	require.NoError(t, err)
	assert.Equal(t, report.Transitions, again.Transitions)
}

func TestAdvanceEventStatusesCollectsFailures(t *testing.T) {
	store := newEventStoreStub(sweepEvents()...)
	store.updateErr["ev-done"] = errors.New("connection reset")
	notifier := &recordingNotifier{}
	svc := NewEventStatusService(store, nil, notifier, nil, nil, campus)

	report, err := svc.AdvanceEventStatuses(context.Background(), sweepNow, false)
	require.NoError(t, err)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "ev-done", report.Errors[0].ID)
	assert.Len(t, report.Transitions, 3)
	assert.Equal(t, models.EventStatusOngoing, store.get("ev-done").Status)
	assert.Equal(t, models.EventStatusOngoing, store.get("ev-orphan").Status)
	assert.Len(t, notifier.all(), 2)
}

func TestAdvanceEventStatusesUsesCampusClock(t *testing.T) {
	store := newEventStoreStub(sweepEvents()...)
	svc := NewEventStatusService(store, nil, nil, nil, nil, time.UTC)

	// 05:30 UTC is before every start time, so only the draft gets scheduled.
	report, err := svc.AdvanceEventStatuses(context.Background(), sweepNow, true)
	require.NoError(t, err)
	require.Len(t, report.Transitions, 1)
	assert.Equal(t, "ev-draft", report.Transitions[0].EventID)
	assert.Equal(t, models.EventStatusScheduled, report.Transitions[0].To)
}

func TestAdvanceEventStatusesSkipsHallForFinishedChain(t *testing.T) {
	ended := tod("10:00")
	store := newEventStoreStub(
		models.Event{ID: "ev-past", Name: "Seminar", Status: models.EventStatusDraft, EventDate: date(2024, 3, 15), StartTime: tod("08:00"), EndTime: &ended, OrganizerUserID: strPtr("org-1")},
	)
	assigner := &assignerStub{}
	svc := NewEventStatusService(store, assigner, &recordingNotifier{}, nil, nil, campus)

	report, err := svc.AdvanceEventStatuses(context.Background(), sweepNow, false)
	require.NoError(t, err)
	require.Len(t, report.Transitions, 2)
	assert.Equal(t, models.EventStatusCompleted, store.get("ev-past").Status)
	assert.Empty(t, assigner.calls, "a completed event no longer needs a hall")
}

func TestAdvanceEventStatusesNotifiesCreatorWithoutOrganizer(t *testing.T) {
	store := newEventStoreStub(
		models.Event{ID: "ev-club", Name: "Meetup", Status: models.EventStatusScheduled, EventDate: date(2024, 3, 15), StartTime: tod("09:00"), CreatedBy: "creator-1", AssignedHallID: strPtr("hall-a")},
	)
	notifier := &recordingNotifier{}
	svc := NewEventStatusService(store, &assignerStub{}, notifier, nil, nil, campus)

	_, err := svc.AdvanceEventStatuses(context.Background(), sweepNow, false)
	require.NoError(t, err)

	sent := notifier.all()
	require.Len(t, sent, 1)
	assert.Equal(t, "creator-1", sent[0].UserID)
	assert.Equal(t, "Your event 'Meetup' is now ongoing.", sent[0].Message)
}
