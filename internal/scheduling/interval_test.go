package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/certifytrack-api/internal/models"
)

func tod(raw string) models.TimeOfDay { return models.MustParseTimeOfDay(raw) }

func TestIntervalsOverlap(t *testing.T) {
	cases := []struct {
		name           string
		aStart, aEnd   string
		bStart, bEnd   string
		expectsOverlap bool
	}{
		{"touching end to start", "09:00", "10:00", "10:00", "11:00", false},
		{"touching start to end", "10:00", "11:00", "09:00", "10:00", false},
		{"partial overlap", "09:00", "11:00", "10:00", "12:00", true},
		{"contained", "09:00", "12:00", "10:00", "11:00", true},
		{"identical", "09:00", "10:00", "09:00", "10:00", true},
		{"disjoint", "08:00", "09:00", "13:00", "14:00", false},
		{"zero length inside", "10:00", "10:00", "09:00", "11:00", true},
		{"zero length at start", "09:00", "09:00", "09:00", "11:00", false},
		{"zero length at end", "11:00", "11:00", "09:00", "11:00", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a1, a2, b1, b2 := tod(tc.aStart), tod(tc.aEnd), tod(tc.bStart), tod(tc.bEnd)
			assert.Equal(t, tc.expectsOverlap, IntervalsOverlap(a1, a2, b1, b2))
			assert.Equal(t, tc.expectsOverlap, IntervalsOverlap(b1, b2, a1, a2), "overlap must be symmetric")
		})
	}
}

func TestIntervalsOverlapSymmetricGrid(t *testing.T) {
	for a := 0; a < 8; a++ {
		for aLen := 1; aLen < 4; aLen++ {
			for b := 0; b < 8; b++ {
				for bLen := 1; bLen < 4; bLen++ {
					aS, aE := models.NewTimeOfDay(8+a, 0, 0), models.NewTimeOfDay(8+a+aLen, 0, 0)
					bS, bE := models.NewTimeOfDay(8+b, 0, 0), models.NewTimeOfDay(8+b+bLen, 0, 0)
					require.Equal(t, IntervalsOverlap(aS, aE, bS, bE), IntervalsOverlap(bS, bE, aS, aE))
				}
			}
		}
	}
}

func TestWindowConflicts(t *testing.T) {
	date := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	window := NewWindow(date, tod("10:00"), tod("12:00"))

	bookings := []models.HallBooking{
		{ID: "approved", BookingDate: date, StartTime: tod("09:00"), EndTime: tod("11:00"), Status: models.BookingStatusApproved},
		{ID: "pending", BookingDate: date, StartTime: tod("11:30"), EndTime: tod("13:00"), Status: models.BookingStatusPending},
		{ID: "rejected", BookingDate: date, StartTime: tod("10:00"), EndTime: tod("12:00"), Status: models.BookingStatusRejected},
		{ID: "cancelled", BookingDate: date, StartTime: tod("10:00"), EndTime: tod("12:00"), Status: models.BookingStatusCancelled},
		{ID: "other-day", BookingDate: date.AddDate(0, 0, 1), StartTime: tod("10:00"), EndTime: tod("12:00"), Status: models.BookingStatusApproved},
		{ID: "touching", BookingDate: date, StartTime: tod("12:00"), EndTime: tod("13:00"), Status: models.BookingStatusApproved},
	}

	conflicts := window.Conflicts(bookings, "")
	ids := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"approved", "pending"}, ids)

	assert.Len(t, window.Conflicts(bookings, "approved"), 1)
}

func TestEventWindowDefaultsEndToStart(t *testing.T) {
	event := &models.Event{EventDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), StartTime: tod("09:00")}
	w := EventWindow(event)
	assert.Equal(t, tod("09:00"), w.End)

	end := tod("11:00")
	event.EndTime = &end
	assert.Equal(t, end, EventWindow(event).End)

	early := tod("08:00")
	event.EndTime = &early
	w = EventWindow(event)
	assert.Equal(t, w.Start, w.End)
}

type stubBookingSource struct {
	byHall map[string][]models.HallBooking
	err    error
	calls  []string
}

func (s *stubBookingSource) ListBlocking(_ context.Context, hallID string, _ time.Time) ([]models.HallBooking, error) {
	s.calls = append(s.calls, hallID)
	if s.err != nil {
		return nil, s.err
	}
	return s.byHall[hallID], nil
}

func resolverEvent() *models.Event {
	end := tod("12:00")
	primary, backup := "hall-a", "hall-b"
	return &models.Event{
		ID:              "event-1",
		EventDate:       time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		StartTime:       tod("10:00"),
		EndTime:         &end,
		PreferredHallID: &primary,
		BackupHallID:    &backup,
	}
}

func TestResolveHall(t *testing.T) {
	date := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	busy := []models.HallBooking{{ID: "b1", BookingDate: date, StartTime: tod("09:00"), EndTime: tod("11:00"), Status: models.BookingStatusApproved}}
	halls := []models.Hall{{ID: "hall-a"}, {ID: "hall-b"}}

	t.Run("primary free", func(t *testing.T) {
		src := &stubBookingSource{}
		hall, err := ResolveHall(context.Background(), src, resolverEvent(), halls)
		require.NoError(t, err)
		require.NotNil(t, hall)
		assert.Equal(t, "hall-a", hall.ID)
		assert.Equal(t, []string{"hall-a"}, src.calls)
	})

	t.Run("falls through to backup", func(t *testing.T) {
		src := &stubBookingSource{byHall: map[string][]models.HallBooking{"hall-a": busy}}
		hall, err := ResolveHall(context.Background(), src, resolverEvent(), halls)
		require.NoError(t, err)
		require.NotNil(t, hall)
		assert.Equal(t, "hall-b", hall.ID)
	})

	t.Run("both taken", func(t *testing.T) {
		src := &stubBookingSource{byHall: map[string][]models.HallBooking{"hall-a": busy, "hall-b": busy}}
		hall, err := ResolveHall(context.Background(), src, resolverEvent(), halls)
		require.NoError(t, err)
		assert.Nil(t, hall)
	})

	t.Run("no candidates", func(t *testing.T) {
		hall, err := ResolveHall(context.Background(), &stubBookingSource{}, resolverEvent(), nil)
		require.NoError(t, err)
		assert.Nil(t, hall)
	})

	t.Run("source error", func(t *testing.T) {
		src := &stubBookingSource{err: errors.New("db down")}
		_, err := ResolveHall(context.Background(), src, resolverEvent(), halls)
		require.Error(t, err)
	})
}

func TestCandidateHallIDs(t *testing.T) {
	event := resolverEvent()
	assert.Equal(t, []string{"hall-a", "hall-b"}, CandidateHallIDs(event))

	same := "hall-a"
	event.BackupHallID = &same
	assert.Equal(t, []string{"hall-a"}, CandidateHallIDs(event))

	event.PreferredHallID = nil
	assert.Equal(t, []string{"hall-a"}, CandidateHallIDs(event))

	event.BackupHallID = nil
	assert.Empty(t, CandidateHallIDs(event))
}
