package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/certifytrack-api/internal/models"
)

// BookingSource loads the PENDING/APPROVED bookings of a hall on a date.
type BookingSource interface {
	ListBlocking(ctx context.Context, hallID string, date time.Time) ([]models.HallBooking, error)
}

// BookingSourceFunc adapts a function to BookingSource.
type BookingSourceFunc func(ctx context.Context, hallID string, date time.Time) ([]models.HallBooking, error)

// ListBlocking implements BookingSource.
func (f BookingSourceFunc) ListBlocking(ctx context.Context, hallID string, date time.Time) ([]models.HallBooking, error) {
	return f(ctx, hallID, date)
}

// CandidateHallIDs returns the preferred then backup hall of an event, without duplicates.
func CandidateHallIDs(event *models.Event) []string {
	ids := make([]string, 0, 2)
	if event.PreferredHallID != nil && *event.PreferredHallID != "" {
		ids = append(ids, *event.PreferredHallID)
	}
	if event.BackupHallID != nil && *event.BackupHallID != "" {
		if len(ids) == 0 || ids[0] != *event.BackupHallID {
			ids = append(ids, *event.BackupHallID)
		}
	}
	return ids
}

// ResolveHall walks candidates in order and returns the first one with no
// blocking booking overlapping the event window. It returns nil when every
// candidate is taken or there are no candidates.
func ResolveHall(ctx context.Context, src BookingSource, event *models.Event, candidates []models.Hall) (*models.Hall, error) {
	window := EventWindow(event)
	for i := range candidates {
		hall := candidates[i]
		bookings, err := src.ListBlocking(ctx, hall.ID, window.Date)
		if err != nil {
			return nil, fmt.Errorf("load bookings for hall %s: %w", hall.ID, err)
		}
		if len(window.Conflicts(bookings, "")) == 0 {
			return &hall, nil
		}
	}
	return nil, nil
}
