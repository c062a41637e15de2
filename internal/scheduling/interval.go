// Package scheduling holds the pure rules behind hall bookings and the event
// lifecycle. Nothing in here touches storage or reads the wall clock.
package scheduling

import (
	"time"

	"github.com/noah-isme/certifytrack-api/internal/models"
)

// IntervalsOverlap reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// Intervals that only touch at a boundary do not overlap.
func IntervalsOverlap(aStart, aEnd, bStart, bEnd models.TimeOfDay) bool {
	return aStart < bEnd && bStart < aEnd
}

// Window is a requested occupation of a hall on one date.
type Window struct {
	Date  time.Time
	Start models.TimeOfDay
	End   models.TimeOfDay
}

// NewWindow normalises date to a calendar day.
func NewWindow(date time.Time, start, end models.TimeOfDay) Window {
	return Window{Date: models.DateOf(date), Start: start, End: end}
}

// EventWindow derives the booking window of an event. A missing or earlier
// end time collapses the window onto the start time.
func EventWindow(event *models.Event) Window {
	end := event.StartTime
	if event.EndTime != nil && *event.EndTime > end {
		end = *event.EndTime
	}
	return NewWindow(event.EventDate, event.StartTime, end)
}

// Overlaps reports whether booking occupies any part of w.
func (w Window) Overlaps(booking models.HallBooking) bool {
	if !booking.Status.Blocking() {
		return false
	}
	if !models.DateOf(booking.BookingDate).Equal(w.Date) {
		return false
	}
	return IntervalsOverlap(w.Start, w.End, booking.StartTime, booking.EndTime)
}

// Conflicts returns the bookings that block w, skipping excludeID.
func (w Window) Conflicts(bookings []models.HallBooking, excludeID string) []models.HallBooking {
	var out []models.HallBooking
	for _, b := range bookings {
		if excludeID != "" && b.ID == excludeID {
			continue
		}
		if w.Overlaps(b) {
			out = append(out, b)
		}
	}
	return out
}
