package scheduling

import (
	"time"

	"github.com/noah-isme/certifytrack-api/internal/models"
)

// AdvanceStatus evaluates the automatic lifecycle rules for event at now and
// returns every hop it makes, in order. now must already be in the campus
// time zone. Rules run draft, then scheduled, then ongoing against a working
// copy of the status, so a stale event can move several steps in one call.
// Terminal and unknown states yield no hops.
func AdvanceStatus(event models.Event, now time.Time) []models.StatusTransition {
	today := models.DateOf(now)
	clock := models.TimeOfDayOf(now)
	eventDate := models.DateOf(event.EventDate)

	var hops []models.StatusTransition
	status := event.Status
	move := func(to models.EventStatus) {
		hops = append(hops, models.StatusTransition{
			EventID:   event.ID,
			EventName: event.Name,
			From:      status,
			To:        to,
		})
		status = to
	}

	if status == models.EventStatusDraft && !eventDate.After(today) {
		move(models.EventStatusScheduled)
	}

	if status == models.EventStatusScheduled {
		lastDay := eventDate
		if event.EndDate != nil {
			lastDay = models.DateOf(*event.EndDate)
		}
		inRange := !today.Before(eventDate) && !today.After(lastDay)
		if inRange && clock >= event.StartTime {
			singleDay := event.EndDate == nil
			if singleDay && event.EndTime != nil && clock >= *event.EndTime {
				move(models.EventStatusCompleted)
			} else {
				move(models.EventStatusOngoing)
			}
		}
	}

	if status == models.EventStatusOngoing && ongoingFinished(event, eventDate, today, clock) {
		move(models.EventStatusCompleted)
	}

	return hops
}

func ongoingFinished(event models.Event, eventDate, today time.Time, clock models.TimeOfDay) bool {
	if event.EndDate != nil {
		endDate := models.DateOf(*event.EndDate)
		if today.After(endDate) {
			return true
		}
		return today.Equal(endDate) && event.EndTime != nil && clock >= *event.EndTime
	}
	return today.Equal(eventDate) && event.EndTime != nil && clock >= *event.EndTime
}

// CanTransition reports whether a manual status change is allowed. Moves are
// forward only; cancellation is allowed from any non-terminal state.
func CanTransition(from, to models.EventStatus) bool {
	if from.Terminal() || from == to {
		return false
	}
	if to == models.EventStatusCancelled {
		return true
	}
	return rank(to) > rank(from)
}

func rank(s models.EventStatus) int {
	switch s {
	case models.EventStatusDraft:
		return 0
	case models.EventStatusScheduled:
		return 1
	case models.EventStatusOngoing:
		return 2
	case models.EventStatusCompleted:
		return 3
	}
	return -1
}
