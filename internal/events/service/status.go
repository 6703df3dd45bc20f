package events

import (
	"context"
	"time"

	"ms-events/internal/models"
)

// DeriveStatus classifies an event at now. Cancelled wins; otherwise a date
// strictly before now is Completed and anything else Upcoming.
func DeriveStatus(event models.Event, now time.Time) models.EventStatus {
	if event.IsCancelled {
		return models.StatusCancelled
	}
	if event.Date.Before(now) {
		return models.StatusCompleted
	}
	return models.StatusUpcoming
}

type Stats struct {
	Total     int `json:"total"`
	Upcoming  int `json:"upcoming"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
}

func CountStatuses(events []models.Event, now time.Time) Stats {
	stats := Stats{Total: len(events)}
	for _, ev := range events {
		switch DeriveStatus(ev, now) {
		case models.StatusCancelled:
			stats.Cancelled++
		case models.StatusCompleted:
			stats.Completed++
		default:
			stats.Upcoming++
		}
	}
	return stats
}

// Stats summarizes the collection by derived status.
func (s *EventService) Stats(ctx context.Context) (Stats, error) {
	events, err := s.ListEvents(ctx)
	if err != nil {
		return Stats{}, err
	}
	return CountStatuses(events, s.Clock.Now()), nil
}
