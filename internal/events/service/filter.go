package events

import (
	"strings"

	"ms-events/internal/models"
)

// FilterEvents keeps events whose name, location or venue contains query,
// ignoring case. An empty query keeps everything.
func FilterEvents(events []models.Event, query string) []models.Event {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return events
	}

	out := make([]models.Event, 0, len(events))
	for _, ev := range events {
		if matches(ev, query) {
			out = append(out, ev)
		}
	}
	return out
}

func matches(ev models.Event, query string) bool {
	if strings.Contains(strings.ToLower(ev.Name), query) ||
		strings.Contains(strings.ToLower(ev.Location), query) {
		return true
	}
	return ev.Venue != nil && strings.Contains(strings.ToLower(*ev.Venue), query)
}
