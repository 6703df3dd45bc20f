package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"ms-events/internal/models"
)

type MessageType string

const (
	EventCreated MessageType = "event.created"
	EventUpdated MessageType = "event.updated"
	EventDeleted MessageType = "event.deleted"
)

// EventMessage is the payload published after every successful mutation.
type EventMessage struct {
	Type       MessageType   `json:"type"`
	EventID    string        `json:"eventId"`
	Event      *models.Event `json:"event"`
	OccurredAt time.Time     `json:"occurredAt"`
}

func EncodeEventMessage(t MessageType, event *models.Event, at time.Time) ([]byte, error) {
	if event == nil {
		return nil, fmt.Errorf("encode %s: nil event", t)
	}
	return json.Marshal(EventMessage{
		Type:       t,
		EventID:    event.ID,
		Event:      event,
		OccurredAt: at,
	})
}

func DecodeEventMessage(data []byte) (EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return EventMessage{}, fmt.Errorf("decode event message: %w", err)
	}
	return msg, nil
}
