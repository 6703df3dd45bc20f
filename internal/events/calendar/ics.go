// Package calendar exports events as iCalendar documents.
package calendar

import (
	"bytes"
	"fmt"
	"time"

	"github.com/emersion/go-ical"
	"github.com/gosimple/slug"

	"ms-events/internal/events/qr"
	"ms-events/internal/models"
)

const productID = "-//ms-events//Events Service//EN"

// ICS renders event as a single-event VCALENDAR. stamp becomes DTSTAMP.
func ICS(publicURL string, event models.Event, stamp time.Time) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, event.ID+"@ms-events")
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	vevent.Props.SetDateTime(ical.PropDateTimeStart, event.Date.UTC())
	vevent.Props.SetDateTime(ical.PropLastModified, event.UpdatedAt.UTC())
	vevent.Props.SetText(ical.PropSummary, event.Name)
	vevent.Props.SetText(ical.PropDescription, event.Description)
	vevent.Props.SetText(ical.PropURL, qr.ShareTarget(publicURL, event))

	if where := location(event); where != "" {
		vevent.Props.SetText(ical.PropLocation, where)
	}
	if event.IsCancelled {
		vevent.Props.SetText(ical.PropStatus, "CANCELLED")
	} else {
		vevent.Props.SetText(ical.PropStatus, "CONFIRMED")
	}

	cal.Children = append(cal.Children, vevent.Component)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode ics for event %s: %w", event.ID, err)
	}
	return buf.Bytes(), nil
}

// Filename builds a download name such as "summer-fest.ics".
func Filename(event models.Event, ext string) string {
	name := slug.Make(event.Name)
	if name == "" {
		name = event.ID
	}
	return name + ext
}

func location(event models.Event) string {
	if event.Mode() == models.ModeOnline {
		if event.MeetingURL != nil {
			return *event.MeetingURL
		}
		return "Online"
	}
	if event.Venue != nil && *event.Venue != "" {
		return *event.Venue + ", " + event.Location
	}
	return event.Location
}
