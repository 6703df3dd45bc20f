package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Event is the persisted record. Nullable columns are pointers; price is a
// decimal so it serializes as a string.
type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID          string           `bun:"id,pk,type:uuid" json:"id"`
	Name        string           `bun:"name,type:varchar(255),notnull" json:"name"`
	Description string           `bun:"description,type:text,notnull" json:"description"`
	BannerImage *string          `bun:"banner_image,type:varchar(255)" json:"bannerImage"`
	Location    string           `bun:"location,type:varchar(255),notnull" json:"location"`
	IsOnline    bool             `bun:"is_online,notnull" json:"isOnline"`
	MeetingURL  *string          `bun:"meeting_url,type:varchar(255)" json:"meetingUrl"`
	Venue       *string          `bun:"venue,type:varchar(255)" json:"venue"`
	Capacity    *int             `bun:"capacity" json:"capacity"`
	IsPaid      bool             `bun:"is_paid,notnull" json:"isPaid"`
	Price       *decimal.Decimal `bun:"price,type:decimal(10,2)" json:"price"`
	Date        time.Time        `bun:"date,notnull" json:"date"`
	IsCancelled bool             `bun:"is_cancelled,notnull" json:"isCancelled"`
	CreatedAt   time.Time        `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt   time.Time        `bun:"updated_at,notnull" json:"updatedAt"`
}

type EventMode string

const (
	ModePhysical EventMode = "physical"
	ModeOnline   EventMode = "online"
)

// Mode reports which location fields are active. Both sets may be stored.
func (e Event) Mode() EventMode {
	if e.IsOnline {
		return ModeOnline
	}
	return ModePhysical
}

type EventStatus string

const (
	StatusUpcoming  EventStatus = "Upcoming"
	StatusCompleted EventStatus = "Completed"
	StatusCancelled EventStatus = "Cancelled"
)

// EventInput is the request body for create (POST) and update (PUT). Every
// field tracks presence; create requires the mandatory ones.
type EventInput struct {
	Name        Optional[string]  `json:"name,omitzero"`
	Description Optional[string]  `json:"description,omitzero"`
	BannerImage Optional[string]  `json:"bannerImage,omitzero"`
	Location    Optional[string]  `json:"location,omitzero"`
	IsOnline    Optional[bool]    `json:"isOnline,omitzero"`
	MeetingURL  Optional[string]  `json:"meetingUrl,omitzero"`
	Venue       Optional[string]  `json:"venue,omitzero"`
	Capacity    Optional[float64] `json:"capacity,omitzero"`
	IsPaid      Optional[bool]    `json:"isPaid,omitzero"`
	Price       Optional[float64] `json:"price,omitzero"`
	Date        Optional[string]  `json:"date,omitzero"`
	IsCancelled Optional[bool]    `json:"isCancelled,omitzero"`
}

// EventFields is the normalized, typed column set handed to the store.
// A Set field is written; Null writes SQL NULL.
type EventFields struct {
	Name        Optional[string]
	Description Optional[string]
	BannerImage Optional[string]
	Location    Optional[string]
	IsOnline    Optional[bool]
	MeetingURL  Optional[string]
	Venue       Optional[string]
	Capacity    Optional[int]
	IsPaid      Optional[bool]
	Price       Optional[decimal.Decimal]
	Date        Optional[time.Time]
	IsCancelled Optional[bool]
}

// ApplyTo copies every set field onto e and returns the touched columns.
func (f EventFields) ApplyTo(e *Event) []string {
	var cols []string

	if f.Name.Set {
		e.Name = f.Name.Value
		cols = append(cols, "name")
	}
	if f.Description.Set {
		e.Description = f.Description.Value
		cols = append(cols, "description")
	}
	if f.BannerImage.Set {
		e.BannerImage = nullableString(f.BannerImage)
		cols = append(cols, "banner_image")
	}
	if f.Location.Set {
		e.Location = f.Location.Value
		cols = append(cols, "location")
	}
	if f.IsOnline.Set {
		e.IsOnline = f.IsOnline.Value
		cols = append(cols, "is_online")
	}
	if f.MeetingURL.Set {
		e.MeetingURL = nullableString(f.MeetingURL)
		cols = append(cols, "meeting_url")
	}
	if f.Venue.Set {
		e.Venue = nullableString(f.Venue)
		cols = append(cols, "venue")
	}
	if f.Capacity.Set {
		e.Capacity = nil
		if v, ok := f.Capacity.Get(); ok {
			e.Capacity = IntPtr(v)
		}
		cols = append(cols, "capacity")
	}
	if f.IsPaid.Set {
		e.IsPaid = f.IsPaid.Value
		cols = append(cols, "is_paid")
	}
	if f.Price.Set {
		e.Price = nil
		if v, ok := f.Price.Get(); ok {
			e.Price = &v
		}
		cols = append(cols, "price")
	}
	if f.Date.Set {
		e.Date = f.Date.Value
		cols = append(cols, "date")
	}
	if f.IsCancelled.Set {
		e.IsCancelled = f.IsCancelled.Value
		cols = append(cols, "is_cancelled")
	}

	return cols
}

func nullableString(o Optional[string]) *string {
	if v, ok := o.Get(); ok {
		return StringPtr(v)
	}
	return nil
}

// StringPtr is a convenience for building events in code and tests.
func StringPtr(s string) *string {
	return &s
}

func IntPtr(i int) *int {
	return &i
}
