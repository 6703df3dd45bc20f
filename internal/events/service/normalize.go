package events

import (
	"time"

	"github.com/shopspring/decimal"

	"ms-events/internal/events/schema"
	"ms-events/internal/models"
)

// NormalizeCreate turns a validated create payload into store fields. Empty
// optional values become NULL, missing flags become false, and price is only
// kept for paid events.
func NormalizeCreate(in models.EventInput) (models.EventFields, error) {
	date, err := parseDate(in.Date)
	if err != nil {
		return models.EventFields{}, err
	}

	isPaid, _ := in.IsPaid.Get()
	fields := models.EventFields{
		Name:        models.Some(in.Name.Value),
		Description: models.Some(in.Description.Value),
		BannerImage: emptyAsNull(in.BannerImage),
		Location:    models.Some(in.Location.Value),
		IsOnline:    flag(in.IsOnline),
		MeetingURL:  emptyAsNull(in.MeetingURL),
		Venue:       emptyAsNull(in.Venue),
		Capacity:    capacity(in.Capacity),
		IsPaid:      models.Some(isPaid),
		Price:       models.Null[decimal.Decimal](),
		Date:        models.Some(date),
		IsCancelled: flag(in.IsCancelled),
	}
	if isPaid {
		fields.Price = price(in.Price)
	}
	return fields, nil
}

// NormalizeUpdate applies the same coercions to the fields present in a
// partial update; absent fields stay unset.
func NormalizeUpdate(in models.EventInput) (models.EventFields, error) {
	var fields models.EventFields

	if in.Name.Set {
		fields.Name = models.Some(in.Name.Value)
	}
	if in.Description.Set {
		fields.Description = models.Some(in.Description.Value)
	}
	if in.BannerImage.Set {
		fields.BannerImage = emptyAsNull(in.BannerImage)
	}
	if in.Location.Set {
		fields.Location = models.Some(in.Location.Value)
	}
	if in.IsOnline.Set {
		fields.IsOnline = flag(in.IsOnline)
	}
	if in.MeetingURL.Set {
		fields.MeetingURL = emptyAsNull(in.MeetingURL)
	}
	if in.Venue.Set {
		fields.Venue = emptyAsNull(in.Venue)
	}
	if in.Capacity.Set {
		fields.Capacity = capacity(in.Capacity)
	}
	if in.IsPaid.Set {
		fields.IsPaid = flag(in.IsPaid)
	}
	if in.Price.Set {
		fields.Price = price(in.Price)
	}
	if paid, ok := fields.IsPaid.Get(); ok && !paid {
		fields.Price = models.Null[decimal.Decimal]()
	}
	if in.Date.Set {
		date, err := parseDate(in.Date)
		if err != nil {
			return models.EventFields{}, err
		}
		fields.Date = models.Some(date)
	}
	if in.IsCancelled.Set {
		fields.IsCancelled = flag(in.IsCancelled)
	}
	return fields, nil
}

func emptyAsNull(o models.Optional[string]) models.Optional[string] {
	if v, ok := o.Get(); ok && v != "" {
		return models.Some(v)
	}
	return models.Null[string]()
}

func flag(o models.Optional[bool]) models.Optional[bool] {
	v, _ := o.Get()
	return models.Some(v)
}

// capacity maps out-of-range values to -1, which the store rejects.
func capacity(o models.Optional[float64]) models.Optional[int] {
	v, ok := o.Get()
	if !ok || v == 0 {
		return models.Null[int]()
	}
	if v < 0 || v > schema.MaxCapacity {
		return models.Some(-1)
	}
	return models.Some(int(v))
}

func price(o models.Optional[float64]) models.Optional[decimal.Decimal] {
	if v, ok := o.Get(); ok && v != 0 {
		return models.Some(decimal.NewFromFloat(v).Round(2))
	}
	return models.Null[decimal.Decimal]()
}

func parseDate(o models.Optional[string]) (time.Time, error) {
	v, _ := o.Get()
	t, err := schema.ParseDate(v)
	if err != nil {
		return time.Time{}, schema.FieldErrors{"date": "Invalid date"}
	}
	return t, nil
}
