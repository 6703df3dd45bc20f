// Package schema holds the single validation schema for event input. The API
// service and the client both run it, so a form that passes locally is shaped
// the way the server expects.
package schema

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"ms-events/internal/models"
)

// MaxCapacity is the largest capacity the INTEGER column holds.
const MaxCapacity = math.MaxInt32

// FieldErrors maps a JSON field name to its first failing rule.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, fe[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// add keeps the first error per field.
func (fe FieldErrors) add(field, msg string) {
	if _, exists := fe[field]; !exists {
		fe[field] = msg
	}
}

// AsFieldErrors unwraps err into FieldErrors.
func AsFieldErrors(err error) (FieldErrors, bool) {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// eventForm is the flattened shape the validator runs on.
type eventForm struct {
	Name        string   `json:"name" validate:"required,max=255"`
	Description string   `json:"description" validate:"required"`
	BannerImage string   `json:"bannerImage" validate:"omitempty,url,max=255"`
	Location    string   `json:"location" validate:"required_if=IsOnline false,max=255"`
	IsOnline    bool     `json:"isOnline"`
	MeetingURL  string   `json:"meetingUrl" validate:"omitempty,url,max=255"`
	Venue       string   `json:"venue" validate:"omitempty,max=255"`
	Capacity    *float64 `json:"capacity"`
	IsPaid      bool     `json:"isPaid"`
	Price       *float64 `json:"price"`
	Date        string   `json:"date" validate:"required"`
}

var messages = map[string]map[string]string{
	"name": {
		"required": "Event name is required",
		"max":      "Event name is too long",
	},
	"description": {"required": "Description is required"},
	"bannerImage": {"url": "Invalid URL", "max": "URL is too long"},
	"location": {
		"required_if": "Location is required",
		"max":         "Location is too long",
	},
	"meetingUrl": {"url": "Invalid URL", "max": "URL is too long"},
	"venue":      {"max": "Venue name is too long"},
	"capacity": {
		"gt":    "Capacity must be a positive number",
		"whole": "Capacity must be a whole number",
		"lte":   "Capacity is too large",
	},
	"price": {"gte": "Price must be non-negative"},
	"date":  {"required": "Date is required", "layout": "Invalid date"},
}

// Schema wraps a configured validator instance.
type Schema struct {
	validate *validator.Validate
}

func New() *Schema {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("whole", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return f == math.Trunc(f)
	})
	return &Schema{validate: v}
}

var defaultSchema = New()

// ValidateCreate checks a full create payload.
func ValidateCreate(in models.EventInput) error {
	return defaultSchema.ValidateCreate(in)
}

// ValidateUpdate checks only the fields present in a partial update.
func ValidateUpdate(in models.EventInput) error {
	return defaultSchema.ValidateUpdate(in)
}

func (s *Schema) ValidateCreate(in models.EventInput) error {
	return s.run(in, nil)
}

func (s *Schema) ValidateUpdate(in models.EventInput) error {
	return s.run(in, presentFields(in))
}

// run validates the form; when only is non-nil, errors for other fields are
// dropped.
func (s *Schema) run(in models.EventInput, only map[string]bool) error {
	form := toForm(in)
	errs := FieldErrors{}

	keep := func(field string) bool {
		return only == nil || only[field]
	}

	if err := s.validate.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validator: %w", err)
		}
		for _, fe := range verrs {
			// Without isOnline in a partial update the mode is unknown here;
			// the store checks location against the merged row.
			if only != nil && !only["isOnline"] && fe.Field() == "location" && fe.Tag() == "required_if" {
				continue
			}
			if keep(fe.Field()) {
				errs.add(fe.Field(), message(fe.Field(), fe.Tag()))
			}
		}
	}

	if form.Capacity != nil && keep("capacity") {
		if err := s.validate.Var(*form.Capacity, fmt.Sprintf("gt=0,whole,lte=%d", MaxCapacity)); err != nil {
			errs.add("capacity", firstMessage("capacity", err))
		}
	}
	if form.Price != nil && keep("price") {
		if err := s.validate.Var(*form.Price, "gte=0"); err != nil {
			errs.add("price", firstMessage("price", err))
		}
	}

	if form.Date != "" && keep("date") {
		if _, err := ParseDate(form.Date); err != nil {
			errs.add("date", message("date", "layout"))
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func toForm(in models.EventInput) eventForm {
	form := eventForm{
		Name:        in.Name.Value,
		Description: in.Description.Value,
		BannerImage: in.BannerImage.Value,
		Location:    in.Location.Value,
		IsOnline:    in.IsOnline.Value,
		MeetingURL:  in.MeetingURL.Value,
		Venue:       in.Venue.Value,
		IsPaid:      in.IsPaid.Value,
		Date:        in.Date.Value,
	}
	if v, ok := in.Capacity.Get(); ok {
		form.Capacity = &v
	}
	if v, ok := in.Price.Get(); ok {
		form.Price = &v
	}
	return form
}

func presentFields(in models.EventInput) map[string]bool {
	return map[string]bool{
		"name":        in.Name.Set,
		"description": in.Description.Set,
		"bannerImage": in.BannerImage.Set,
		"location":    in.Location.Set,
		"isOnline":    in.IsOnline.Set,
		"meetingUrl":  in.MeetingURL.Set,
		"venue":       in.Venue.Set,
		"capacity":    in.Capacity.Set,
		"isPaid":      in.IsPaid.Set,
		"price":       in.Price.Set,
		"date":        in.Date.Set,
	}
}

func message(field, tag string) string {
	if msg, ok := messages[field][tag]; ok {
		return msg
	}
	return fmt.Sprintf("Invalid %s", field)
}

func firstMessage(field string, err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return message(field, verrs[0].Tag())
	}
	return message(field, "")
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate accepts ISO-8601 timestamps, HTML datetime-local values and plain
// dates. Values without a zone are read as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
