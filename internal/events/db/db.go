package db

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"ms-events/internal/models"
	"ms-events/internal/utils"
)

const (
	maxVarchar  = 255
	maxCapacity = math.MaxInt32
)

// decimal(10,2) holds at most 8 integer digits.
var maxPrice = decimal.New(1, 8)

type DB struct {
	Bun   *bun.DB
	Clock utils.Clock
}

func New(bunDB *bun.DB, clock utils.Clock) *DB {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &DB{Bun: bunDB, Clock: clock}
}

func (d *DB) now() time.Time {
	if d.Clock == nil {
		return time.Now().UTC()
	}
	return d.Clock.Now()
}

// Create inserts a new event with a fresh id and equal created/updated stamps.
func (d *DB) Create(ctx context.Context, fields models.EventFields) (*models.Event, error) {
	if err := checkRequired(fields); err != nil {
		return nil, err
	}
	if err := checkColumns(fields); err != nil {
		return nil, err
	}

	now := d.now()
	event := models.Event{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	fields.ApplyTo(&event)

	if _, err := d.Bun.NewInsert().Model(&event).Exec(ctx); err != nil {
		return nil, classify("insert event", err)
	}
	return &event, nil
}

// GetByID returns ErrNotFound for unknown or malformed ids.
func (d *DB) GetByID(ctx context.Context, id string) (*models.Event, error) {
	return getByID(ctx, d.Bun, id)
}

func getByID(ctx context.Context, q bun.IDB, id string) (*models.Event, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	var event models.Event
	err := q.NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, transport("select event", err)
	}
	return &event, nil
}

// ListAll returns every event; an empty table yields an empty slice.
func (d *DB) ListAll(ctx context.Context) ([]models.Event, error) {
	events := make([]models.Event, 0)
	err := d.Bun.NewSelect().
		Model(&events).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, transport("list events", err)
	}
	return events, nil
}

// UpdateByID writes only the set fields and always refreshes updated_at.
func (d *DB) UpdateByID(ctx context.Context, id string, fields models.EventFields) (*models.Event, error) {
	if err := checkColumns(fields); err != nil {
		return nil, err
	}

	var updated *models.Event
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		event, err := getByID(ctx, tx, id)
		if err != nil {
			return err
		}

		cols := fields.ApplyTo(event)
		if event.Location == "" && !event.IsOnline {
			return violation("location", "required for in-person events")
		}

		now := d.now()
		if !now.After(event.UpdatedAt) {
			now = event.UpdatedAt.Add(time.Microsecond)
		}
		event.UpdatedAt = now
		cols = append(cols, "updated_at")

		if _, err := tx.NewUpdate().
			Model(event).
			Column(cols...).
			WherePK().
			Exec(ctx); err != nil {
			return classify("update event", err)
		}
		updated = event
		return nil
	})
	if err != nil {
		return nil, tagged("update event", err)
	}
	return updated, nil
}

// DeleteByID removes the row and returns what was deleted.
func (d *DB) DeleteByID(ctx context.Context, id string) (*models.Event, error) {
	var deleted *models.Event
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		event, err := getByID(ctx, tx, id)
		if err != nil {
			return err
		}

		if _, err := tx.NewDelete().
			Model((*models.Event)(nil)).
			Where("id = ?", id).
			Exec(ctx); err != nil {
			return transport("delete event", err)
		}
		deleted = event
		return nil
	})
	if err != nil {
		return nil, tagged("delete event", err)
	}
	return deleted, nil
}

func (d *DB) Ping(ctx context.Context) error {
	return d.Bun.PingContext(ctx)
}

func checkRequired(f models.EventFields) error {
	if !f.Name.Set {
		return violation("name", "required")
	}
	if !f.Description.Set {
		return violation("description", "required")
	}
	if !f.Date.Set {
		return violation("date", "required")
	}
	if !f.Location.Set {
		return violation("location", "required")
	}
	online, _ := f.IsOnline.Get()
	if loc, _ := f.Location.Get(); loc == "" && !online {
		return violation("location", "required for in-person events")
	}
	return nil
}

type stringColumn struct {
	field string
	value models.Optional[string]
}

type boolColumn struct {
	field string
	value models.Optional[bool]
}

func checkColumns(f models.EventFields) error {
	for _, c := range []stringColumn{
		{"name", f.Name},
		{"description", f.Description},
		{"location", f.Location},
	} {
		if c.value.Set && c.value.Null {
			return violation(c.field, "must not be null")
		}
	}
	for _, c := range []boolColumn{
		{"isOnline", f.IsOnline},
		{"isPaid", f.IsPaid},
		{"isCancelled", f.IsCancelled},
	} {
		if c.value.Set && c.value.Null {
			return violation(c.field, "must not be null")
		}
	}
	if f.Date.Set && (f.Date.Null || f.Date.Value.IsZero()) {
		return violation("date", "must be a valid timestamp")
	}

	if v, ok := f.Name.Get(); ok && v == "" {
		return violation("name", "must not be empty")
	}
	if v, ok := f.Description.Get(); ok && v == "" {
		return violation("description", "must not be empty")
	}

	for _, c := range []stringColumn{
		{"name", f.Name},
		{"location", f.Location},
		{"bannerImage", f.BannerImage},
		{"meetingUrl", f.MeetingURL},
		{"venue", f.Venue},
	} {
		if v, ok := c.value.Get(); ok && utf8.RuneCountInString(v) > maxVarchar {
			return violation(c.field, "longer than 255 characters")
		}
	}

	if v, ok := f.Capacity.Get(); ok && (v <= 0 || v > maxCapacity) {
		return violation("capacity", "must be between 1 and 2147483647")
	}
	if v, ok := f.Price.Get(); ok && v.Abs().GreaterThanOrEqual(maxPrice) {
		return violation("price", "exceeds decimal(10,2)")
	}
	return nil
}

// classify maps postgres integrity errors (class 23) to ConstraintViolation.
func classify(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "23" {
		field := pqErr.Column
		if field == "" {
			field = pqErr.Constraint
		}
		return violation(field, pqErr.Message)
	}
	return transport(op, err)
}

// tagged leaves store errors alone and wraps anything else, such as a failed
// BEGIN or COMMIT, as a TransportFailure.
func tagged(op string, err error) error {
	var cv *ConstraintViolation
	var tf *TransportFailure
	if errors.Is(err, ErrNotFound) || errors.As(err, &cv) || errors.As(err, &tf) {
		return err
	}
	return transport(op, err)
}
