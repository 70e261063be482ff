package repository

import (
	"context"
	"time"

	"medstay/internal/daterange"
	"medstay/internal/models"
)

// Lookups return (nil, nil) when the row does not exist.

type PropertyStore interface {
	GetByID(ctx context.Context, id int64) (*models.Property, error)
	List(ctx context.Context) ([]models.Property, error)
}

type BookingStore interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id int64) (*models.Booking, error)
	GetByIdempotencyKey(ctx context.Context, propertyID int64, key string) (*models.Booking, error)
	Update(ctx context.Context, booking *models.Booking) error
	Delete(ctx context.Context, id int64) error
	// FindOverlapping returns active bookings of the property sharing at least
	// one night with r. excludeID of 0 excludes nothing.
	FindOverlapping(ctx context.Context, propertyID int64, r daterange.Range, excludeID int64) ([]models.Booking, error)
	// ListByProperty returns bookings of any status overlapping r.
	ListByProperty(ctx context.Context, propertyID int64, r daterange.Range) ([]models.Booking, error)
	ListByGuest(ctx context.Context, guestID string) ([]models.Booking, error)
}

type AvailabilityStore interface {
	ListRange(ctx context.Context, propertyID int64, r daterange.Range) ([]models.CalendarAvailability, error)
	// UpsertMany replaces every column of the given rows in one batch.
	UpsertMany(ctx context.Context, rows []models.CalendarAvailability) error
	// UpsertPrices writes only custom_price and applied_at, leaving the
	// availability flag and notes of existing rows untouched.
	UpsertPrices(ctx context.Context, rows []models.CalendarAvailability) error
	// ClearPatternDates deletes rows on the given dates that the pattern
	// still owns, returning how many were removed.
	ClearPatternDates(ctx context.Context, propertyID, patternID int64, dates []time.Time) (int, error)
}

type PatternStore interface {
	Create(ctx context.Context, pattern *models.RecurringPattern) error
	GetByID(ctx context.Context, id int64) (*models.RecurringPattern, error)
	ListByProperty(ctx context.Context, propertyID int64) ([]models.RecurringPattern, error)
	Update(ctx context.Context, pattern *models.RecurringPattern) error
	Delete(ctx context.Context, id int64) error
	MarkApplied(ctx context.Context, id int64, at time.Time) error
}

// Store groups the repositories the booking engine persists through.
type Store interface {
	Properties() PropertyStore
	Bookings() BookingStore
	Availability() AvailabilityStore
	Patterns() PatternStore

	// LockProperty runs fn while holding the exclusive write lock of one
	// property. Every store access inside fn must go through tx so that the
	// conflict check and the write commit or roll back together.
	LockProperty(ctx context.Context, propertyID int64, fn func(ctx context.Context, tx Store) error) error
}
