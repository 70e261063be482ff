package models

import (
	"time"

	"medstay/internal/daterange"
)

// BookingStatus is the lifecycle state of a booking
type BookingStatus string

const (
	StatusPending    BookingStatus = "pending"
	StatusConfirmed  BookingStatus = "confirmed"
	StatusCheckedIn  BookingStatus = "checked_in"
	StatusCheckedOut BookingStatus = "checked_out"
	StatusCancelled  BookingStatus = "cancelled"
)

// ActiveStatuses are the statuses whose bookings still occupy their dates.
var ActiveStatuses = []BookingStatus{StatusPending, StatusConfirmed, StatusCheckedIn}

// IsActive reports whether a booking in this status blocks its date range
func (s BookingStatus) IsActive() bool {
	for _, active := range ActiveStatuses {
		if s == active {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s BookingStatus) IsTerminal() bool {
	return s == StatusCheckedOut || s == StatusCancelled
}

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCheckedIn, StatusCheckedOut, StatusCancelled:
		return true
	}
	return false
}

// Property is the slice of a rental listing the booking engine reads
type Property struct {
	ID        int64     `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	BasePrice float64   `json:"base_price" db:"base_price"`
	MaxGuests int       `json:"max_guests" db:"max_guests"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Booking represents a stay reservation for a property
type Booking struct {
	ID              int64         `json:"id" db:"id"`
	PropertyID      int64         `json:"property_id" db:"property_id"`
	GuestID         string        `json:"guest_id" db:"guest_id"`
	CheckIn         time.Time     `json:"check_in" db:"check_in"`
	CheckOut        time.Time     `json:"check_out" db:"check_out"`
	GuestCount      int           `json:"guest_count" db:"guest_count"`
	TotalAmount     float64       `json:"total_amount" db:"total_amount"`
	Status          BookingStatus `json:"status" db:"status"`
	GuestName       string        `json:"guest_name" db:"guest_name"`
	GuestEmail      string        `json:"guest_email" db:"guest_email"`
	GuestPhone      *string       `json:"guest_phone,omitempty" db:"guest_phone"`
	Purpose         *string       `json:"purpose,omitempty" db:"purpose"`
	SpecialRequests *string       `json:"special_requests,omitempty" db:"special_requests"`
	IdempotencyKey  *string       `json:"-" db:"idempotency_key"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// Range returns the occupied nights [CheckIn, CheckOut)
func (b *Booking) Range() daterange.Range {
	return daterange.Range{Start: daterange.Day(b.CheckIn), End: daterange.Day(b.CheckOut)}
}

// CalendarAvailability is a per-date override of availability and price.
// One row per (property, date); a missing row means available at base price.
type CalendarAvailability struct {
	PropertyID  int64     `json:"property_id" db:"property_id"`
	Date        time.Time `json:"date" db:"date"`
	IsAvailable *bool     `json:"is_available,omitempty" db:"is_available"`
	CustomPrice *float64  `json:"custom_price,omitempty" db:"custom_price"`
	Notes       *string   `json:"notes,omitempty" db:"notes"`
	PatternID   *int64    `json:"pattern_id,omitempty" db:"pattern_id"`
	AppliedAt   time.Time `json:"applied_at" db:"applied_at"`
}

// HasCustomPrice reports whether the override sets a usable nightly price
func (a *CalendarAvailability) HasCustomPrice() bool {
	return a != nil && a.CustomPrice != nil && *a.CustomPrice > 0
}

// Available resolves the availability flag, defaulting to true
func (a *CalendarAvailability) Available() bool {
	if a == nil || a.IsAvailable == nil {
		return true
	}
	return *a.IsAvailable
}

// RecurringPattern generates overrides for matching weekdays in a date span
type RecurringPattern struct {
	ID            int64      `json:"id"`
	PropertyID    int64      `json:"property_id"`
	Name          string     `json:"name"`
	DaysOfWeek    []int      `json:"days_of_week"`
	StartDate     time.Time  `json:"start_date"`
	EndDate       time.Time  `json:"end_date"`
	IsAvailable   bool       `json:"is_available"`
	CustomPrice   *float64   `json:"custom_price,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastAppliedAt *time.Time `json:"last_applied_at,omitempty"`
}

// Span returns the inclusive [StartDate, EndDate] as a half-open range
func (p *RecurringPattern) Span() (daterange.Range, error) {
	return daterange.Inclusive(p.StartDate, p.EndDate)
}
