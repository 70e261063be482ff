package models

import "time"

// NATS Event Types
const (
	EventBookingCreated       = "booking.created"
	EventBookingUpdated       = "booking.updated"
	EventBookingStatusChanged = "booking.status_changed"
	EventBookingConfirmed     = "booking.confirmed"
	EventBookingCancelled     = "booking.cancelled"
	EventBookingDeleted       = "booking.deleted"
	EventAvailabilityChanged  = "availability.changed"
)

// BookingSubjects lists every booking lifecycle subject consumers listen on
var BookingSubjects = []string{
	EventBookingCreated,
	EventBookingUpdated,
	EventBookingStatusChanged,
	EventBookingConfirmed,
	EventBookingCancelled,
	EventBookingDeleted,
}

// BookingEvent carries a snapshot of the booking after the change
type BookingEvent struct {
	Type           string        `json:"type"`
	Booking        Booking       `json:"booking"`
	PreviousStatus BookingStatus `json:"previous_status,omitempty"`
	Reason         string        `json:"reason,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}

// AvailabilityChangedEvent is emitted after a batch of overrides is written
type AvailabilityChangedEvent struct {
	PropertyID int64     `json:"property_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Source     string    `json:"source"`
	Count      int       `json:"count"`
	Timestamp  time.Time `json:"timestamp"`
}
