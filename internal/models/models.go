package models

import (
	"fmt"
	"strings"
)

// FlexibleBool accepts true/false as JSON booleans, strings or numbers
type FlexibleBool bool

// UnmarshalJSON parses "true", "1", "yes", "on" and their negatives
func (fb *FlexibleBool) UnmarshalJSON(data []byte) error {
	str := string(data)
	str = strings.Trim(str, `"`)

	switch strings.ToLower(str) {
	case "true", "1", "yes", "on":
		*fb = true
	case "false", "0", "no", "off", "", "null":
		*fb = false
	default:
		return fmt.Errorf("invalid boolean value: %s", str)
	}
	return nil
}

// Bool returns the plain bool value
func (fb FlexibleBool) Bool() bool {
	return bool(fb)
}

// CreateBookingRequest - payload for POST /api/bookings
type CreateBookingRequest struct {
	PropertyID      int64   `json:"property_id" binding:"required"`
	GuestID         string  `json:"guest_id"`
	CheckIn         string  `json:"check_in" binding:"required"`
	CheckOut        string  `json:"check_out" binding:"required"`
	GuestCount      int     `json:"guest_count"`
	GuestName       string  `json:"guest_name" binding:"required"`
	GuestEmail      string  `json:"guest_email" binding:"required,email"`
	GuestPhone      *string `json:"guest_phone,omitempty"`
	Purpose         *string `json:"purpose,omitempty"`
	SpecialRequests *string `json:"special_requests,omitempty"`
	IdempotencyKey  string  `json:"idempotency_key,omitempty"`
}

// UpdateBookingRequest - partial update for PATCH /api/bookings/:id
type UpdateBookingRequest struct {
	CheckIn         *string `json:"check_in,omitempty"`
	CheckOut        *string `json:"check_out,omitempty"`
	GuestCount      *int    `json:"guest_count,omitempty"`
	GuestName       *string `json:"guest_name,omitempty"`
	GuestEmail      *string `json:"guest_email,omitempty" binding:"omitempty,email"`
	GuestPhone      *string `json:"guest_phone,omitempty"`
	Purpose         *string `json:"purpose,omitempty"`
	SpecialRequests *string `json:"special_requests,omitempty"`
}

// ChangesDates reports whether the patch touches the stay range
func (r *UpdateBookingRequest) ChangesDates() bool {
	return r.CheckIn != nil || r.CheckOut != nil
}

// CancelBookingRequest - payload for POST /api/bookings/:id/cancel
type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

// AvailabilityOverrideInput - one date of PUT /api/properties/:id/availability
type AvailabilityOverrideInput struct {
	Date        string   `json:"date" binding:"required"`
	IsAvailable *bool    `json:"is_available,omitempty"`
	CustomPrice *float64 `json:"custom_price,omitempty" binding:"omitempty,gt=0"`
	Notes       *string  `json:"notes,omitempty"`
}

// UpsertAvailabilityRequest - batch of explicit overrides
type UpsertAvailabilityRequest struct {
	Overrides []AvailabilityOverrideInput `json:"overrides" binding:"required,min=1,dive"`
}

// RecurringPatternRequest - create or replace a recurring pattern
type RecurringPatternRequest struct {
	Name        string       `json:"name" binding:"required"`
	DaysOfWeek  []int        `json:"days_of_week" binding:"required,min=1,weekdays"`
	StartDate   string       `json:"start_date" binding:"required"`
	EndDate     string       `json:"end_date" binding:"required"`
	IsAvailable *bool        `json:"is_available,omitempty"`
	CustomPrice *float64     `json:"custom_price,omitempty" binding:"omitempty,gt=0"`
	Notes       *string      `json:"notes,omitempty"`
	ClearStale  FlexibleBool `json:"clear_stale,omitempty"`
}

// DynamicPricingRequest - POST /api/properties/:id/dynamic-pricing
type DynamicPricingRequest struct {
	StartDate       string             `json:"start_date" binding:"required"`
	EndDate         string             `json:"end_date" binding:"required"`
	DemandFactor    *float64           `json:"demand_factor,omitempty"`
	SeasonalFactors map[string]float64 `json:"seasonal_factors,omitempty"`
	Apply           FlexibleBool       `json:"apply,omitempty"`
}

// DayView - calendar cell for one property and date
type DayView struct {
	Date           string  `json:"date"`
	IsBooked       bool    `json:"is_booked"`
	IsAvailable    bool    `json:"is_available"`
	Price          float64 `json:"price"`
	HasCustomPrice bool    `json:"has_custom_price"`
	BookingID      *int64  `json:"booking_id,omitempty"`
	Notes          *string `json:"notes,omitempty"`
}

// RangeView - ordered calendar cells for [From, To)
type RangeView struct {
	PropertyID int64     `json:"property_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Days       []DayView `json:"days"`
}

// MultiPropertyView - portfolio calendar keyed by property id
type MultiPropertyView map[int64]RangeView

// NightlyPrice - one resolved night of a quote
type NightlyPrice struct {
	Date   string  `json:"date"`
	Price  float64 `json:"price"`
	Custom bool    `json:"custom"`
}

// QuoteResponse - price preview for a stay
type QuoteResponse struct {
	PropertyID int64          `json:"property_id"`
	CheckIn    string         `json:"check_in"`
	CheckOut   string         `json:"check_out"`
	Nights     int            `json:"nights"`
	Nightly    []NightlyPrice `json:"nightly"`
	Total      float64        `json:"total"`
}

// PriceSuggestion - one generated dynamic price
type PriceSuggestion struct {
	Date           string  `json:"date"`
	Price          float64 `json:"price"`
	SeasonalFactor float64 `json:"seasonal_factor"`
	WeekendFactor  float64 `json:"weekend_factor"`
	DemandFactor   float64 `json:"demand_factor"`
}

// DynamicPricingResponse - generated prices and whether they were stored
type DynamicPricingResponse struct {
	PropertyID  int64             `json:"property_id"`
	Suggestions []PriceSuggestion `json:"suggestions"`
	Applied     bool              `json:"applied"`
}

// ApplyPatternResponse - result of materializing a pattern
type ApplyPatternResponse struct {
	Pattern      RecurringPattern `json:"pattern"`
	DatesWritten int              `json:"dates_written"`
	DatesCleared int              `json:"dates_cleared"`
}
