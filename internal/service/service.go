package service

import (
	"medstay/internal/repository"
)

type Services struct {
	Bookings       *BookingService
	Conflicts      *ConflictChecker
	Pricing        *PricingService
	Availability   *AvailabilityService
	Patterns       *PatternService
	DynamicPricing *DynamicPricingService
	Calendar       *CalendarService
}

// NewServices wires the engine. publisher and cache may be nil.
func NewServices(store repository.Store, publisher EventPublisher, cache CalendarCache, calendarConcurrency int) *Services {
	if publisher == nil {
		publisher = NoopPublisher()
	}
	return &Services{
		Bookings:       NewBookingService(store, publisher, cache),
		Conflicts:      NewConflictChecker(store),
		Pricing:        NewPricingService(store),
		Availability:   NewAvailabilityService(store, publisher, cache),
		Patterns:       NewPatternService(store, publisher, cache),
		DynamicPricing: NewDynamicPricingService(store, publisher, cache),
		Calendar:       NewCalendarService(store, cache, calendarConcurrency),
	}
}
