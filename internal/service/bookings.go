package service

import (
	"context"
	"strings"
	"time"

	"medstay/internal/daterange"
	apperrors "medstay/internal/errors"
	"medstay/internal/logger"
	"medstay/internal/metrics"
	"medstay/internal/models"
	"medstay/internal/repository"
)

type BookingService struct {
	store     repository.Store
	publisher EventPublisher
	cache     CalendarCache
}

func NewBookingService(store repository.Store, publisher EventPublisher, cache CalendarCache) *BookingService {
	if publisher == nil {
		publisher = NoopPublisher()
	}
	return &BookingService{
		store:     store,
		publisher: publisher,
		cache:     cache,
	}
}

func (s *BookingService) Create(ctx context.Context, req *models.CreateBookingRequest) (booking *models.Booking, err error) {
	defer func() { record("create", err) }()

	checkIn, checkOut, err := parseStay(req.CheckIn, req.CheckOut)
	if err != nil {
		return nil, err
	}
	r, err := stayRange(checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.GuestID) == "" {
		return nil, apperrors.Validation("guest_id is required")
	}
	if strings.TrimSpace(req.GuestName) == "" || strings.TrimSpace(req.GuestEmail) == "" {
		return nil, apperrors.Validation("guest_name and guest_email are required")
	}

	property, err := getProperty(ctx, s.store, req.PropertyID)
	if err != nil {
		return nil, err
	}
	if err := validateGuestCount(req.GuestCount, property); err != nil {
		return nil, err
	}

	var replayed bool
	err = s.store.LockProperty(ctx, property.ID, func(ctx context.Context, tx repository.Store) error {
		if req.IdempotencyKey != "" {
			existing, err := tx.Bookings().GetByIdempotencyKey(ctx, property.ID, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if existing != nil {
				booking, replayed = existing, true
				return nil
			}
		}

		conflict, err := hasConflict(ctx, tx, property.ID, r, 0)
		if err != nil {
			return err
		}
		if conflict {
			metrics.BookingConflicts.Inc()
			return apperrors.Conflict("property %d is already booked for some nights in %s", property.ID, r)
		}

		_, total, err := priceRange(ctx, tx, property, r)
		if err != nil {
			return err
		}

		b := &models.Booking{
			PropertyID:      property.ID,
			GuestID:         req.GuestID,
			CheckIn:         r.Start,
			CheckOut:        r.End,
			GuestCount:      req.GuestCount,
			TotalAmount:     total,
			Status:          models.StatusPending,
			GuestName:       strings.TrimSpace(req.GuestName),
			GuestEmail:      strings.TrimSpace(req.GuestEmail),
			GuestPhone:      req.GuestPhone,
			Purpose:         req.Purpose,
			SpecialRequests: req.SpecialRequests,
		}
		if req.IdempotencyKey != "" {
			key := req.IdempotencyKey
			b.IdempotencyKey = &key
		}
		if err := tx.Bookings().Create(ctx, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, apperrors.Persistence("create booking", err)
	}

	log := logger.WithContext(ctx)
	if replayed {
		log.Info("Booking create replayed by idempotency key",
			"booking_id", booking.ID, "property_id", booking.PropertyID)
		return booking, nil
	}

	invalidate(ctx, s.cache, property.ID)
	s.publishBooking(ctx, models.EventBookingCreated, booking, "", "")
	log.Info("Booking created",
		"booking_id", booking.ID,
		"property_id", booking.PropertyID,
		"check_in", daterange.Format(booking.CheckIn),
		"check_out", daterange.Format(booking.CheckOut),
		"total_amount", booking.TotalAmount)

	return booking, nil
}

// Update patches a pending or confirmed booking. Dates may only move while
// the booking is pending; the total is fixed once confirmed. Nothing is
// written unless every check passes.
func (s *BookingService) Update(ctx context.Context, id int64, req *models.UpdateBookingRequest) (booking *models.Booking, err error) {
	defer func() { record("update", err) }()

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.store.LockProperty(ctx, current.PropertyID, func(ctx context.Context, tx repository.Store) error {
		existing, err := getBooking(ctx, tx, id)
		if err != nil {
			return err
		}
		if !editable(existing.Status) {
			return apperrors.InvalidTransition("booking %d is %s and can no longer be edited", id, existing.Status)
		}

		updated := *existing
		property, err := getProperty(ctx, tx, existing.PropertyID)
		if err != nil {
			return err
		}

		if req.ChangesDates() {
			checkIn, checkOut := daterange.Format(existing.CheckIn), daterange.Format(existing.CheckOut)
			if req.CheckIn != nil {
				checkIn = *req.CheckIn
			}
			if req.CheckOut != nil {
				checkOut = *req.CheckOut
			}
			in, out, err := parseStay(checkIn, checkOut)
			if err != nil {
				return err
			}
			r, err := stayRange(in, out)
			if err != nil {
				return err
			}

			if old := existing.Range(); !r.Start.Equal(old.Start) || !r.End.Equal(old.End) {
				if existing.Status != models.StatusPending {
					return apperrors.InvalidTransition("booking %d is %s; its dates and total are fixed", id, existing.Status)
				}
				conflict, err := hasConflict(ctx, tx, existing.PropertyID, r, existing.ID)
				if err != nil {
					return err
				}
				if conflict {
					metrics.BookingConflicts.Inc()
					return apperrors.Conflict("property %d is already booked for some nights in %s", existing.PropertyID, r)
				}
				_, total, err := priceRange(ctx, tx, property, r)
				if err != nil {
					return err
				}
				updated.CheckIn, updated.CheckOut, updated.TotalAmount = r.Start, r.End, total
			}
		}

		if req.GuestCount != nil {
			if err := validateGuestCount(*req.GuestCount, property); err != nil {
				return err
			}
			updated.GuestCount = *req.GuestCount
		}
		if req.GuestName != nil {
			if strings.TrimSpace(*req.GuestName) == "" {
				return apperrors.Validation("guest_name must not be empty")
			}
			updated.GuestName = strings.TrimSpace(*req.GuestName)
		}
		if req.GuestEmail != nil {
			if strings.TrimSpace(*req.GuestEmail) == "" {
				return apperrors.Validation("guest_email must not be empty")
			}
			updated.GuestEmail = strings.TrimSpace(*req.GuestEmail)
		}
		if req.GuestPhone != nil {
			updated.GuestPhone = req.GuestPhone
		}
		if req.Purpose != nil {
			updated.Purpose = req.Purpose
		}
		if req.SpecialRequests != nil {
			updated.SpecialRequests = req.SpecialRequests
		}

		if err := tx.Bookings().Update(ctx, &updated); err != nil {
			return err
		}
		booking = &updated
		return nil
	})
	if err != nil {
		return nil, apperrors.Persistence("update booking", err)
	}

	invalidate(ctx, s.cache, booking.PropertyID)
	s.publishBooking(ctx, models.EventBookingUpdated, booking, "", "")
	logger.WithContext(ctx).Info("Booking updated", "booking_id", booking.ID, "property_id", booking.PropertyID)

	return booking, nil
}

// Cancel frees the booking's dates. A second cancel fails AlreadyFinalized.
func (s *BookingService) Cancel(ctx context.Context, id int64, reason string) (booking *models.Booking, err error) {
	defer func() { record("cancel", err) }()

	booking, previous, err := s.changeStatus(ctx, id, func(b *models.Booking) error {
		if err := checkCancellable(b); err != nil {
			return err
		}
		return ApplyTransition(b, models.StatusCancelled)
	})
	if err != nil {
		return nil, err
	}

	s.publishBooking(ctx, models.EventBookingStatusChanged, booking, previous, reason)
	s.publishBooking(ctx, models.EventBookingCancelled, booking, previous, reason)
	logger.WithContext(ctx).Info("Booking cancelled",
		"booking_id", booking.ID, "property_id", booking.PropertyID, "previous_status", previous, "reason", reason)

	return booking, nil
}

// Transition drives the owner actions confirm, check-in and check-out.
func (s *BookingService) Transition(ctx context.Context, id int64, to models.BookingStatus) (booking *models.Booking, err error) {
	if to == models.StatusCancelled {
		return s.Cancel(ctx, id, "")
	}
	defer func() { record("transition_"+string(to), err) }()

	booking, previous, err := s.changeStatus(ctx, id, func(b *models.Booking) error {
		return ApplyTransition(b, to)
	})
	if err != nil {
		return nil, err
	}

	s.publishBooking(ctx, models.EventBookingStatusChanged, booking, previous, "")
	if to == models.StatusConfirmed {
		s.publishBooking(ctx, models.EventBookingConfirmed, booking, previous, "")
	}
	logger.WithContext(ctx).Info("Booking status changed",
		"booking_id", booking.ID, "from", previous, "to", booking.Status)

	return booking, nil
}

func (s *BookingService) changeStatus(ctx context.Context, id int64, apply func(*models.Booking) error) (*models.Booking, models.BookingStatus, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}

	var (
		booking  *models.Booking
		previous models.BookingStatus
	)
	err = s.store.LockProperty(ctx, current.PropertyID, func(ctx context.Context, tx repository.Store) error {
		b, err := getBooking(ctx, tx, id)
		if err != nil {
			return err
		}
		previous = b.Status
		if err := apply(b); err != nil {
			return err
		}
		if err := tx.Bookings().Update(ctx, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, "", apperrors.Persistence("change booking status", err)
	}

	invalidate(ctx, s.cache, booking.PropertyID)
	return booking, previous, nil
}

// HardDelete removes the row outright, bypassing the lifecycle. Reserved for
// administrative data retention.
func (s *BookingService) HardDelete(ctx context.Context, id int64) (err error) {
	defer func() { record("hard_delete", err) }()

	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	err = s.store.LockProperty(ctx, current.PropertyID, func(ctx context.Context, tx repository.Store) error {
		return tx.Bookings().Delete(ctx, id)
	})
	if err != nil {
		return apperrors.Persistence("delete booking", err)
	}

	invalidate(ctx, s.cache, current.PropertyID)
	// Момент удаления служит версией для поискового индекса
	current.UpdatedAt = time.Now().UTC()
	s.publishBooking(ctx, models.EventBookingDeleted, current, current.Status, "hard delete")
	logger.WithContext(ctx).Warn("Booking hard-deleted", "booking_id", id, "property_id", current.PropertyID)

	return nil
}

func (s *BookingService) Get(ctx context.Context, id int64) (*models.Booking, error) {
	return getBooking(ctx, s.store, id)
}

func (s *BookingService) ListByProperty(ctx context.Context, propertyID int64, r daterange.Range) ([]models.Booking, error) {
	if _, err := getProperty(ctx, s.store, propertyID); err != nil {
		return nil, err
	}
	bookings, err := s.store.Bookings().ListByProperty(ctx, propertyID, r)
	if err != nil {
		return nil, apperrors.Persistence("list property bookings", err)
	}
	return nonNil(bookings), nil
}

func (s *BookingService) ListByGuest(ctx context.Context, guestID string) ([]models.Booking, error) {
	if guestID == "" {
		return nil, apperrors.Validation("guest id is required")
	}
	bookings, err := s.store.Bookings().ListByGuest(ctx, guestID)
	if err != nil {
		return nil, apperrors.Persistence("list guest bookings", err)
	}
	return nonNil(bookings), nil
}

func (s *BookingService) publishBooking(ctx context.Context, subject string, booking *models.Booking, previous models.BookingStatus, reason string) {
	event := models.BookingEvent{
		Type:           subject,
		Booking:        *booking,
		PreviousStatus: previous,
		Reason:         reason,
		Timestamp:      time.Now().UTC(),
	}
	publish(ctx, s.publisher, subject, event, "booking_id", booking.ID)
}

func getBooking(ctx context.Context, store repository.Store, id int64) (*models.Booking, error) {
	booking, err := store.Bookings().GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Persistence("get booking", err)
	}
	if booking == nil {
		return nil, apperrors.NotFound("booking %d not found", id)
	}
	return booking, nil
}

func parseStay(checkIn, checkOut string) (time.Time, time.Time, error) {
	in, err := daterange.ParseDate(checkIn)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.Validation("check_in: %v", err)
	}
	out, err := daterange.ParseDate(checkOut)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.Validation("check_out: %v", err)
	}
	if !out.After(in) {
		return time.Time{}, time.Time{}, apperrors.Validation("check_out must be after check_in")
	}
	return in, out, nil
}

func validateGuestCount(count int, property *models.Property) error {
	if count < 1 || count > property.MaxGuests {
		return apperrors.Validation("guest_count must be between 1 and %d", property.MaxGuests)
	}
	return nil
}

func record(operation string, err error) {
	metrics.BookingOperations.WithLabelValues(operation, metrics.Outcome(string(apperrors.KindOf(err)), err)).Inc()
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
