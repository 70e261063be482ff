package service

import (
	"context"
	"time"

	"medstay/internal/daterange"
	apperrors "medstay/internal/errors"
	"medstay/internal/repository"
)

type ConflictChecker struct {
	store repository.Store
}

func NewConflictChecker(store repository.Store) *ConflictChecker {
	return &ConflictChecker{store: store}
}

// HasConflict reports whether an active booking of the property shares a
// night with [checkIn, checkOut). excludeBookingID of 0 excludes nothing.
// The answer is only authoritative when called under the property lock.
func (c *ConflictChecker) HasConflict(ctx context.Context, propertyID int64, checkIn, checkOut time.Time, excludeBookingID int64) (bool, error) {
	r, err := daterange.New(checkIn, checkOut)
	if err != nil {
		return false, apperrors.Validation("%v", err)
	}
	return hasConflict(ctx, c.store, propertyID, r, excludeBookingID)
}

func hasConflict(ctx context.Context, store repository.Store, propertyID int64, r daterange.Range, excludeBookingID int64) (bool, error) {
	overlapping, err := store.Bookings().FindOverlapping(ctx, propertyID, r, excludeBookingID)
	if err != nil {
		return false, apperrors.Persistence("check booking conflicts", err)
	}
	return len(overlapping) > 0, nil
}
