package service

import (
	apperrors "medstay/internal/errors"
	"medstay/internal/models"
)

var transitions = map[models.BookingStatus][]models.BookingStatus{
	models.StatusPending:    {models.StatusConfirmed, models.StatusCancelled},
	models.StatusConfirmed:  {models.StatusCheckedIn, models.StatusCancelled},
	models.StatusCheckedIn:  {models.StatusCheckedOut},
	models.StatusCheckedOut: {},
	models.StatusCancelled:  {},
}

// CanTransition reports whether the lifecycle table allows from -> to.
func CanTransition(from, to models.BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ApplyTransition moves the booking to the target status or fails with
// InvalidTransition, leaving the booking unchanged.
func ApplyTransition(booking *models.Booking, to models.BookingStatus) error {
	if !to.Valid() {
		return apperrors.Validation("unknown booking status %q", to)
	}
	if !CanTransition(booking.Status, to) {
		return apperrors.InvalidTransition("booking %d cannot move from %s to %s", booking.ID, booking.Status, to)
	}
	booking.Status = to
	return nil
}

// checkCancellable applies the cancellation rules on top of the table.
func checkCancellable(booking *models.Booking) error {
	switch {
	case booking.Status.IsTerminal():
		return apperrors.AlreadyFinalized("booking %d is already %s", booking.ID, booking.Status)
	case booking.Status == models.StatusCheckedIn:
		return apperrors.TooLateToCancel("booking %d is checked in and can no longer be cancelled", booking.ID)
	}
	return nil
}

func editable(status models.BookingStatus) bool {
	return status == models.StatusPending || status == models.StatusConfirmed
}
