package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "medstay/internal/errors"
	"medstay/internal/models"
)

var allStatuses = []models.BookingStatus{
	models.StatusPending,
	models.StatusConfirmed,
	models.StatusCheckedIn,
	models.StatusCheckedOut,
	models.StatusCancelled,
}

func TestCanTransition(t *testing.T) {
	allowed := map[[2]models.BookingStatus]bool{
		{models.StatusPending, models.StatusConfirmed}:    true,
		{models.StatusPending, models.StatusCancelled}:    true,
		{models.StatusConfirmed, models.StatusCheckedIn}:  true,
		{models.StatusConfirmed, models.StatusCancelled}:  true,
		{models.StatusCheckedIn, models.StatusCheckedOut}: true,
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := allowed[[2]models.BookingStatus{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestApplyTransition_FromCheckedOutAlwaysFails(t *testing.T) {
	for _, to := range allStatuses {
		b := &models.Booking{ID: 1, Status: models.StatusCheckedOut}
		err := ApplyTransition(b, to)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition, "checked_out -> %s", to)
		assert.Equal(t, models.StatusCheckedOut, b.Status)
	}
}

func TestApplyTransition_CannotSkipConfirmation(t *testing.T) {
	b := &models.Booking{ID: 1, Status: models.StatusPending}
	err := ApplyTransition(b, models.StatusCheckedIn)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.Equal(t, models.StatusPending, b.Status)
}

func TestApplyTransition_UnknownStatus(t *testing.T) {
	b := &models.Booking{ID: 1, Status: models.StatusPending}
	err := ApplyTransition(b, models.BookingStatus("archived"))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestCheckCancellable(t *testing.T) {
	tests := []struct {
		status models.BookingStatus
		want   error
	}{
		{models.StatusPending, nil},
		{models.StatusConfirmed, nil},
		{models.StatusCheckedIn, apperrors.ErrTooLateToCancel},
		{models.StatusCheckedOut, apperrors.ErrAlreadyFinalized},
		{models.StatusCancelled, apperrors.ErrAlreadyFinalized},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			err := checkCancellable(&models.Booking{ID: 7, Status: tt.status})
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
