package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "medstay/internal/errors"
	"medstay/internal/models"
)

func TestBookingLifecycleScenarios(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	bookings := env.services.Bookings
	p := env.property.ID

	// Scenario 1: a plain four-night stay at base price.
	a, err := bookings.Create(ctx, bookingRequest(p, "2025-08-01", "2025-08-05", 2))
	require.NoError(t, err)
	assert.Equal(t, 400.0, a.TotalAmount)
	assert.Equal(t, models.StatusPending, a.Status)

	// Scenario 2: an overlapping stay is rejected and A is untouched.
	_, err = bookings.Create(ctx, bookingRequest(p, "2025-08-03", "2025-08-06", 2))
	assert.ErrorIs(t, err, apperrors.ErrBookingConflict)
	stored, err := bookings.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, *a, *stored)

	// Scenario 3: an override on 08-02 does not affect 08-10..08-12.
	_, err = env.services.Availability.Upsert(ctx, p, []models.AvailabilityOverrideInput{
		{Date: "2025-08-02", CustomPrice: floatPtr(150)},
	})
	require.NoError(t, err)
	c, err := bookings.Create(ctx, bookingRequest(p, "2025-08-10", "2025-08-12", 1))
	require.NoError(t, err)
	assert.Equal(t, 200.0, c.TotalAmount)

	// Scenario 4: cancelled bookings stop blocking their dates.
	_, err = bookings.Cancel(ctx, a.ID, "plans changed")
	require.NoError(t, err)
	b, err := bookings.Create(ctx, bookingRequest(p, "2025-08-01", "2025-08-05", 2))
	require.NoError(t, err)
	assert.Equal(t, 450.0, b.TotalAmount, "08-02 now carries the 150 override")
}

func TestCreateBooking_Validation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := env.property.ID

	tests := []struct {
		name string
		req  *models.CreateBookingRequest
		want error
	}{
		{"checkout before checkin", bookingRequest(p, "2025-08-05", "2025-08-01", 1), apperrors.ErrValidation},
		{"same day", bookingRequest(p, "2025-08-05", "2025-08-05", 1), apperrors.ErrValidation},
		{"bad date", bookingRequest(p, "2025-13-01", "2025-08-05", 1), apperrors.ErrValidation},
		{"zero guests", bookingRequest(p, "2025-08-01", "2025-08-05", 0), apperrors.ErrValidation},
		{"too many guests", bookingRequest(p, "2025-08-01", "2025-08-05", 5), apperrors.ErrValidation},
		{"unknown property", bookingRequest(999, "2025-08-01", "2025-08-05", 1), apperrors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.services.Bookings.Create(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, env.publisher.Subjects())
}

func TestCreateBooking_TurnoverDayAllowed(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := env.property.ID

	_, err := env.services.Bookings.Create(ctx, bookingRequest(p, "2025-08-01", "2025-08-05", 1))
	require.NoError(t, err)
	_, err = env.services.Bookings.Create(ctx, bookingRequest(p, "2025-08-05", "2025-08-08", 1))
	require.NoError(t, err)
	_, err = env.services.Bookings.Create(ctx, bookingRequest(p, "2025-07-28", "2025-08-01", 1))
	require.NoError(t, err)
}

func TestCreateBooking_IdempotencyKeyReplays(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	req := bookingRequest(env.property.ID, "2025-08-01", "2025-08-03", 1)
	req.IdempotencyKey = "client-retry-1"

	first, err := env.services.Bookings.Create(ctx, req)
	require.NoError(t, err)
	second, err := env.services.Bookings.Create(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, []string{models.EventBookingCreated}, env.publisher.Subjects())
}

func TestCreateBooking_PublishFailureDoesNotFail(t *testing.T) {
	env := newTestEnv(t)
	env.publisher.fail = true

	b, err := env.services.Bookings.Create(context.Background(), bookingRequest(env.property.ID, "2025-08-01", "2025-08-03", 1))
	require.NoError(t, err)
	assert.NotZero(t, b.ID)
}

func TestCreateBooking_ConcurrentOverlapsNeverDoubleBook(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := env.property.ID

	const attempts = 50
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Every range shares 2025-09-10 with every other.
			start := fmt.Sprintf("2025-09-%02d", 1+i%10)
			_, err := env.services.Bookings.Create(ctx, bookingRequest(p, start, "2025-09-11", 1))
			switch {
			case err == nil:
				succeeded.Add(1)
			case apperrors.KindOf(err) == apperrors.KindBookingConflict:
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(attempts-1), conflicts.Load())

	all, err := env.services.Bookings.ListByProperty(ctx, p, rng(t, "2025-09-01", "2025-10-01"))
	require.NoError(t, err)
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			if all[i].Status.IsActive() && all[j].Status.IsActive() {
				assert.False(t, all[i].Range().Overlaps(all[j].Range()), "bookings %d and %d overlap", all[i].ID, all[j].ID)
			}
		}
	}
}

func TestCreateBooking_DifferentPropertiesIndependent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	other := env.store.AddProperty(models.Property{BasePrice: 80, MaxGuests: 2})

	_, err := env.services.Bookings.Create(ctx, bookingRequest(env.property.ID, "2025-08-01", "2025-08-05", 1))
	require.NoError(t, err)
	b, err := env.services.Bookings.Create(ctx, bookingRequest(other.ID, "2025-08-01", "2025-08-05", 1))
	require.NoError(t, err)
	assert.Equal(t, 320.0, b.TotalAmount)
}

func TestUpdateBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("moving dates recomputes the total", func(t *testing.T) {
		env := newTestEnv(t)
		b, err := env.services.Bookings.Create(ctx, bookingRequest(env.property.ID, "2025-08-01", "2025-08-03", 1))
		require.NoError(t, err)

		updated, err := env.services.Bookings.Update(ctx, b.ID, &models.UpdateBookingRequest{CheckOut: strPtr("2025-08-06")})
		require.NoError(t, err)
		assert.Equal(t, 500.0, updated.TotalAmount)
		assert.Equal(t, day("2025-08-06"), updated.CheckOut)
	})

	t.Run("shrinking within own range ignores itself", func(t *testing.T) {
		env := newTestEnv(t)
		b, err := env.services.Bookings.Create(ctx, bookingRequest(env.property.ID, "2025-08-01", "2025-08-05", 1))
		require.NoError(t, err)

		updated, err := env.services.Bookings.Update(ctx, b.ID, &models.UpdateBookingRequest{CheckIn: strPtr("2025-08-02")})
		require.NoError(t, err)
		assert.Equal(t, 300.0, updated.TotalAmount)
	})

	t.Run("conflict leaves booking untouched", func(t *testing.T) {
		env := newTestEnv(t)
		a, err := env.services.Bookings.Create(ctx, bookingRequest(env.property.ID, "2025-08-01", "2025-08-03", 1))
		require.NoError(t, err)
		_, err = env.services.Bookings.Create(ctx, bookingRequest(env.property.ID, "2025-08-05", "2025-08-07", 1))
		require.NoError(t, err)

		_, err = env.services.Bookings.Update(ctx, a.ID, &models.UpdateBookingRequest{
			CheckOut:  strPtr("2025-08-06"),
			GuestName: strPtr("Someone Else"),
		})
		assert.ErrorIs(t, err, apperrors.ErrBookingConflict)

		stored, err := env.services.Bookings.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, *a, *stored)
	})

	t.Run("guest count revalidated", func(t *testing.T) {
		env := newTestEnv(t)
		b, err := env.services.Bookings.Create(ctx, bookingRequest(env.property.ID, "2025-08-01", "2025-08-03", 1))
		require.NoError(t, err)

		five := 5
		_, err = env.services.Bookings.Update(ctx, b.ID, &models.UpdateBookingRequest{GuestCount: &five})
		assert.ErrorIs(t, err, apperrors.ErrValidation)

		three := 3
		updated, err := env.services.Bookings.Update(ctx, b.ID, &models.UpdateBookingRequest{GuestCount: &three})
		require.NoError(t, err)
		assert.Equal(t, 3, updated.GuestCount)
	})

	t.Run("confirmed booking keeps its dates", func(t *testing.T) {
		env := newTestEnv(t)
		b, err := env.services.Bookings.Create(ctx, bookingRequest(env.property.ID, "2025-08-01", "2025-08-03", 1))
		require.NoError(t, err)
		_, err = env.services.Bookings.Transition(ctx, b.ID, models.StatusConfirmed)
		require.NoError(t, err)

		_, err = env.services.Bookings.Update(ctx, b.ID, &models.UpdateBookingRequest{CheckOut: strPtr("2025-08-04")})
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

		updated, err := env.services.Bookings.Update(ctx, b.ID, &models.UpdateBookingRequest{SpecialRequests: strPtr("ground floor")})
		require.NoError(t, err)
		assert.Equal(t, "ground floor", *updated.SpecialRequests)
	})

	t.Run("cancelled booking cannot be edited", func(t *testing.T) {
		env := newTestEnv(t)
		b, err := env.services.Bookings.Create(ctx, bookingRequest(env.property.ID, "2025-08-01", "2025-08-03", 1))
		require.NoError(t, err)
		_, err = env.services.Bookings.Cancel(ctx, b.ID, "")
		require.NoError(t, err)

		_, err = env.services.Bookings.Update(ctx, b.ID, &models.UpdateBookingRequest{GuestName: strPtr("X")})
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	})

	t.Run("unknown booking", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.services.Bookings.Update(ctx, 404, &models.UpdateBookingRequest{})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestCancelBooking(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	b, err := env.services.Bookings.Create(ctx, bookingRequest(env.property.ID, "2025-08-01", "2025-08-03", 1))
	require.NoError(t, err)

	cancelled, err := env.services.Bookings.Cancel(ctx, b.ID, "surgery rescheduled")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Equal(t, b.TotalAmount, cancelled.TotalAmount)

	_, err = env.services.Bookings.Cancel(ctx, b.ID, "again")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyFinalized)

	assert.Equal(t, []string{
		models.EventBookingCreated,
		models.EventBookingStatusChanged,
		models.EventBookingCancelled,
	}, env.publisher.Subjects())
}

func TestCancelBooking_CheckedInIsTooLate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	b, err := env.services.Bookings.Create(ctx, bookingRequest(env.property.ID, "2025-08-01", "2025-08-03", 1))
	require.NoError(t, err)

	_, err = env.services.Bookings.Transition(ctx, b.ID, models.StatusConfirmed)
	require.NoError(t, err)
	_, err = env.services.Bookings.Transition(ctx, b.ID, models.StatusCheckedIn)
	require.NoError(t, err)

	_, err = env.services.Bookings.Cancel(ctx, b.ID, "")
	assert.ErrorIs(t, err, apperrors.ErrTooLateToCancel)
}

func TestTransition_FullLifecycleAndEvents(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	b, err := env.services.Bookings.Create(ctx, bookingRequest(env.property.ID, "2025-08-01", "2025-08-03", 1))
	require.NoError(t, err)

	_, err = env.services.Bookings.Transition(ctx, b.ID, models.StatusCheckedIn)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	for _, to := range []models.BookingStatus{models.StatusConfirmed, models.StatusCheckedIn, models.StatusCheckedOut} {
		b, err = env.services.Bookings.Transition(ctx, b.ID, to)
		require.NoError(t, err)
		assert.Equal(t, to, b.Status)
	}

	_, err = env.services.Bookings.Transition(ctx, b.ID, models.StatusConfirmed)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	assert.Equal(t, []string{
		models.EventBookingCreated,
		models.EventBookingStatusChanged,
		models.EventBookingConfirmed,
		models.EventBookingStatusChanged,
		models.EventBookingStatusChanged,
	}, env.publisher.Subjects())

	// A checked-out stay frees its dates.
	_, err = env.services.Bookings.Create(ctx, bookingRequest(env.property.ID, "2025-08-01", "2025-08-03", 1))
	assert.NoError(t, err)
}

func TestHardDelete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	b, err := env.services.Bookings.Create(ctx, bookingRequest(env.property.ID, "2025-08-01", "2025-08-03", 1))
	require.NoError(t, err)

	require.NoError(t, env.services.Bookings.HardDelete(ctx, b.ID))

	_, err = env.services.Bookings.Get(ctx, b.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.ErrorIs(t, env.services.Bookings.HardDelete(ctx, b.ID), apperrors.ErrNotFound)
	require.Contains(t, env.publisher.Subjects(), models.EventBookingDeleted)

	// The delete event is stamped later than every earlier snapshot.
	deleted := env.publisher.events[len(env.publisher.events)-1].(models.BookingEvent)
	assert.Equal(t, models.EventBookingDeleted, deleted.Type)
	assert.True(t, deleted.Booking.UpdatedAt.After(b.UpdatedAt))
}

func TestListByGuest(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.services.Bookings.Create(ctx, bookingRequest(env.property.ID, "2025-08-01", "2025-08-03", 1))
	require.NoError(t, err)
	other := bookingRequest(env.property.ID, "2025-08-05", "2025-08-07", 1)
	other.GuestID = "guest-7"
	_, err = env.services.Bookings.Create(ctx, other)
	require.NoError(t, err)

	mine, err := env.services.Bookings.ListByGuest(ctx, "guest-42")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "guest-42", mine[0].GuestID)

	none, err := env.services.Bookings.ListByGuest(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
