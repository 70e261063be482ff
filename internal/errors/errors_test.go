package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	err := Conflict("property %d is booked", 7)

	assert.True(t, errors.Is(err, ErrBookingConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, KindBookingConflict, KindOf(err))
	assert.Equal(t, "property 7 is booked", err.Error())

	wrapped := fmt.Errorf("create booking: %w", err)
	assert.True(t, errors.Is(wrapped, ErrBookingConflict))
	assert.Equal(t, KindBookingConflict, KindOf(wrapped))
}

func TestPersistence(t *testing.T) {
	assert.Nil(t, Persistence("insert booking", nil))

	driverErr := errors.New("connection reset")
	err := Persistence("insert booking", driverErr)
	assert.True(t, errors.Is(err, ErrPersistence))
	assert.True(t, errors.Is(err, driverErr))
	assert.Equal(t, "insert booking: connection reset", err.Error())

	domainErr := NotFound("booking 1 not found")
	assert.Same(t, domainErr, Persistence("load booking", domainErr))
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}
