package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"medstay/internal/daterange"
	"medstay/internal/models"
	"medstay/internal/repository"
)

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	events   []interface{}
	fail     bool
}

func (p *recordingPublisher) Publish(subject string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.subjects = append(p.subjects, subject)
	p.events = append(p.events, data)
	return nil
}

func (p *recordingPublisher) Subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.subjects...)
}

type testEnv struct {
	services  *Services
	store     *repository.MemoryStore
	publisher *recordingPublisher
	property  models.Property
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	property := store.AddProperty(models.Property{OwnerID: "owner-1", Name: "Harbor Flat", BasePrice: 100, MaxGuests: 4})
	publisher := &recordingPublisher{}
	return &testEnv{
		services:  NewServices(store, publisher, nil, 4),
		store:     store,
		publisher: publisher,
		property:  property,
	}
}

func day(s string) time.Time {
	d, err := daterange.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func rng(t *testing.T, from, to string) daterange.Range {
	t.Helper()
	r, err := daterange.New(day(from), day(to))
	require.NoError(t, err)
	return r
}

func bookingRequest(propertyID int64, checkIn, checkOut string, guests int) *models.CreateBookingRequest {
	return &models.CreateBookingRequest{
		PropertyID: propertyID,
		GuestID:    "guest-42",
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		GuestCount: guests,
		GuestName:  "Dana Reyes",
		GuestEmail: "dana@example.com",
	}
}

func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }
func strPtr(v string) *string     { return &v }
