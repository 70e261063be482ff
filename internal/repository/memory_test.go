package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medstay/internal/daterange"
	"medstay/internal/models"
)

func date(s string) time.Time {
	d, err := daterange.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func seedBooking(t *testing.T, store *MemoryStore, propertyID int64, in, out string, status models.BookingStatus) models.Booking {
	t.Helper()
	b := &models.Booking{
		PropertyID: propertyID,
		GuestID:    "guest-1",
		CheckIn:    date(in),
		CheckOut:   date(out),
		GuestCount: 1,
		Status:     status,
		GuestName:  "Ana",
		GuestEmail: "ana@example.com",
	}
	require.NoError(t, store.Bookings().Create(context.Background(), b))
	return *b
}

func TestMemoryStore_FindOverlapping(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := store.AddProperty(models.Property{BasePrice: 100, MaxGuests: 2})

	active := seedBooking(t, store, p.ID, "2025-08-01", "2025-08-05", models.StatusConfirmed)
	seedBooking(t, store, p.ID, "2025-08-03", "2025-08-06", models.StatusCancelled)
	seedBooking(t, store, p.ID, "2025-08-02", "2025-08-04", models.StatusCheckedOut)

	tests := []struct {
		name      string
		start     string
		end       string
		excludeID int64
		want      int
	}{
		{"overlaps active", "2025-08-04", "2025-08-07", 0, 1},
		{"turnover on checkout day", "2025-08-05", "2025-08-08", 0, 0},
		{"ends on check-in day", "2025-07-28", "2025-08-01", 0, 0},
		{"excluded self", "2025-08-01", "2025-08-05", active.ID, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := daterange.New(date(tt.start), date(tt.end))
			require.NoError(t, err)
			got, err := store.Bookings().FindOverlapping(ctx, p.ID, r, tt.excludeID)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestMemoryStore_IdempotencyKeyUnique(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := store.AddProperty(models.Property{BasePrice: 100, MaxGuests: 2})

	key := "retry-1"
	first := &models.Booking{PropertyID: p.ID, CheckIn: date("2025-08-01"), CheckOut: date("2025-08-02"), IdempotencyKey: &key}
	require.NoError(t, store.Bookings().Create(ctx, first))

	found, err := store.Bookings().GetByIdempotencyKey(ctx, p.ID, key)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.ID, found.ID)

	second := &models.Booking{PropertyID: p.ID, CheckIn: date("2025-09-01"), CheckOut: date("2025-09-02"), IdempotencyKey: &key}
	assert.Error(t, store.Bookings().Create(ctx, second))
}

func TestMemoryStore_UpsertPricesKeepsAvailability(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := store.AddProperty(models.Property{BasePrice: 100, MaxGuests: 2})

	blocked := false
	notes := "maintenance"
	require.NoError(t, store.Availability().UpsertMany(ctx, []models.CalendarAvailability{
		{PropertyID: p.ID, Date: date("2025-08-01"), IsAvailable: &blocked, Notes: &notes},
	}))

	price := 150.0
	require.NoError(t, store.Availability().UpsertPrices(ctx, []models.CalendarAvailability{
		{PropertyID: p.ID, Date: date("2025-08-01"), CustomPrice: &price},
		{PropertyID: p.ID, Date: date("2025-08-02"), CustomPrice: &price},
	}))

	r, _ := daterange.New(date("2025-08-01"), date("2025-08-03"))
	rows, err := store.Availability().ListRange(ctx, p.ID, r)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.False(t, rows[0].Available())
	assert.Equal(t, "maintenance", *rows[0].Notes)
	assert.Equal(t, 150.0, *rows[0].CustomPrice)
	assert.True(t, rows[1].Available())
}

func TestMemoryStore_ClearPatternDatesOnlyOwnedRows(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := store.AddProperty(models.Property{BasePrice: 100, MaxGuests: 2})

	own, other := int64(1), int64(2)
	require.NoError(t, store.Availability().UpsertMany(ctx, []models.CalendarAvailability{
		{PropertyID: p.ID, Date: date("2025-08-01"), PatternID: &own},
		{PropertyID: p.ID, Date: date("2025-08-02"), PatternID: &other},
		{PropertyID: p.ID, Date: date("2025-08-03")},
	}))

	cleared, err := store.Availability().ClearPatternDates(ctx, p.ID, own,
		[]time.Time{date("2025-08-01"), date("2025-08-02"), date("2025-08-03")})
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)
}

func TestMemoryStore_LockPropertySerializes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.LockProperty(ctx, 1, func(ctx context.Context, tx Store) error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}
