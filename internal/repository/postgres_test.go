package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medstay/internal/config"
	"medstay/internal/database"
	"medstay/internal/daterange"
	apperrors "medstay/internal/errors"
	"medstay/internal/models"
	"medstay/internal/repository"
	"medstay/internal/service"
)

// setupPostgres connects to the database named by DB_* variables. The tests
// are skipped when DB_HOST is not set.
func setupPostgres(t *testing.T) (*database.DB, int64) {
	t.Helper()
	if os.Getenv("DB_HOST") == "" {
		t.Skip("DB_HOST not set, skipping Postgres tests")
	}

	db, err := database.Connect(config.Load().Database)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	var propertyID int64
	err = db.QueryRowx(
		`INSERT INTO properties (owner_id, name, base_price, max_guests) VALUES ($1, $2, $3, $4) RETURNING id`,
		"owner-it", fmt.Sprintf("Integration flat %d", time.Now().UnixNano()), 100, 4,
	).Scan(&propertyID)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = db.Exec(`DELETE FROM properties WHERE id = $1`, propertyID)
		db.Close()
	})
	return db, propertyID
}

func postgresBooking(propertyID int64, checkIn, checkOut string, guest int) *models.CreateBookingRequest {
	return &models.CreateBookingRequest{
		PropertyID: propertyID,
		GuestID:    fmt.Sprintf("guest-%d", guest),
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		GuestCount: 1,
		GuestName:  "Dana Reyes",
		GuestEmail: "dana@example.com",
	}
}

func TestPostgres_ConcurrentCreatesNeverDoubleBook(t *testing.T) {
	db, propertyID := setupPostgres(t)
	services := service.NewServices(repository.NewRepositories(db), service.NoopPublisher(), nil, 4)

	const workers = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
		other     []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Every request overlaps 2025-08-02.
			checkIn := time.Date(2025, 8, 1+i%2, 0, 0, 0, 0, time.UTC)
			req := postgresBooking(propertyID, daterange.Format(checkIn), daterange.Format(checkIn.AddDate(0, 0, 2)), i)
			_, err := services.Bookings.Create(context.Background(), req)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, apperrors.ErrBookingConflict):
				conflicts++
			default:
				other = append(other, err)
			}
		}(i)
	}
	wg.Wait()

	require.Empty(t, other)
	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, conflicts)
}

func TestPostgres_FindOverlapping(t *testing.T) {
	db, propertyID := setupPostgres(t)
	store := repository.NewRepositories(db)
	services := service.NewServices(store, service.NoopPublisher(), nil, 4)
	ctx := context.Background()

	first, err := services.Bookings.Create(ctx, postgresBooking(propertyID, "2025-09-01", "2025-09-04", 1))
	require.NoError(t, err)
	cancelled, err := services.Bookings.Create(ctx, postgresBooking(propertyID, "2025-09-10", "2025-09-12", 2))
	require.NoError(t, err)
	_, err = services.Bookings.Cancel(ctx, cancelled.ID, "")
	require.NoError(t, err)

	overlap := func(from, to string, exclude int64) []models.Booking {
		r, err := service.ParseRange(from, to)
		require.NoError(t, err)
		found, err := store.Bookings().FindOverlapping(ctx, propertyID, r, exclude)
		require.NoError(t, err)
		return found
	}

	found := overlap("2025-09-03", "2025-09-05", 0)
	require.Len(t, found, 1)
	assert.Equal(t, first.ID, found[0].ID)

	assert.Empty(t, overlap("2025-09-04", "2025-09-06", 0), "turnover day")
	assert.Empty(t, overlap("2025-09-03", "2025-09-05", first.ID), "excluded booking")
	assert.Empty(t, overlap("2025-09-10", "2025-09-12", 0), "cancelled bookings never block")
}

func TestPostgres_ExclusionConstraintIsConflict(t *testing.T) {
	db, propertyID := setupPostgres(t)
	store := repository.NewRepositories(db)
	ctx := context.Background()

	insert := func(checkIn, checkOut time.Time) error {
		return store.Bookings().Create(ctx, &models.Booking{
			PropertyID:  propertyID,
			GuestID:     "guest-1",
			CheckIn:     checkIn,
			CheckOut:    checkOut,
			GuestCount:  1,
			TotalAmount: 200,
			Status:      models.StatusPending,
			GuestName:   "Dana Reyes",
			GuestEmail:  "dana@example.com",
		})
	}

	day := func(d int) time.Time { return time.Date(2025, 10, d, 0, 0, 0, 0, time.UTC) }

	// Written outside LockProperty, so only the constraint stands in the way.
	require.NoError(t, insert(day(1), day(3)))
	err := insert(day(2), day(4))
	assert.ErrorIs(t, err, apperrors.ErrBookingConflict)
	assert.NoError(t, insert(day(3), day(5)), "turnover day")
}
