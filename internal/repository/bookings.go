package repository

import (
	"context"
	"strings"

	"medstay/internal/database"
	"medstay/internal/daterange"
	"medstay/internal/models"
)

type BookingRepository struct {
	conn
}

func NewBookingRepository(db *database.DB) *BookingRepository {
	return &BookingRepository{conn: conn{db: db}}
}

const bookingColumns = `
	id, property_id, guest_id, check_in, check_out, guest_count, total_amount,
	status, guest_name, guest_email, guest_phone, purpose, special_requests,
	idempotency_key, created_at, updated_at`

var activeStatusFilter = statusFilter(models.ActiveStatuses)

func statusFilter(statuses []models.BookingStatus) string {
	quoted := make([]string, len(statuses))
	for i, s := range statuses {
		quoted[i] = "'" + string(s) + "'"
	}
	return "status IN (" + strings.Join(quoted, ", ") + ")"
}

func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	query := `
		INSERT INTO bookings (property_id, guest_id, check_in, check_out, guest_count, total_amount,
		                      status, guest_name, guest_email, guest_phone, purpose, special_requests,
		                      idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`

	err := r.q().QueryRowxContext(ctx, query,
		booking.PropertyID,
		booking.GuestID,
		daterange.Format(booking.CheckIn),
		daterange.Format(booking.CheckOut),
		booking.GuestCount,
		booking.TotalAmount,
		booking.Status,
		booking.GuestName,
		booking.GuestEmail,
		booking.GuestPhone,
		booking.Purpose,
		booking.SpecialRequests,
		booking.IdempotencyKey,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)

	return translate("create booking", err)
}

func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*models.Booking, error) {
	return r.getOne(ctx, "get booking",
		`SELECT`+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

func (r *BookingRepository) GetByIdempotencyKey(ctx context.Context, propertyID int64, key string) (*models.Booking, error) {
	return r.getOne(ctx, "get booking by idempotency key",
		`SELECT`+bookingColumns+` FROM bookings WHERE property_id = $1 AND idempotency_key = $2`,
		propertyID, key)
}

func (r *BookingRepository) getOne(ctx context.Context, op, query string, args ...interface{}) (*models.Booking, error) {
	booking := &models.Booking{}
	err := r.q().GetContext(ctx, booking, query, args...)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(op, err)
	}
	normalizeBooking(booking)
	return booking, nil
}

func (r *BookingRepository) Update(ctx context.Context, booking *models.Booking) error {
	query := `
		UPDATE bookings
		SET check_in = $1, check_out = $2, guest_count = $3, total_amount = $4, status = $5,
		    guest_name = $6, guest_email = $7, guest_phone = $8, purpose = $9,
		    special_requests = $10, updated_at = NOW()
		WHERE id = $11
		RETURNING updated_at`

	err := r.q().QueryRowxContext(ctx, query,
		daterange.Format(booking.CheckIn),
		daterange.Format(booking.CheckOut),
		booking.GuestCount,
		booking.TotalAmount,
		booking.Status,
		booking.GuestName,
		booking.GuestEmail,
		booking.GuestPhone,
		booking.Purpose,
		booking.SpecialRequests,
		booking.ID,
	).Scan(&booking.UpdatedAt)

	return translate("update booking", err)
}

func (r *BookingRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.q().ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	return translate("delete booking", err)
}

func (r *BookingRepository) FindOverlapping(ctx context.Context, propertyID int64, rng daterange.Range, excludeID int64) ([]models.Booking, error) {
	query := `SELECT` + bookingColumns + `
		FROM bookings
		WHERE property_id = $1
		  AND ` + activeStatusFilter + `
		  AND check_in < $3 AND check_out > $2
		  AND id <> $4
		ORDER BY check_in`

	return r.list(ctx, "find overlapping bookings", query,
		propertyID, daterange.Format(rng.Start), daterange.Format(rng.End), excludeID)
}

func (r *BookingRepository) ListByProperty(ctx context.Context, propertyID int64, rng daterange.Range) ([]models.Booking, error) {
	query := `SELECT` + bookingColumns + `
		FROM bookings
		WHERE property_id = $1
		  AND check_in < $3 AND check_out > $2
		ORDER BY check_in, id`

	return r.list(ctx, "list property bookings", query,
		propertyID, daterange.Format(rng.Start), daterange.Format(rng.End))
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]models.Booking, error) {
	query := `SELECT` + bookingColumns + `
		FROM bookings
		WHERE guest_id = $1
		ORDER BY created_at DESC`

	return r.list(ctx, "list guest bookings", query, guestID)
}

func (r *BookingRepository) list(ctx context.Context, op, query string, args ...interface{}) ([]models.Booking, error) {
	var bookings []models.Booking
	if err := r.q().SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, translate(op, err)
	}
	for i := range bookings {
		normalizeBooking(&bookings[i])
	}
	return bookings, nil
}

func normalizeBooking(b *models.Booking) {
	b.CheckIn = daterange.Day(b.CheckIn)
	b.CheckOut = daterange.Day(b.CheckOut)
}
