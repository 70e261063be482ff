package repository

import (
	"context"
	"time"

	"github.com/lib/pq"

	"medstay/internal/database"
	"medstay/internal/daterange"
	"medstay/internal/models"
)

type AvailabilityRepository struct {
	conn
}

func NewAvailabilityRepository(db *database.DB) *AvailabilityRepository {
	return &AvailabilityRepository{conn: conn{db: db}}
}

// availabilityRow carries the date as text so the session time zone never
// shifts it when bound to a DATE column.
type availabilityRow struct {
	PropertyID  int64     `db:"property_id"`
	Date        string    `db:"date"`
	IsAvailable *bool     `db:"is_available"`
	CustomPrice *float64  `db:"custom_price"`
	Notes       *string   `db:"notes"`
	PatternID   *int64    `db:"pattern_id"`
	AppliedAt   time.Time `db:"applied_at"`
}

func toAvailabilityRow(a models.CalendarAvailability) availabilityRow {
	applied := a.AppliedAt
	if applied.IsZero() {
		applied = time.Now().UTC()
	}
	return availabilityRow{
		PropertyID:  a.PropertyID,
		Date:        daterange.Format(a.Date),
		IsAvailable: a.IsAvailable,
		CustomPrice: a.CustomPrice,
		Notes:       a.Notes,
		PatternID:   a.PatternID,
		AppliedAt:   applied,
	}
}

func (r *AvailabilityRepository) ListRange(ctx context.Context, propertyID int64, rng daterange.Range) ([]models.CalendarAvailability, error) {
	var rows []models.CalendarAvailability
	query := `
		SELECT property_id, date, is_available, custom_price, notes, pattern_id, applied_at
		FROM calendar_availability
		WHERE property_id = $1 AND date >= $2 AND date < $3
		ORDER BY date`

	err := database.WithRetry(ctx, "list availability", func(ctx context.Context) error {
		rows = rows[:0]
		return r.q().SelectContext(ctx, &rows, query,
			propertyID, daterange.Format(rng.Start), daterange.Format(rng.End))
	})
	if err != nil {
		return nil, translate("list availability", err)
	}
	for i := range rows {
		rows[i].Date = daterange.Day(rows[i].Date)
	}
	return rows, nil
}

func (r *AvailabilityRepository) UpsertMany(ctx context.Context, rows []models.CalendarAvailability) error {
	query := `
		INSERT INTO calendar_availability (property_id, date, is_available, custom_price, notes, pattern_id, applied_at)
		VALUES (:property_id, :date, :is_available, :custom_price, :notes, :pattern_id, :applied_at)
		ON CONFLICT (property_id, date) DO UPDATE
		SET is_available = EXCLUDED.is_available,
		    custom_price = EXCLUDED.custom_price,
		    notes = EXCLUDED.notes,
		    pattern_id = EXCLUDED.pattern_id,
		    applied_at = EXCLUDED.applied_at`

	return r.batch(ctx, "upsert availability", query, rows)
}

func (r *AvailabilityRepository) UpsertPrices(ctx context.Context, rows []models.CalendarAvailability) error {
	query := `
		INSERT INTO calendar_availability (property_id, date, custom_price, applied_at)
		VALUES (:property_id, :date, :custom_price, :applied_at)
		ON CONFLICT (property_id, date) DO UPDATE
		SET custom_price = EXCLUDED.custom_price,
		    applied_at = EXCLUDED.applied_at`

	return r.batch(ctx, "upsert prices", query, rows)
}

func (r *AvailabilityRepository) batch(ctx context.Context, op, query string, rows []models.CalendarAvailability) error {
	if len(rows) == 0 {
		return nil
	}
	return r.inTx(ctx, func(q querier) error {
		for _, row := range rows {
			if _, err := q.NamedExecContext(ctx, query, toAvailabilityRow(row)); err != nil {
				return translate(op, err)
			}
		}
		return nil
	})
}

func (r *AvailabilityRepository) ClearPatternDates(ctx context.Context, propertyID, patternID int64, dates []time.Time) (int, error) {
	if len(dates) == 0 {
		return 0, nil
	}
	days := make([]string, len(dates))
	for i, d := range dates {
		days[i] = daterange.Format(d)
	}

	res, err := r.q().ExecContext(ctx, `
		DELETE FROM calendar_availability
		WHERE property_id = $1 AND pattern_id = $2 AND date = ANY($3::date[])`,
		propertyID, patternID, pq.Array(days))
	if err != nil {
		return 0, translate("clear pattern dates", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, translate("clear pattern dates", err)
	}
	return int(n), nil
}
