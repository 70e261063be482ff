package repository

import (
	"context"
	"time"

	"github.com/lib/pq"

	"medstay/internal/database"
	"medstay/internal/daterange"
	"medstay/internal/models"
)

type PatternRepository struct {
	conn
}

func NewPatternRepository(db *database.DB) *PatternRepository {
	return &PatternRepository{conn: conn{db: db}}
}

type patternRow struct {
	ID            int64         `db:"id"`
	PropertyID    int64         `db:"property_id"`
	Name          string        `db:"name"`
	DaysOfWeek    pq.Int64Array `db:"days_of_week"`
	StartDate     time.Time     `db:"start_date"`
	EndDate       time.Time     `db:"end_date"`
	IsAvailable   bool          `db:"is_available"`
	CustomPrice   *float64      `db:"custom_price"`
	Notes         *string       `db:"notes"`
	CreatedAt     time.Time     `db:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at"`
	LastAppliedAt *time.Time    `db:"last_applied_at"`
}

func (row patternRow) toModel() models.RecurringPattern {
	days := make([]int, len(row.DaysOfWeek))
	for i, d := range row.DaysOfWeek {
		days[i] = int(d)
	}
	return models.RecurringPattern{
		ID:            row.ID,
		PropertyID:    row.PropertyID,
		Name:          row.Name,
		DaysOfWeek:    days,
		StartDate:     daterange.Day(row.StartDate),
		EndDate:       daterange.Day(row.EndDate),
		IsAvailable:   row.IsAvailable,
		CustomPrice:   row.CustomPrice,
		Notes:         row.Notes,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
		LastAppliedAt: row.LastAppliedAt,
	}
}

func weekdayArray(days []int) pq.Int64Array {
	out := make(pq.Int64Array, len(days))
	for i, d := range days {
		out[i] = int64(d)
	}
	return out
}

const patternColumns = `
	id, property_id, name, days_of_week, start_date, end_date, is_available,
	custom_price, notes, created_at, updated_at, last_applied_at`

func (r *PatternRepository) Create(ctx context.Context, pattern *models.RecurringPattern) error {
	query := `
		INSERT INTO recurring_patterns (property_id, name, days_of_week, start_date, end_date,
		                                is_available, custom_price, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := r.q().QueryRowxContext(ctx, query,
		pattern.PropertyID,
		pattern.Name,
		weekdayArray(pattern.DaysOfWeek),
		daterange.Format(pattern.StartDate),
		daterange.Format(pattern.EndDate),
		pattern.IsAvailable,
		pattern.CustomPrice,
		pattern.Notes,
	).Scan(&pattern.ID, &pattern.CreatedAt, &pattern.UpdatedAt)

	return translate("create pattern", err)
}

func (r *PatternRepository) GetByID(ctx context.Context, id int64) (*models.RecurringPattern, error) {
	var row patternRow
	err := r.q().GetContext(ctx, &row, `SELECT`+patternColumns+` FROM recurring_patterns WHERE id = $1`, id)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, translate("get pattern", err)
	}
	pattern := row.toModel()
	return &pattern, nil
}

func (r *PatternRepository) ListByProperty(ctx context.Context, propertyID int64) ([]models.RecurringPattern, error) {
	var rows []patternRow
	err := r.q().SelectContext(ctx, &rows,
		`SELECT`+patternColumns+` FROM recurring_patterns WHERE property_id = $1 ORDER BY id`, propertyID)
	if err != nil {
		return nil, translate("list patterns", err)
	}

	patterns := make([]models.RecurringPattern, len(rows))
	for i, row := range rows {
		patterns[i] = row.toModel()
	}
	return patterns, nil
}

func (r *PatternRepository) Update(ctx context.Context, pattern *models.RecurringPattern) error {
	query := `
		UPDATE recurring_patterns
		SET name = $1, days_of_week = $2, start_date = $3, end_date = $4,
		    is_available = $5, custom_price = $6, notes = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING updated_at`

	err := r.q().QueryRowxContext(ctx, query,
		pattern.Name,
		weekdayArray(pattern.DaysOfWeek),
		daterange.Format(pattern.StartDate),
		daterange.Format(pattern.EndDate),
		pattern.IsAvailable,
		pattern.CustomPrice,
		pattern.Notes,
		pattern.ID,
	).Scan(&pattern.UpdatedAt)

	return translate("update pattern", err)
}

func (r *PatternRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.q().ExecContext(ctx, `DELETE FROM recurring_patterns WHERE id = $1`, id)
	return translate("delete pattern", err)
}

func (r *PatternRepository) MarkApplied(ctx context.Context, id int64, at time.Time) error {
	_, err := r.q().ExecContext(ctx,
		`UPDATE recurring_patterns SET last_applied_at = $1 WHERE id = $2`, at, id)
	return translate("mark pattern applied", err)
}
