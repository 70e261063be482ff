package service

import (
	"context"
	"time"

	"medstay/internal/daterange"
	apperrors "medstay/internal/errors"
	"medstay/internal/logger"
	"medstay/internal/metrics"
	"medstay/internal/models"
	"medstay/internal/repository"
)

// AvailabilityService writes explicit per-date overrides set by an owner.
type AvailabilityService struct {
	store     repository.Store
	publisher EventPublisher
	cache     CalendarCache
	now       func() time.Time
}

func NewAvailabilityService(store repository.Store, publisher EventPublisher, cache CalendarCache) *AvailabilityService {
	if publisher == nil {
		publisher = NoopPublisher()
	}
	return &AvailabilityService{
		store:     store,
		publisher: publisher,
		cache:     cache,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Upsert validates every override first and then writes the whole batch in
// one transaction. A repeated date in the batch is rejected.
func (s *AvailabilityService) Upsert(ctx context.Context, propertyID int64, inputs []models.AvailabilityOverrideInput) (int, error) {
	if len(inputs) == 0 {
		return 0, apperrors.Validation("overrides must not be empty")
	}
	if _, err := getProperty(ctx, s.store, propertyID); err != nil {
		return 0, err
	}

	appliedAt := s.now()
	seen := make(map[string]bool, len(inputs))
	rows := make([]models.CalendarAvailability, 0, len(inputs))
	var span daterange.Range
	for i, in := range inputs {
		d, err := daterange.ParseDate(in.Date)
		if err != nil {
			return 0, apperrors.Validation("overrides[%d].date: %v", i, err)
		}
		if seen[in.Date] {
			return 0, apperrors.Validation("overrides[%d].date %s appears more than once", i, in.Date)
		}
		seen[in.Date] = true
		if in.CustomPrice != nil && *in.CustomPrice <= 0 {
			return 0, apperrors.Validation("overrides[%d].custom_price must be greater than 0", i)
		}

		rows = append(rows, models.CalendarAvailability{
			PropertyID:  propertyID,
			Date:        d,
			IsAvailable: in.IsAvailable,
			CustomPrice: in.CustomPrice,
			Notes:       in.Notes,
			AppliedAt:   appliedAt,
		})
		if i == 0 || d.Before(span.Start) {
			span.Start = d
		}
		if i == 0 || !d.Before(span.End) {
			span.End = daterange.NextDay(d)
		}
	}

	err := s.store.LockProperty(ctx, propertyID, func(ctx context.Context, tx repository.Store) error {
		return tx.Availability().UpsertMany(ctx, rows)
	})
	if err != nil {
		return 0, apperrors.Persistence("upsert availability", err)
	}

	invalidate(ctx, s.cache, propertyID)
	metrics.AvailabilityRowsWritten.WithLabelValues("manual").Add(float64(len(rows)))
	publish(ctx, s.publisher, models.EventAvailabilityChanged, models.AvailabilityChangedEvent{
		PropertyID: propertyID,
		From:       daterange.Format(span.Start),
		To:         daterange.Format(span.End),
		Source:     "manual",
		Count:      len(rows),
		Timestamp:  appliedAt,
	}, "property_id", propertyID)
	logger.WithContext(ctx).Info("Availability overrides written",
		"property_id", propertyID, "count", len(rows), "range", span.String())

	return len(rows), nil
}
