package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"medstay/internal/daterange"
	apperrors "medstay/internal/errors"
	"medstay/internal/logger"
	"medstay/internal/metrics"
	"medstay/internal/models"
	"medstay/internal/repository"
)

// Materialize expands a pattern into one override per matching weekday in
// [StartDate, EndDate]. It has no side effects.
func Materialize(pattern *models.RecurringPattern) []models.CalendarAvailability {
	span, err := pattern.Span()
	if err != nil {
		return nil
	}

	days := make(map[time.Weekday]bool, len(pattern.DaysOfWeek))
	for _, d := range pattern.DaysOfWeek {
		days[time.Weekday(d)] = true
	}

	var patternID *int64
	if pattern.ID != 0 {
		id := pattern.ID
		patternID = &id
	}

	var out []models.CalendarAvailability
	for _, d := range span.Dates() {
		if !days[d.Weekday()] {
			continue
		}
		available := pattern.IsAvailable
		out = append(out, models.CalendarAvailability{
			PropertyID:  pattern.PropertyID,
			Date:        d,
			IsAvailable: &available,
			CustomPrice: pattern.CustomPrice,
			Notes:       pattern.Notes,
			PatternID:   patternID,
		})
	}
	return out
}

type PatternService struct {
	store     repository.Store
	publisher EventPublisher
	cache     CalendarCache
	now       func() time.Time
}

func NewPatternService(store repository.Store, publisher EventPublisher, cache CalendarCache) *PatternService {
	if publisher == nil {
		publisher = NoopPublisher()
	}
	return &PatternService{
		store:     store,
		publisher: publisher,
		cache:     cache,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *PatternService) List(ctx context.Context, propertyID int64) ([]models.RecurringPattern, error) {
	if _, err := getProperty(ctx, s.store, propertyID); err != nil {
		return nil, err
	}
	patterns, err := s.store.Patterns().ListByProperty(ctx, propertyID)
	if err != nil {
		return nil, apperrors.Persistence("list patterns", err)
	}
	return nonNil(patterns), nil
}

// Create stores the pattern and materializes it in the same transaction.
func (s *PatternService) Create(ctx context.Context, propertyID int64, req *models.RecurringPatternRequest) (*models.ApplyPatternResponse, error) {
	pattern, err := patternFromRequest(propertyID, req)
	if err != nil {
		return nil, err
	}
	if _, err := getProperty(ctx, s.store, propertyID); err != nil {
		return nil, err
	}

	var resp *models.ApplyPatternResponse
	err = s.store.LockProperty(ctx, propertyID, func(ctx context.Context, tx repository.Store) error {
		if err := tx.Patterns().Create(ctx, pattern); err != nil {
			return err
		}
		resp, err = s.apply(ctx, tx, pattern, nil)
		return err
	})
	if err != nil {
		return nil, apperrors.Persistence("create pattern", err)
	}

	s.changed(ctx, pattern, resp, "pattern_create")
	return resp, nil
}

// Update replaces the pattern definition and re-materializes it. Dates the
// old definition covered but the new one does not are kept unless
// req.ClearStale is set, in which case the rows this pattern still owns on
// those dates are deleted.
func (s *PatternService) Update(ctx context.Context, propertyID, patternID int64, req *models.RecurringPatternRequest) (*models.ApplyPatternResponse, error) {
	next, err := patternFromRequest(propertyID, req)
	if err != nil {
		return nil, err
	}

	var resp *models.ApplyPatternResponse
	err = s.store.LockProperty(ctx, propertyID, func(ctx context.Context, tx repository.Store) error {
		previous, err := getPattern(ctx, tx, propertyID, patternID)
		if err != nil {
			return err
		}

		next.ID = previous.ID
		next.CreatedAt = previous.CreatedAt
		next.LastAppliedAt = previous.LastAppliedAt
		if err := tx.Patterns().Update(ctx, next); err != nil {
			return err
		}

		var stale []time.Time
		if req.ClearStale.Bool() {
			stale = staleDates(previous, next)
		}
		resp, err = s.apply(ctx, tx, next, stale)
		return err
	})
	if err != nil {
		return nil, apperrors.Persistence("update pattern", err)
	}

	s.changed(ctx, next, resp, "pattern_update")
	return resp, nil
}

// Apply re-materializes a stored pattern, making it the most recently
// applied writer for every date it covers.
func (s *PatternService) Apply(ctx context.Context, propertyID, patternID int64) (*models.ApplyPatternResponse, error) {
	var (
		resp    *models.ApplyPatternResponse
		pattern *models.RecurringPattern
	)
	err := s.store.LockProperty(ctx, propertyID, func(ctx context.Context, tx repository.Store) error {
		var err error
		pattern, err = getPattern(ctx, tx, propertyID, patternID)
		if err != nil {
			return err
		}
		resp, err = s.apply(ctx, tx, pattern, nil)
		return err
	})
	if err != nil {
		return nil, apperrors.Persistence("apply pattern", err)
	}

	s.changed(ctx, pattern, resp, "pattern_apply")
	return resp, nil
}

// Delete removes the pattern definition. Its overrides stay in place unless
// clearDates is set.
func (s *PatternService) Delete(ctx context.Context, propertyID, patternID int64, clearDates bool) (int, error) {
	var (
		cleared int
		pattern *models.RecurringPattern
	)
	err := s.store.LockProperty(ctx, propertyID, func(ctx context.Context, tx repository.Store) error {
		var err error
		pattern, err = getPattern(ctx, tx, propertyID, patternID)
		if err != nil {
			return err
		}
		if clearDates {
			dates := make([]time.Time, 0)
			for _, row := range Materialize(pattern) {
				dates = append(dates, row.Date)
			}
			if cleared, err = tx.Availability().ClearPatternDates(ctx, propertyID, patternID, dates); err != nil {
				return err
			}
		}
		return tx.Patterns().Delete(ctx, patternID)
	})
	if err != nil {
		return 0, apperrors.Persistence("delete pattern", err)
	}

	invalidate(ctx, s.cache, propertyID)
	logger.WithContext(ctx).Info("Recurring pattern deleted",
		"property_id", propertyID, "pattern_id", patternID, "dates_cleared", cleared)
	if cleared > 0 {
		span, _ := pattern.Span()
		s.publishAvailability(ctx, propertyID, span, "pattern_delete", cleared)
	}
	return cleared, nil
}

func (s *PatternService) apply(ctx context.Context, tx repository.Store, pattern *models.RecurringPattern, stale []time.Time) (*models.ApplyPatternResponse, error) {
	appliedAt := s.now()
	rows := Materialize(pattern)
	for i := range rows {
		rows[i].AppliedAt = appliedAt
	}

	cleared := 0
	if len(stale) > 0 {
		n, err := tx.Availability().ClearPatternDates(ctx, pattern.PropertyID, pattern.ID, stale)
		if err != nil {
			return nil, err
		}
		cleared = n
	}
	if err := tx.Availability().UpsertMany(ctx, rows); err != nil {
		return nil, err
	}
	if err := tx.Patterns().MarkApplied(ctx, pattern.ID, appliedAt); err != nil {
		return nil, err
	}
	pattern.LastAppliedAt = &appliedAt

	return &models.ApplyPatternResponse{
		Pattern:      *pattern,
		DatesWritten: len(rows),
		DatesCleared: cleared,
	}, nil
}

func (s *PatternService) changed(ctx context.Context, pattern *models.RecurringPattern, resp *models.ApplyPatternResponse, source string) {
	invalidate(ctx, s.cache, pattern.PropertyID)
	metrics.AvailabilityRowsWritten.WithLabelValues(source).Add(float64(resp.DatesWritten))

	logger.WithContext(ctx).Info("Recurring pattern applied",
		"property_id", pattern.PropertyID,
		"pattern_id", pattern.ID,
		"source", source,
		"dates_written", resp.DatesWritten,
		"dates_cleared", resp.DatesCleared)

	span, err := pattern.Span()
	if err == nil {
		s.publishAvailability(ctx, pattern.PropertyID, span, source, resp.DatesWritten+resp.DatesCleared)
	}
}

func (s *PatternService) publishAvailability(ctx context.Context, propertyID int64, span daterange.Range, source string, count int) {
	publish(ctx, s.publisher, models.EventAvailabilityChanged, models.AvailabilityChangedEvent{
		PropertyID: propertyID,
		From:       daterange.Format(span.Start),
		To:         daterange.Format(span.End),
		Source:     source,
		Count:      count,
		Timestamp:  s.now(),
	}, "property_id", propertyID)
}

// staleDates lists the dates materialized by previous but not by next.
func staleDates(previous, next *models.RecurringPattern) []time.Time {
	keep := make(map[string]bool)
	for _, row := range Materialize(next) {
		keep[daterange.Format(row.Date)] = true
	}
	var stale []time.Time
	for _, row := range Materialize(previous) {
		if !keep[daterange.Format(row.Date)] {
			stale = append(stale, row.Date)
		}
	}
	return stale
}

func getPattern(ctx context.Context, store repository.Store, propertyID, patternID int64) (*models.RecurringPattern, error) {
	pattern, err := store.Patterns().GetByID(ctx, patternID)
	if err != nil {
		return nil, apperrors.Persistence("get pattern", err)
	}
	if pattern == nil || pattern.PropertyID != propertyID {
		return nil, apperrors.NotFound("pattern %d not found for property %d", patternID, propertyID)
	}
	return pattern, nil
}

func patternFromRequest(propertyID int64, req *models.RecurringPatternRequest) (*models.RecurringPattern, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.Validation("name is required")
	}

	days, err := normalizeWeekdays(req.DaysOfWeek)
	if err != nil {
		return nil, err
	}

	start, err := daterange.ParseDate(req.StartDate)
	if err != nil {
		return nil, apperrors.Validation("start_date: %v", err)
	}
	end, err := daterange.ParseDate(req.EndDate)
	if err != nil {
		return nil, apperrors.Validation("end_date: %v", err)
	}
	span, err := daterange.Inclusive(start, end)
	if err != nil {
		return nil, apperrors.Validation("%v", err)
	}
	if span.Nights() > MaxRangeNights {
		return nil, apperrors.Validation("pattern spans %d days, maximum is %d", span.Nights(), MaxRangeNights)
	}

	if req.CustomPrice != nil && *req.CustomPrice <= 0 {
		return nil, apperrors.Validation("custom_price must be greater than 0")
	}

	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}

	return &models.RecurringPattern{
		PropertyID:  propertyID,
		Name:        name,
		DaysOfWeek:  days,
		StartDate:   start,
		EndDate:     end,
		IsAvailable: available,
		CustomPrice: req.CustomPrice,
		Notes:       req.Notes,
	}, nil
}

// normalizeWeekdays returns the set sorted and de-duplicated.
func normalizeWeekdays(in []int) ([]int, error) {
	if len(in) == 0 {
		return nil, apperrors.Validation("days_of_week must not be empty")
	}
	seen := make(map[int]bool, len(in))
	out := make([]int, 0, len(in))
	for _, d := range in {
		if d < 0 || d > 6 {
			return nil, apperrors.Validation("days_of_week entries must be 0 (Sunday) to 6 (Saturday), got %d", d)
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Ints(out)
	return out, nil
}
