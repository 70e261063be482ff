package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"medstay/internal/daterange"
	apperrors "medstay/internal/errors"
	"medstay/internal/logger"
	"medstay/internal/metrics"
	"medstay/internal/models"
	"medstay/internal/repository"
)

const (
	WeekendFactor   = 1.15
	MinDemandFactor = 0.5
	MaxDemandFactor = 1.5
)

// DefaultSeasonalFactor is the uplift table used when the caller supplies
// no factor for a date: summer 1.2, the December holidays 1.25.
func DefaultSeasonalFactor(d time.Time) float64 {
	switch {
	case d.Month() >= time.June && d.Month() <= time.August:
		return 1.2
	case d.Month() == time.December && d.Day() >= 20:
		return 1.25
	}
	return 1.0
}

// WeekendFactorFor returns the Friday/Saturday uplift.
func WeekendFactorFor(d time.Time) float64 {
	if wd := d.Weekday(); wd == time.Friday || wd == time.Saturday {
		return WeekendFactor
	}
	return 1.0
}

// SeasonalTable resolves caller-supplied factors. Keys are either an exact
// date (2006-01-02) or a two-digit month (01..12); exact dates win. Dates
// without an entry fall back to DefaultSeasonalFactor.
type SeasonalTable map[string]float64

func (t SeasonalTable) Factor(d time.Time) float64 {
	if f, ok := t[daterange.Format(d)]; ok {
		return f
	}
	if f, ok := t[fmt.Sprintf("%02d", int(d.Month()))]; ok {
		return f
	}
	return DefaultSeasonalFactor(d)
}

func (t SeasonalTable) validate() error {
	for key, f := range t {
		if f <= 0 {
			return apperrors.Validation("seasonal factor for %q must be greater than 0", key)
		}
		if _, err := daterange.ParseDate(key); err == nil {
			continue
		}
		month, err := strconv.Atoi(key)
		if err != nil || len(key) != 2 || month < 1 || month > 12 {
			return apperrors.Validation("seasonal factor key %q must be a date or a month 01..12", key)
		}
	}
	return nil
}

// SuggestPrice computes base × seasonal × weekend × demand rounded to the
// nearest whole currency unit.
func SuggestPrice(base float64, d time.Time, seasonal, demand float64) models.PriceSuggestion {
	weekend := WeekendFactorFor(d)
	return models.PriceSuggestion{
		Date:           daterange.Format(d),
		Price:          math.Round(base * seasonal * weekend * demand),
		SeasonalFactor: seasonal,
		WeekendFactor:  weekend,
		DemandFactor:   demand,
	}
}

func validateDemand(demand float64) error {
	if demand < MinDemandFactor || demand > MaxDemandFactor || math.IsNaN(demand) {
		return apperrors.Validation("demand_factor must be between %.1f and %.1f", MinDemandFactor, MaxDemandFactor)
	}
	return nil
}

type DynamicPricingService struct {
	store     repository.Store
	publisher EventPublisher
	cache     CalendarCache
	now       func() time.Time
}

func NewDynamicPricingService(store repository.Store, publisher EventPublisher, cache CalendarCache) *DynamicPricingService {
	if publisher == nil {
		publisher = NoopPublisher()
	}
	return &DynamicPricingService{
		store:     store,
		publisher: publisher,
		cache:     cache,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Generate returns one suggested price per night of r. It never writes.
func (s *DynamicPricingService) Generate(ctx context.Context, propertyID int64, r daterange.Range, demand float64, seasonal SeasonalTable) ([]models.PriceSuggestion, error) {
	if err := validateDemand(demand); err != nil {
		return nil, err
	}
	if err := seasonal.validate(); err != nil {
		return nil, err
	}
	if r.Nights() < 1 || r.Nights() > MaxRangeNights {
		return nil, apperrors.Validation("range must cover 1 to %d nights", MaxRangeNights)
	}

	property, err := getProperty(ctx, s.store, propertyID)
	if err != nil {
		return nil, err
	}

	suggestions := make([]models.PriceSuggestion, 0, r.Nights())
	for _, d := range r.Dates() {
		suggestions = append(suggestions, SuggestPrice(property.BasePrice, d, seasonal.Factor(d), demand))
	}
	return suggestions, nil
}

// GenerateAndApply stores the generated prices as one batch. Only the price
// column is written; availability flags and notes are untouched, so
// re-running with the same inputs is a no-op apart from applied_at.
func (s *DynamicPricingService) GenerateAndApply(ctx context.Context, propertyID int64, r daterange.Range, demand float64, seasonal SeasonalTable) ([]models.PriceSuggestion, error) {
	suggestions, err := s.Generate(ctx, propertyID, r, demand, seasonal)
	if err != nil {
		return nil, err
	}

	appliedAt := s.now()
	rows := make([]models.CalendarAvailability, 0, len(suggestions))
	for _, sg := range suggestions {
		d, _ := daterange.ParseDate(sg.Date)
		price := sg.Price
		if price <= 0 {
			continue
		}
		rows = append(rows, models.CalendarAvailability{
			PropertyID:  propertyID,
			Date:        d,
			CustomPrice: &price,
			AppliedAt:   appliedAt,
		})
	}

	err = s.store.LockProperty(ctx, propertyID, func(ctx context.Context, tx repository.Store) error {
		return tx.Availability().UpsertPrices(ctx, rows)
	})
	if err != nil {
		return nil, apperrors.Persistence("apply dynamic prices", err)
	}

	invalidate(ctx, s.cache, propertyID)
	metrics.AvailabilityRowsWritten.WithLabelValues("dynamic_pricing").Add(float64(len(rows)))
	publish(ctx, s.publisher, models.EventAvailabilityChanged, models.AvailabilityChangedEvent{
		PropertyID: propertyID,
		From:       daterange.Format(r.Start),
		To:         daterange.Format(r.End),
		Source:     "dynamic_pricing",
		Count:      len(rows),
		Timestamp:  appliedAt,
	}, "property_id", propertyID)
	logger.WithContext(ctx).Info("Dynamic prices applied",
		"property_id", propertyID, "range", r.String(), "demand_factor", demand, "dates_written", len(rows))

	return suggestions, nil
}

// Run serves a dynamic-pricing request, previewing or applying.
func (s *DynamicPricingService) Run(ctx context.Context, propertyID int64, req *models.DynamicPricingRequest) (*models.DynamicPricingResponse, error) {
	r, err := ParseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	demand := 1.0
	if req.DemandFactor != nil {
		demand = *req.DemandFactor
	}

	generate := s.Generate
	if req.Apply.Bool() {
		generate = s.GenerateAndApply
	}
	suggestions, err := generate(ctx, propertyID, r, demand, SeasonalTable(req.SeasonalFactors))
	if err != nil {
		return nil, err
	}

	return &models.DynamicPricingResponse{
		PropertyID:  propertyID,
		Suggestions: suggestions,
		Applied:     req.Apply.Bool(),
	}, nil
}
