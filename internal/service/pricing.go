package service

import (
	"context"
	"math"
	"time"

	"medstay/internal/daterange"
	apperrors "medstay/internal/errors"
	"medstay/internal/models"
	"medstay/internal/repository"
)

// MaxRangeNights bounds every range the engine expands day by day.
const MaxRangeNights = 731

type PricingService struct {
	store repository.Store
}

func NewPricingService(store repository.Store) *PricingService {
	return &PricingService{store: store}
}

// PriceForNight resolves one night: the override's custom price when it is
// set and positive, the property base price otherwise.
func (s *PricingService) PriceForNight(ctx context.Context, propertyID int64, date time.Time) (float64, error) {
	night := daterange.Day(date)
	total, err := s.PriceForRange(ctx, propertyID, night, daterange.NextDay(night))
	if err != nil {
		return 0, err
	}
	return total, nil
}

// PriceForRange sums the resolved nightly prices over [checkIn, checkOut).
func (s *PricingService) PriceForRange(ctx context.Context, propertyID int64, checkIn, checkOut time.Time) (float64, error) {
	quote, err := s.Quote(ctx, propertyID, checkIn, checkOut)
	if err != nil {
		return 0, err
	}
	return quote.Total, nil
}

// Quote returns the per-night breakdown and total for a prospective stay.
func (s *PricingService) Quote(ctx context.Context, propertyID int64, checkIn, checkOut time.Time) (*models.QuoteResponse, error) {
	r, err := stayRange(checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	property, err := getProperty(ctx, s.store, propertyID)
	if err != nil {
		return nil, err
	}

	nightly, total, err := priceRange(ctx, s.store, property, r)
	if err != nil {
		return nil, err
	}

	return &models.QuoteResponse{
		PropertyID: property.ID,
		CheckIn:    daterange.Format(r.Start),
		CheckOut:   daterange.Format(r.End),
		Nights:     r.Nights(),
		Nightly:    nightly,
		Total:      total,
	}, nil
}

// priceRange loads the overrides of r in one read and resolves every night
// against them.
func priceRange(ctx context.Context, store repository.Store, property *models.Property, r daterange.Range) ([]models.NightlyPrice, float64, error) {
	overrides, err := overridesByDate(ctx, store, property.ID, r)
	if err != nil {
		return nil, 0, err
	}

	nightly := make([]models.NightlyPrice, 0, r.Nights())
	var total float64
	for _, d := range r.Dates() {
		price, custom := resolvePrice(property, overrides[daterange.Format(d)])
		nightly = append(nightly, models.NightlyPrice{Date: daterange.Format(d), Price: price, Custom: custom})
		total += price
	}
	return nightly, roundCents(total), nil
}

func resolvePrice(property *models.Property, override *models.CalendarAvailability) (float64, bool) {
	if override.HasCustomPrice() {
		return *override.CustomPrice, true
	}
	return property.BasePrice, false
}

func overridesByDate(ctx context.Context, store repository.Store, propertyID int64, r daterange.Range) (map[string]*models.CalendarAvailability, error) {
	rows, err := store.Availability().ListRange(ctx, propertyID, r)
	if err != nil {
		return nil, apperrors.Persistence("load availability overrides", err)
	}
	byDate := make(map[string]*models.CalendarAvailability, len(rows))
	for i := range rows {
		byDate[daterange.Format(rows[i].Date)] = &rows[i]
	}
	return byDate, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func getProperty(ctx context.Context, store repository.Store, id int64) (*models.Property, error) {
	property, err := store.Properties().GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Persistence("get property", err)
	}
	if property == nil {
		return nil, apperrors.NotFound("property %d not found", id)
	}
	return property, nil
}

// stayRange validates a check-in/check-out pair.
func stayRange(checkIn, checkOut time.Time) (daterange.Range, error) {
	r, err := daterange.New(checkIn, checkOut)
	if err != nil {
		return daterange.Range{}, apperrors.Validation("%v", err)
	}
	if r.Nights() > MaxRangeNights {
		return daterange.Range{}, apperrors.Validation("range of %d nights exceeds the maximum of %d", r.Nights(), MaxRangeNights)
	}
	return r, nil
}

// ParseRange parses two YYYY-MM-DD strings into a bounded half-open range.
func ParseRange(from, to string) (daterange.Range, error) {
	start, err := daterange.ParseDate(from)
	if err != nil {
		return daterange.Range{}, apperrors.Validation("%v", err)
	}
	end, err := daterange.ParseDate(to)
	if err != nil {
		return daterange.Range{}, apperrors.Validation("%v", err)
	}
	return stayRange(start, end)
}
