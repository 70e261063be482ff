package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"medstay/internal/daterange"
	apperrors "medstay/internal/errors"
	"medstay/internal/metrics"
	"medstay/internal/models"
	"medstay/internal/repository"
)

const (
	defaultCalendarConcurrency = 8
	maxCalendarProperties      = 100
)

// CalendarService merges bookings, overrides and prices into day cells.
type CalendarService struct {
	store       repository.Store
	cache       CalendarCache
	concurrency int
}

func NewCalendarService(store repository.Store, cache CalendarCache, concurrency int) *CalendarService {
	if concurrency <= 0 {
		concurrency = defaultCalendarConcurrency
	}
	return &CalendarService{store: store, cache: cache, concurrency: concurrency}
}

// DayView renders one date. A booked date is never available.
func (s *CalendarService) DayView(ctx context.Context, propertyID int64, date time.Time) (*models.DayView, error) {
	d := daterange.Day(date)
	view, err := s.RangeView(ctx, propertyID, daterange.Range{Start: d, End: daterange.NextDay(d)})
	if err != nil {
		return nil, err
	}
	return &view.Days[0], nil
}

// RangeView renders every date of [r.Start, r.End) in order.
func (s *CalendarService) RangeView(ctx context.Context, propertyID int64, r daterange.Range) (*models.RangeView, error) {
	if r.Nights() < 1 || r.Nights() > MaxRangeNights {
		return nil, apperrors.Validation("range must cover 1 to %d days", MaxRangeNights)
	}

	cacheVersion := int64(-1)
	if s.cache != nil {
		view, version, ok := s.cache.GetRange(ctx, propertyID, r)
		if ok {
			metrics.CalendarCacheLookups.WithLabelValues("hit").Inc()
			return view, nil
		}
		metrics.CalendarCacheLookups.WithLabelValues("miss").Inc()
		cacheVersion = version
	}

	property, err := getProperty(ctx, s.store, propertyID)
	if err != nil {
		return nil, err
	}
	bookings, err := s.store.Bookings().FindOverlapping(ctx, propertyID, r, 0)
	if err != nil {
		return nil, apperrors.Persistence("load bookings", err)
	}
	overrides, err := overridesByDate(ctx, s.store, propertyID, r)
	if err != nil {
		return nil, err
	}

	view := buildRangeView(property, r, bookings, overrides)
	if s.cache != nil && cacheVersion >= 0 {
		s.cache.SetRange(ctx, cacheVersion, r, view)
	}
	return view, nil
}

func buildRangeView(property *models.Property, r daterange.Range, bookings []models.Booking, overrides map[string]*models.CalendarAvailability) *models.RangeView {
	view := &models.RangeView{
		PropertyID: property.ID,
		From:       daterange.Format(r.Start),
		To:         daterange.Format(r.End),
		Days:       make([]models.DayView, 0, r.Nights()),
	}

	for _, d := range r.Dates() {
		key := daterange.Format(d)
		override := overrides[key]
		price, custom := resolvePrice(property, override)

		day := models.DayView{
			Date:           key,
			IsAvailable:    override.Available(),
			Price:          price,
			HasCustomPrice: custom,
		}
		if override != nil {
			day.Notes = override.Notes
		}
		for i := range bookings {
			if bookings[i].Range().Contains(d) {
				id := bookings[i].ID
				day.IsBooked = true
				day.IsAvailable = false
				day.BookingID = &id
				break
			}
		}
		view.Days = append(view.Days, day)
	}
	return view
}

// MultiPropertyView fetches each property independently with bounded
// concurrency. Any failure fails the whole view.
func (s *CalendarService) MultiPropertyView(ctx context.Context, propertyIDs []int64, r daterange.Range) (models.MultiPropertyView, error) {
	if len(propertyIDs) == 0 {
		return nil, apperrors.Validation("at least one property id is required")
	}
	if len(propertyIDs) > maxCalendarProperties {
		return nil, apperrors.Validation("at most %d properties per request", maxCalendarProperties)
	}

	var mu sync.Mutex
	result := make(models.MultiPropertyView, len(propertyIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range propertyIDs {
		mu.Lock()
		_, dup := result[id]
		result[id] = models.RangeView{}
		mu.Unlock()
		if dup {
			continue
		}

		g.Go(func() error {
			view, err := s.RangeView(gctx, id, r)
			if err != nil {
				return err
			}
			mu.Lock()
			result[id] = *view
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
