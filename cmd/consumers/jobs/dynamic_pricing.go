package jobs

import (
	"context"
	"log/slog"
	"time"

	"medstay/internal/config"
	"medstay/internal/daterange"
	"medstay/internal/models"
	"medstay/internal/repository"
	"medstay/internal/service"
)

// PriceApplier writes generated prices into the calendar.
type PriceApplier interface {
	GenerateAndApply(ctx context.Context, propertyID int64, r daterange.Range, demand float64, seasonal service.SeasonalTable) ([]models.PriceSuggestion, error)
}

// DynamicPricingJob periodically refreshes nightly prices for every property
// over a rolling horizon. Re-running it for the same day writes the same prices.
type DynamicPricingJob struct {
	properties repository.PropertyStore
	pricing    PriceApplier
	cfg        config.PricingJobConfig
	now        func() time.Time
	ticker     *time.Ticker
	done       chan struct{}
}

func NewDynamicPricingJob(properties repository.PropertyStore, pricing PriceApplier, cfg config.PricingJobConfig) *DynamicPricingJob {
	return &DynamicPricingJob{
		properties: properties,
		pricing:    pricing,
		cfg:        cfg,
		now:        time.Now,
		done:       make(chan struct{}),
	}
}

// Start runs the job immediately and then on every interval until Stop.
func (j *DynamicPricingJob) Start(ctx context.Context) {
	interval := j.cfg.Interval
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	slog.Info("Starting dynamic pricing job",
		"interval", interval.String(),
		"horizon_days", j.cfg.HorizonDays,
		"demand_factor", j.cfg.DemandFactor)

	j.ticker = time.NewTicker(interval)

	go func() {
		j.RunOnce(ctx)
		for {
			select {
			case <-j.ticker.C:
				j.RunOnce(ctx)
			case <-ctx.Done():
				return
			case <-j.done:
				slog.Info("Dynamic pricing job stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the background job
func (j *DynamicPricingJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
}

// RunOnce reprices every property and returns how many were updated. A
// failing property is logged and skipped.
func (j *DynamicPricingJob) RunOnce(ctx context.Context) int {
	horizon := j.cfg.HorizonDays
	if horizon <= 0 {
		horizon = 90
	}
	if horizon > service.MaxRangeNights {
		horizon = service.MaxRangeNights
	}

	start := daterange.Day(j.now())
	r, err := daterange.New(start, start.AddDate(0, 0, horizon))
	if err != nil {
		slog.Error("Invalid pricing horizon", "error", err)
		return 0
	}

	properties, err := j.properties.List(ctx)
	if err != nil {
		slog.Error("Failed to list properties for pricing", "error", err)
		return 0
	}

	demand := j.cfg.DemandFactor
	if demand == 0 {
		demand = 1.0
	}

	updated := 0
	for _, p := range properties {
		if ctx.Err() != nil {
			break
		}
		if _, err := j.pricing.GenerateAndApply(ctx, p.ID, r, demand, nil); err != nil {
			slog.Error("Failed to apply dynamic pricing", "property_id", p.ID, "error", err)
			continue
		}
		updated++
	}

	slog.Info("Dynamic pricing refresh finished",
		"properties", len(properties),
		"updated", updated,
		"from", daterange.Format(r.Start),
		"to", daterange.Format(r.End))

	return updated
}
