package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medstay/internal/config"
	"medstay/internal/daterange"
	"medstay/internal/models"
	"medstay/internal/repository"
	"medstay/internal/service"
)

func TestDynamicPricingJob_RunOnce(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	first := store.AddProperty(models.Property{BasePrice: 100, MaxGuests: 2})
	store.AddProperty(models.Property{BasePrice: 80, MaxGuests: 2})
	services := service.NewServices(store, service.NoopPublisher(), nil, 2)

	job := NewDynamicPricingJob(store.Properties(), services.DynamicPricing, config.PricingJobConfig{
		HorizonDays:  3,
		DemandFactor: 1.2,
	})
	// Thursday 2025-02-27: the horizon covers Thu, Fri, Sat.
	job.now = func() time.Time { return time.Date(2025, 2, 27, 15, 30, 0, 0, time.UTC) }

	assert.Equal(t, 2, job.RunOnce(ctx))
	assert.Equal(t, 2, job.RunOnce(ctx), "re-running is harmless")

	r, err := daterange.New(time.Date(2025, 2, 27, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	rows, err := store.Availability().ListRange(ctx, first.ID, r)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	var prices []float64
	for _, row := range rows {
		prices = append(prices, *row.CustomPrice)
	}
	assert.Equal(t, []float64{120, 138, 138}, prices)
}

func TestDynamicPricingJob_InvalidDemandSkipsProperties(t *testing.T) {
	store := repository.NewMemoryStore()
	store.AddProperty(models.Property{BasePrice: 100, MaxGuests: 2})
	services := service.NewServices(store, service.NoopPublisher(), nil, 2)

	job := NewDynamicPricingJob(store.Properties(), services.DynamicPricing, config.PricingJobConfig{
		HorizonDays:  7,
		DemandFactor: 3,
	})
	assert.Equal(t, 0, job.RunOnce(context.Background()))
}

func TestDynamicPricingJob_StartStop(t *testing.T) {
	store := repository.NewMemoryStore()
	services := service.NewServices(store, service.NoopPublisher(), nil, 2)

	job := NewDynamicPricingJob(store.Properties(), services.DynamicPricing, config.PricingJobConfig{Interval: time.Hour})
	job.Start(context.Background())
	job.Stop()
}
