package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medstay/cmd/consumers/jobs"
	"medstay/internal/config"
	"medstay/internal/consumers"
	"medstay/internal/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	logger.Get().Info("Starting consumers service...")

	// Override NATS client ID for consumers
	cfg.NATS.ClientID = "medstay-consumers"

	// Create and start consumers
	consumerService, err := consumers.NewConsumerService(cfg)
	if err != nil {
		logger.Fatal("Failed to create consumer service", "error", err)
	}

	// Start consuming messages
	if err := consumerService.Start(); err != nil {
		logger.Fatal("Failed to start consumers", "error", err)
	}

	ctx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()

	var pricingJob *jobs.DynamicPricingJob
	if cfg.PricingJob.Enabled {
		pricingJob = jobs.NewDynamicPricingJob(
			consumerService.Store().Properties(),
			consumerService.Services().DynamicPricing,
			cfg.PricingJob,
		)
		pricingJob.Start(ctx)
	}

	logger.Get().Info("Consumers service started successfully", "pricing_job", cfg.PricingJob.Enabled)

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Get().Info("Shutting down consumers service...")

	if pricingJob != nil {
		pricingJob.Stop()
	}
	stopJobs()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := consumerService.Shutdown(shutdownCtx); err != nil {
		logger.Get().Error("Error during shutdown", "error", err)
	}

	logger.Get().Info("Consumers service stopped")
}
