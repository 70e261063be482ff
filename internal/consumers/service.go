package consumers

import (
	"context"
	"log/slog"

	"github.com/nats-io/stan.go"

	"medstay/internal/cache"
	"medstay/internal/config"
	"medstay/internal/database"
	"medstay/internal/messaging"
	"medstay/internal/models"
	"medstay/internal/repository"
	"medstay/internal/search"
	"medstay/internal/service"
)

const queueGroup = "medstay-consumers"

type ConsumerService struct {
	db       *database.DB
	nats     *messaging.NATSClient
	cache    *cache.ValkeyClient
	store    repository.Store
	services *service.Services
	handlers *Handlers
	subs     []stan.Subscription
}

func NewConsumerService(cfg *config.Config) (*ConsumerService, error) {
	cs := &ConsumerService{}

	// Connect to database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}
	cs.db = db

	// Connect to NATS
	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		cs.Shutdown(context.Background())
		return nil, err
	}
	cs.nats = natsClient

	// The pricing job writes prices, so cached calendars must be invalidated
	var calendarCache service.CalendarCache
	if cfg.Cache.Enabled {
		valkeyClient, err := cache.NewValkeyClient(cfg.Cache)
		if err != nil {
			cs.Shutdown(context.Background())
			return nil, err
		}
		cs.cache = valkeyClient
		calendarCache = valkeyClient
	}

	var indexer BookingIndexer
	if cfg.Search.Enabled {
		esClient, err := search.NewElasticsearchClient(cfg.Search)
		if err != nil {
			cs.Shutdown(context.Background())
			return nil, err
		}
		indexer = esClient
	}

	cs.store = repository.NewRepositories(db)
	cs.services = service.NewServices(cs.store, natsClient, calendarCache, cfg.CalendarConcurrency)
	cs.handlers = NewHandlers(indexer, cs.store.Bookings())

	return cs, nil
}

// Store exposes the storage layer to background jobs.
func (cs *ConsumerService) Store() repository.Store {
	return cs.store
}

func (cs *ConsumerService) Services() *service.Services {
	return cs.services
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	for _, subject := range models.BookingSubjects {
		sub, err := cs.nats.SubscribeQueue(subject, queueGroup, cs.handlers.HandleBookingEvent)
		if err != nil {
			return err
		}
		cs.subs = append(cs.subs, sub)
	}

	slog.Info("All consumers started successfully", "subjects", len(cs.subs))
	return nil
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	// Close, not Unsubscribe: durable queue subscriptions must survive restarts
	for _, sub := range cs.subs {
		if err := sub.Close(); err != nil {
			slog.Error("Error closing subscription", "error", err)
		}
	}

	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if cs.cache != nil {
		if err := cs.cache.Close(); err != nil {
			slog.Error("Error closing Valkey connection", "error", err)
		}
	}

	if cs.db != nil {
		if err := cs.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
