package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"medstay/internal/cache"
	"medstay/internal/config"
	"medstay/internal/database"
	"medstay/internal/handlers"
	"medstay/internal/logger"
	"medstay/internal/messaging"
	"medstay/internal/middleware"
	"medstay/internal/models"
	"medstay/internal/repository"
	"medstay/internal/search"
	"medstay/internal/service"
)

// Server представляет HTTP сервер API
type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	nats     *messaging.NATSClient
	cache    *cache.ValkeyClient
	search   *search.ElasticsearchClient
	services *service.Services
}

// NewServer создает новый экземпляр сервера и подключает все зависимости
func NewServer(cfg *config.Config) (*Server, error) {
	// Устанавливаем режим Gin
	gin.SetMode(cfg.GinMode)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	server := &Server{config: cfg}

	store, err := server.openStore()
	if err != nil {
		server.Cleanup()
		return nil, err
	}

	publisher := service.NoopPublisher()
	if cfg.NATS.Enabled {
		natsClient, err := messaging.NewNATSClient(cfg.NATS)
		if err != nil {
			server.Cleanup()
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		server.nats = natsClient
		publisher = natsClient
	}

	var calendarCache service.CalendarCache
	if cfg.Cache.Enabled {
		valkeyClient, err := cache.NewValkeyClient(cfg.Cache)
		if err != nil {
			server.Cleanup()
			return nil, err
		}
		server.cache = valkeyClient
		calendarCache = valkeyClient
	}

	var searcher handlers.BookingSearcher
	if cfg.Search.Enabled {
		esClient, err := search.NewElasticsearchClient(cfg.Search)
		if err != nil {
			server.Cleanup()
			return nil, err
		}
		server.search = esClient
		searcher = esClient
	}

	if err := handlers.RegisterValidators(); err != nil {
		server.Cleanup()
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	// Создаем сервисы
	server.services = service.NewServices(store, publisher, calendarCache, cfg.CalendarConcurrency)

	// Создаем роутер
	router := gin.New()

	// Применяем middleware
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Metrics())
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(cfg.RequestTimeout))

	server.router = router

	// Настраиваем роуты
	server.setupRoutes(handlers.NewHandlers(server.services, searcher))

	return server, nil
}

// openStore выбирает хранилище: PostgreSQL или память (для разработки)
func (s *Server) openStore() (repository.Store, error) {
	if s.config.StorageDriver == config.StorageMemory {
		store := repository.NewMemoryStore()
		demo := store.AddProperty(models.Property{OwnerID: "demo-owner", Name: "Demo apartment", BasePrice: 100, MaxGuests: 4})
		logger.Get().Warn("Using in-memory storage, data is lost on restart", "demo_property_id", demo.ID)
		return store, nil
	}

	// Подключаемся к базе данных
	db, err := database.Connect(s.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s.db = db

	// Запускаем миграции
	if err := db.RunMigrations(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repository.NewRepositories(db), nil
}

// setupRoutes настраивает все API роуты
func (s *Server) setupRoutes(h *handlers.Handlers) {
	api := s.router.Group("/api")
	api.Use(middleware.GuestAuth(s.config.JWTSecret))
	{
		manage := middleware.RequireRole(middleware.RoleOwner, middleware.RoleAdmin)

		// Bookings endpoints
		bookings := api.Group("/bookings")
		{
			bookings.POST("", h.CreateBooking)
			bookings.GET("", h.ListBookings)
			bookings.GET("/:id", h.GetBooking)
			bookings.PATCH("/:id", h.UpdateBooking)
			bookings.POST("/:id/cancel", h.CancelBooking)
			bookings.POST("/:id/confirm", manage, h.ConfirmBooking)
			bookings.POST("/:id/check-in", manage, h.CheckInBooking)
			bookings.POST("/:id/check-out", manage, h.CheckOutBooking)
		}

		// Properties endpoints
		properties := api.Group("/properties/:id")
		{
			properties.GET("/availability", h.GetAvailability)
			properties.GET("/availability/:date", h.GetDayAvailability)
			properties.PUT("/availability", manage, h.UpsertAvailability)
			properties.GET("/quote", h.GetQuote)
			properties.GET("/bookings", manage, h.ListPropertyBookings)

			properties.GET("/recurring-patterns", manage, h.ListPatterns)
			properties.POST("/recurring-patterns", manage, h.CreatePattern)
			properties.PUT("/recurring-patterns/:patternId", manage, h.UpdatePattern)
			properties.DELETE("/recurring-patterns/:patternId", manage, h.DeletePattern)
			properties.POST("/recurring-patterns/:patternId/apply", manage, h.ApplyPattern)

			properties.POST("/dynamic-pricing", manage, h.RunDynamicPricing)
		}

		api.GET("/calendar", manage, h.GetPortfolioCalendar)

		// Admin endpoints
		admin := api.Group("/admin", middleware.RequireRole(middleware.RoleAdmin))
		{
			admin.DELETE("/bookings/:id", h.DeleteBooking)
			admin.GET("/bookings/search", h.SearchBookings)
		}
	}

	// Health check endpoint
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// healthCheck обрабатывает health check запросы
func (s *Server) healthCheck(c *gin.Context) {
	response := gin.H{
		"status":  "ok",
		"service": "medstay-api",
		"storage": s.config.StorageDriver,
	}

	status := http.StatusOK

	if s.db != nil {
		dbHealth := s.db.HealthCheck(c.Request.Context())
		response["database"] = dbHealth
		if dbHealth.Status != "healthy" {
			response["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	if s.cache != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.cache.HealthCheck(ctx); err != nil {
			// Календарь работает и без кеша
			response["cache"] = err.Error()
		} else {
			response["cache"] = "healthy"
		}
	}

	c.JSON(status, response)
}

// GetRouter возвращает роутер для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Services возвращает сервисы для фоновых задач
func (s *Server) Services() *service.Services {
	return s.services
}

// Cleanup закрывает соединения
func (s *Server) Cleanup() error {
	log := logger.Get()

	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			log.Error("Error closing NATS connection", "error", err)
		}
	}

	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			log.Error("Error closing Valkey connection", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
