package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/toolshed/marketplace/internal/adapters/cache"
	"github.com/toolshed/marketplace/internal/adapters/database"
	"github.com/toolshed/marketplace/internal/adapters/events"
	"github.com/toolshed/marketplace/internal/adapters/providers/geolocation"
	"github.com/toolshed/marketplace/internal/adapters/storage"
	"github.com/toolshed/marketplace/internal/api/handlers"
	"github.com/toolshed/marketplace/internal/api/routes"
	"github.com/toolshed/marketplace/internal/application/services"
	"github.com/toolshed/marketplace/internal/domain/providers"
	"github.com/toolshed/marketplace/internal/infrastructure/clients/postgres"
	"github.com/toolshed/marketplace/internal/infrastructure/clients/redis"
	"github.com/toolshed/marketplace/internal/infrastructure/observability"
	"github.com/toolshed/marketplace/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Log.Env, cfg.Log.Level)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	// Redis backs the geocode cache and the optional live relay. Without it
	// an in-process cache is used and live delivery stays single-instance.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(&cfg.Redis)
		if err != nil {
			if cfg.Events.RedisRelay {
				log.Fatal().Err(err).Msg("Redis is required for the live relay")
			}
			log.Warn().Err(err).Msg("Redis unavailable, using in-process cache")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var cacheProvider providers.CacheProvider
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
	} else {
		cacheProvider = cache.NewMemoryCache()
	}

	// Initialize adapters
	userAdapter := database.NewUserAdapter(pgClient)
	addressAdapter := database.NewAddressAdapter(pgClient)
	toolAdapter := database.NewToolAdapter(pgClient)
	lookupAdapter := database.NewLookupAdapter(pgClient)
	uploadAdapter := database.NewFileUploadAdapter(pgClient)
	listingAdapter := database.NewListingAdapter(pgClient)
	messageAdapter := database.NewMessageAdapter(pgClient)

	var geolocationProvider providers.GeolocationProvider
	switch cfg.Geolocation.Provider {
	case "google":
		if cfg.Geolocation.APIKey == "" {
			log.Warn().Msg("GEOLOCATION_API_KEY is not set; using mock geolocation provider")
			geolocationProvider = geolocation.NewMockGeolocationProvider()
		} else {
			geolocationProvider = geolocation.NewGoogleGeolocationProvider(cfg.Geolocation.APIKey)
		}
	default:
		geolocationProvider = geolocation.NewMockGeolocationProvider()
	}

	fileStorage, err := newFileStorage(&cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize file storage")
	}

	// Live delivery: one bus per instance, optionally fed through Redis
	bus := events.NewMessageBus()
	var publisher providers.MessagePublisher = bus
	var relay *events.RedisRelay
	if cfg.Events.RedisRelay && redisClient != nil {
		relay = events.NewRedisRelay(redisClient, cfg.Events.RelayChannel, bus)
		if err := relay.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start live relay")
		}
		publisher = relay
		log.Info().Str("channel", cfg.Events.RelayChannel).Msg("live relay started")
	}

	// Initialize services
	geocodingService := services.NewGeocodingService(addressAdapter, geolocationProvider, cacheProvider, cfg.Geolocation.CacheTTL, metrics)
	searchService := services.NewListingSearchService(listingAdapter, addressAdapter, geocodingService)
	lookupService := services.NewLookupService(lookupAdapter)
	catalogService := services.NewCatalogService(toolAdapter, listingAdapter, uploadAdapter, fileStorage)
	conversationService := services.NewConversationService(messageAdapter, userAdapter, publisher)
	authService := services.NewAuthService(userAdapter, cfg.Session.Secret, cfg.Session.TTL)

	// Set up router
	router := routes.NewRouter(
		routes.Handlers{
			Auth:      handlers.NewAuthHandler(authService, cfg.Session.CookieName, cfg.Session.Secure),
			Listings:  handlers.NewListingHandler(searchService, catalogService),
			Tools:     handlers.NewToolHandler(catalogService, cfg.Storage.MaxUploadSize),
			Lookups:   handlers.NewLookupHandler(lookupService),
			Messages:  handlers.NewMessageHandler(conversationService),
			SSE:       handlers.NewSSEHandler(bus, metrics),
			WebSocket: handlers.NewWebSocketHandler(bus, metrics, cfg.Server.AllowedOrigins),
		},
		routes.Options{
			Authenticator:  authService,
			CookieName:     cfg.Session.CookieName,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Metrics:        metrics,
		},
	)

	// Create HTTP server. No write timeout: live streams hold responses open.
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")

	// cancelling ctx ends open SSE and websocket loops before Shutdown waits on them
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	if relay != nil {
		if err := relay.Close(); err != nil {
			log.Error().Err(err).Msg("error closing live relay")
		}
	}

	log.Info().Msg("server stopped")
}

func newFileStorage(cfg *config.StorageConfig) (providers.FileStorage, error) {
	if cfg.Driver == "cloudinary" {
		return storage.NewCloudinaryStorage(cfg.CloudinaryURL, cfg.MaxUploadSize)
	}
	return storage.NewLocalStorage(cfg.LocalDir, cfg.MaxUploadSize)
}
