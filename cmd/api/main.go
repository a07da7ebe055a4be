package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ridelink/ride-coordinator/internal/api/handlers"
	"github.com/ridelink/ride-coordinator/internal/api/routes"
	"github.com/ridelink/ride-coordinator/internal/config"
	"github.com/ridelink/ride-coordinator/internal/domain/ride"
	"github.com/ridelink/ride-coordinator/internal/service/location"
	"github.com/ridelink/ride-coordinator/internal/service/matching"
	"github.com/ridelink/ride-coordinator/internal/service/pricing"
	"github.com/ridelink/ride-coordinator/internal/service/session"
	"github.com/ridelink/ride-coordinator/internal/service/wallet"
	"github.com/ridelink/ride-coordinator/internal/storage"
	"github.com/ridelink/ride-coordinator/pkg/cache"
	"github.com/ridelink/ride-coordinator/pkg/database"
	"github.com/ridelink/ride-coordinator/pkg/logger"
	"github.com/ridelink/ride-coordinator/pkg/monitoring"
	"github.com/ridelink/ride-coordinator/pkg/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting RideLink coordinator",
		logger.String("env", cfg.Server.Env),
		logger.String("port", cfg.Server.Port),
	)

	// Initialize New Relic
	nrApp, err := monitoring.New(monitoring.Config{
		LicenseKey: cfg.NewRelic.LicenseKey,
		AppName:    cfg.NewRelic.AppName,
		Enabled:    cfg.NewRelic.Enabled,
	})
	if err != nil {
		appLogger.Warn("Failed to initialize New Relic", logger.Err(err))
		nrApp, _ = monitoring.New(monitoring.Config{})
	} else if nrApp.IsEnabled() {
		appLogger.Info("New Relic APM initialized",
			logger.String("app_name", cfg.NewRelic.AppName))
	}
	defer nrApp.Shutdown(10 * time.Second)

	// Initialize Redis
	redisClient, err := cache.NewRedisClient(cache.Config{
		Host:        cfg.Redis.Host,
		Port:        cfg.Redis.Port,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		PoolSize:    cfg.Redis.PoolSize,
		MinIdleConn: cfg.Redis.MinIdleConn,
		DialTimeout: cfg.Redis.DialTimeout,
		ReadTimeout: cfg.Redis.ReadTimeout,
	})
	if err != nil {
		appLogger.Fatal("Failed to connect to Redis", logger.Err(err))
	}
	defer cache.Close(redisClient)

	appLogger.Info("Connected to Redis")

	// Initialize PostgreSQL
	postgresDB, err := database.NewPostgresDB(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConnections,
		MaxIdle:  cfg.Database.MaxIdleConns,
	})
	if err != nil {
		appLogger.Fatal("Failed to connect to PostgreSQL", logger.Err(err))
	}
	defer postgresDB.Close()

	appLogger.Info("Connected to PostgreSQL")

	// Stores
	rideStore := storage.NewPostgresRideStore(postgresDB, appLogger)
	userStore := storage.NewPostgresUserStore(postgresDB)

	// WebSocket hub and lifecycle notifier
	wsHub := websocket.NewHub(appLogger)
	go wsHub.Run()
	notifier := websocket.NewRideNotifier(wsHub)

	// Services
	locations := location.NewRegistry(redisClient, appLogger)
	pricingSvc := pricing.NewService(pricing.Config{Rates: map[ride.Type]pricing.Rates{
		ride.TypeBike:     pricing.Rates(cfg.Pricing.Bike),
		ride.TypeCabNonAC: pricing.Rates(cfg.Pricing.CabNonAC),
		ride.TypeCabAC:    pricing.Rates(cfg.Pricing.CabAC),
		ride.TypeParcel:   pricing.Rates(cfg.Pricing.Parcel),
	}})
	rejections := matching.NewRedisRejections(redisClient)
	coordinator := matching.NewCoordinator(rideStore, userStore, locations,
		pricingSvc, rejections, notifier, appLogger, matching.Config{
			RadiusMeters: cfg.Matching.RadiusMeters,
			MatchWindow:  cfg.Matching.MatchWindow,
		})
	tracker := session.NewTracker(rideStore, appLogger)
	ledger := wallet.NewLedger(userStore, appLogger)

	// Handlers
	h := handlers.NewHandlers(rideStore, userStore, coordinator, tracker,
		ledger, locations, wsHub, notifier, appLogger, nrApp, cfg.JWT)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	routes.SetupRoutes(router, h, nrApp.Application, cfg.JWT.Secret)

	appLogger.Info("Routes configured")

	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		appLogger.Info("Server starting", logger.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", logger.Err(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", logger.Err(err))
	}

	appLogger.Info("Server stopped gracefully")
}
