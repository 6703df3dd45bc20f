package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-events/internal/config"
	"ms-events/internal/database/migrations"
	"ms-events/internal/events/cache"
	"ms-events/internal/events/db"
	"ms-events/internal/events/event_api"
	events "ms-events/internal/events/service"
	"ms-events/internal/kafka"
	"ms-events/internal/logger"
	"ms-events/internal/utils"
)

func connectPostgres(ctx context.Context, cfg config.DatabaseConfig, logger *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.PingContext(ctx)
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		sqldb.Close()
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	logger.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *logger.Logger) *bun.DB {
	if cfg.Driver == config.DriverSQLite {
		bunDB, err := db.OpenSQLite(ctx, cfg.DSN)
		if err != nil {
			logger.Fatal("DATABASE", fmt.Sprintf("Failed to open SQLite: %v", err))
		}
		logger.Info("DATABASE", fmt.Sprintf("✅ SQLite database ready at %s", cfg.DSN))
		return bunDB
	}

	bunDB := connectPostgres(ctx, cfg, logger)
	if cfg.AutoMigrate {
		runner := migrations.NewRunner(bunDB, logger)
		if err := runner.RunMigrations(); err != nil {
			logger.Fatal("DATABASE", fmt.Sprintf("Failed to run migrations: %v", err))
		}
		logger.Info("DATABASE", "Migrations applied")
	}
	return bunDB
}

func main() {
	ctx := context.Background()

	envErr := godotenv.Load()
	cfg := config.Load()

	l := logger.NewLogger(cfg.App.LogDir)
	defer l.Close()
	l.SetLevel(logger.ParseLevel(cfg.App.LogLevel))

	l.Info("APP", "Starting Events Service initialization")
	if envErr != nil {
		l.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		l.Info("CONFIG", "Loaded environment variables from .env file")
	}

	bunDB := openDatabase(ctx, cfg.Database, l)
	defer bunDB.Close()

	var opts []events.Option

	if cfg.Redis.Enabled {
		redisClient, err := cache.Connect(ctx, cfg.Redis.Addr)
		if err != nil {
			l.Warn("REDIS", fmt.Sprintf("Redis unavailable, serving lists from the database: %v", err))
		} else {
			defer redisClient.Close()
			opts = append(opts, events.WithCache(cache.NewRedis(redisClient, cfg.Redis.ListTTL)))
			l.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))
		}
	}

	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, cfg.Kafka.AllTopics(), l); err != nil {
			l.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			l.Info("KAFKA", "Required topics ensured successfully")
		}

		producer := kafka.NewProducer(cfg.Kafka.Brokers, l)
		defer producer.Close()
		opts = append(opts, events.WithPublisher(producer, events.Topics{
			Created: cfg.Kafka.Topics.EventCreated,
			Updated: cfg.Kafka.Topics.EventUpdated,
			Deleted: cfg.Kafka.Topics.EventDeleted,
		}))
		l.Info("KAFKA", fmt.Sprintf("Kafka producer initialized for %v", cfg.Kafka.Brokers))
	}

	store := db.New(bunDB, utils.SystemClock{})
	eventService := events.NewEventService(store, utils.SystemClock{}, l, opts...)
	handler := event_api.NewHandler(eventService, l, cfg.App.PublicURL)

	l.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(l))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", handler.Health)
	handler.RegisterRoutes(r)
	r.Route("/api", handler.RegisterRoutes)
	l.Info("ROUTER", "Event routes registered under /events and /api/events")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		l.Info("HTTP", fmt.Sprintf("🚀 Events Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	l.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	l.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		l.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		l.Info("HTTP", "✅ Events Service shutdown complete")
	}
}
