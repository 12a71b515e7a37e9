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
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-booking/internal/analytics"
	analyticsapi "ms-booking/internal/analytics/api"
	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/booking/api"
	bookingdb "ms-booking/internal/booking/db"
	"ms-booking/internal/config"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/dbrouter"
	"ms-booking/internal/dbsync"
	"ms-booking/internal/logger"
	"ms-booking/internal/notify"
)

func connectPostgres(name, dsn string, cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Connecting to %s database (attempt %d/%d)", name, i+1, maxRetries))
		sqldb, err = sql.Open("postgres", dsn)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open %s: %v", name, err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to %s: %v", name, err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if sqldb == nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open %s database handle", name))
	}

	// The mirror may be down at boot. The router will route around it, so
	// only the primary is fatal.
	if err != nil {
		if name == "primary" {
			log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to primary after %d attempts: %v", maxRetries, err))
		}
		log.Warn("DATABASE", fmt.Sprintf("Mirror unreachable at startup, continuing: %v", err))
	} else {
		log.Info("DATABASE", fmt.Sprintf("✅ %s connection successful", name))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	return bun.NewDB(sqldb, pgdialect.New())
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Booking Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	primary := connectPostgres("primary", cfg.Database.PrimaryDSN, cfg.Database, log)
	mirror := connectPostgres("mirror", cfg.Database.MirrorDSN, cfg.Database, log)
	defer primary.Close()
	defer mirror.Close()

	if err := migrations.ApplyAll(migrations.DefaultOptions(), map[string]*bun.DB{
		"primary": primary,
		"mirror":  mirror,
	}); err != nil {
		log.Warn("DATABASE", fmt.Sprintf("Migration run incomplete: %v", err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	defer redisClient.Close()
	log.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))

	prober := &dbrouter.SQLProber{DB: primary.DB, Timeout: cfg.Router.ProbeTimeout}
	router := dbrouter.NewRouter(redisClient, prober, log, cfg.Router.CircuitTTL, cfg.Router.MemoTTL)
	router.Primary = primary
	router.Mirror = mirror

	syncLock := &dbsync.Lock{Client: redisClient, TTL: cfg.Sync.LockTTL}
	syncer := dbsync.NewSyncer(primary, mirror, syncLock, log)
	router.Reconciler = syncer

	var producer *notify.Producer
	if cfg.Kafka.Enabled {
		if err := notify.EnsureTopicExists(cfg.Kafka.Brokers, cfg.Kafka.Topics.BookingEvents); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Booking events topic ensured successfully")
		}
		producer = notify.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.BookingEvents, log)
		defer producer.Close()
	} else {
		log.Warn("KAFKA", "Kafka disabled, notifications will not be sent")
	}

	var gateway booking.PaymentGateway
	if cfg.Stripe.SecretKey != "" {
		booking.InitStripe(cfg.Stripe.SecretKey)
		gateway = &booking.StripeGateway{}
		log.Info("APP", "Stripe payment gateway initialized")
	}

	dataLayer := &bookingdb.DB{Router: router}

	var events booking.Publisher
	if producer != nil {
		events = producer
	}
	bookingService := booking.NewService(dataLayer, events, gateway, log, cfg.Booking.TaxRate)

	handler := &api.Handler{
		Booking: bookingService,
		DB:      dataLayer,
		Syncer:  syncer,
		Logger:  log,
	}

	analyticsHandler := analyticsapi.NewHandler(analytics.NewService(router), log)

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	if cfg.Kafka.Enabled {
		mailer := notify.NewMailer(cfg.Email, log)
		consumer := notify.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.BookingEvents, cfg.Kafka.GroupID, log)
		defer consumer.Close()
		go consumer.Start(consumerCtx, mailer.Handle)
	}

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	mount := func(r chi.Router) {
		r.Route("/api/booking", func(r chi.Router) {
			handler.Routes(r)
			analyticsHandler.RegisterRoutes(r)
		})
	}
	if os.Getenv("OIDC_ISSUER") != "" {
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware())
			log.Info("AUTH", "OIDC middleware applied to API routes")
			mount(r)
		})
	} else {
		log.Warn("AUTH", "OIDC_ISSUER not set, falling back to unverified JWT claims")
		mount(r)
	}

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Booking Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	stopConsumer()
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Booking Service shutdown complete")
	}
}
