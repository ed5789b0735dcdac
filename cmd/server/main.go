package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/herogram/herogram/internal/config"
	"github.com/herogram/herogram/internal/database"
	"github.com/herogram/herogram/internal/email"
	"github.com/herogram/herogram/internal/handler"
	"github.com/herogram/herogram/internal/logger"
	"github.com/herogram/herogram/internal/middleware"
	"github.com/herogram/herogram/internal/repository"
	"github.com/herogram/herogram/internal/router"
	"github.com/herogram/herogram/internal/scheduler"
	"github.com/herogram/herogram/internal/service"
	"github.com/herogram/herogram/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("version", "0.1.0").Msg("starting Herogram server")

	// Connect to PostgreSQL
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("connected to PostgreSQL")

	// Connect to Redis
	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("connected to Redis")

	// Initialize repositories
	avatarRepo := repository.NewAvatarRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db, cfg.Queue.MaxRetries, cfg.Queue.BackoffBase)

	// Initialize avatar artifact storage
	store, err := storage.NewLocalStore(cfg.Storage.BasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize avatar storage")
	}

	// Initialize services
	sentCache := service.NewSentCache(rdb, cfg.Redis.SentTTL)
	avatarSvc := service.NewAvatarService(avatarRepo, log)
	deliverySvc := service.NewDeliveryService(deliveryRepo, avatarRepo, sentCache, log)

	shareSvc, err := service.NewShareService(avatarRepo, store, cfg.Share.SigningKey, cfg.Share.BaseURL, cfg.Share.TokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize share service")
	}
	log.Info().Msg("share service initialized")

	// Initialize handlers
	h := handler.New(db, rdb, log, cfg, avatarSvc, deliverySvc, shareSvc)

	// Initialize middleware
	mw := middleware.New(rdb, log, cfg)

	// Set up router
	r := router.New(h, mw, log, cfg)

	// Optional in-process queue scheduler. Leave disabled when an external
	// cron drives the worker command instead.
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sender, err := email.NewSender(context.Background(), cfg.Email)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize email transport")
		}

		composer := email.NewComposer("", "", "")
		processor := service.NewProcessor(deliveryRepo, store, composer, sender, sentCache, log, service.ProcessorOptions{
			BatchSize: cfg.Queue.BatchSize,
			DryRun:    cfg.Queue.DryRun,
		})

		sched, err = scheduler.New(cfg.Scheduler.Interval, func(ctx context.Context) {
			if _, err := processor.Run(ctx); err != nil {
				log.Error().Err(err).Msg("queue processing run failed")
			}
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize scheduler")
		}
		sched.Start()
	}

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	if sched != nil {
		sched.Stop()
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
