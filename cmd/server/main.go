package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"broker-backend-go/internal/api"
	"broker-backend-go/internal/config"
	"broker-backend-go/internal/database"
	"broker-backend-go/internal/feed"
	"broker-backend-go/internal/instruments"
	"broker-backend-go/internal/logger"
	"broker-backend-go/internal/orders"
	"broker-backend-go/internal/portfolio"
	"broker-backend-go/internal/store"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	userStore := store.NewUsers(db)
	instrumentStore := store.NewInstruments(db)
	marketDataStore := store.NewMarketData(db)
	orderStore := store.NewOrders(db)

	instrumentService := instruments.NewService(
		log, instrumentStore,
		cfg.Instrument.SearchLimit,
		cfg.Instrument.CacheMaxSize,
		time.Duration(cfg.Instrument.CacheTTLMin)*time.Minute,
	)
	orderService := orders.NewService(log, userStore, instrumentStore, marketDataStore, orderStore)
	portfolioService := portfolio.NewService(
		log, userStore, orderStore, instrumentStore, marketDataStore,
		cfg.Portfolio.FailOnDataCorruption,
	)

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Run the market-data refresher alongside the server when enabled.
	if cfg.Feed.Enabled {
		feedClient := feed.NewClient(&cfg.Feed, log)
		refresher := feed.NewRefresher(
			log, feedClient, instrumentStore, marketDataStore,
			time.Duration(cfg.Feed.IntervalMin)*time.Minute,
		)
		go refresher.Run(ctx)
	}

	handler := api.NewHandler(log, instrumentService, orderService, portfolioService)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(handler),
	}

	go func() {
		log.Info("Starting HTTP server", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}
	log.Info("Server has been shut down.")
}
