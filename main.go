package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	appcart "github.com/shelfwise/bookshop/internal/application/cart"
	appcheckout "github.com/shelfwise/bookshop/internal/application/checkout"
	appinventory "github.com/shelfwise/bookshop/internal/application/inventory"
	appreview "github.com/shelfwise/bookshop/internal/application/review"
	"github.com/shelfwise/bookshop/internal/infrastructure/id"
	"github.com/shelfwise/bookshop/internal/infrastructure/memory"
	"github.com/shelfwise/bookshop/internal/infrastructure/observability/oteltrace"
	"github.com/shelfwise/bookshop/internal/infrastructure/observability/prometrics"
	"github.com/shelfwise/bookshop/internal/infrastructure/observability/telemetry"
	"github.com/shelfwise/bookshop/internal/infrastructure/observability/zaplogger"
	"github.com/shelfwise/bookshop/internal/infrastructure/postgres"
	"github.com/shelfwise/bookshop/internal/observability"
	httppresentation "github.com/shelfwise/bookshop/internal/presentation/http"
	"github.com/shelfwise/bookshop/internal/storage"
)

func main() {
	serviceName := getenvDefault("SERVICE_NAME", "bookshop")
	env := getenvDefault("ENV", "dev")
	addr := getenvDefault("HTTP_ADDR", ":8080")

	logger := zaplogger.New(
		observability.F("service", serviceName),
		observability.F("env", env),
	)

	registry := prometrics.New(serviceName, "")
	counters := map[string]observability.Counter{
		observability.MUsecaseRequests: registry.Counter(
			observability.MUsecaseRequests,
			"Total number of use case invocations.",
			"use_case", "outcome"),
		observability.MHTTPRequests: registry.Counter(
			observability.MHTTPRequests,
			"Total number of HTTP requests.",
			"method", "route", "status"),
		observability.MCheckoutOrders: registry.Counter(
			observability.MCheckoutOrders,
			"Checkout commits and aborts.",
			"outcome"),
		observability.MStockReservations: registry.Counter(
			observability.MStockReservations,
			"Stock units reserved and reservations rejected.",
			"outcome"),
	}
	histograms := map[string]observability.Histogram{
		observability.MUsecaseDuration: registry.Histogram(
			observability.MUsecaseDuration,
			"Duration of use case execution in seconds.",
			prometheus.DefBuckets,
			"use_case"),
		observability.MHTTPRequestDuration: registry.Histogram(
			observability.MHTTPRequestDuration,
			"Duration of HTTP requests in seconds.",
			prometheus.DefBuckets,
			"method", "route"),
	}
	tel := telemetry.New(oteltrace.New(serviceName), logger, counters, histograms)

	store, cleanup, err := openStore(logger)
	if err != nil {
		logger.Error("store_open_failed", observability.F("error", err.Error()))
		os.Exit(1)
	}
	defer cleanup()

	idGenerator := id.NewUUIDGenerator()
	checkoutSvc := appcheckout.NewCoordinator(store, idGenerator, tel)
	reviewSvc := appreview.NewService(store, idGenerator, logger)
	inventorySvc := appinventory.NewService(store.Ledger(), logger)
	cartSvc := appcart.NewService(store.Carts(), store.Catalog(), logger)

	handler := httppresentation.NewHandler(checkoutSvc, reviewSvc, inventorySvc, cartSvc, logger, tel)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("http_server_start", observability.F("addr", server.Addr))
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", observability.F("error", err.Error()))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error", observability.F("error", err.Error()))
	} else {
		logger.Info("http_server_stopped")
	}
}

// openStore picks postgres when DATABASE_URL is set, otherwise an in-memory
// store seeded with a small demo catalog.
func openStore(logger observability.Logger) (storage.Store, func(), error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		store, err := postgres.Open(dsn)
		if err != nil {
			return nil, nil, err
		}
		migrationsDir := getenvDefault("MIGRATIONS_DIR", "internal/infrastructure/postgres/migrations")
		if err := store.RunMigrations(migrationsDir); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		logger.Info("store_opened", observability.F("backend", "postgres"))
		return store, func() { _ = store.Close() }, nil
	}

	store := memory.NewStore()
	store.SeedBook("book-go", "The Go Programming Language", decimal.RequireFromString("39.99"), 12, true)
	store.SeedBook("book-sicp", "Structure and Interpretation of Computer Programs", decimal.RequireFromString("54.50"), 5, true)
	store.SeedBook("book-tapl", "Types and Programming Languages", decimal.RequireFromString("88.00"), 3, true)
	logger.Info("store_opened", observability.F("backend", "memory"))
	return store, func() {}, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
