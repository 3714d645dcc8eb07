// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/ticket-booking/internal/cache"
	"github.com/Shivanand-hulikatti/ticket-booking/internal/config"
	"github.com/Shivanand-hulikatti/ticket-booking/internal/database"
	"github.com/Shivanand-hulikatti/ticket-booking/internal/handler"
	"github.com/Shivanand-hulikatti/ticket-booking/internal/queue"
	"github.com/Shivanand-hulikatti/ticket-booking/internal/repository"
	"github.com/Shivanand-hulikatti/ticket-booking/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// ── 1. Reservation core ───────────────────────────────────────────────
	var (
		events   service.EventStore
		bookings service.BookingStore
	)
	switch cfg.StorageDriver {
	case config.StorageMemory:
		store := repository.NewMemoryStore()
		events, bookings = store, store
		log.Println("✓ Using in-memory storage")
	default:
		pool, err := database.NewPool(startupCtx, cfg.DB)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer pool.Close()
		if err := database.Migrate(startupCtx, pool); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		events = repository.NewEventRepository(pool)
		bookings = repository.NewBookingRepository(pool)
		log.Println("✓ Connected to PostgreSQL")
	}

	// ── 2. Optional cache and notifications ───────────────────────────────
	opts := []service.Option{}
	if cfg.Redis.Enabled() {
		rdb, err := cache.NewRedisClient(startupCtx, cfg.Redis)
		if err != nil {
			log.Printf("WARN: list cache disabled: %v", err)
		} else {
			defer rdb.Close()
			opts = append(opts, service.WithCache(cache.New(rdb, cfg.Redis.TTL, cfg.Redis.Prefix)))
			log.Printf("✓ List cache enabled (redis %s, ttl %s)", cfg.Redis.Addr, cfg.Redis.TTL)
		}
	}
	if publisher := queue.NewPublisher(cfg.Queue); publisher != nil {
		opts = append(opts, service.WithNotifier(publisher))
		log.Printf("✓ Booking notifications to queue %q", cfg.Queue.QueueName)
	}

	// ── 3. Wire up layers ────────────────────────────────────────────────
	eventSvc := service.NewEventService(events, bookings, opts...)
	eventHandler := handler.NewEventHandler(eventSvc)
	router := handler.NewRouter(eventHandler, cfg.CORSOrigins)

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Printf("✓ Server listening on http://localhost:%s", cfg.Port)
		srvErr <- srv.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
		}
	case <-stopCtx.Done():
		log.Println("shutting down server…")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("graceful shutdown failed: %v", err)
	}
	log.Println("server stopped")
}
