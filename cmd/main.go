// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
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

	"github.com/giggle-hq/giggle/internal/database"
	"github.com/giggle-hq/giggle/internal/handler"
	"github.com/giggle-hq/giggle/internal/model"
	"github.com/giggle-hq/giggle/internal/realtime"
	"github.com/giggle-hq/giggle/internal/repository"
	"github.com/giggle-hq/giggle/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

func main() {
	ctx := context.Background()

	// ── 1. Open the store ────────────────────────────────────────────────
	// DB_DRIVER=memory runs without Postgres, useful for local demos.
	var store appStore
	switch driver := getEnv("DB_DRIVER", "postgres"); driver {
	case "memory":
		store = repository.NewMemory()
		log.Println("✓ Using in-memory store")
	case "postgres":
		pool, err := database.NewPool(ctx)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			log.Fatalf("schema: %v", err)
		}
		store = repository.NewPostgres(pool)
		log.Println("✓ Connected to PostgreSQL")
	default:
		log.Fatalf("unknown DB_DRIVER %q", driver)
	}

	if err := database.Seed(ctx, store); err != nil {
		log.Fatalf("seed: %v", err)
	}

	// ── 2. Wire up layers ────────────────────────────────────────────────
	registry := realtime.NewRegistry()
	notifier := realtime.NewNotifier(registry)
	svc := service.NewBookingService(store, notifier)
	gigHandler := handler.NewGigHandler(svc, registry)

	// ── 3. Build the router ───────────────────────────────────────────────
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(handler.Logger)          // structured access log
	r.Use(handler.CORS)            // permissive CORS for demo

	// Health
	r.Get("/health", handler.HealthCheck)

	// API routes
	r.Get("/gents", gigHandler.ListGents)
	r.Route("/gigs", func(r chi.Router) {
		r.Get("/", gigHandler.ListGigs)
		r.Post("/", gigHandler.CreateGig)
		r.Get("/{id}", gigHandler.GetGig)
		r.Put("/{id}", gigHandler.UpdateGig)
		r.Delete("/{id}", gigHandler.DeleteGig)
		r.Get("/{id}/availability", gigHandler.GetAvailability)
		r.Put("/{id}/availability", gigHandler.SetAvailability)
	})

	// Realtime notifications
	r.Get("/ws", gigHandler.Connect)

	// ── 4. Start server with graceful shutdown ────────────────────────────
	port := getEnv("PORT", "8080")
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Run in background goroutine so we can listen for shutdown signal.
	go func() {
		log.Printf("✓ Server listening on http://localhost:%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
	log.Println("server stopped")
}

// appStore is what main needs from a store: everything the service uses
// plus gent creation for seeding.
type appStore interface {
	service.Store
	CreateGent(ctx context.Context, g *model.Gent) error
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
