package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mr1hm/go-relief-triage/internal/api"
	"github.com/mr1hm/go-relief-triage/internal/broadcast"
	"github.com/mr1hm/go-relief-triage/internal/config"
	"github.com/mr1hm/go-relief-triage/internal/geo"
	"github.com/mr1hm/go-relief-triage/internal/intake"
	"github.com/mr1hm/go-relief-triage/internal/logging"
	"github.com/mr1hm/go-relief-triage/internal/matching"
	"github.com/mr1hm/go-relief-triage/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	index := geo.Default()
	if cfg.Triage.GazetteerPath != "" {
		index, err = geo.LoadTable(cfg.Triage.GazetteerPath)
		if err != nil {
			logging.Fatalf("Failed to load gazetteer: %v", err)
		}
	}
	slog.Info("gazetteer loaded", "places", index.Len())

	if dir := filepath.Dir(cfg.DB.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logging.Fatalf("Failed to create data directory: %v", err)
		}
	}
	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := seedSafeZones(ctx, db); err != nil {
		logging.Fatalf("Failed to seed safe zones: %v", err)
	}

	// Urgent requests fan out to stream subscribers
	broadcaster := broadcast.NewBroadcaster()

	mgr := intake.NewManager(cfg, db, broadcaster, intake.WithFollowUps(db, index))
	mgr.Start(ctx)

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))

	handler := api.NewHandler(db, mgr, broadcaster, index, cfg.Triage)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	// Close streams first so Shutdown is not held open by SSE clients
	broadcaster.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// Drain queued submissions before the store goes away
	mgr.Stop()
	cancel()

	slog.Info("shutdown complete")
}

// seedSafeZones installs the default relief hubs into an empty store.
func seedSafeZones(ctx context.Context, repo repository.DonationRepository) error {
	zones, err := repo.ListSafeZones(ctx)
	if err != nil {
		return err
	}
	if len(zones) > 0 {
		return nil
	}

	for _, z := range matching.DefaultSafeZones() {
		if err := repo.AddSafeZone(ctx, &z); err != nil {
			return err
		}
	}
	slog.Info("seeded safe zones", "count", len(matching.DefaultSafeZones()))
	return nil
}
