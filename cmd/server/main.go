/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the treasury simulation server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from the environment, then apply flags
  2. Load the economy (constants and city profile)
  3. Initialize SQLite store (archive + save slots)
  4. Create the city and the engine, restoring the latest save
  5. Start the tick scheduler and the autosaver
  6. Start the HTTP server with graceful shutdown

ENVIRONMENT (flags override):
  TREASURY_PORT          -port      HTTP server port (default: 8080)
  TREASURY_DB            -db        SQLite database path; ":memory:" for none
  TREASURY_TICK          -tick      Tick interval (default: 1s)
  TREASURY_TIME_SCALE    -scale     Simulated seconds per real second
  TREASURY_AUTOSAVE      -autosave  Autosave cron spec; "" disables
  TREASURY_ECONOMY_FILE  -economy   Economy TOML file
  TREASURY_LOG_LEVEL     -log-level logrus level
  TREASURY_MODE          -mode      game, test or designer

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler and the autosaver
  2. Write a final save
  3. Stop accepting new connections, wait for active requests (30s)
  4. Close database connection

EXAMPLES:
  ./server -db="./data/treasury.db"
  ./server -db=":memory:" -scale=600 -autosave=""

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Tick scheduler and autosaver
  - config/config.go: Environment configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/treasury-engine/api"
	"github.com/warp/treasury-engine/budget"
	"github.com/warp/treasury-engine/config"
	"github.com/warp/treasury-engine/factory"
	"github.com/warp/treasury-engine/sim"
	"github.com/warp/treasury-engine/store/sqlite"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadServer()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DB, "SQLite database path")
	tick := flag.Duration("tick", cfg.Tick, "Tick interval")
	scale := flag.Float64("scale", cfg.TimeScale, "Simulated seconds per real second")
	autosave := flag.String("autosave", cfg.Autosave, "Autosave cron spec (empty disables)")
	economyFile := flag.String("economy", cfg.EconomyFile, "Economy TOML file")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level")
	mode := flag.String("mode", cfg.Mode, "Simulation mode (game, test, designer)")
	flag.Parse()

	cfg.Port, cfg.DB, cfg.Tick, cfg.TimeScale = *port, *dbPath, *tick, *scale
	cfg.Autosave, cfg.EconomyFile, cfg.LogLevel, cfg.Mode = *autosave, *economyFile, *logLevel, *mode
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	logger.SetLevel(cfg.Level())

	// Economy
	econ, err := factory.LoadEconomy(cfg.EconomyFile)
	if err != nil {
		logger.Fatalf("Failed to load economy: %v", err)
	}
	if cfg.Mode != "" {
		econ.City.Mode, _ = budget.ParseMode(cfg.Mode)
	}

	// Initialize store
	if cfg.DB != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DB), 0o755); err != nil {
			logger.Fatalf("Failed to create database directory: %v", err)
		}
	}
	store, err := sqlite.New(cfg.DB)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// City and engine
	city := sim.NewCity(econ.City)
	host := city.Host(econ.Constants, &budget.ArchivingSink{Archive: store, Log: logger})
	host.Log = logger
	host.Reporter = budget.LogReporter{Log: logger}
	engine := budget.New(host)

	handler := api.NewHandler(engine, city, econ.Constants, store, store, logger)
	if err := handler.RestoreLatest(context.Background()); err != nil {
		logger.WithError(err).Warn("Failed to restore latest save")
	}

	// Schedulers
	scheduler := api.NewScheduler(handler)
	scheduler.Interval = cfg.Tick
	scheduler.TimeScale = cfg.TimeScale
	scheduler.Start()

	autosaver := api.NewAutosaver(handler, cfg.Autosave)
	if err := autosaver.Start(); err != nil {
		logger.Fatalf("Failed to schedule autosave: %v", err)
	}

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	scheduler.Stop()
	autosaver.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := handler.Save(ctx, "shutdown"); err != nil {
		logger.WithError(err).Error("Final save failed")
	}
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server stopped")
}
