package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/timesync/server/internal/config"
	"github.com/timesync/server/internal/handlers"
	custommw "github.com/timesync/server/internal/middleware"
	"github.com/timesync/server/internal/observability"
	"github.com/timesync/server/internal/repository"
	"github.com/timesync/server/internal/services"
)

const serviceVersion = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize telemetry
	telemetry, err := observability.Initialize(context.Background(), observability.NewConfig("timesync-server", serviceVersion))
	if err != nil {
		log.Printf("Warning: telemetry initialization failed: %v", err)
	}

	// Initialize database
	var db *sql.DB
	if cfg.UsePostgres() {
		log.Println("Using PostgreSQL database")
		db, err = repository.NewPostgresDB(cfg.DatabaseURL)
	} else {
		log.Println("Using SQLite database")
		db, err = repository.NewSQLiteDB(cfg.DatabasePath)
	}
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Initialize repositories
	projectRepo := repository.NewProjectRepository(db)
	entryRepo := repository.NewTimeEntryRepository(db)
	connectionRepo := repository.NewConnectionRepository(db)
	mappingRepo := repository.NewProjectMappingRepository(db)
	syncedUnitRepo := repository.NewSyncedUnitRepository(db)
	runRepo := repository.NewSyncRunRepository(db)

	// Initialize services
	encryptionService, err := services.NewEncryptionService(cfg.Security.EncryptionKey)
	if err != nil {
		log.Fatalf("Failed to initialize encryption service: %v", err)
	}

	remoteFactory := func(baseURL, token string) services.RemoteAPI {
		if baseURL == "" {
			baseURL = cfg.Remote.BaseURL
		}
		return services.NewRemoteClient(baseURL, cfg.Remote.AuthHeader, token)
	}

	syncService := services.NewSyncService(
		entryRepo,
		connectionRepo,
		mappingRepo,
		syncedUnitRepo,
		runRepo,
		services.NewAggregatorService(),
		services.NewRetryPolicy(),
		encryptionService,
		remoteFactory,
		time.Duration(cfg.Sync.RunTimeoutSeconds)*time.Second,
		time.Duration(cfg.Sync.WriteDelayMillis)*time.Millisecond,
	)

	// Initialize handlers
	syncHandler := handlers.NewSyncHandler(syncService, runRepo, connectionRepo)
	mappingHandler := handlers.NewMappingHandler(mappingRepo, projectRepo, connectionRepo, syncService)
	connectionHandler := handlers.NewConnectionHandler(connectionRepo, encryptionService)
	timesheetHandler := handlers.NewTimesheetHandler(projectRepo, entryRepo)
	healthHandler := handlers.NewHealthHandler()

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TracingMiddleware("timesync-server"))
	if httpMetrics, err := observability.NewHTTPMetrics(); err == nil {
		r.Use(observability.MetricsMiddleware(httpMetrics))
	} else {
		log.Printf("Warning: HTTP metrics unavailable: %v", err)
	}
	r.Use(custommw.APIKeyAuth(cfg.Security.APIKey, cfg.Security.APIKeyHeader))

	// Routes
	r.Get("/health", healthHandler.HealthCheck)
	r.Get("/api/health", healthHandler.HealthCheck)

	r.Route("/api/sync", func(r chi.Router) {
		r.Post("/", syncHandler.Sync)
		r.Post("/preview", syncHandler.Preview)
		r.Get("/runs", syncHandler.ListRuns)
		r.Get("/runs/{id}", syncHandler.GetRun)
	})

	r.Route("/api/mappings", func(r chi.Router) {
		r.Get("/", mappingHandler.List)
		r.Post("/", mappingHandler.Create)
		r.Patch("/{id}", mappingHandler.Update)
	})

	r.Route("/api/connections", func(r chi.Router) {
		r.Get("/", connectionHandler.Get)
		r.Post("/", connectionHandler.Create)
	})

	r.Route("/api/projects", func(r chi.Router) {
		r.Get("/", mappingHandler.LocalProjects)
		r.Post("/", timesheetHandler.CreateProject)
	})
	r.Post("/api/entries", timesheetHandler.CreateEntry)

	r.Get("/api/remote/projects", mappingHandler.RemoteProjects)

	// Create server
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 360 * time.Second, // Longer than the sync run timeout
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("TimeSync Server starting on %s", cfg.ServerAddress)
		log.Printf("Remote system: %s", cfg.Remote.BaseURL)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(ctx); err != nil {
			log.Printf("Telemetry shutdown error: %v", err)
		}
	}

	log.Println("Server stopped")
}
