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

	"image-editor/internal/database"
	"image-editor/internal/editor"
	"image-editor/internal/filesystem"
	"image-editor/internal/handlers"
	"image-editor/internal/indexer"
	"image-editor/internal/logging"
	"image-editor/internal/maintenance"
	"image-editor/internal/media"
	"image-editor/internal/memory"
	"image-editor/internal/metrics"
	"image-editor/internal/middleware"
	"image-editor/internal/nonce"
	"image-editor/internal/ratelimit"
	"image-editor/internal/startup"
	"image-editor/internal/storage"

	"github.com/gorilla/mux"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cmd := &cli.Command{
		Name:    "image-editor",
		Usage:   "Image adjustment backend: contrast and sharpen previews, save as new asset",
		Version: startup.Version,
		Action:  run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				Sources: cli.EnvVars("CONFIG_FILE"),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		startup.LogFatal("%v", err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	startTime := time.Now()

	memResult := memory.ConfigureFromEnv()

	config, err := startup.LoadConfig(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if config.LogFile != "" {
		closer := logging.SetOutputFile(config.LogFile)
		defer closer.Close()
	}

	budget := memory.NewBudget(config.ProcessingMemoryLimit)
	startup.LogMemoryConfig(memResult, budget)

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"uploads":  config.UploadsDir,
		"database": config.DatabaseDir,
	}))
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	metrics.InitializeMetrics()

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	if hasUsers, err := db.HasUsers(ctx); err == nil && !hasUsers {
		logging.Warn("  No users exist yet. Create one with: resetpw create <username>")
	}

	files, err := storage.NewLocal(config.UploadsDir, "/uploads")
	if err != nil {
		return fmt.Errorf("failed to open uploads directory: %w", err)
	}

	lib := openLibrary(config.ImageBackend)
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion, lib.Name())

	store, closeStore, err := openCounterStore(ctx, config, db)
	if err != nil {
		return fmt.Errorf("failed to open rate limit store: %w", err)
	}
	limiter := ratelimit.New(store,
		ratelimit.Policy{Limit: config.RateLimitRequests, Window: config.RateLimitWindow},
		map[string]ratelimit.Policy{
			editor.ActionPreview: {Limit: config.RateLimitRequests, Window: config.RateLimitWindow},
			editor.ActionSave:    {Limit: config.SaveRateLimitRequests, Window: config.RateLimitWindow},
		})
	startup.LogRateLimitInit(store.Name(), config.RateLimitRequests, config.SaveRateLimitRequests, config.RateLimitWindow)

	nonces, err := nonce.NewManager(config.NonceSecret, nonce.DefaultLifetime)
	if err != nil {
		return err
	}
	logins := ratelimit.NewLoginGuard(config.LoginAttempts)

	limits := editor.Limits{
		MaxFileSize: config.MaxFileSize,
		MaxWidth:    config.MaxImageWidth,
		MaxHeight:   config.MaxImageHeight,
		Memory:      budget,
	}

	h := handlers.New(handlers.Deps{
		DB:              db,
		Storage:         files,
		Validator:       editor.NewValidator(db, files, limits),
		Preview:         editor.NewPreviewPipeline(lib, config.PreviewQuality),
		Save:            editor.NewSavePipeline(db, files, limits, config.PublicURL),
		Limiter:         limiter,
		Nonces:          nonces,
		Logins:          logins,
		SessionDuration: config.SessionDuration,
		ImageBackend:    lib.Name(),
		RateLimitStore:  store.Name(),
	})

	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      wrapMiddleware(router, config),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           metricsRouter(h),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	scheduler := maintenance.New()
	reconciler := indexer.New(db, files, indexer.DefaultGracePeriod)
	for _, task := range maintenanceTasks(db, reconciler, store, logins, config.RateLimitWindow) {
		if err := scheduler.Add(task); err != nil {
			return err
		}
	}
	scheduler.Start()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if metricsSrv != nil {
		g.Go(func() error {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			startup.LogShutdownInitiated(sig.String())
		case <-gCtx.Done():
			startup.LogShutdownInitiated("server error")
		}

		shutdown(srv, metricsSrv, scheduler, closeStore)
		return nil
	})

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	return g.Wait()
}

// openLibrary starts the configured image backend, falling back to the pure
// Go library when libvips cannot be used.
func openLibrary(name string) media.Library {
	if name == media.BackendVips {
		if err := media.InitVips(); err != nil {
			startup.LogImageBackendInit(media.BackendVips, err)
			return media.NewImagingLibrary()
		}
	}

	lib, err := media.NewLibrary(name)
	if err != nil {
		startup.LogImageBackendInit(name, err)
		return media.NewImagingLibrary()
	}
	startup.LogImageBackendInit(lib.Name(), nil)
	return lib
}

// openCounterStore returns the configured rate limit store and a func that
// releases it.
func openCounterStore(ctx context.Context, config *startup.Config, db *database.Database) (ratelimit.Store, func() error, error) {
	noop := func() error { return nil }

	switch config.RateLimitStore {
	case startup.StoreSQLite:
		return ratelimit.NewSQLiteStore(db), noop, nil
	case startup.StoreRedis:
		client, err := ratelimit.NewRedisClient(ctx, ratelimit.RedisConfig{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		return ratelimit.NewRedisStore(client), client.Close, nil
	default:
		return ratelimit.NewMemoryStore(), noop, nil
	}
}

type sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// maintenanceTasks lists the background cleanup jobs. Redis expires its own
// counters, so the counter sweep only runs for stores that can sweep.
func maintenanceTasks(db *database.Database, reconciler *indexer.Reconciler, store ratelimit.Store, logins *ratelimit.LoginGuard, window time.Duration) []maintenance.Task {
	tasks := []maintenance.Task{
		{
			Name:     "expired sessions",
			Schedule: "@hourly",
			Run: func(ctx context.Context) (int64, error) {
				remaining, err := db.CleanExpiredSessions(ctx)
				if err != nil {
					return 0, err
				}
				metrics.ActiveSessions.Set(float64(remaining))
				db.UpdateDBMetrics()
				return 0, nil
			},
		},
		{
			Name:     "orphaned uploads",
			Schedule: "@daily",
			Run:      reconciler.Sweep,
		},
		{
			Name:     "login attempts",
			Schedule: "@every 1m",
			Run:      logins.Sweep,
		},
	}

	if s, ok := store.(sweeper); ok {
		tasks = append(tasks, maintenance.Task{
			Name:     "rate limit counters",
			Schedule: "@every " + window.String(),
			Run:      s.Sweep,
		})
	}
	return tasks
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes (no auth required)
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Auth routes
	auth := r.PathPrefix("/api/auth").Subrouter()
	auth.HandleFunc("/login", h.Login).Methods("POST")
	auth.HandleFunc("/logout", h.Logout).Methods("POST")
	auth.HandleFunc("/check", h.CheckAuth).Methods("GET")

	// The editor endpoint authenticates itself so failures use the editor
	// envelope and messages.
	r.HandleFunc("/api/editor", h.EditorAction).Methods("POST")

	upload := h.RequireCapability(database.CapabilityUploadFiles)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(mux.MiddlewareFunc(upload))
	api.HandleFunc("/editor/nonce", h.EditorNonce).Methods("GET")
	api.HandleFunc("/assets", h.UploadAsset).Methods("POST")
	api.HandleFunc("/assets/{id:[0-9]+}", h.GetAsset).Methods("GET")
	api.HandleFunc("/assets/{id:[0-9]+}", h.DeleteAsset).Methods("DELETE")

	r.PathPrefix("/uploads/").Handler(h.RequireCapability("")(h.ServeUploads())).Methods("GET", "HEAD")

	return r
}

func metricsRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", h.MetricsHandler()).Methods("GET")
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	return r
}

// wrapMiddleware applies the middleware chain. The request id is assigned
// first so the access log can carry it.
func wrapMiddleware(router http.Handler, config *startup.Config) http.Handler {
	compressed := middleware.Compression(middleware.DefaultCompressionConfig())(router)
	measured := middleware.Metrics(middleware.DefaultMetricsConfig())(compressed)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	logged := middleware.Logger(loggingConfig)(measured)

	return middleware.RequestID(logged)
}

func shutdown(srv, metricsSrv *http.Server, scheduler *maintenance.Scheduler, closeStore func() error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.ShutdownStep("Maintenance tasks stopped", func() error {
		scheduler.Stop()
		return nil
	})
	startup.ShutdownStep("HTTP server stopped", func() error { return srv.Shutdown(ctx) })
	if metricsSrv != nil {
		startup.ShutdownStep("Metrics server stopped", func() error { return metricsSrv.Shutdown(ctx) })
	}
	startup.ShutdownStep("Rate limit store closed", closeStore)
	startup.ShutdownStep("libvips released", func() error {
		media.ShutdownVips()
		return nil
	})

	startup.LogShutdownComplete()
}
