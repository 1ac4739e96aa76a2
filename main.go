package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"avif-everywhere/internal/batch"
	"avif-everywhere/internal/database"
	"avif-everywhere/internal/handlers"
	"avif-everywhere/internal/logging"
	"avif-everywhere/internal/memory"
	"avif-everywhere/internal/metrics"
	"avif-everywhere/internal/middleware"
	"avif-everywhere/internal/scheduler"
	"avif-everywhere/internal/startup"
	"avif-everywhere/internal/variant"
	"avif-everywhere/internal/workers"

	"github.com/gorilla/mux"
)

func main() {
	startTime := time.Now()

	memResult := memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	startup.LogMemoryConfig(memResult)

	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	db.SetDefaults(config.Settings())
	startup.LogDatabaseInit(time.Since(dbStart))

	engine := startup.BuildEngine(config, db)

	metrics.InitializeMetrics()
	collector := metrics.NewCollector(db, time.Minute)
	collector.Start()

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	uploads := scheduler.New(engine.Service, db, config.UploadDelay)
	runner := batch.NewRunner(engine.Service, db, monitor, batch.Config{
		Size:    config.BatchSize,
		Pause:   config.BatchPause,
		Workers: workers.ForCPU(config.BatchSize),
	})

	h := handlers.New(engine.Service, db, runner, uploads, engine.Resolver, handlers.Options{
		UploadsDir:      config.UploadsDir,
		VipsVersion:     engine.VipsVersion,
		UploadsWritable: func() bool { return startup.DirWritable(config.UploadsDir) },
	})

	router := mux.NewRouter()
	h.Register(router)
	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)

	// Conversions run inside requests, so there is no write timeout.
	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		handleShutdown(srv, uploads, monitor, collector)
		close(done)
	}()

	startup.LogServerStarted(config.Port, time.Since(startTime))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done

	variant.ShutdownVips()
	if err := db.Close(); err != nil {
		logging.Warn("Failed to close database: %v", err)
	}
	startup.LogShutdownComplete()
}

func handleShutdown(srv *http.Server, uploads *scheduler.Scheduler, monitor *memory.Monitor, collector *metrics.Collector) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping upload scheduler")
	if err := uploads.Stop(ctx); err != nil {
		logging.Warn("Upload scheduler did not drain: %v", err)
	} else {
		startup.LogShutdownStepComplete("Upload scheduler stopped")
	}

	startup.LogShutdownStep("Stopping background monitors")
	collector.Stop()
	monitor.Stop()
	startup.LogShutdownStepComplete("Background monitors stopped")
}
