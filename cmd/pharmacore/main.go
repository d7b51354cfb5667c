// Command pharmacore serves the pharmacy inventory and point-of-sale API.
package main

import (
	"context"
	"errors"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"pharmacore/internal/api"
	"pharmacore/internal/assistant"
	"pharmacore/internal/blob"
	"pharmacore/internal/config"
	"pharmacore/internal/core"
	"pharmacore/internal/export"
	"pharmacore/internal/legacy"
	"pharmacore/internal/observability"
	"pharmacore/internal/settings"
	"pharmacore/pkg/domain"
	"pharmacore/pkg/logger"
)

var version = "dev"

func main() {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.ServiceName, cfg.Development())
	logger.SetLevel(cfg.LogLevel)

	logger.Logger.Info().
		Str("service", cfg.ServiceName).
		Str("environment", cfg.Environment).
		Str("version", version).
		Str("storage", cfg.StorageDriver).
		Str("blob", cfg.BlobDriver).
		Msg("Starting pharmacore")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Logger.Fatal().Err(err).Msg("pharmacore stopped with error")
	}
	logger.Logger.Info().Msg("pharmacore stopped")
}

// app holds the long-lived components built from a Config.
type app struct {
	cfg       *config.Config
	store     domain.RecordStore
	service   *core.Service
	exports   *export.Worker
	assistant *assistant.Async
	traceLog  io.Closer
	handler   http.Handler
}

func newApp(ctx context.Context, cfg *config.Config, reg *prometheus.Registry, expvarName string) (*app, error) {
	log := logger.Default()

	store, err := core.OpenRecordStoreWith(core.StorageDriver(cfg.StorageDriver), cfg.SQLitePath, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	settingsStore, err := settings.OpenWith(settings.Driver(cfg.SettingsDriver),
		cfg.SettingsPath, cfg.RedisURL, cfg.SettingsKey, store)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}

	var src legacy.Source = legacy.MapSource{}
	if cfg.LegacyDir != "" {
		src = legacy.NewDirSource(cfg.LegacyDir)
	}

	recorder, err := observability.NewPrometheusRecorder(reg)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	httpMetrics, err := observability.NewHTTPMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("http metrics: %w", err)
	}

	// Without a collector, service spans go to a JSON trace log instead.
	var (
		tracer   core.Tracer = observability.NewOTelTracer(nil)
		traces   *core.JSONTraceTracer
		traceLog io.WriteCloser
	)
	if cfg.JaegerEndpoint == "" {
		if cfg.TraceLogPath != "" {
			if traceLog, err = openTraceLog(cfg.TraceLogPath); err != nil {
				return nil, fmt.Errorf("trace log: %w", err)
			}
		}
		traces = core.NewJSONTracer(traceLog)
		tracer = traces
	}

	svc := core.NewService(store,
		core.WithLogger(log),
		core.WithMetricsRecorder(core.MultiMetricsRecorder{recorder, core.NewExpvarMetricsRecorder(expvarName)}),
		core.WithTracer(tracer),
		core.WithMigrator(legacy.New(src)),
		core.WithSettingsStore(settingsStore),
		core.WithRestoreStockOnDelete(cfg.RestoreStockOnDelete),
	)
	if err := svc.Hydrate(ctx); err != nil {
		// The API stays up and reports the failed phase; mutations answer 503.
		log.Error("hydration failed", "error", err)
	}

	blobs, err := blob.OpenWith(ctx, blob.Driver(cfg.BlobDriver), cfg.BlobFSRoot)
	if err != nil {
		_ = store.Close()
		if traceLog != nil {
			_ = traceLog.Close()
		}
		return nil, fmt.Errorf("blob store: %w", err)
	}
	worker := export.NewWorker(svc, blobs,
		export.WithQueueSize(cfg.ExportQueueSize),
		export.WithLogger(log),
	)
	worker.Start()

	responder := assistant.NewAsync(assistant.Offline{}, cfg.AssistantMaxInFlight)

	h := api.New(svc,
		api.WithExporter(worker),
		api.WithAssistant(responder),
		api.WithHTTPMetrics(httpMetrics),
		api.WithLogger(log),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/debug/vars", expvar.Handler())
	if traces != nil {
		mux.Handle("/debug/traces", tracesHandler(traces))
	}
	mux.Handle("/", otelhttp.NewHandler(h.Router(), cfg.ServiceName))

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	return &app{
		cfg:       cfg,
		store:     store,
		service:   svc,
		exports:   worker,
		assistant: responder,
		traceLog:  traceLog,
		handler:   c.Handler(mux),
	}, nil
}

func openTraceLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
}

// tracesHandler serves the retained service spans, oldest first.
func tracesHandler(t *core.JSONTraceTracer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(t.Entries())
	})
}

// close stops background work and releases the record store.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if err := a.exports.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop exports: %w", err))
	}
	if err := a.assistant.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close assistant: %w", err))
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if a.traceLog != nil {
		if err := a.traceLog.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close trace log: %w", err))
		}
	}
	return errors.Join(errs...)
}

func run(ctx context.Context, cfg *config.Config) error {
	tp, err := observability.InitTracer(ctx, cfg.ServiceName, version, cfg.JaegerEndpoint)
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to initialize tracer")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Logger.Error().Err(err).Msg("Failed to shutdown tracer")
			}
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := newApp(ctx, cfg, reg, "pharmacore")
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Logger.Info().Str("addr", cfg.HTTPAddr).Str("metrics_endpoint", "/metrics").Msg("HTTP server started")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = a.close(context.Background())
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		logger.Logger.Info().Msg("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	shutdownErr := srv.Shutdown(shutdownCtx)
	return errors.Join(shutdownErr, a.close(shutdownCtx))
}
