// Package api exposes the pharmacy service over HTTP.
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pharmacore/internal/assistant"
	"pharmacore/internal/core"
	"pharmacore/internal/export"
	"pharmacore/internal/observability"
	"pharmacore/pkg/domain"
)

// Service is the subset of core.Service used by the handlers.
type Service interface {
	Snapshot() core.State
	AssistantInventory() []domain.Medicine
	RecordSale(ctx context.Context, sale domain.Sale) (domain.Sale, error)
	RecordPurchase(ctx context.Context, purchase domain.Purchase) (domain.Purchase, error)
	DeleteSale(ctx context.Context, id string) error
	DeletePurchase(ctx context.Context, id string) error
	AddMedicine(ctx context.Context, m domain.Medicine) (domain.Medicine, error)
	UpdateMedicine(ctx context.Context, m domain.Medicine) (domain.Medicine, error)
	DeleteMedicine(ctx context.Context, id string) error
	UpdateSettings(ctx context.Context, st domain.Settings) (domain.Settings, error)
	RestoreStockOnDelete() bool
}

// Exporter schedules and serves export jobs.
type Exporter interface {
	Enqueue(ctx context.Context, formats ...export.Format) (export.Job, error)
	Get(id string) (export.Job, bool)
	Open(ctx context.Context, id string, f export.Format) (export.Artifact, io.ReadCloser, error)
}

var _ Service = (*core.Service)(nil)
var _ Exporter = (*export.Worker)(nil)

// Handler bundles the HTTP dependencies.
type Handler struct {
	svc       Service
	exports   Exporter
	assistant assistant.Responder
	metrics   *observability.HTTPMetrics
	logger    core.Logger
	now       func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithExporter enables the /exports routes.
func WithExporter(e Exporter) Option {
	return func(h *Handler) { h.exports = e }
}

// WithAssistant sets the assistant responder. The default is assistant.Offline.
func WithAssistant(r assistant.Responder) Option {
	return func(h *Handler) {
		if r != nil {
			h.assistant = r
		}
	}
}

// WithHTTPMetrics records per-route request metrics.
func WithHTTPMetrics(m *observability.HTTPMetrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l core.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithClock overrides time.Now for stats and backup dates.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// New constructs a Handler.
func New(svc Service, opts ...Option) *Handler {
	h := &Handler{
		svc:       svc,
		assistant: assistant.Offline{},
		logger:    nopLogger{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if h.metrics != nil {
		r.Use(h.metrics.Middleware(routePattern))
	}

	r.Get("/health", h.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", h.state)

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", h.listInventory)
			r.Post("/", h.addMedicine)
			r.Put("/{id}", h.updateMedicine)
			r.Delete("/{id}", h.deleteMedicine)
		})

		r.Route("/sales", func(r chi.Router) {
			r.Get("/", h.listSales)
			r.Post("/", h.recordSale)
			r.Delete("/{id}", h.deleteSale)
		})

		r.Route("/purchases", func(r chi.Router) {
			r.Get("/", h.listPurchases)
			r.Post("/", h.recordPurchase)
			r.Delete("/{id}", h.deletePurchase)
		})

		r.Get("/settings", h.getSettings)
		r.Put("/settings", h.updateSettings)
		r.Get("/stats", h.stats)
		r.Post("/assistant", h.ask)
		r.Get("/backup", h.backup)

		r.Route("/exports", func(r chi.Router) {
			r.Post("/", h.createExport)
			r.Get("/{id}", h.getExport)
			r.Get("/{id}/{format}", h.downloadExport)
		})
	})
	return r
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	st := h.svc.Snapshot()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":               "ok",
		"phase":                st.Phase,
		"sync":                 st.Status,
		"restoreStockOnDelete": h.svc.RestoreStockOnDelete(),
	})
}

func (h *Handler) state(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.Snapshot())
}
