// Package admin serves the operational HTTP surface: health, metrics and
// manual sync triggers.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"refsync/internal/reconcile/orchestrator"
	"refsync/internal/reconcile/stats"
	dErrors "refsync/pkg/domain-errors"
	"refsync/pkg/platform/httputil"
)

// Runner is the orchestrator as seen by the admin surface.
type Runner interface {
	Run(ctx context.Context) (stats.Report, error)
	Running() bool
	LastReport() (stats.Report, bool)
}

type Handler struct {
	runner   Runner
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	// runCtx parents triggered runs so they outlive the request.
	runCtx context.Context
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func WithGatherer(g prometheus.Gatherer) Option {
	return func(h *Handler) {
		h.gatherer = g
	}
}

// New builds the handler. Runs triggered over HTTP stop when runCtx is done.
func New(runCtx context.Context, runner Runner, opts ...Option) *Handler {
	h := &Handler{
		runner:   runner,
		runCtx:   runCtx,
		logger:   slog.Default(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router returns the admin routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	r.Route("/sync", func(r chi.Router) {
		r.Post("/", h.handleTrigger)
		r.Get("/last", h.handleLast)
	})
	return r
}

type healthResponse struct {
	Status  string `json:"status"`
	Running bool   `json:"running"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok", Running: h.runner.Running()})
}

type triggerResponse struct {
	Status string `json:"status"`
}

func (h *Handler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if h.runner.Running() {
		httputil.WriteError(w, orchestrator.ErrRunInProgress)
		return
	}
	requestID := middleware.GetReqID(r.Context())
	go func() {
		_, err := h.runner.Run(h.runCtx)
		switch {
		case errors.Is(err, orchestrator.ErrRunInProgress):
			h.logger.WarnContext(h.runCtx, "triggered sync overlapped a running one", "request_id", requestID)
		case err != nil:
			h.logger.ErrorContext(h.runCtx, "triggered sync failed", "request_id", requestID, "error", err)
		}
	}()
	httputil.WriteJSON(w, http.StatusAccepted, triggerResponse{Status: "started"})
}

func (h *Handler) handleLast(w http.ResponseWriter, _ *http.Request) {
	report, ok := h.runner.LastReport()
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no run has finished yet"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}
