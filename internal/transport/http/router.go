package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ak652231/TraceQ-sub001/internal/platform/metrics"
	"github.com/ak652231/TraceQ-sub001/internal/platform/middleware"
	"github.com/ak652231/TraceQ-sub001/pkg/platform/httputil"
	"github.com/ak652231/TraceQ-sub001/pkg/platform/middleware/requesttime"
)

// DefaultRequestTimeout bounds every API handler except the websocket upgrade.
const DefaultRequestTimeout = 30 * time.Second

// Registrar mounts a feature's routes.
type Registrar interface {
	Register(r chi.Router)
}

// Config lists everything the router mounts. Nil registrars are skipped.
type Config struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Auth           func(http.Handler) http.Handler
	RequestTimeout time.Duration

	// API routes run behind Auth and the request timeout.
	API []Registrar
	// Live routes run behind Auth only.
	Live []Registrar

	// Health reports readiness; nil always answers ok.
	Health func(r *http.Request) error
}

// NewRouter builds the public HTTP surface.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger, cfg.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(req); err != nil {
				logger.WarnContext(req.Context(), "health check failed", "error", err)
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(cfg.Auth)
		}
		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(timeout))
			mount(r, cfg.API)
		})
		mount(r, cfg.Live)
	})
	return r
}

func mount(r chi.Router, registrars []Registrar) {
	for _, reg := range registrars {
		if reg != nil {
			reg.Register(r)
		}
	}
}
