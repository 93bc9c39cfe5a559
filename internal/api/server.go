// Package api provides the HTTP server for plano.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/plano-ai/plano/internal/app/engagement"
	"github.com/plano-ai/plano/internal/app/logbook"
	"github.com/plano-ai/plano/internal/app/planner"
	"github.com/plano-ai/plano/internal/domain"
	"github.com/plano-ai/plano/internal/health"
	"github.com/plano-ai/plano/internal/infra/metrics"
	"github.com/plano-ai/plano/internal/logger"
)

// Version is reported by /api/version.
var Version = "dev"

// Services are the application services behind the API.
// Notifications and Health are optional.
type Services struct {
	Plans         *planner.PlanService
	Progress      *engagement.ProgressService
	Logbook       *logbook.Logbook
	Notifications *engagement.NotificationService
	Health        *health.Checker
}

// Server is the plano HTTP API server.
type Server struct {
	svc            Services
	metricsEnabled bool
	timeout        time.Duration
	log            *zap.Logger
	now            func() time.Time
}

// NewServer creates a new API server.
func NewServer(svc Services) *Server {
	return &Server{
		svc:     svc,
		timeout: 2 * time.Minute,
		log:     logger.Named("api"),
		now:     time.Now,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(corsMiddleware)
	r.Use(metricsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		if s.svc.Health != nil && !s.svc.Health.IsHealthy() {
			status = "degraded"
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": status})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": Version})
		})
		r.Get("/health/checks", s.handleHealthChecks)

		r.Route("/plan", func(r chi.Router) {
			r.Get("/", s.handleGetPlan)
			r.Put("/", s.handleSavePlan)
			r.Delete("/", s.handleResetPlan)
			r.Get("/today", s.handleToday)
			r.Get("/raw", s.handleRawPlan)
			r.Post("/import", s.handleImportPlan)
			r.Put("/{day}", s.handleUpdateDay)
		})

		r.Route("/logs", func(r chi.Router) {
			r.Get("/", s.handleListLogs)
			r.Post("/", s.handleRecordLog)
		})

		r.Route("/progress", func(r chi.Router) {
			r.Get("/", s.handleProgress)
			r.Delete("/", s.handleClearProgress)
			r.Get("/daily", s.handleDaily)
			r.Get("/weekly", s.handleWeekly)
		})

		r.Get("/notifications", s.handleNotifications)
		r.Post("/notifications/{id}/shown", s.handleNotificationShown)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    kind,
		},
	})
}

// fail maps a service error to its HTTP status.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	if status >= 500 {
		s.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeError(w, status, kind, err.Error())
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrUnknownDay), errors.Is(err, domain.ErrNoPhotos):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrMealNotFound), errors.Is(err, domain.ErrNoPlan), errors.Is(err, domain.ErrNotificationNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrDuplicateLog):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, domain.ErrUnsupportedDocument):
		return http.StatusUnsupportedMediaType, "unsupported_document"
	case errors.Is(err, domain.ErrServiceUnavailable), errors.Is(err, domain.ErrBadServiceResponse):
		return http.StatusBadGateway, "external_service"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// corsMiddleware adds CORS headers for the local web client.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware counts requests by route pattern and status code.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	})
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
