// Package http provides the HTTP surface of the predefine server.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/artpar/predefine/adapters/metrics"
)

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
	Error  string `json:"error,omitempty"`
}

// InfoResponse represents the root endpoint response.
type InfoResponse struct {
	Name        string            `json:"name" example:"predefine"`
	Version     string            `json:"version" example:"1.0.0"`
	Model       string            `json:"model" example:"Predefine"`
	Fingerprint string            `json:"fingerprint"`
	Buckets     map[string]string `json:"buckets"`
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	store HealthChecker
}

// HealthChecker is implemented by backends that can report readiness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NewHealthHandler creates a new health handler.
// store may be nil when the backend has nothing to check.
func NewHealthHandler(store HealthChecker) *HealthHandler {
	return &HealthHandler{store: store}
}

// Liveness returns a simple liveness check.
//
//	@Summary		Liveness check
//	@Description	Returns OK if the service is running
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	HealthResponse	"status: ok"
//	@Router			/health [get]
//	@Router			/health/live [get]
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readiness checks if the store is ready to handle traffic.
//
//	@Summary		Readiness check
//	@Description	Checks if the service and its store are ready to handle traffic
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	HealthResponse	"status: ok"
//	@Failure		503	{object}	HealthResponse	"status: unhealthy"
//	@Router			/health/ready [get]
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.store != nil {
		if err := h.store.HealthCheck(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Error: err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// RouterConfig holds the configuration of the router.
type RouterConfig struct {
	// Prefix is the API mount point, e.g. "/v1".
	Prefix string
	// Version is reported by the root endpoint.
	Version string

	Metrics     *metrics.Collector // optional; enables the metrics middleware and MetricsPath
	MetricsPath string

	// SwaggerInstance is the swag instance serving the OpenAPI document.
	// Empty disables /swagger.
	SwaggerInstance string
}

// NewRouter creates the main HTTP router.
func NewRouter(predefines *PredefineHandler, health *HealthHandler, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics))
	}

	// Health endpoints
	r.Get("/health", health.Liveness)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.Metrics.Handler())
	}

	if cfg.SwaggerInstance != "" {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.InstanceName(cfg.SwaggerInstance),
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	prefix := strings.TrimSuffix(cfg.Prefix, "/")
	r.Get("/", rootHandler(predefines, prefix, cfg.Version))
	r.Route(prefix+"/"+predefines.desc.Collection(), predefines.Routes)

	return r
}

// rootHandler describes the server and links every bucket.
//
//	@Summary		Service information
//	@Tags			System
//	@Produce		json
//	@Success		200	{object}	InfoResponse
//	@Router			/ [get]
func rootHandler(h *PredefineHandler, prefix, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		base := prefix + "/" + h.desc.Collection()
		buckets := make(map[string]string, len(h.desc.Buckets()))
		for _, b := range h.desc.Buckets() {
			buckets[b] = base + "/" + b
		}
		writeJSON(w, http.StatusOK, InfoResponse{
			Name:        "predefine",
			Version:     version,
			Model:       h.desc.ModelName(),
			Fingerprint: h.desc.Fingerprint(),
			Buckets:     buckets,
		})
	}
}

// BucketURLs returns the list URL of every bucket below prefix.
func BucketURLs(h *PredefineHandler, prefix string) []string {
	base := strings.TrimSuffix(prefix, "/") + "/" + h.desc.Collection()
	urls := make([]string, 0, len(h.desc.Buckets()))
	for _, b := range h.desc.Buckets() {
		urls = append(urls, base+"/"+b)
	}
	return urls
}

// skipInstrumentation reports whether path is an internal endpoint.
func skipInstrumentation(path string) bool {
	return strings.HasPrefix(path, "/health") || path == "/metrics" || strings.HasPrefix(path, "/swagger")
}

// NewMetricsMiddleware creates middleware that records request metrics.
// Requests are labelled with the matched chi route pattern.
func NewMetricsMiddleware(m *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipInstrumentation(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := statusLabel(ww.Status())

			m.RequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			m.RequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		})
	}
}

// statusLabel returns a string label for the status code.
func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}

// NewLoggingMiddleware creates a new logging middleware.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if skipInstrumentation(r.URL.Path) {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
