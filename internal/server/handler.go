// Package server is a reference implementation of the remote aggregation
// service. It answers the requests of remote.Client with pivots computed by
// the local engine over the tables of a Catalog.
package server

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/paveg/crosstab/internal/aggregator"
	"github.com/paveg/crosstab/internal/errors"
	"github.com/paveg/crosstab/internal/monitoring"
	"github.com/paveg/crosstab/internal/remote"
	"github.com/paveg/crosstab/internal/version"
	httpSwagger "github.com/swaggo/http-swagger"

	// Registers the Swagger document served under /swagger/.
	_ "github.com/paveg/crosstab/internal/server/docs"
)

const (
	// BasePath is where NewServer mounts the handler.
	BasePath = "/api/analytics"
	// DefaultServiceName is reported by GET /health.
	DefaultServiceName = "crosstab-analytics"

	maxBodyBytes = 1 << 20
)

// Handler serves the analytics API. Routes are relative to the mount point.
type Handler struct {
	catalog  Catalog
	registry *aggregator.Registry
	logger   *slog.Logger
	metrics  *monitoring.MetricsCollector
	cache    *Cache
	service  string
	mux      *http.ServeMux
}

// Option configures a Handler.
type Option func(*Handler)

// WithRegistry resolves aggregator names through reg.
func WithRegistry(reg *aggregator.Registry) Option {
	return func(h *Handler) {
		h.registry = reg
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

// WithMetrics records pivot executions into mc and serves them under
// /metrics.
func WithMetrics(mc *monitoring.MetricsCollector) Option {
	return func(h *Handler) {
		h.metrics = mc
	}
}

// WithCache replaces the default response cache. A nil cache disables
// caching.
func WithCache(c *Cache) Option {
	return func(h *Handler) {
		h.cache = c
	}
}

// WithServiceName sets the name reported by GET /health.
func WithServiceName(name string) Option {
	return func(h *Handler) {
		h.service = name
	}
}

// NewHandler creates the API handler over catalog.
func NewHandler(catalog Catalog, opts ...Option) *Handler {
	h := &Handler{
		catalog:  catalog,
		registry: aggregator.DefaultRegistry(),
		cache:    NewCache(DefaultCacheSize, DefaultCacheTTL),
		service:  DefaultServiceName,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	h.logger = h.logger.With("component", "server")

	collector := monitoring.Resolve(h.metrics)
	if collector == nil {
		collector = monitoring.NewMetricsCollector(false)
	}
	monitor := monitoring.NewMonitoringServer(collector, 0).Handler()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /pivot", h.handlePivot)
	mux.HandleFunc("GET /aggregators", h.handleAggregators)
	mux.HandleFunc("GET /aggregators/display-names", h.handleDisplayNames)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /cache/stats", h.handleCacheStats)
	mux.HandleFunc("POST /cache/clear", h.handleCacheClear)
	mux.Handle("GET /metrics", monitor)
	mux.Handle("GET /metrics/summary", monitor)
	mux.Handle("GET /dashboard", monitor)
	mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("doc.json")))
	h.mux = mux
	return h
}

// NewServer returns an HTTP server listening on addr with h mounted under
// BasePath.
func NewServer(addr string, h *Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(BasePath+"/", http.StripPrefix(BasePath, h))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second, //nolint:mnd // Standard timeout value
	}
}

// Logging response writer to capture status codes
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// ServeHTTP implements http.Handler. Every response echoes the request id,
// generated when the caller sent none.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := r.Header.Get(remote.RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(remote.RequestIDHeader, id)

	lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
	h.mux.ServeHTTP(lrw, r)

	h.logger.Info("request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", lrw.statusCode,
		"duration", time.Since(start),
		"request_id", id)
}

// handlePivot executes a pivot request
// @Summary Execute a pivot
// @Description Group the rows of a table by the requested dimensions and aggregate them
// @Tags analytics
// @Accept json
// @Produce json
// @Param request body remote.Request true "Pivot request"
// @Success 200 {object} remote.Response "Pivot result"
// @Failure 400 {object} remote.ErrorResponse "Invalid request"
// @Failure 404 {object} remote.ErrorResponse "Unknown table"
// @Failure 500 {object} remote.ErrorResponse "Query execution failed"
// @Router /pivot [post]
func (h *Handler) handlePivot(w http.ResponseWriter, r *http.Request) {
	var req remote.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	resp, err := h.Execute(r.Context(), &req)
	if err != nil {
		status, message := errorResponse(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("pivot failed", "table", req.TableName, "error", err)
		} else {
			h.logger.Warn("pivot rejected", "table", req.TableName, "status", status, "error", err)
		}
		writeError(w, status, message)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// errorResponse maps an execution error to its status code and message.
func errorResponse(err error) (int, string) {
	var pe *errors.PivotError
	switch {
	case stderrors.Is(err, errors.ErrInvalidInput) && stderrors.As(err, &pe):
		return http.StatusBadRequest, pe.Message
	case stderrors.Is(err, errors.ErrUnknownTable) && stderrors.As(err, &pe):
		return http.StatusNotFound, pe.Message
	case errors.IsConfiguration(err):
		return http.StatusBadRequest, "Invalid request: " + err.Error()
	default:
		return http.StatusInternalServerError, "Query execution failed: " + err.Error()
	}
}

// handleAggregators lists the supported aggregators
// @Summary List aggregators
// @Tags analytics
// @Produce json
// @Success 200 {array} string "Aggregator names"
// @Router /aggregators [get]
func (h *Handler) handleAggregators(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Names())
}

// handleDisplayNames maps aggregator codes to their labels
// @Summary Aggregator display names
// @Tags analytics
// @Produce json
// @Success 200 {object} map[string]string "Code to display name"
// @Router /aggregators/display-names [get]
func (h *Handler) handleDisplayNames(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.DisplayNames())
}

// handleHealth reports service health
// @Summary Health check
// @Tags analytics
// @Produce json
// @Success 200 {object} remote.HealthStatus "Service is up"
// @Router /health [get]
func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, remote.HealthStatus{
		Status:               "UP",
		Service:              h.service,
		SupportedAggregators: len(h.registry.Names()),
		Version:              version.Version,
	})
}

// handleCacheStats reports response cache statistics
// @Summary Cache statistics
// @Tags cache
// @Produce json
// @Success 200 {object} remote.CacheStats "Cache statistics"
// @Router /cache/stats [get]
func (h *Handler) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Stats())
}

// handleCacheClear empties the response cache
// @Summary Clear the cache
// @Tags cache
// @Produce json
// @Success 200 {object} map[string]interface{} "Cache cleared"
// @Router /cache/clear [post]
func (h *Handler) handleCacheClear(w http.ResponseWriter, _ *http.Request) {
	h.cache.Clear()
	h.logger.Info("cache cleared")
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Cache cleared successfully",
		"timestamp": time.Now().UnixMilli(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, remote.ErrorResponse{Error: message, Timestamp: time.Now().UnixMilli()})
}
