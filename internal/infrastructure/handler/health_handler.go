package handler

import (
	"net/http"
	"time"

	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/logger"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
)

// HealthHandler reports liveness and answers unknown routes
type HealthHandler struct {
	logger     logger.Logger
	serverName string
	startedAt  time.Time
	now        func() time.Time
}

// NewHealthHandler creates a new health handler. Uptime is measured from startedAt.
func NewHealthHandler(serverName string, startedAt time.Time, log logger.Logger) *HealthHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &HealthHandler{
		logger:     log,
		serverName: serverName,
		startedAt:  startedAt,
		now:        time.Now,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "OK",
		Timestamp: now.UTC(),
		Uptime:    now.Sub(h.startedAt).Seconds(),
		Server:    h.serverName,
	})
}

// NotFound answers routes that do not exist with a JSON 404
func (h *HealthHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	h.logger.Warn("Route not found", map[string]interface{}{
		"request_id": requestID,
		"method":     r.Method,
		"path":       r.URL.Path,
	})

	sendErrorResponse(w, h.logger, "Not found",
		"Route "+r.Method+" "+r.URL.Path+" not found", http.StatusNotFound, requestID)
}

// RegisterRoutes registers the health route and the JSON not found handler
func (h *HealthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.Health).Methods("GET")
	router.NotFoundHandler = http.HandlerFunc(h.NotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(h.NotFound)

	h.logger.Info("Health routes registered", map[string]interface{}{
		"routes": []string{
			"GET /health",
		},
	})
}
