package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/dashboard"
	"github.com/kjstillabower/weather-dashboard/internal/geo"
	"github.com/kjstillabower/weather-dashboard/internal/lifecycle"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/traffic"
	"github.com/kjstillabower/weather-dashboard/internal/validation"
)

// Dashboard is the orchestrator surface the handlers drive.
type Dashboard interface {
	Search(ctx context.Context, query string) error
	SearchCoordinates(ctx context.Context, c models.Coordinates) error
	UseCurrentLocation(ctx context.Context, l geo.Locator) error
	Refresh(ctx context.Context) error
	SelectRecent(ctx context.Context, index int) error
	Snapshot() models.Snapshot
}

// NotificationSource yields pending notifications and forgets them.
type NotificationSource interface {
	Drain() []models.Notification
}

// HealthConfig holds thresholds and probes for the health handler.
type HealthConfig struct {
	DegradedWindow     time.Duration
	DegradedErrorPct   int
	DegradedMinLookups int
	// StorePing, when set, checks recent-store reachability (memcached).
	StorePing func() error
	// BreakerState, when set, reports the upstream circuit breaker state ("closed", "open", "half-open").
	BreakerState func() string
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	dashboard      Dashboard
	notifications  NotificationSource
	healthConfig   *HealthConfig
	logger         *zap.Logger
	locationMinLen int
	locationMaxLen int

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. Zero location bounds default to 1..100.
func NewHandler(
	d Dashboard,
	notifications NotificationSource,
	healthConfig *HealthConfig,
	logger *zap.Logger,
	locationMinLen, locationMaxLen int,
) *Handler {
	if locationMinLen <= 0 {
		locationMinLen = 1
	}
	if locationMaxLen <= 0 {
		locationMaxLen = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		dashboard:      d,
		notifications:  notifications,
		healthConfig:   healthConfig,
		logger:         logger,
		locationMinLen: locationMinLen,
		locationMaxLen: locationMaxLen,
	}
}

// GetDashboard handles GET /dashboard.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dashboard.Snapshot())
}

// PostSearch handles POST /dashboard/search {"query": "..."}.
// A blank query is a no-op (204).
func (h *Handler) PostSearch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "request body must be JSON with a query field")
		return
	}
	if strings.TrimSpace(body.Query) == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	query, err := validation.ValidateLocation(body.Query, h.locationMinLen, h.locationMaxLen)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
		return
	}

	err = h.dashboard.Search(r.Context(), query)
	h.writeLookupResult(w, r, err, dashboard.MsgCityNotFound)
}

// PostLocation handles POST /dashboard/location. The body carries either the
// device coordinates {"lat": .., "lon": ..} or {"denied": true, "reason": ".."}
// when the device could not or would not provide them.
func (h *Handler) PostLocation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		validation.CoordinatesInput
		Denied bool   `json:"denied"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "request body must be JSON")
		return
	}

	var locator geo.Locator = geo.Unavailable{Reason: body.Reason}
	failureMsg := dashboard.MsgCityNotFound
	if !body.Denied {
		coords, err := validation.ValidateCoordinates(body.CoordinatesInput)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", err.Error())
			return
		}
		locator = geo.Fixed(coords)
		failureMsg = dashboard.MsgFetchFailed
	}

	err := h.dashboard.UseCurrentLocation(r.Context(), locator)
	h.writeLookupResult(w, r, err, failureMsg)
}

// PostRefresh handles POST /dashboard/refresh.
func (h *Handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	err := h.dashboard.Refresh(r.Context())
	if errors.Is(err, dashboard.ErrNothingToRefresh) {
		writeError(w, r, http.StatusConflict, "NOTHING_TO_REFRESH", "no location is displayed yet")
		return
	}
	h.writeLookupResult(w, r, err, dashboard.MsgCityNotFound)
}

// PostRecent handles POST /dashboard/recent/{index}.
func (h *Handler) PostRecent(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, r, http.StatusNotFound, "UNKNOWN_RECENT", "no such recent search")
		return
	}
	err = h.dashboard.SelectRecent(r.Context(), index)
	if errors.Is(err, dashboard.ErrUnknownRecent) {
		writeError(w, r, http.StatusNotFound, "UNKNOWN_RECENT", "no such recent search")
		return
	}
	h.writeLookupResult(w, r, err, dashboard.MsgCityNotFound)
}

// GetNotifications handles GET /dashboard/notifications. Returned notifications are removed.
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	notes := []models.Notification{}
	if h.notifications != nil {
		notes = h.notifications.Drain()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notes,
	})
}

func (h *Handler) writeLookupResult(w http.ResponseWriter, r *http.Request, err error, failureMsg string) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, h.dashboard.Snapshot())
	case errors.Is(err, dashboard.ErrLookupFailed):
		observability.LoggerFromContext(r.Context(), h.logger).Debug("lookup request failed", zap.Error(err))
		writeError(w, r, http.StatusBadGateway, "LOOKUP_FAILED", failureMsg)
	case errors.Is(err, dashboard.ErrEmptyQuery):
		w.WriteHeader(http.StatusNoContent)
	default:
		observability.LoggerFromContext(r.Context(), h.logger).Error("unexpected dashboard error", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "unexpected error")
	}
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"weatherApi": "healthy"}
	if result.status == "degraded" {
		checks["weatherApi"] = "unhealthy"
	}
	if h.healthConfig != nil && h.healthConfig.StorePing != nil {
		if h.healthConfig.StorePing() == nil {
			checks["recentStore"] = "healthy"
		} else {
			checks["recentStore"] = "unhealthy"
		}
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   observability.ServiceName,
		"version":   "dev",
		"checks":    checks,
		"uptime":    lifecycle.Uptime().Round(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if result.reason != "" {
		resp["reason"] = result.reason
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > circuit open > lookup error rate > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if h.healthConfig.BreakerState != nil && h.healthConfig.BreakerState() == "open" {
		return healthResult{"degraded", http.StatusServiceUnavailable, "circuit_open"}
	}
	if h.healthConfig.DegradedWindow > 0 &&
		traffic.Degraded(h.healthConfig.DegradedWindow, h.healthConfig.DegradedErrorPct, h.healthConfig.DegradedMinLookups) {
		return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope with the request's correlation ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationIDFromContext(r.Context()),
		},
	})
}
