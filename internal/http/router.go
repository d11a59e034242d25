package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

// NewRouter wires the handler routes and middleware. Rate limiting and the request
// timeout apply to /dashboard only.
func NewRouter(h *Handler, logger *zap.Logger, limiter *rate.Limiter, requestTimeout time.Duration) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	dash := router.PathPrefix("/dashboard").Subrouter()
	dash.Use(RateLimitMiddleware(limiter))
	if requestTimeout > 0 {
		dash.Use(TimeoutMiddleware(requestTimeout))
	}
	dash.HandleFunc("", h.GetDashboard).Methods(http.MethodGet)
	dash.HandleFunc("/search", h.PostSearch).Methods(http.MethodPost)
	dash.HandleFunc("/location", h.PostLocation).Methods(http.MethodPost)
	dash.HandleFunc("/refresh", h.PostRefresh).Methods(http.MethodPost)
	dash.HandleFunc("/recent/{index:[0-9]+}", h.PostRecent).Methods(http.MethodPost)
	dash.HandleFunc("/notifications", h.GetNotifications).Methods(http.MethodGet)
	return router
}
