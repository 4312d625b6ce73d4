package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// NewRouter registers the /api/v1 routes. ws serves live alert subscriptions and may be nil.
func NewRouter(h *Handlers, ws http.HandlerFunc) *mux.Router {
	r := mux.NewRouter()
	r.Use(logRequests)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/cameras/{camera_id}/zones", h.CreateZoneHandler).Methods(http.MethodPost)
	v1.HandleFunc("/cameras/{camera_id}/zones", h.ListZonesHandler).Methods(http.MethodGet)
	v1.HandleFunc("/cameras/{camera_id}/zones/{zone_id:[0-9]+}", h.UpdateZoneHandler).Methods(http.MethodPatch)
	v1.HandleFunc("/cameras/{camera_id}/zones/{zone_id:[0-9]+}", h.DeleteZoneHandler).Methods(http.MethodDelete)
	v1.HandleFunc("/detect", h.DetectHandler).Methods(http.MethodPost)
	v1.HandleFunc("/alerts", h.ListAlertsHandler).Methods(http.MethodGet)
	v1.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)
	if ws != nil {
		v1.HandleFunc("/ws/alerts", ws)
	}

	r.Handle("/metrics", promhttp.Handler())
	return r
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Dur("took", time.Since(start)).Msg("http request")
	})
}
