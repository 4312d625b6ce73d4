package api

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

type healthResponse struct {
	Status            string    `json:"status"`
	DatabaseConnected bool      `json:"database_connected"`
	DetectorAvailable bool      `json:"detector_available"`
	Timestamp         time.Time `json:"timestamp"`
}

func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		DetectorAvailable: h.detector.Health(r.Context()),
		Timestamp:         time.Now().UTC(),
	}

	if err := h.alerts.Ping(r.Context()); err != nil {
		log.Error().Err(err).Msg("database health check failed")
	} else {
		resp.DatabaseConnected = true
	}

	switch {
	case resp.DatabaseConnected && resp.DetectorAvailable:
		resp.Status = "healthy"
	case !resp.DatabaseConnected && !resp.DetectorAvailable:
		resp.Status = "unhealthy"
	default:
		resp.Status = "degraded"
	}

	writeJSON(w, http.StatusOK, resp)
}
