package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/models"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/services/zone"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/validation"
)

func (h *Handlers) CreateZoneHandler(w http.ResponseWriter, r *http.Request) {
	cameraID := mux.Vars(r)["camera_id"]

	var req models.ZoneCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	z, err := h.zones.CreateZone(r.Context(), cameraID, req)
	if err != nil {
		writeZoneError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, z)
}

func (h *Handlers) ListZonesHandler(w http.ResponseWriter, r *http.Request) {
	zones, err := h.zones.ListZones(r.Context(), mux.Vars(r)["camera_id"])
	if err != nil {
		writeZoneError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, zones)
}

func (h *Handlers) UpdateZoneHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	zoneID, err := strconv.ParseInt(vars["zone_id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid zone id", http.StatusBadRequest)
		return
	}

	var req models.ZoneUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validation.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	z, err := h.zones.SetZoneActive(r.Context(), vars["camera_id"], zoneID, *req.Active)
	if err != nil {
		writeZoneError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, z)
}

func (h *Handlers) DeleteZoneHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	zoneID, err := strconv.ParseInt(vars["zone_id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid zone id", http.StatusBadRequest)
		return
	}

	if err := h.zones.DeleteZone(r.Context(), vars["camera_id"], zoneID); err != nil {
		writeZoneError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeZoneError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, zone.ErrValidation), errors.Is(err, zone.ErrZoneCameraMismatch):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, zone.ErrZoneNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		log.Error().Err(err).Msg("zone request failed")
		http.Error(w, "Database error", http.StatusInternalServerError)
	}
}
