package api

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/models"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/runner"
)

type ZoneService interface {
	CreateZone(ctx context.Context, cameraID string, req models.ZoneCreate) (*models.Zone, error)
	ListZones(ctx context.Context, cameraID string) ([]models.Zone, error)
	SetZoneActive(ctx context.Context, cameraID string, zoneID int64, active bool) (*models.Zone, error)
	DeleteZone(ctx context.Context, cameraID string, zoneID int64) error
}

type FrameProcessor interface {
	ProcessFrame(ctx context.Context, f runner.Frame) (*models.FrameResult, error)
}

type AlertStore interface {
	ListAlerts(ctx context.Context, f models.AlertFilter) ([]models.Alert, int, error)
	Ping(ctx context.Context) error
}

type DetectorHealth interface {
	Health(ctx context.Context) bool
}

type Handlers struct {
	zones    ZoneService
	frames   FrameProcessor
	alerts   AlertStore
	detector DetectorHealth
}

func NewHandlers(zones ZoneService, frames FrameProcessor, alerts AlertStore, detector DetectorHealth) *Handlers {
	return &Handlers{zones: zones, frames: frames, alerts: alerts, detector: detector}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
