package zone

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/database"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/geometry"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/models"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/schedule"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/validation"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrZoneNotFound       = errors.New("zone not found")
	ErrZoneCameraMismatch = errors.New("zone does not belong to camera")
)

// Store is the persistence the registry needs.
type Store interface {
	EnsureCamera(ctx context.Context, cameraID string) error
	CreateZone(ctx context.Context, zone *models.Zone) error
	GetZone(ctx context.Context, zoneID int64) (*models.Zone, error)
	GetCameraZones(ctx context.Context, cameraID string, activeOnly bool) ([]models.Zone, error)
	SetZoneActive(ctx context.Context, zoneID int64, active bool) error
	DeleteZone(ctx context.Context, zoneID int64) error
}

// Registry owns zone lifecycle and answers which zones apply to a frame.
type Registry struct {
	store Store
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// CreateZone validates req and persists a new zone on cameraID, registering the camera if needed.
// Nothing is written when validation fails.
func (r *Registry) CreateZone(ctx context.Context, cameraID string, req models.ZoneCreate) (*models.Zone, error) {
	if cameraID == "" {
		return nil, fmt.Errorf("%w: camera_id is required", ErrValidation)
	}
	if err := validation.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	poly := make(geometry.Polygon, 0, len(req.Coordinates))
	for _, pair := range req.Coordinates {
		poly = append(poly, geometry.Point{X: pair[0], Y: pair[1]})
	}
	if err := poly.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var activeHours *string
	if req.ActiveHours != nil && *req.ActiveHours != "" {
		if err := schedule.Validate(*req.ActiveHours); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		activeHours = req.ActiveHours
	}

	z := &models.Zone{
		CameraID:    cameraID,
		Name:        req.Name,
		Polygon:     poly,
		AlertType:   lo.Ternary(req.AlertType == "", models.DefaultAlertType, req.AlertType),
		Active:      lo.FromPtrOr(req.Active, true),
		ActiveHours: activeHours,
	}

	if err := r.store.EnsureCamera(ctx, cameraID); err != nil {
		return nil, err
	}
	if err := r.store.CreateZone(ctx, z); err != nil {
		return nil, err
	}

	log.Info().Int64("zone_id", z.ID).Str("camera_id", cameraID).Str("name", z.Name).Msg("zone created")
	return z, nil
}

// ListZones returns every zone of the camera, active or not.
func (r *Registry) ListZones(ctx context.Context, cameraID string) ([]models.Zone, error) {
	return r.store.GetCameraZones(ctx, cameraID, false)
}

// ActiveZonesForCamera returns the zones that should be evaluated for a frame captured at at.
// A stored schedule that no longer parses keeps the zone active.
func (r *Registry) ActiveZonesForCamera(ctx context.Context, cameraID string, at time.Time) ([]models.Zone, error) {
	zones, err := r.store.GetCameraZones(ctx, cameraID, true)
	if err != nil {
		return nil, fmt.Errorf("load zones for camera %s: %w", cameraID, err)
	}

	return lo.Filter(zones, func(z models.Zone, _ int) bool {
		if z.ActiveHours == nil {
			return true
		}
		sch, err := schedule.Parse(*z.ActiveHours)
		if err != nil {
			log.Warn().Err(err).Int64("zone_id", z.ID).Msg("unparsable active hours, treating zone as active")
			return true
		}
		return sch.Contains(at)
	}), nil
}

// SetZoneActive toggles activation of a zone that must belong to cameraID.
func (r *Registry) SetZoneActive(ctx context.Context, cameraID string, zoneID int64, active bool) (*models.Zone, error) {
	z, err := r.zoneOf(ctx, cameraID, zoneID)
	if err != nil {
		return nil, err
	}
	if err := r.store.SetZoneActive(ctx, zoneID, active); err != nil {
		return nil, mapNotFound(err)
	}
	z.Active = active

	log.Info().Int64("zone_id", zoneID).Bool("active", active).Msg("zone activation changed")
	return z, nil
}

// DeleteZone removes a zone of cameraID together with its alert history.
func (r *Registry) DeleteZone(ctx context.Context, cameraID string, zoneID int64) error {
	if _, err := r.zoneOf(ctx, cameraID, zoneID); err != nil {
		return err
	}
	if err := r.store.DeleteZone(ctx, zoneID); err != nil {
		return mapNotFound(err)
	}

	log.Info().Int64("zone_id", zoneID).Str("camera_id", cameraID).Msg("zone deleted")
	return nil
}

func (r *Registry) zoneOf(ctx context.Context, cameraID string, zoneID int64) (*models.Zone, error) {
	z, err := r.store.GetZone(ctx, zoneID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if z.CameraID != cameraID {
		return nil, ErrZoneCameraMismatch
	}
	return z, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return ErrZoneNotFound
	}
	return err
}
