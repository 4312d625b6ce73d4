package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/geometry"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/models"
)

const zoneColumns = "id, camera_id, name, coordinates_json, alert_type, active, active_hours, created_at"

// CreateZone inserts zone and fills in its ID and CreatedAt. Validation is the caller's job.
func (d *Database) CreateZone(ctx context.Context, zone *models.Zone) error {
	coords, err := zone.Polygon.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode coordinates: %w", err)
	}

	zone.CreatedAt = time.Now().UTC()
	err = d.querier(ctx).QueryRowContext(ctx,
		`INSERT INTO zones (camera_id, name, coordinates_json, alert_type, active, active_hours, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		zone.CameraID,
		zone.Name,
		string(coords),
		zone.AlertType,
		zone.Active,
		zone.ActiveHours,
		zone.CreatedAt,
	).Scan(&zone.ID)
	if err != nil {
		return fmt.Errorf("insert zone: %w", err)
	}
	return nil
}

func (d *Database) GetZone(ctx context.Context, zoneID int64) (*models.Zone, error) {
	row := d.querier(ctx).QueryRowContext(ctx,
		"SELECT "+zoneColumns+" FROM zones WHERE id = $1", zoneID)

	z, err := scanZone(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get zone %d: %w", zoneID, err)
	}
	return z, nil
}

// GetCameraZones returns the camera's zones ordered by ID.
func (d *Database) GetCameraZones(ctx context.Context, cameraID string, activeOnly bool) ([]models.Zone, error) {
	query := "SELECT " + zoneColumns + " FROM zones WHERE camera_id = $1"
	if activeOnly {
		query += " AND active"
	}
	query += " ORDER BY id"

	rows, err := d.querier(ctx).QueryContext(ctx, query, cameraID)
	if err != nil {
		return nil, fmt.Errorf("get camera zones: %w", err)
	}
	defer rows.Close()

	zones := make([]models.Zone, 0)
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		zones = append(zones, *z)
	}

	return zones, rows.Err()
}

func (d *Database) SetZoneActive(ctx context.Context, zoneID int64, active bool) error {
	res, err := d.querier(ctx).ExecContext(ctx,
		"UPDATE zones SET active = $1 WHERE id = $2", active, zoneID)
	if err != nil {
		return fmt.Errorf("update zone %d: %w", zoneID, err)
	}
	return expectAffected(res)
}

// DeleteZone removes the zone and every alert that references it.
func (d *Database) DeleteZone(ctx context.Context, zoneID int64) error {
	return d.InTx(ctx, func(ctx context.Context) error {
		if _, err := d.querier(ctx).ExecContext(ctx, "DELETE FROM alerts WHERE zone_id = $1", zoneID); err != nil {
			return fmt.Errorf("delete zone alerts: %w", err)
		}

		res, err := d.querier(ctx).ExecContext(ctx, "DELETE FROM zones WHERE id = $1", zoneID)
		if err != nil {
			return fmt.Errorf("delete zone %d: %w", zoneID, err)
		}
		return expectAffected(res)
	})
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// scanZone decodes a zone row. Unparsable coordinates leave the polygon empty so the
// evaluator skips the zone instead of the whole read failing.
func scanZone(s scanner) (*models.Zone, error) {
	var (
		z           models.Zone
		coords      string
		activeHours sql.NullString
	)
	if err := s.Scan(&z.ID, &z.CameraID, &z.Name, &coords, &z.AlertType, &z.Active, &activeHours, &z.CreatedAt); err != nil {
		return nil, err
	}

	poly, err := geometry.ParsePolygon([]byte(coords))
	if err != nil {
		log.Error().Err(err).Int64("zone_id", z.ID).Msg("failed to parse zone coordinates")
	}
	z.Polygon = poly

	if activeHours.Valid {
		z.ActiveHours = &activeHours.String
	}
	return &z, nil
}
