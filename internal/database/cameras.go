package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/models"
)

const cameraColumns = "id, name, location, active, created_at, last_frame_at"

// EnsureCamera registers cameraID with a generated name if it is not known yet.
func (d *Database) EnsureCamera(ctx context.Context, cameraID string) error {
	_, err := d.querier(ctx).ExecContext(ctx,
		`INSERT INTO cameras (id, name, active, created_at) VALUES ($1, $2, TRUE, $3)
			ON CONFLICT (id) DO NOTHING`,
		cameraID,
		"Camera "+cameraID,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("ensure camera %s: %w", cameraID, err)
	}
	return nil
}

// TouchCamera registers the camera if needed and records the time of its latest frame.
func (d *Database) TouchCamera(ctx context.Context, cameraID string, at time.Time) error {
	_, err := d.querier(ctx).ExecContext(ctx,
		`INSERT INTO cameras (id, name, active, created_at, last_frame_at) VALUES ($1, $2, TRUE, $3, $3)
			ON CONFLICT (id) DO UPDATE SET last_frame_at = GREATEST(cameras.last_frame_at, EXCLUDED.last_frame_at)`,
		cameraID,
		"Camera "+cameraID,
		at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("touch camera %s: %w", cameraID, err)
	}
	return nil
}

func (d *Database) GetCamera(ctx context.Context, cameraID string) (*models.Camera, error) {
	row := d.querier(ctx).QueryRowContext(ctx,
		"SELECT "+cameraColumns+" FROM cameras WHERE id = $1", cameraID)

	c, err := scanCamera(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get camera %s: %w", cameraID, err)
	}
	return c, nil
}

// FindStaleCameras returns active cameras whose last frame is older than since.
// Cameras that never sent a frame are not reported.
func (d *Database) FindStaleCameras(ctx context.Context, since time.Time) ([]models.Camera, error) {
	rows, err := d.querier(ctx).QueryContext(ctx,
		"SELECT "+cameraColumns+` FROM cameras
			WHERE active AND last_frame_at IS NOT NULL AND last_frame_at < $1
			ORDER BY last_frame_at`,
		since.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cameras []models.Camera
	for rows.Next() {
		c, err := scanCamera(rows)
		if err != nil {
			return nil, err
		}
		cameras = append(cameras, *c)
	}

	return cameras, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCamera(s scanner) (*models.Camera, error) {
	var (
		c         models.Camera
		location  sql.NullString
		lastFrame sql.NullTime
	)
	if err := s.Scan(&c.ID, &c.Name, &location, &c.Active, &c.CreatedAt, &lastFrame); err != nil {
		return nil, err
	}
	if location.Valid {
		c.Location = &location.String
	}
	if lastFrame.Valid {
		c.LastFrameAt = &lastFrame.Time
	}
	return &c, nil
}
