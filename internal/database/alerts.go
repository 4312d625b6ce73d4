package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/models"
)

// SaveAlerts inserts alerts and their outbox events in one transaction and fills in alert IDs.
func (d *Database) SaveAlerts(ctx context.Context, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	return d.InTx(ctx, func(ctx context.Context) error {
		for i := range alerts {
			if err := d.insertAlert(ctx, &alerts[i]); err != nil {
				return err
			}
			if err := d.AddToOutbox(ctx, models.NewAlertEvent(alerts[i])); err != nil {
				return fmt.Errorf("failed to add to outbox: %w", err)
			}
		}
		return nil
	})
}

func (d *Database) insertAlert(ctx context.Context, a *models.Alert) error {
	var bbox *string
	if a.BBox != nil {
		data, err := json.Marshal(a.BBox)
		if err != nil {
			return fmt.Errorf("encode bbox: %w", err)
		}
		s := string(data)
		bbox = &s
	}

	err := d.querier(ctx).QueryRowContext(ctx,
		`INSERT INTO alerts (camera_id, zone_id, alert_type, detection_type, confidence, bbox_json, image_url, timestamp)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		a.CameraID,
		a.ZoneID,
		a.AlertType,
		a.DetectionType,
		a.Confidence,
		bbox,
		a.ImageURL,
		a.Timestamp.UTC(),
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("insert alert for zone %d: %w", a.ZoneID, err)
	}
	return nil
}

// ListAlerts returns one page of alerts, newest first, and the total matching count.
func (d *Database) ListAlerts(ctx context.Context, f models.AlertFilter) ([]models.Alert, int, error) {
	where, args := alertWhere(f)

	var total int
	if err := d.querier(ctx).QueryRowContext(ctx, "SELECT COUNT(*) FROM alerts a"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}

	offset := (f.Page - 1) * f.PageSize
	query := fmt.Sprintf(`SELECT a.id, a.camera_id, a.zone_id, z.name, a.alert_type, a.detection_type,
			a.confidence, a.bbox_json, a.image_url, a.timestamp
		FROM alerts a JOIN zones z ON z.id = a.zone_id%s
		ORDER BY a.timestamp DESC, a.id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)

	rows, err := d.querier(ctx).QueryContext(ctx, query, append(args, f.PageSize, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]models.Alert, 0, f.PageSize)
	for rows.Next() {
		var (
			a        models.Alert
			bbox     sql.NullString
			imageURL sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.CameraID, &a.ZoneID, &a.ZoneName, &a.AlertType, &a.DetectionType,
			&a.Confidence, &bbox, &imageURL, &a.Timestamp); err != nil {
			return nil, 0, err
		}
		if bbox.Valid {
			var b models.BoundingBox
			if err := json.Unmarshal([]byte(bbox.String), &b); err != nil {
				log.Warn().Err(err).Int64("alert_id", a.ID).Msg("failed to parse alert bbox")
			} else {
				a.BBox = &b
			}
		}
		if imageURL.Valid {
			a.ImageURL = &imageURL.String
		}
		alerts = append(alerts, a)
	}

	return alerts, total, rows.Err()
}

// alertWhere builds the WHERE clause (with a leading space) and its positional args.
func alertWhere(f models.AlertFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.CameraID != "" {
		add("a.camera_id = $%d", f.CameraID)
	}
	if f.ZoneID != nil {
		add("a.zone_id = $%d", *f.ZoneID)
	}
	if f.AlertType != "" {
		add("a.alert_type = $%d", f.AlertType)
	}
	if f.Start != nil {
		add("a.timestamp >= $%d", f.Start.UTC())
	}
	if f.End != nil {
		add("a.timestamp <= $%d", f.End.UTC())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
