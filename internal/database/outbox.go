package database

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/models"
)

func (d *Database) AddToOutbox(ctx context.Context, event models.AlertEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = d.querier(ctx).ExecContext(ctx,
		"INSERT INTO alert_outbox (id, camera_id, payload, created_at) VALUES ($1, $2, $3, $4)",
		uuid.New().String(),
		event.CameraID,
		string(payload),
		time.Now().UTC(),
	)

	return err
}

func (d *Database) GetPendingOutboxMessages(ctx context.Context, limit int) ([]models.OutboxMessage, error) {
	rows, err := d.querier(ctx).QueryContext(ctx, `
		SELECT id, camera_id, payload, created_at
		FROM alert_outbox
		WHERE processed_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending outbox: %w", err)
	}
	defer rows.Close()

	var messages []models.OutboxMessage
	for rows.Next() {
		var (
			m       models.OutboxMessage
			payload string
		)
		if err := rows.Scan(&m.ID, &m.CameraID, &payload, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Payload = []byte(payload)
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

func (d *Database) MarkOutboxMessageAsProcessed(ctx context.Context, id string) error {
	_, err := d.querier(ctx).ExecContext(ctx,
		"UPDATE alert_outbox SET processed_at = $1 WHERE id = $2",
		time.Now().UTC(),
		id,
	)
	return err
}
