package outbox

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/metrics"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/models"
)

// Store is the outbox table.
type Store interface {
	GetPendingOutboxMessages(ctx context.Context, limit int) ([]models.OutboxMessage, error)
	MarkOutboxMessageAsProcessed(ctx context.Context, id string) error
}

// Publisher sends one alert event to the broker.
type Publisher interface {
	SendAlertEvent(msg models.OutboxMessage) error
}

// Dispatcher relays committed alert events from the outbox table to Kafka.
type Dispatcher struct {
	store     Store
	publisher Publisher
	interval  time.Duration
	batchSize int
}

func NewDispatcher(store Store, publisher Publisher, interval time.Duration, batchSize int) *Dispatcher {
	return &Dispatcher{
		store:     store,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Start blocks until ctx is cancelled, dispatching a batch on every tick.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("outbox dispatcher stopped")
			return
		case <-ticker.C:
			d.DispatchOnce(ctx)
		}
	}
}

// DispatchOnce publishes up to one batch of pending events and returns how many were marked processed.
// A failed publish leaves the row pending for the next tick; later rows are still attempted.
func (d *Dispatcher) DispatchOnce(ctx context.Context) int {
	messages, err := d.store.GetPendingOutboxMessages(ctx, d.batchSize)
	if err != nil {
		log.Error().Err(err).Msg("error fetching outbox messages")
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if err := d.publisher.SendAlertEvent(msg); err != nil {
			metrics.OutboxPublished.WithLabelValues("error").Inc()
			log.Error().Err(err).Str("outbox_id", msg.ID).Msg("failed to send alert event to Kafka")
			continue
		}
		metrics.OutboxPublished.WithLabelValues("ok").Inc()

		if err := d.store.MarkOutboxMessageAsProcessed(ctx, msg.ID); err != nil {
			log.Error().Err(err).Str("outbox_id", msg.ID).Msg("failed to mark outbox message as processed")
			continue
		}
		sent++
	}
	return sent
}
