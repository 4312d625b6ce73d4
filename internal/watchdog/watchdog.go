package watchdog

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/metrics"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/models"
)

type Store interface {
	FindStaleCameras(ctx context.Context, since time.Time) ([]models.Camera, error)
}

// Watchdog reports cameras that stopped sending frames.
type Watchdog struct {
	store      Store
	interval   time.Duration
	staleAfter time.Duration
	now        func() time.Time
}

func New(store Store, interval, staleAfter time.Duration) *Watchdog {
	return &Watchdog{
		store:      store,
		interval:   interval,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

func (w *Watchdog) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("watchdog stopped")
			return
		case <-ticker.C:
			w.checkCameras(ctx)
		}
	}
}

func (w *Watchdog) checkCameras(ctx context.Context) []models.Camera {
	cameras, err := w.store.FindStaleCameras(ctx, w.now().Add(-w.staleAfter))
	if err != nil {
		log.Error().Err(err).Msg("failed to find stale cameras")
		return nil
	}

	metrics.StaleCameras.Set(float64(len(cameras)))
	for _, c := range cameras {
		ev := log.Warn().Str("camera_id", c.ID)
		if c.LastFrameAt != nil {
			ev = ev.Time("last_frame_at", *c.LastFrameAt)
		}
		ev.Msg("camera stopped sending frames")
	}
	return cameras
}
