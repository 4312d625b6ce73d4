package watchdog

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/metrics"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/models"
)

type fakeStore struct {
	since   time.Time
	cameras []models.Camera
}

func (s *fakeStore) FindStaleCameras(_ context.Context, since time.Time) ([]models.Camera, error) {
	s.since = since
	return s.cameras, nil
}

func TestCheckCameras(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	last := now.Add(-5 * time.Minute)
	store := &fakeStore{cameras: []models.Camera{{ID: "cam-1", LastFrameAt: &last}, {ID: "cam-2", LastFrameAt: &last}}}

	w := New(store, time.Minute, 2*time.Minute)
	w.now = func() time.Time { return now }

	got := w.checkCameras(context.Background())
	if len(got) != 2 {
		t.Errorf("stale cameras = %d, want 2", len(got))
	}
	if want := now.Add(-2 * time.Minute); !store.since.Equal(want) {
		t.Errorf("since = %v, want %v", store.since, want)
	}
	if v := testutil.ToFloat64(metrics.StaleCameras); v != 2 {
		t.Errorf("stale gauge = %v, want 2", v)
	}

	store.cameras = nil
	w.checkCameras(context.Background())
	if v := testutil.ToFloat64(metrics.StaleCameras); v != 0 {
		t.Errorf("stale gauge after recovery = %v, want 0", v)
	}
}
