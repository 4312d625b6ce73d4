package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/geometry"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/kafka"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/models"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/services/detection"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/services/zone"
)

type fakeDetector struct {
	failures int
	calls    int
	dets     []models.Detection
}

func (d *fakeDetector) SendFrame(_ context.Context, _ []byte, _ string) ([]models.Detection, error) {
	d.calls++
	if d.calls <= d.failures {
		return nil, errors.New("model unavailable")
	}
	return d.dets, nil
}

type fakeZones struct {
	zones []models.Zone
	at    time.Time
}

func (z *fakeZones) ActiveZonesForCamera(_ context.Context, _ string, at time.Time) ([]models.Zone, error) {
	z.at = at
	return z.zones, nil
}

type fakeStore struct {
	saved    []models.Alert
	touched  map[string]time.Time
	err      error
	failures int
	calls    int
	onFail   func()
}

func (s *fakeStore) SaveAlerts(_ context.Context, alerts []models.Alert) error {
	s.calls++
	if s.err != nil || s.calls <= s.failures {
		if s.onFail != nil {
			s.onFail()
		}
		return errors.Join(s.err, errors.New("db down"))
	}
	for i := range alerts {
		alerts[i].ID = int64(len(s.saved) + 1)
		s.saved = append(s.saved, alerts[i])
	}
	return nil
}

func (s *fakeStore) TouchCamera(_ context.Context, cameraID string, at time.Time) error {
	if s.touched == nil {
		s.touched = map[string]time.Time{}
	}
	s.touched[cameraID] = at
	return nil
}

type fakeStorage struct {
	frames    map[string][]byte
	snapshots []string
	archived  map[string][]models.Detection
}

func (s *fakeStorage) DownloadFrame(_ context.Context, key string) ([]byte, error) {
	img, ok := s.frames[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return img, nil
}

func (s *fakeStorage) SaveSnapshot(_ context.Context, cameraID, frameID string, _ []byte) (string, error) {
	url := "http://minio/snapshots/" + cameraID + "/" + frameID + ".jpg"
	s.snapshots = append(s.snapshots, url)
	return url, nil
}

func (s *fakeStorage) SaveDetectionResults(_ context.Context, cameraID, frameID string, dets []models.Detection) error {
	if s.archived == nil {
		s.archived = map[string][]models.Detection{}
	}
	s.archived[cameraID+"/"+frameID] = dets
	return nil
}

type fakeHub struct {
	alerts []models.Alert
}

func (h *fakeHub) BroadcastAlerts(alerts []models.Alert) {
	h.alerts = append(h.alerts, alerts...)
}

var square = geometry.Polygon{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}}

type harness struct {
	runner   *Runner
	detector *fakeDetector
	zones    *fakeZones
	store    *fakeStore
	storage  *fakeStorage
	hub      *fakeHub
}

func newHarness() *harness {
	h := &harness{
		detector: &fakeDetector{},
		zones: &fakeZones{zones: []models.Zone{{
			ID: 1, CameraID: "cam-1", Name: "dock", Polygon: square, AlertType: "intrusion", Active: true,
		}}},
		store:   &fakeStore{},
		storage: &fakeStorage{frames: map[string][]byte{}},
		hub:     &fakeHub{},
	}
	h.runner = New(Deps{
		Detector:  h.detector,
		Filter:    detection.NewFilter(detection.DefaultFilterConfig()),
		Zones:     h.zones,
		Evaluator: zone.NewEvaluator(),
		Store:     h.store,
		Storage:   h.storage,
		Hub:       h.hub,
	}, 3)
	h.runner.retryDelay = 0
	h.runner.redeliveryDelay = 0
	return h
}

func personBox(conf, x1, y1, x2, y2 float64) models.Detection {
	return models.Detection{Class: models.ClassPerson, Confidence: conf, BBox: models.BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2}}
}

func TestProcessFrame_AlertPath(t *testing.T) {
	h := newHarness()
	h.detector.dets = []models.Detection{
		personBox(0.9, 30, 20, 70, 80),      // center (50,50), inside
		personBox(0.9, 300, 300, 340, 380), // outside
		personBox(0.1, 30, 20, 70, 80),      // filtered
	}
	captured := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)

	res, err := h.runner.ProcessFrame(context.Background(), Frame{
		ID: "f-1", CameraID: "cam-1", CapturedAt: captured, Image: []byte("jpeg"),
	})
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}

	if len(res.Detections) != 2 {
		t.Errorf("len(Detections) = %d, want 2", len(res.Detections))
	}
	if len(res.Alerts) != 1 {
		t.Fatalf("len(Alerts) = %d, want 1", len(res.Alerts))
	}

	a := res.Alerts[0]
	if !a.Timestamp.Equal(captured) {
		t.Errorf("Timestamp = %v, want %v", a.Timestamp, captured)
	}
	if a.ImageURL == nil || *a.ImageURL != "http://minio/snapshots/cam-1/f-1.jpg" {
		t.Errorf("ImageURL = %v, want snapshot url", a.ImageURL)
	}
	if a.ID == 0 {
		t.Error("alert ID not filled in by the store")
	}
	if !h.zones.at.Equal(captured) {
		t.Errorf("zones queried at %v, want capture time", h.zones.at)
	}
	if len(h.store.saved) != 1 || len(h.hub.alerts) != 1 {
		t.Errorf("saved = %d, broadcast = %d, want 1 and 1", len(h.store.saved), len(h.hub.alerts))
	}
	if got := h.store.touched["cam-1"]; !got.Equal(captured) {
		t.Errorf("camera touched at %v, want %v", got, captured)
	}
	if len(h.storage.archived["cam-1/f-1"]) != 2 {
		t.Errorf("archived = %v, want the 2 kept detections", h.storage.archived)
	}
}

func TestProcessFrame_NoAlertsNoSnapshot(t *testing.T) {
	h := newHarness()
	h.detector.dets = []models.Detection{personBox(0.9, 300, 300, 340, 380)}

	res, err := h.runner.ProcessFrame(context.Background(), Frame{CameraID: "cam-1", Image: []byte("jpeg")})
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if len(res.Alerts) != 0 {
		t.Errorf("len(Alerts) = %d, want 0", len(res.Alerts))
	}
	if res.Alerts == nil {
		t.Error("Alerts is nil, want empty slice")
	}
	if len(h.storage.snapshots) != 0 || len(h.hub.alerts) != 0 {
		t.Error("snapshot or broadcast happened without alerts")
	}
	if res.Timestamp.IsZero() {
		t.Error("Timestamp not defaulted")
	}
}

func TestProcessFrame_DetectionRetries(t *testing.T) {
	h := newHarness()
	h.detector.failures = 2
	h.detector.dets = []models.Detection{personBox(0.9, 30, 20, 70, 80)}

	if _, err := h.runner.ProcessFrame(context.Background(), Frame{CameraID: "cam-1", Image: []byte("jpeg")}); err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if h.detector.calls != 3 {
		t.Errorf("detector calls = %d, want 3", h.detector.calls)
	}

	h = newHarness()
	h.detector.failures = 10
	_, err := h.runner.ProcessFrame(context.Background(), Frame{CameraID: "cam-1", Image: []byte("jpeg")})
	if !errors.Is(err, ErrDetection) {
		t.Errorf("error = %v, want ErrDetection", err)
	}
	if h.detector.calls != 3 {
		t.Errorf("detector calls = %d, want 3", h.detector.calls)
	}
	if len(h.store.saved) != 0 {
		t.Error("alerts saved after detection failure")
	}
}

func TestProcessFrame_StoreError(t *testing.T) {
	h := newHarness()
	h.store.err = errors.New("db down")
	h.detector.dets = []models.Detection{personBox(0.9, 30, 20, 70, 80)}

	if _, err := h.runner.ProcessFrame(context.Background(), Frame{CameraID: "cam-1", Image: []byte("jpeg")}); err == nil {
		t.Fatal("ProcessFrame() error = nil, want store error")
	}
	if len(h.hub.alerts) != 0 {
		t.Error("alerts broadcast although they were not stored")
	}
}

func TestHandleMessage(t *testing.T) {
	tests := []struct {
		name        string
		value       string
		wantErr     error
		wantAlerts  int
		wantModelOK bool
	}{
		{
			name:       "inline detections",
			value:      `{"frame_id":"f-1","camera_id":"cam-1","captured_at":"2026-10-19T08:30:00Z","detections":[{"class":"person","score":0.9,"box":[30,20,70,80]}]}`,
			wantAlerts: 1,
		},
		{
			name:       "inline class id wins",
			value:      `{"camera_id":"cam-1","detections":[{"class":"person","class_id":2,"score":0.9,"box":[30,20,70,80]}]}`,
			wantAlerts: 0,
		},
		{
			name:       "inline empty detections",
			value:      `{"camera_id":"cam-1","detections":[]}`,
			wantAlerts: 0,
		},
		{
			name:        "frame from bucket",
			value:       `{"camera_id":"cam-1","frame_key":"cam-1/f-2.jpg"}`,
			wantAlerts:  1,
			wantModelOK: true,
		},
		{name: "not json", value: `{`, wantErr: ErrInvalidFrame},
		{name: "missing camera", value: `{"detections":[]}`, wantErr: ErrInvalidFrame},
		{name: "no source", value: `{"camera_id":"cam-1"}`, wantErr: ErrInvalidFrame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.storage.frames["cam-1/f-2.jpg"] = []byte("jpeg")
			h.detector.dets = []models.Detection{personBox(0.9, 30, 20, 70, 80)}

			err := h.runner.HandleMessage(context.Background(), []byte(tt.value))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("HandleMessage() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("HandleMessage() error = %v", err)
			}
			if len(h.store.saved) != tt.wantAlerts {
				t.Errorf("saved alerts = %d, want %d", len(h.store.saved), tt.wantAlerts)
			}
			if modelCalled := h.detector.calls > 0; modelCalled != tt.wantModelOK {
				t.Errorf("model called = %v, want %v", modelCalled, tt.wantModelOK)
			}
		})
	}
}

const insideFrame = `{"camera_id":"cam-1","detections":[{"class":"person","score":0.9,"box":[30,20,70,80]}]}`

func TestListenAndRun_AckOrder(t *testing.T) {
	h := newHarness()
	h.store.failures = 2

	var acked []string
	messages := make(chan kafka.Message, 3)
	for _, m := range []struct{ key, value string }{
		{"poison", `{`},
		{"flaky", insideFrame},
		{"ok", insideFrame},
	} {
		key := m.key
		messages <- kafka.NewMessage([]byte(key), []byte(m.value), func() { acked = append(acked, key) })
	}
	close(messages)

	h.runner.ListenAndRun(context.Background(), messages)

	want := []string{"poison", "flaky", "ok"}
	if len(acked) != len(want) {
		t.Fatalf("acked = %v, want %v", acked, want)
	}
	for i := range want {
		if acked[i] != want[i] {
			t.Errorf("acked[%d] = %q, want %q", i, acked[i], want[i])
		}
	}
	if h.store.calls != 4 {
		t.Errorf("SaveAlerts calls = %d, want 4 (two failures, then flaky and ok)", h.store.calls)
	}
	if len(h.store.saved) != 2 {
		t.Errorf("saved alerts = %d, want 2", len(h.store.saved))
	}
}

func TestListenAndRun_FailedFrameBlocksUntilCancel(t *testing.T) {
	h := newHarness()
	h.store.err = errors.New("db down")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fails := 0
	h.store.onFail = func() {
		if fails++; fails == 3 {
			cancel()
		}
	}

	var acked []string
	messages := make(chan kafka.Message, 2)
	messages <- kafka.NewMessage(nil, []byte(insideFrame), func() { acked = append(acked, "first") })
	messages <- kafka.NewMessage(nil, []byte(insideFrame), func() { acked = append(acked, "second") })

	done := make(chan struct{})
	go func() {
		h.runner.ListenAndRun(ctx, messages)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ListenAndRun did not return after cancel")
	}

	if len(acked) != 0 {
		t.Errorf("acked = %v, want nothing acked", acked)
	}
	if h.store.calls != 3 {
		t.Errorf("SaveAlerts calls = %d, want 3 retries of the first frame", h.store.calls)
	}
	if len(messages) != 1 {
		t.Errorf("queued messages = %d, want the second frame left unread", len(messages))
	}
}
