package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/kafka"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/metrics"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/models"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/services/detection"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/services/zone"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/validation"
)

const (
	SourceKafka = "kafka"
	SourceAPI   = "api"

	maxRedeliveryDelay = 30 * time.Second
)

var (
	// ErrDetection means the model service could not process the frame after every retry.
	ErrDetection = errors.New("detection failed")
	// ErrInvalidFrame marks a frame message that can never be processed.
	ErrInvalidFrame = errors.New("invalid frame message")
)

type Detector interface {
	SendFrame(ctx context.Context, imageData []byte, cameraID string) ([]models.Detection, error)
}

type ZoneSource interface {
	ActiveZonesForCamera(ctx context.Context, cameraID string, at time.Time) ([]models.Zone, error)
}

type AlertStore interface {
	SaveAlerts(ctx context.Context, alerts []models.Alert) error
	TouchCamera(ctx context.Context, cameraID string, at time.Time) error
}

type ObjectStorage interface {
	DownloadFrame(ctx context.Context, key string) ([]byte, error)
	SaveSnapshot(ctx context.Context, cameraID, frameID string, image []byte) (string, error)
	SaveDetectionResults(ctx context.Context, cameraID, frameID string, detections []models.Detection) error
}

type Broadcaster interface {
	BroadcastAlerts(alerts []models.Alert)
}

// Deps are the collaborators of a Runner.
type Deps struct {
	Detector  Detector
	Filter    *detection.Filter
	Zones     ZoneSource
	Evaluator *zone.Evaluator
	Store     AlertStore
	Storage   ObjectStorage
	Hub       Broadcaster
}

// Frame is one unit of work. When Detections is nil the Image is sent to the model.
type Frame struct {
	ID         string
	CameraID   string
	CapturedAt time.Time
	Image      []byte
	Detections []models.Detection
	Source     string
}

// Runner turns frames into persisted alerts.
type Runner struct {
	Deps
	retries         int
	retryDelay      time.Duration
	redeliveryDelay time.Duration
}

func New(deps Deps, retries int) *Runner {
	return &Runner{
		Deps:            deps,
		retries:         max(retries, 1),
		retryDelay:      200 * time.Millisecond,
		redeliveryDelay: time.Second,
	}
}

// ListenAndRun processes frames from the consumer until ctx is cancelled or the channel closes.
// A message is acknowledged once it is fully handled or known to be unprocessable; a failed
// message is retried in place so no later offset is committed past it.
func (r *Runner) ListenAndRun(ctx context.Context, messages <-chan kafka.Message) {
	log.Info().Msg("runner: listening for frames")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("runner: shutting down")
			return
		case msg, ok := <-messages:
			if !ok {
				log.Info().Msg("runner: consumer closed")
				return
			}
			if !r.handleUntilDone(ctx, msg) {
				log.Info().Msg("runner: shutting down with unacknowledged frame")
				return
			}
		}
	}
}

// handleUntilDone retries msg with exponential backoff and reports whether it was acknowledged.
// It gives up only when ctx is cancelled.
func (r *Runner) handleUntilDone(ctx context.Context, msg kafka.Message) bool {
	delay := r.redeliveryDelay
	for attempt := 1; ; attempt++ {
		err := r.HandleMessage(ctx, msg.Value)
		switch {
		case err == nil:
			msg.Ack()
			return true
		case errors.Is(err, ErrInvalidFrame):
			log.Error().Err(err).Msg("dropping unprocessable frame message")
			msg.Ack()
			return true
		}

		if ctx.Err() != nil {
			return false
		}
		log.Error().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("error processing frame")

		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRedeliveryDelay)
	}
}

// HandleMessage decodes one frames-topic record and processes it.
func (r *Runner) HandleMessage(ctx context.Context, value []byte) error {
	var fm models.FrameMessage
	if err := json.Unmarshal(value, &fm); err != nil {
		metrics.FramesProcessed.WithLabelValues(SourceKafka, "invalid").Inc()
		return fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if err := validation.Struct(fm); err != nil {
		metrics.FramesProcessed.WithLabelValues(SourceKafka, "invalid").Inc()
		return fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if fm.Detections == nil && fm.FrameKey == "" {
		metrics.FramesProcessed.WithLabelValues(SourceKafka, "invalid").Inc()
		return fmt.Errorf("%w: neither detections nor frame_key set", ErrInvalidFrame)
	}

	frame := Frame{
		ID:         fm.FrameID,
		CameraID:   fm.CameraID,
		CapturedAt: fm.CapturedAt,
		Source:     SourceKafka,
	}

	if fm.Detections != nil {
		dets, malformed := detection.Translate(fm.Detections)
		if malformed > 0 {
			metrics.DetectionsFiltered.WithLabelValues(metrics.ReasonMalformed).Add(float64(malformed))
		}
		frame.Detections = dets
	}
	if fm.FrameKey != "" {
		image, err := r.Storage.DownloadFrame(ctx, fm.FrameKey)
		if err != nil {
			metrics.FramesProcessed.WithLabelValues(SourceKafka, "error").Inc()
			return err
		}
		frame.Image = image
	}

	_, err := r.ProcessFrame(ctx, frame)
	return err
}

// ProcessFrame runs one frame through detection, filtering, zone evaluation and persistence.
// Alerts are committed together with their outbox events; archiving and live push are best effort.
func (r *Runner) ProcessFrame(ctx context.Context, f Frame) (*models.FrameResult, error) {
	started := time.Now()
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.CapturedAt.IsZero() {
		f.CapturedAt = started.UTC()
	}
	if f.Source == "" {
		f.Source = SourceAPI
	}
	logger := log.With().Str("camera_id", f.CameraID).Str("frame_id", f.ID).Logger()

	result, err := r.processFrame(ctx, f)
	if err != nil {
		metrics.FramesProcessed.WithLabelValues(f.Source, "error").Inc()
		logger.Error().Err(err).Msg("frame processing failed")
		return nil, err
	}

	metrics.FramesProcessed.WithLabelValues(f.Source, "ok").Inc()
	metrics.FrameProcessingDuration.Observe(time.Since(started).Seconds())
	logger.Debug().Int("detections", len(result.Detections)).Int("alerts", len(result.Alerts)).Msg("frame processed")
	return result, nil
}

func (r *Runner) processFrame(ctx context.Context, f Frame) (*models.FrameResult, error) {
	dets := f.Detections
	if dets == nil {
		var err error
		if dets, err = r.detectWithRetries(ctx, f); err != nil {
			return nil, err
		}
	}

	kept, _ := r.Filter.Apply(dets)

	zones, err := r.Zones.ActiveZonesForCamera(ctx, f.CameraID, f.CapturedAt)
	if err != nil {
		return nil, err
	}

	alerts := r.Evaluator.Evaluate(kept, zones)
	for i := range alerts {
		alerts[i].Timestamp = f.CapturedAt
	}

	if len(alerts) > 0 && len(f.Image) > 0 {
		url, err := r.Storage.SaveSnapshot(ctx, f.CameraID, f.ID, f.Image)
		if err != nil {
			log.Warn().Err(err).Str("frame_id", f.ID).Msg("failed to save snapshot, alerts stored without image")
		} else {
			for i := range alerts {
				alerts[i].ImageURL = &url
			}
		}
	}

	if err := r.Store.SaveAlerts(ctx, alerts); err != nil {
		return nil, fmt.Errorf("save alerts: %w", err)
	}
	if err := r.Store.TouchCamera(ctx, f.CameraID, f.CapturedAt); err != nil {
		log.Warn().Err(err).Str("camera_id", f.CameraID).Msg("failed to update camera last frame")
	}
	if err := r.Storage.SaveDetectionResults(ctx, f.CameraID, f.ID, kept); err != nil {
		log.Warn().Err(err).Str("frame_id", f.ID).Msg("failed to archive detections")
	}

	if len(alerts) > 0 {
		r.Hub.BroadcastAlerts(alerts)
	}

	return &models.FrameResult{
		CameraID:   f.CameraID,
		Timestamp:  f.CapturedAt,
		Detections: kept,
		Alerts:     alerts,
	}, nil
}

func (r *Runner) detectWithRetries(ctx context.Context, f Frame) ([]models.Detection, error) {
	if len(f.Image) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrDetection)
	}

	var lastErr error
	for attempt := 1; attempt <= r.retries; attempt++ {
		dets, err := r.Detector.SendFrame(ctx, f.Image, f.CameraID)
		if err == nil {
			return dets, nil
		}
		lastErr = err
		log.Warn().Err(err).Str("frame_id", f.ID).Int("attempt", attempt).Msg("detection error")

		if attempt == r.retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retryDelay * time.Duration(attempt)):
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrDetection, r.retries, lastErr)
}
