package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Filter exclusion reasons.
const (
	ReasonNotPerson     = "not_person"
	ReasonMalformed     = "malformed"
	ReasonLowConfidence = "low_confidence"
	ReasonTooSmall      = "too_small"
)

var (
	FramesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoneguard_frames_processed_total",
			Help: "Frames run through the zone pipeline",
		},
		[]string{"source", "status"}, // source: kafka, api
	)

	FrameProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zoneguard_frame_processing_seconds",
			Help:    "Time from frame receipt to persisted alerts",
			Buckets: prometheus.DefBuckets,
		},
	)

	DetectionsFiltered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoneguard_detections_filtered_total",
			Help: "Detections dropped before zone evaluation",
		},
		[]string{"reason"},
	)

	DetectionsKept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zoneguard_detections_kept_total",
			Help: "Detections that passed the filter",
		},
	)

	InvalidZones = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zoneguard_invalid_zones_total",
			Help: "Zones skipped during evaluation because of invalid geometry",
		},
	)

	AlertsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoneguard_alerts_generated_total",
			Help: "Zone intrusion alerts produced",
		},
		[]string{"alert_type"},
	)

	DetectorRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoneguard_detector_requests_total",
			Help: "Calls to the detection model service",
		},
		[]string{"status"},
	)

	OutboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoneguard_outbox_published_total",
			Help: "Alert events dispatched from the outbox",
		},
		[]string{"status"},
	)

	StaleCameras = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zoneguard_stale_cameras",
			Help: "Cameras that have not sent a frame within the stale threshold",
		},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zoneguard_websocket_clients",
			Help: "Connected live alert subscribers",
		},
	)
)
