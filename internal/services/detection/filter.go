package detection

import (
	"math"

	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/metrics"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/models"
)

// FilterConfig holds the authoritative post-model thresholds. Boundaries are inclusive.
type FilterConfig struct {
	MinConfidence float64
	MinWidth      float64
	MinHeight     float64
}

func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MinConfidence: 0.3,
		MinWidth:      20,
		MinHeight:     40,
	}
}

// FilterStats counts why detections were dropped.
type FilterStats struct {
	Total         int
	Kept          int
	NotPerson     int
	Malformed     int
	LowConfidence int
	TooSmall      int
}

// Filter drops detections that must not reach zone evaluation. It holds no mutable state.
type Filter struct {
	cfg FilterConfig
}

func NewFilter(cfg FilterConfig) *Filter {
	return &Filter{cfg: cfg}
}

func (f *Filter) Config() FilterConfig {
	return f.cfg
}

// Apply returns the detections that pass every threshold, in input order.
func (f *Filter) Apply(detections []models.Detection) ([]models.Detection, FilterStats) {
	stats := FilterStats{Total: len(detections)}
	kept := make([]models.Detection, 0, len(detections))

	for _, d := range detections {
		reason := f.reject(d)
		switch reason {
		case "":
			kept = append(kept, d)
			stats.Kept++
			continue
		case metrics.ReasonNotPerson:
			stats.NotPerson++
		case metrics.ReasonMalformed:
			stats.Malformed++
		case metrics.ReasonLowConfidence:
			stats.LowConfidence++
		case metrics.ReasonTooSmall:
			stats.TooSmall++
		}
		metrics.DetectionsFiltered.WithLabelValues(reason).Inc()
	}

	metrics.DetectionsKept.Add(float64(stats.Kept))
	return kept, stats
}

func (f *Filter) reject(d models.Detection) string {
	if d.Class != models.ClassPerson {
		return metrics.ReasonNotPerson
	}
	if d.BBox.Validate() != nil || math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
		return metrics.ReasonMalformed
	}
	if d.Confidence < f.cfg.MinConfidence {
		return metrics.ReasonLowConfidence
	}
	if d.BBox.Width() < f.cfg.MinWidth || d.BBox.Height() < f.cfg.MinHeight {
		return metrics.ReasonTooSmall
	}
	return ""
}
