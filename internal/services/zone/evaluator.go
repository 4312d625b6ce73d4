package zone

import (
	"github.com/rs/zerolog/log"

	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/geometry"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/metrics"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/models"
)

// Evaluator matches filtered detections against zone polygons. It holds no state and is safe
// for concurrent use.
type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate returns one alert per (zone, detection) pair whose bbox center lies inside the zone,
// in zone-then-detection order. Inactive zones and zones with invalid geometry are skipped.
// Alerts carry no timestamp; the caller stamps them when persisting.
func (e *Evaluator) Evaluate(detections []models.Detection, zones []models.Zone) []models.Alert {
	alerts := make([]models.Alert, 0)
	if len(zones) == 0 || len(detections) == 0 {
		return alerts
	}

	for _, z := range zones {
		if !z.Active {
			continue
		}
		if err := z.Polygon.Validate(); err != nil {
			metrics.InvalidZones.Inc()
			log.Warn().Err(err).Int64("zone_id", z.ID).Str("camera_id", z.CameraID).Msg("zone skipped: invalid coordinates")
			continue
		}

		for _, d := range detections {
			if d.BBox.Validate() != nil {
				continue
			}

			inside, err := geometry.Contains(z.Polygon, d.BBox.Center())
			if err != nil || !inside {
				continue
			}

			bbox := d.BBox
			alerts = append(alerts, models.Alert{
				CameraID:      z.CameraID,
				ZoneID:        z.ID,
				ZoneName:      z.Name,
				AlertType:     z.AlertType,
				DetectionType: d.Class.String(),
				Confidence:    d.Confidence,
				BBox:          &bbox,
			})
			metrics.AlertsGenerated.WithLabelValues(z.AlertType).Inc()

			log.Info().
				Int64("zone_id", z.ID).
				Str("zone_name", z.Name).
				Float64("confidence", d.Confidence).
				Msg("zone violation detected")
		}
	}
	return alerts
}
