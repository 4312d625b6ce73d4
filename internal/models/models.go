package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/geometry"
)

// Class is the detection class as far as zone evaluation cares.
type Class int

const (
	ClassOther Class = iota
	ClassPerson
)

const (
	// PersonClassID is the COCO class id the model reports for people.
	PersonClassID = 0

	DetectionTypePerson = "person"
	DefaultAlertType    = "intrusion"
)

// ClassFromID translates a raw model class id.
func ClassFromID(id int) Class {
	if id == PersonClassID {
		return ClassPerson
	}
	return ClassOther
}

// ClassFromLabel translates a raw model class label.
func ClassFromLabel(label string) Class {
	if strings.EqualFold(strings.TrimSpace(label), DetectionTypePerson) {
		return ClassPerson
	}
	return ClassOther
}

func (c Class) String() string {
	if c == ClassPerson {
		return DetectionTypePerson
	}
	return "other"
}

func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Class) UnmarshalText(text []byte) error {
	*c = ClassFromLabel(string(text))
	return nil
}

// BoundingBox is an axis-aligned box in frame pixels, (X1,Y1) top-left.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (b BoundingBox) Width() float64  { return b.X2 - b.X1 }
func (b BoundingBox) Height() float64 { return b.Y2 - b.Y1 }

// Center is the reference point used for containment tests.
func (b BoundingBox) Center() geometry.Point {
	return geometry.Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// Validate rejects non-finite and inverted boxes.
func (b BoundingBox) Validate() error {
	for _, v := range []float64{b.X1, b.Y1, b.X2, b.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bbox has non-finite coordinate")
		}
	}
	if b.X1 > b.X2 || b.Y1 > b.Y2 {
		return fmt.Errorf("bbox is inverted: (%g,%g,%g,%g)", b.X1, b.Y1, b.X2, b.Y2)
	}
	return nil
}

// Detection представляет структуру одного обнаруженного объекта
type Detection struct {
	Class      Class       `json:"class"`
	Confidence float64     `json:"confidence"`
	BBox       BoundingBox `json:"bbox"`
}

// RawDetection is one object as reported by the model service: box is [x1, y1, x2, y2].
type RawDetection struct {
	Class   string    `json:"class"`
	ClassID *int      `json:"class_id,omitempty"`
	Score   float64   `json:"score"`
	Box     []float64 `json:"box"`
}

// Zone is a restricted polygon on one camera's frame.
type Zone struct {
	ID          int64            `json:"id"`
	CameraID    string           `json:"camera_id"`
	Name        string           `json:"name"`
	Polygon     geometry.Polygon `json:"coordinates"`
	AlertType   string           `json:"alert_type"`
	Active      bool             `json:"active"`
	ActiveHours *string          `json:"active_hours,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Alert is produced once per (zone, detection) containment hit.
type Alert struct {
	ID            int64        `json:"id,omitempty"`
	CameraID      string       `json:"camera_id"`
	ZoneID        int64        `json:"zone_id"`
	ZoneName      string       `json:"zone_name"`
	AlertType     string       `json:"alert_type"`
	DetectionType string       `json:"detection_type"`
	Confidence    float64      `json:"confidence"`
	BBox          *BoundingBox `json:"bbox,omitempty"`
	ImageURL      *string      `json:"image_url,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
}

// Camera owns zones; it is registered on first contact.
type Camera struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Location    *string    `json:"location,omitempty"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	LastFrameAt *time.Time `json:"last_frame_at,omitempty"`
}

// FrameMessage is consumed from the frames topic. Either Detections or FrameKey is set.
type FrameMessage struct {
	FrameID    string         `json:"frame_id" validate:"omitempty,max=255"`
	CameraID   string         `json:"camera_id" validate:"required,max=255"`
	CapturedAt time.Time      `json:"captured_at"`
	FrameKey   string         `json:"frame_key,omitempty" validate:"omitempty,max=1024"`
	Detections []RawDetection `json:"detections,omitempty" validate:"-"`
}

// FrameResult is what one processed frame produced.
type FrameResult struct {
	CameraID   string      `json:"camera_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Detections []Detection `json:"detections"`
	Alerts     []Alert     `json:"alerts"`
}

// AlertEvent is published on the alerts topic.
type AlertEvent struct {
	AlertID       int64        `json:"alert_id"`
	CameraID      string       `json:"camera_id"`
	ZoneID        int64        `json:"zone_id"`
	ZoneName      string       `json:"zone_name"`
	AlertType     string       `json:"alert_type"`
	DetectionType string       `json:"detection_type"`
	Confidence    float64      `json:"confidence"`
	BBox          *BoundingBox `json:"bbox,omitempty"`
	ImageURL      *string      `json:"image_url,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
}

func NewAlertEvent(a Alert) AlertEvent {
	return AlertEvent{
		AlertID:       a.ID,
		CameraID:      a.CameraID,
		ZoneID:        a.ZoneID,
		ZoneName:      a.ZoneName,
		AlertType:     a.AlertType,
		DetectionType: a.DetectionType,
		Confidence:    a.Confidence,
		BBox:          a.BBox,
		ImageURL:      a.ImageURL,
		Timestamp:     a.Timestamp,
	}
}

// OutboxMessage Структура для транзакционного outbox
type OutboxMessage struct {
	ID          string     `json:"id"`
	CameraID    string     `json:"camera_id"`
	Payload     []byte     `json:"payload"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
}

// ZoneCreate is the zone creation request body.
type ZoneCreate struct {
	Name        string      `json:"name" validate:"required,min=1,max=255"`
	Coordinates [][]float64 `json:"coordinates" validate:"required,min=3,dive,len=2"`
	AlertType   string      `json:"alert_type" validate:"omitempty,max=100"`
	Active      *bool       `json:"active"`
	ActiveHours *string     `json:"active_hours" validate:"omitempty,max=500"`
}

// ZoneUpdate toggles zone activation.
type ZoneUpdate struct {
	Active *bool `json:"active" validate:"required"`
}

// AlertFilter narrows alert history queries.
type AlertFilter struct {
	CameraID  string     `validate:"omitempty,max=255"`
	ZoneID    *int64     `validate:"omitempty,gt=0"`
	AlertType string     `validate:"omitempty,max=100"`
	Start     *time.Time `validate:"-"`
	End       *time.Time `validate:"-"`
	Page      int        `validate:"min=1"`
	PageSize  int        `validate:"min=1,max=100"`
}

// AlertPage is one page of alert history.
type AlertPage struct {
	Alerts   []Alert `json:"alerts"`
	Total    int     `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}
