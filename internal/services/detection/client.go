package detection

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"

	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/metrics"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/models"
)

type predictResponse struct {
	Detections []models.RawDetection `json:"detections"`
}

// Client calls the detection model service.
type Client struct {
	URL        string
	confidence float64
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]models.RawDetection]
}

// NewClient creates a model client. upstreamConfidence is passed to the model as its own
// threshold and must be looser than the Filter thresholds.
func NewClient(baseURL string, timeout time.Duration, upstreamConfidence float64) *Client {
	breaker := gobreaker.NewCircuitBreaker[[]models.RawDetection](gobreaker.Settings{
		Name:        "detection-model",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("detection circuit breaker state changed")
		},
	})

	return &Client{
		URL:        baseURL,
		confidence: upstreamConfidence,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
	}
}

// SendFrame отправляет JPEG-кадр на /predict и возвращает переведённые детекции.
// Детекции с некорректным bbox отбрасываются и учитываются в метриках.
func (c *Client) SendFrame(ctx context.Context, imageData []byte, cameraID string) ([]models.Detection, error) {
	raw, err := c.breaker.Execute(func() ([]models.RawDetection, error) {
		return c.predict(ctx, imageData)
	})
	if err != nil {
		metrics.DetectorRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.DetectorRequests.WithLabelValues("ok").Inc()

	detections, malformed := Translate(raw)
	if malformed > 0 {
		metrics.DetectionsFiltered.WithLabelValues(metrics.ReasonMalformed).Add(float64(malformed))
	}
	log.Debug().Str("camera_id", cameraID).Int("raw", len(raw)).Int("malformed", malformed).Msg("detection: frame processed")
	return detections, nil
}

func (c *Client) predict(ctx context.Context, imageData []byte) ([]models.RawDetection, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")

	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("write image data: %w", err)
	}
	if err := writer.WriteField("conf", strconv.FormatFloat(c.confidence, 'f', -1, 64)); err != nil {
		return nil, fmt.Errorf("write conf field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+"/predict", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("bad status: %s, error: %s", resp.Status, bodyBytes)
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Detections, nil
}

// Health reports whether the model service answers its health endpoint.
func (c *Client) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Translate converts model output into detections. The class id wins over the label when both are set.
// It returns the number of raw detections dropped for a malformed box.
func Translate(raw []models.RawDetection) ([]models.Detection, int) {
	out := make([]models.Detection, 0, len(raw))
	malformed := 0

	for _, r := range raw {
		if len(r.Box) != 4 {
			malformed++
			continue
		}

		class := models.ClassFromLabel(r.Class)
		if r.ClassID != nil {
			class = models.ClassFromID(*r.ClassID)
		}

		out = append(out, models.Detection{
			Class:      class,
			Confidence: r.Score,
			BBox:       models.BoundingBox{X1: r.Box[0], Y1: r.Box[1], X2: r.Box[2], Y2: r.Box[3]},
		})
	}
	return out, malformed
}
