package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/models"
)

// Buckets names the buckets the service reads and writes.
type Buckets struct {
	Frames      string
	Snapshots   string
	Predictions string
}

type Client struct {
	client  *minio.Client
	buckets Buckets
}

func NewMinioClient(endpoint, accessKey, secretKey string, secure bool, buckets Buckets) (*Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &Client{client: client, buckets: buckets}, nil
}

// EnsureBuckets creates the snapshot and prediction buckets. The frames bucket belongs to the producer.
func (c *Client) EnsureBuckets(ctx context.Context) error {
	for _, b := range []string{c.buckets.Snapshots, c.buckets.Predictions} {
		if err := c.EnsureBucketExists(ctx, b); err != nil {
			return fmt.Errorf("bucket %s: %w", b, err)
		}
	}
	return nil
}

func (c *Client) EnsureBucketExists(ctx context.Context, bucketName string) error {
	exists, err := c.client.BucketExists(ctx, bucketName)
	if err != nil {
		return err
	}
	if !exists {
		return c.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
	}
	return nil
}

// DownloadFrame reads one frame image from the frames bucket.
func (c *Client) DownloadFrame(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.client.GetObject(ctx, c.buckets.Frames, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get frame %s: %w", key, err)
	}
	defer obj.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, obj); err != nil {
		return nil, fmt.Errorf("read frame %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

// SaveSnapshot stores the frame that raised alerts and returns its URL.
func (c *Client) SaveSnapshot(ctx context.Context, cameraID, frameID string, image []byte) (string, error) {
	objectName := fmt.Sprintf("%s/%s.jpg", cameraID, frameID)
	return c.upload(ctx, c.buckets.Snapshots, objectName, image, "image/jpeg")
}

// SaveDetectionResults сохраняет отфильтрованные детекции кадра в бакет predictions
// под <camera>/<frame>.json
func (c *Client) SaveDetectionResults(ctx context.Context, cameraID, frameID string, detections []models.Detection) error {
	jsonData, err := json.Marshal(detections)
	if err != nil {
		return fmt.Errorf("failed to marshal detections: %w", err)
	}

	objectName := fmt.Sprintf("%s/%s.json", cameraID, frameID)
	if _, err := c.upload(ctx, c.buckets.Predictions, objectName, jsonData, "application/json"); err != nil {
		return fmt.Errorf("failed to save detections to S3: %w", err)
	}
	return nil
}

func (c *Client) upload(ctx context.Context, bucketName, objectName string, data []byte, contentType string) (string, error) {
	_, err := c.client.PutObject(
		ctx,
		bucketName,
		objectName,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{
			ContentType: contentType,
		},
	)
	if err != nil {
		return "", fmt.Errorf("upload error: %w", err)
	}

	return ObjectURL(c.client.EndpointURL().String(), bucketName, objectName), nil
}

// ObjectURL builds the path-style URL of an object.
func ObjectURL(endpoint, bucketName, objectName string) string {
	return fmt.Sprintf("%s/%s/%s", endpoint, bucketName, objectName)
}
