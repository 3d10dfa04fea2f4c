package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"time"

	"momoinvoice/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// StorageService keeps an archive of verified webhook deliveries in object storage
type StorageService interface {
	ArchiveWebhook(ctx context.Context, event, reference string, body []byte) (string, error)
	EnsureBucketExists(ctx context.Context) error
	Ping(ctx context.Context) error
}

// objectStore is the subset of *minio.Client used here.
type objectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

var objectKeySanitizer = regexp.MustCompile(`[^A-Za-z0-9._-]`)

type minioStorage struct {
	client objectStore
	bucket string
	now    func() time.Time
}

func NewStorageService(cfg config.MinioConfig) (StorageService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return newMinioStorage(client, cfg.WebhookBucket), nil
}

func newMinioStorage(client objectStore, bucket string) *minioStorage {
	return &minioStorage{client: client, bucket: bucket, now: time.Now}
}

// WebhookObjectKey lays archived bodies out by day, then event type.
func WebhookObjectKey(at time.Time, event, reference string) string {
	event = objectKeySanitizer.ReplaceAllString(event, "_")
	if event == "" {
		event = "unknown"
	}
	reference = objectKeySanitizer.ReplaceAllString(reference, "_")
	if reference == "" {
		reference = "no-reference"
	}
	at = at.UTC()
	return fmt.Sprintf("paystack/%s/%s/%s-%d.json", at.Format("2006/01/02"), event, reference, at.UnixNano())
}

func (m *minioStorage) ArchiveWebhook(ctx context.Context, event, reference string, body []byte) (string, error) {
	key := WebhookObjectKey(m.now(), event, reference)
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("archive webhook: %w", err)
	}
	return key, nil
}

func (m *minioStorage) EnsureBucketExists(ctx context.Context) error {
	found, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !found {
		return m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
	}
	return nil
}

// Ping checks that the archive bucket is reachable.
func (m *minioStorage) Ping(ctx context.Context) error {
	found, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("bucket %s does not exist", m.bucket)
	}
	return nil
}
