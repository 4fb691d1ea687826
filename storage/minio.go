// Package storage archives generation snapshots to S3-compatible object
// storage so support can replay what a user was served.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"pleia/config"
	"pleia/logger"
)

// SnapshotStore writes playlist snapshots to a MinIO bucket.
type SnapshotStore struct {
	client *minio.Client
	bucket string
}

// NewSnapshotStore connects to MinIO and ensures the bucket exists.
func NewSnapshotStore(cfg *config.Config) (*SnapshotStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.MinioBucket, err)
		}
		logger.Info("[Storage] bucket created", logger.String("bucket", cfg.MinioBucket))
	}

	return &SnapshotStore{client: client, bucket: cfg.MinioBucket}, nil
}

// Snapshot is the archived record of one generation.
type Snapshot struct {
	TraceID     string      `json:"trace_id"`
	UserID      int64       `json:"user_id"`
	Prompt      string      `json:"prompt"`
	Mode        string      `json:"mode"`
	TrackCount  int         `json:"track_count"`
	Tracks      interface{} `json:"tracks"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// Archive stores a snapshot as JSON at snapshots/<user>/<trace>.json.
func (s *SnapshotStore) Archive(ctx context.Context, snap Snapshot) error {
	if snap.GeneratedAt.IsZero() {
		snap.GeneratedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	name := fmt.Sprintf("snapshots/%d/%s.json", snap.UserID, snap.TraceID)
	_, err = s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("put snapshot %s: %w", name, err)
	}
	logger.Debug("[Storage] snapshot archived",
		logger.String("object", name),
		logger.Int("bytes", len(payload)),
	)
	return nil
}
