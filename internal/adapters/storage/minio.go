package storage

import (
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"path"
	"strings"

	"chatkaro-service/internal/config"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Object is a stored blob: PublicID is the object key used for deletion.
type Object struct {
	PublicID string
	URL      string
}

// MinIOClient represents a MinIO client
type MinIOClient struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinIOClient creates a new MinIO client and makes sure the bucket exists
func NewMinIOClient(ctx context.Context, cfg config.MinIOConfig) (*MinIOClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s", scheme, client.EndpointURL().Host)
	}

	slog.Info("Successfully connected to MinIO", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	return &MinIOClient{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Upload stores one multipart file under folder.
func (m *MinIOClient) Upload(ctx context.Context, folder string, file *multipart.FileHeader) (Object, error) {
	src, err := file.Open()
	if err != nil {
		return Object{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	name := objectName(folder, file.Filename)
	_, err = m.client.PutObject(ctx, m.bucket, name, src, file.Size, minio.PutObjectOptions{
		ContentType: file.Header.Get("Content-Type"),
	})
	if err != nil {
		return Object{}, fmt.Errorf("failed to upload file: %w", err)
	}

	return Object{PublicID: name, URL: objectURL(m.publicURL, m.bucket, name)}, nil
}

// UploadMany stores every file or none: on failure the objects already written are removed.
func (m *MinIOClient) UploadMany(ctx context.Context, folder string, files []*multipart.FileHeader) ([]Object, error) {
	objects := make([]Object, 0, len(files))
	for _, f := range files {
		obj, err := m.Upload(ctx, folder, f)
		if err != nil {
			ids := make([]string, 0, len(objects))
			for _, o := range objects {
				ids = append(ids, o.PublicID)
			}
			m.Delete(context.WithoutCancel(ctx), ids)
			return nil, err
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

// Delete removes objects in one batch. Failures are logged, not returned.
func (m *MinIOClient) Delete(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}

	objectsCh := make(chan minio.ObjectInfo, len(ids))
	for _, id := range ids {
		objectsCh <- minio.ObjectInfo{Key: id}
	}
	close(objectsCh)

	failed := 0
	for rerr := range m.client.RemoveObjects(ctx, m.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		failed++
		slog.Warn("Failed to delete blob", "objectID", rerr.ObjectName, "error", rerr.Err)
	}
	slog.Debug("Blob delete finished", "requested", len(ids), "failed", failed)
}

func objectName(folder, filename string) string {
	ext := path.Ext(filename)
	return path.Join(folder, uuid.NewString()+strings.ToLower(ext))
}

func objectURL(base, bucket, name string) string {
	return fmt.Sprintf("%s/%s/%s", base, bucket, name)
}
