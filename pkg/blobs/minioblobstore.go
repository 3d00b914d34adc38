package blobs

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"k8s.io/klog/v2"
)

// MinIOBlobstore keeps model files in an S3-compatible bucket.
type MinIOBlobstore struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool

	mu     sync.Mutex
	client *minio.Client
}

var _ Blobstore = (*MinIOBlobstore)(nil)

func (m *MinIOBlobstore) getClient() (*minio.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		return m.client, nil
	}
	client, err := minio.New(m.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(m.AccessKey, m.SecretKey, ""),
		Secure: m.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client for %q: %w", m.Endpoint, err)
	}
	m.client = client
	return client, nil
}

func (m *MinIOBlobstore) objectURL(key string) string {
	return "s3://" + m.Bucket + "/" + key
}

func isNoSuchKey(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return true
	}
	return false
}

func (m *MinIOBlobstore) Upload(ctx context.Context, sourcePath string, info BlobInfo) error {
	log := klog.FromContext(ctx)

	client, err := m.getClient()
	if err != nil {
		return err
	}
	objectURL := m.objectURL(info.Key)

	exists, err := client.BucketExists(ctx, m.Bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %q: %w", m.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, m.Bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("creating bucket %q: %w", m.Bucket, err)
		}
	}

	if _, err := client.StatObject(ctx, m.Bucket, info.Key, minio.StatObjectOptions{}); err == nil {
		log.Info("object already exists in bucket", "url", objectURL)
		return nil
	} else if !isNoSuchKey(err) {
		return fmt.Errorf("getting object attributes for %q: %w", objectURL, err)
	}

	log.Info("uploading model to bucket", "source", sourcePath, "destination", objectURL)

	startedAt := time.Now()
	opts := minio.PutObjectOptions{ContentType: "application/octet-stream"}
	if info.SHA256 != "" {
		opts.UserMetadata = map[string]string{"sha256": info.SHA256}
	}
	uploaded, err := client.FPutObject(ctx, m.Bucket, info.Key, sourcePath, opts)
	if err != nil {
		return fmt.Errorf("uploading to %q: %w", objectURL, err)
	}

	log.Info("uploaded model to bucket", "url", objectURL, "bytes", uploaded.Size, "duration", time.Since(startedAt))
	return nil
}

func (m *MinIOBlobstore) Download(ctx context.Context, info BlobInfo, destinationPath string) error {
	log := klog.FromContext(ctx)

	client, err := m.getClient()
	if err != nil {
		return err
	}
	objectURL := m.objectURL(info.Key)

	log.Info("downloading model from bucket", "source", objectURL, "destination", destinationPath)

	startedAt := time.Now()
	obj, err := client.GetObject(ctx, m.Bucket, info.Key, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("opening object %q: %w", objectURL, err)
	}
	defer obj.Close()

	// GetObject is lazy; Stat surfaces a missing object before any bytes are written.
	if _, err := obj.Stat(); err != nil {
		if isNoSuchKey(err) {
			return fmt.Errorf("object %q not found: %w", objectURL, os.ErrNotExist)
		}
		return fmt.Errorf("getting object attributes for %q: %w", objectURL, err)
	}

	n, err := writeToFile(ctx, obj, destinationPath, info.SHA256)
	if err != nil {
		return fmt.Errorf("downloading from %q: %w", objectURL, err)
	}

	log.Info("downloaded model from bucket", "source", objectURL, "destination", destinationPath, "bytes", n, "duration", time.Since(startedAt))
	return nil
}
