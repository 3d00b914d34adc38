package blobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"k8s.io/klog/v2"
)

const (
	DefaultMaxDownloadAttempts = 5
	DefaultRetryBackoff        = 5 * time.Second
)

// Fetcher materializes blobs in a local cache directory, downloading them
// from Reader on a miss.
type Fetcher struct {
	// Reader is the interface to fetch blobs
	Reader BlobReader

	CacheDir string

	// MaxDownloadAttempts is the number of times to attempt a download before failing
	MaxDownloadAttempts int

	// RetryBackoff is the pause between attempts.
	RetryBackoff time.Duration
}

// LocalPath is where Fetch stores key.
func (f *Fetcher) LocalPath(key string) (string, error) {
	rel := filepath.FromSlash(key)
	if key == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(f.CacheDir, rel), nil
}

// Fetch returns the path of a local copy of the blob. A cached copy is reused
// when its checksum matches, or when info carries no checksum.
func (f *Fetcher) Fetch(ctx context.Context, info BlobInfo) (string, error) {
	log := klog.FromContext(ctx)

	localPath, err := f.LocalPath(info.Key)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(localPath); err == nil {
		if info.SHA256 == "" {
			return localPath, nil
		}
		got, err := HashFile(localPath)
		if err != nil {
			return "", err
		}
		if strings.EqualFold(got, info.SHA256) {
			return localPath, nil
		}
		log.Info("cached model has wrong checksum, downloading again", "path", localPath, "want", info.SHA256, "got", got)
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("checking cache for %q: %w", localPath, err)
	}

	if f.Reader == nil {
		return "", fmt.Errorf("model %q is not cached and no blobstore is configured: %w", info.Key, os.ErrNotExist)
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}
	if err := f.download(ctx, info, localPath); err != nil {
		return "", err
	}
	return localPath, nil
}

func (f *Fetcher) download(ctx context.Context, info BlobInfo, destPath string) error {
	log := klog.FromContext(ctx)

	maxAttempts := f.MaxDownloadAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxDownloadAttempts
	}

	attempt := 0
	for {
		attempt++

		err := f.Reader.Download(ctx, info, destPath)
		if err == nil {
			return nil
		}

		// A missing object will not appear by retrying.
		if attempt >= maxAttempts || errors.Is(err, os.ErrNotExist) {
			return err
		}

		log.Error(err, "downloading blob, will retry", "info", info, "attempt", attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.RetryBackoff):
		}
	}
}
