package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/intel/npu-nn-cost-model/pkg/blobs"
	"github.com/intel/npu-nn-cost-model/pkg/config"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/klog/v2"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := klog.FromContext(ctx)

	listen := ":8080"
	cacheDir := os.Getenv("CACHE_DIR")
	if cacheDir == "" {
		// We expect CACHE_DIR to be set when running on kubernetes, but default sensibly for local dev
		cacheDir = "~/.cache/model-store/models"
	}
	flag.StringVar(&listen, "listen", listen, "listen address")
	flag.StringVar(&cacheDir, "cache-dir", cacheDir, "cache directory")
	klog.InitFlags(nil)
	flag.Parse()

	cacheDir, err := config.ExpandHome(cacheDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return fmt.Errorf("creating cache directory %q: %w", cacheDir, err)
	}

	cacheBucket := os.Getenv("CACHE_BUCKET")
	if cacheBucket == "" {
		return fmt.Errorf("must specify CACHE_BUCKET env var")
	}
	blobstore, err := blobstoreFor(cacheBucket, os.Getenv)
	if err != nil {
		return err
	}
	log.Info("using model bucket", "bucket", cacheBucket)

	blobCache := &blobCache{
		fetcher: &blobs.Fetcher{
			Reader:              blobstore,
			CacheDir:            cacheDir,
			MaxDownloadAttempts: blobs.DefaultMaxDownloadAttempts,
			RetryBackoff:        blobs.DefaultRetryBackoff,
		},
	}

	s := &httpServer{
		blobCache: blobCache,
	}

	klog.Infof("serving on %q", listen)
	if err := http.ListenAndServe(listen, s); err != nil {
		return fmt.Errorf("serving on %q: %w", listen, err)
	}

	return nil
}

// blobstoreFor parses gs://<bucket> or s3://<bucket>. The S3 endpoint and
// credentials come from the VPUNN_BLOBSTORE_* variables.
func blobstoreFor(bucketURL string, getenv func(string) string) (blobs.Blobstore, error) {
	switch {
	case strings.HasPrefix(bucketURL, "gs://"):
		return &blobs.GCSBlobstore{
			Bucket: strings.TrimPrefix(bucketURL, "gs://"),
		}, nil
	case strings.HasPrefix(bucketURL, "s3://"):
		endpoint := getenv("VPUNN_BLOBSTORE_ENDPOINT")
		if endpoint == "" {
			return nil, fmt.Errorf("VPUNN_BLOBSTORE_ENDPOINT must be set for %q", bucketURL)
		}
		useSSL := false
		if v := getenv("VPUNN_BLOBSTORE_SSL"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("parsing VPUNN_BLOBSTORE_SSL=%q: %w", v, err)
			}
			useSSL = b
		}
		return &blobs.MinIOBlobstore{
			Endpoint:  endpoint,
			Bucket:    strings.TrimPrefix(bucketURL, "s3://"),
			AccessKey: getenv("VPUNN_BLOBSTORE_ACCESS_KEY"),
			SecretKey: getenv("VPUNN_BLOBSTORE_SECRET_KEY"),
			UseSSL:    useSSL,
		}, nil
	}
	return nil, fmt.Errorf("CACHE_BUCKET must be a GCS bucket URL (gs://<bucketName>) or an S3 bucket URL (s3://<bucketName>)")
}

type httpServer struct {
	blobCache *blobCache
}

func (s *httpServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tokens := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if len(tokens) == 1 && tokens[0] != "" {
		if r.Method == "GET" {
			key := tokens[0]
			s.serveGETBlob(w, r, key)
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	http.Error(w, "not found", http.StatusNotFound)
}

func (s *httpServer) serveGETBlob(w http.ResponseWriter, r *http.Request, key string) {
	ctx := r.Context()

	log := klog.FromContext(ctx)

	f, err := s.blobCache.GetBlob(ctx, key)
	if err != nil {
		switch status.Code(err) {
		case codes.NotFound:
			http.Error(w, "not found", http.StatusNotFound)
			return
		case codes.InvalidArgument:
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		log.Error(err, "error getting blob")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	defer f.Close()
	p := f.Name()

	klog.Infof("serving blob %q", p)
	http.ServeFile(w, r, p)
}

type blobCache struct {
	fetcher *blobs.Fetcher
}

// GetBlob opens the cached model, downloading it from the bucket on a miss.
func (c *blobCache) GetBlob(ctx context.Context, key string) (*os.File, error) {
	if !strings.HasSuffix(key, ".vpunn") {
		return nil, status.Errorf(codes.InvalidArgument, "blob %q is not a model", key)
	}
	if _, err := c.fetcher.LocalPath(key); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}

	localPath, err := c.fetcher.Fetch(ctx, blobs.BlobInfo{Key: key})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, status.Errorf(codes.NotFound, "blob %q not found", key)
		}
		return nil, fmt.Errorf("fetching blob %q: %w", key, err)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("opening blob %q: %w", key, err)
	}
	return f, nil
}
