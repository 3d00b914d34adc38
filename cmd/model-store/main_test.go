package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/intel/npu-nn-cost-model/pkg/blobs"
)

type memoryBlobstore struct {
	blobs     map[string]string
	downloads atomic.Int32
}

var _ blobs.BlobReader = (*memoryBlobstore)(nil)

func (m *memoryBlobstore) Download(ctx context.Context, info blobs.BlobInfo, destPath string) error {
	m.downloads.Add(1)
	data, ok := m.blobs[info.Key]
	if !ok {
		return fmt.Errorf("no blob %q: %w", info.Key, os.ErrNotExist)
	}
	return os.WriteFile(destPath, []byte(data), 0644)
}

func TestServeBlobs(t *testing.T) {
	store := &memoryBlobstore{blobs: map[string]string{"vpu_2_7.vpunn": "model"}}
	s := &httpServer{blobCache: &blobCache{fetcher: &blobs.Fetcher{Reader: store, CacheDir: t.TempDir(), MaxDownloadAttempts: 1}}}
	srv := httptest.NewServer(s)
	defer srv.Close()

	grid := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/vpu_2_7.vpunn", http.StatusOK},
		{"GET", "/vpu_2_7.vpunn", http.StatusOK},
		{"GET", "/vpu_4_0.vpunn", http.StatusNotFound},
		{"GET", "/package.json", http.StatusBadRequest},
		{"GET", "/a/b.vpunn", http.StatusNotFound},
		{"POST", "/vpu_2_7.vpunn", http.StatusMethodNotAllowed},
	}
	for _, g := range grid {
		req, err := http.NewRequest(g.method, srv.URL+g.path, nil)
		if err != nil {
			t.Fatalf("building request: %v", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", g.method, g.path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != g.want {
			t.Errorf("%s %s: expected status %d, got %d", g.method, g.path, g.want, resp.StatusCode)
		}
		if g.want == http.StatusOK && string(body) != "model" {
			t.Errorf("%s %s: unexpected body %q", g.method, g.path, body)
		}
	}

	// One download for the hit, one for the miss.
	if n := store.downloads.Load(); n != 2 {
		t.Errorf("expected 2 downloads, got %d", n)
	}
}

func TestBlobstoreFor(t *testing.T) {
	env := map[string]string{"VPUNN_BLOBSTORE_ENDPOINT": "minio:9000", "VPUNN_BLOBSTORE_SSL": "true"}
	getenv := func(k string) string { return env[k] }

	store, err := blobstoreFor("s3://models", getenv)
	if err != nil {
		t.Fatalf("blobstoreFor: %v", err)
	}
	m, ok := store.(*blobs.MinIOBlobstore)
	if !ok || m.Bucket != "models" || !m.UseSSL {
		t.Errorf("unexpected blobstore %#v", store)
	}

	store, err = blobstoreFor("gs://models", getenv)
	if err != nil {
		t.Fatalf("blobstoreFor: %v", err)
	}
	if g, ok := store.(*blobs.GCSBlobstore); !ok || g.Bucket != "models" {
		t.Errorf("unexpected blobstore %#v", store)
	}

	if _, err := blobstoreFor("file:///models", getenv); err == nil {
		t.Errorf("expected an error for an unsupported scheme")
	}
	if _, err := blobstoreFor("s3://models", func(string) string { return "" }); err == nil {
		t.Errorf("expected an error without an endpoint")
	}
}
