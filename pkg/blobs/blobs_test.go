package blobs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func sha(data string) string {
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:])
}

func newModelServer(t *testing.T, blobs map[string]string) *ModelServer {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := blobs[strings.TrimPrefix(r.URL.Path, "/")]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		fmt.Fprint(w, data)
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parsing %q: %v", srv.URL, err)
	}
	return &ModelServer{BlobserverURL: u}
}

func TestModelServerDownload(t *testing.T) {
	ctx := context.Background()
	const content = "VPUN model bytes"
	ms := newModelServer(t, map[string]string{"vpu_2_7.vpunn": content})
	dir := t.TempDir()

	dest := filepath.Join(dir, "model.vpunn")
	if err := ms.Download(ctx, BlobInfo{Key: "vpu_2_7.vpunn", SHA256: sha(content)}, dest); err != nil {
		t.Fatalf("Download: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading download: %v", err)
	}
	if string(got) != content {
		t.Errorf("expected %q, got %q", content, got)
	}

	err = ms.Download(ctx, BlobInfo{Key: "missing.vpunn"}, filepath.Join(dir, "missing"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}

	bad := filepath.Join(dir, "bad.vpunn")
	err = ms.Download(ctx, BlobInfo{Key: "vpu_2_7.vpunn", SHA256: sha("other")}, bad)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("expected ErrChecksumMismatch, got %v", err)
	}
	if _, err := os.Stat(bad); !os.IsNotExist(err) {
		t.Errorf("a failed download should leave no file behind, stat returned %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the successful download in %s, found %d entries", dir, len(entries))
	}
}

type flakyReader struct {
	failures int
	calls    int
	content  string
	err      error
}

func (r *flakyReader) Download(ctx context.Context, info BlobInfo, destPath string) error {
	r.calls++
	if r.err != nil {
		return r.err
	}
	if r.calls <= r.failures {
		return fmt.Errorf("transient failure %d", r.calls)
	}
	return os.WriteFile(destPath, []byte(r.content), 0644)
}

func TestFetcherRetries(t *testing.T) {
	ctx := context.Background()
	reader := &flakyReader{failures: 2, content: "model"}
	f := &Fetcher{Reader: reader, CacheDir: t.TempDir(), MaxDownloadAttempts: 3}

	p, err := f.Fetch(ctx, BlobInfo{Key: "models/vpu_2_0.vpunn"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if reader.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", reader.calls)
	}
	if filepath.Base(p) != "vpu_2_0.vpunn" {
		t.Errorf("unexpected local path %q", p)
	}

	// Cached copies are reused.
	if _, err := f.Fetch(ctx, BlobInfo{Key: "models/vpu_2_0.vpunn", SHA256: sha("model")}); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if reader.calls != 3 {
		t.Errorf("expected the cached copy to be used, got %d calls", reader.calls)
	}
}

func TestFetcherGivesUp(t *testing.T) {
	ctx := context.Background()

	reader := &flakyReader{failures: 10}
	f := &Fetcher{Reader: reader, CacheDir: t.TempDir(), MaxDownloadAttempts: 2}
	if _, err := f.Fetch(ctx, BlobInfo{Key: "a.vpunn"}); err == nil {
		t.Fatalf("expected an error")
	}
	if reader.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", reader.calls)
	}

	missing := &flakyReader{err: fmt.Errorf("gone: %w", os.ErrNotExist)}
	f = &Fetcher{Reader: missing, CacheDir: t.TempDir(), MaxDownloadAttempts: 5}
	if _, err := f.Fetch(ctx, BlobInfo{Key: "a.vpunn"}); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
	if missing.calls != 1 {
		t.Errorf("missing objects should not be retried, got %d calls", missing.calls)
	}
}

func TestFetcherRejectsEscapingKeys(t *testing.T) {
	f := &Fetcher{CacheDir: t.TempDir()}
	for _, key := range []string{"", "../etc/passwd", "/abs.vpunn"} {
		if _, err := f.LocalPath(key); err == nil {
			t.Errorf("expected key %q to be rejected", key)
		}
	}
}

func TestHashFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(p, []byte("abc"), 0644); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	got, err := HashFile(p)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"; got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
