package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/intel/npu-nn-cost-model/pkg/blobs"
)

func envFrom(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	c, err := LoadWithEnv("", envFrom(nil))
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}
	if diff := cmp.Diff(Default(), c); diff != "" {
		t.Errorf("unexpected config (-want +got):\n%s", diff)
	}
	reader, err := c.BlobReader()
	if err != nil {
		t.Fatalf("BlobReader: %v", err)
	}
	if reader != nil {
		t.Errorf("expected no blobstore by default, got %T", reader)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	p := writeConfig(t, `
listen: ":7000"
model_dir: /models
batch_size: 4
retry_backoff: 2s
blobstore:
  kind: minio
  bucket: models
  endpoint: minio:9000
models:
  vpu_2_7:
    blob:
      key: vpu_2_7.vpunn
      sha256: abc
  vpu_2_0:
    path: vpu_2_0.vpunn
`)
	c, err := LoadWithEnv(p, envFrom(map[string]string{
		"VPUNN_BATCH_SIZE":           "8",
		"VPUNN_BLOBSTORE_SSL":        "true",
		"VPUNN_BLOBSTORE_ACCESS_KEY": "ak",
	}))
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}

	if c.Listen != ":7000" {
		t.Errorf("expected listen :7000, got %q", c.Listen)
	}
	if c.BatchSize != 8 {
		t.Errorf("environment should override the file: expected batch 8, got %d", c.BatchSize)
	}
	if c.MaxModels != DefaultMaxModels {
		t.Errorf("expected the default max models %d, got %d", DefaultMaxModels, c.MaxModels)
	}
	if c.RetryBackoff != 2*time.Second {
		t.Errorf("expected retry backoff 2s, got %v", c.RetryBackoff)
	}
	want := ModelSource{Blob: &blobs.BlobInfo{Key: "vpu_2_7.vpunn", SHA256: "abc"}}
	if diff := cmp.Diff(want, c.Models["vpu_2_7"]); diff != "" {
		t.Errorf("unexpected model source (-want +got):\n%s", diff)
	}

	reader, err := c.BlobReader()
	if err != nil {
		t.Fatalf("BlobReader: %v", err)
	}
	store, ok := reader.(*blobs.MinIOBlobstore)
	if !ok {
		t.Fatalf("expected a MinIO blobstore, got %T", reader)
	}
	if !store.UseSSL || store.AccessKey != "ak" || store.Endpoint != "minio:9000" {
		t.Errorf("unexpected blobstore settings %+v", store)
	}
}

func TestValidate(t *testing.T) {
	grid := []struct {
		name   string
		config string
		env    map[string]string
		errSub string
	}{
		{name: "bad batch", env: map[string]string{"VPUNN_BATCH_SIZE": "0"}, errSub: "batch_size"},
		{name: "unparseable", env: map[string]string{"VPUNN_CACHE_SIZE": "lots"}, errSub: "VPUNN_CACHE_SIZE"},
		{name: "unknown kind", env: map[string]string{"VPUNN_BLOBSTORE_KIND": "ftp"}, errSub: "unknown blobstore"},
		{name: "gcs without bucket", env: map[string]string{"VPUNN_BLOBSTORE_KIND": "gcs"}, errSub: "requires a bucket"},
		{name: "http without url", env: map[string]string{"VPUNN_BLOBSTORE_KIND": "http"}, errSub: "requires a valid url"},
		{name: "tracing", env: map[string]string{"VPUNN_TRACING": "jaeger"}, errSub: "tracing"},
		{name: "no models allowed", env: map[string]string{"VPUNN_MAX_MODELS": "0"}, errSub: "max_models"},
		{
			name:   "more models than allowed",
			config: "max_models: 1\nmodels:\n  a: {path: a.vpunn}\n  b: {path: b.vpunn}\n",
			errSub: "max_models is 1",
		},
		{
			name:   "blob without store",
			config: "models:\n  m:\n    blob:\n      key: m.vpunn\n",
			errSub: "no blobstore",
		},
		{
			name:   "path and blob",
			config: "blobstore: {kind: gcs, bucket: b}\nmodels:\n  m:\n    path: m.vpunn\n    blob: {key: m.vpunn}\n",
			errSub: "exactly one",
		},
	}

	for _, g := range grid {
		t.Run(g.name, func(t *testing.T) {
			p := ""
			if g.config != "" {
				p = writeConfig(t, g.config)
			}
			_, err := LoadWithEnv(p, envFrom(g.env))
			if err == nil {
				t.Fatalf("expected an error containing %q", g.errSub)
			}
			if !strings.Contains(err.Error(), g.errSub) {
				t.Errorf("expected an error containing %q, got %v", g.errSub, err)
			}
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	got, err := ExpandHome("~/cache")
	if err != nil {
		t.Fatalf("ExpandHome: %v", err)
	}
	if got != filepath.Join(home, "cache") {
		t.Errorf("unexpected expansion %q", got)
	}
	if got, _ := ExpandHome("/abs"); got != "/abs" {
		t.Errorf("absolute paths should be unchanged, got %q", got)
	}
}
