// Package config holds the cost service configuration: a YAML file whose
// values can be overridden by VPUNN_* environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/intel/npu-nn-cost-model/pkg/blobs"
	"github.com/intel/npu-nn-cost-model/pkg/costmodel"
	"gopkg.in/yaml.v3"
)

const (
	BlobstoreNone  = "none"
	BlobstoreGCS   = "gcs"
	BlobstoreMinIO = "minio"
	BlobstoreHTTP  = "http"
)

// DefaultMaxModels bounds the cost service's model registry.
const DefaultMaxModels = 64

type Config struct {
	// Listen is the gRPC listen address.
	Listen string `yaml:"listen"`
	// MetricsListen serves /metrics; empty disables it.
	MetricsListen string `yaml:"metrics_listen"`

	// ModelDir resolves relative model paths.
	ModelDir string `yaml:"model_dir"`
	// Models are loaded at startup, keyed by the id clients use.
	Models map[string]ModelSource `yaml:"models"`

	CacheSize int `yaml:"cache_size"`
	BatchSize int `yaml:"batch_size"`
	// MaxModels bounds the models held at once, preloaded ones included.
	MaxModels int `yaml:"max_models"`

	Blobstore        BlobstoreConfig `yaml:"blobstore"`
	CacheDir         string          `yaml:"cache_dir"`
	DownloadAttempts int             `yaml:"download_attempts"`
	RetryBackoff     time.Duration   `yaml:"retry_backoff"`

	// Tracing is the span exporter: none or stdout.
	Tracing string `yaml:"tracing"`
}

// ModelSource is either a local path or a blob in the configured blobstore.
type ModelSource struct {
	Path string          `yaml:"path,omitempty"`
	Blob *blobs.BlobInfo `yaml:"blob,omitempty"`
}

type BlobstoreConfig struct {
	Kind      string `yaml:"kind"`
	Bucket    string `yaml:"bucket"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	SSL       bool   `yaml:"ssl"`
	// URL is the model-store base URL for kind http.
	URL string `yaml:"url"`
}

func Default() *Config {
	return &Config{
		Listen:           ":9876",
		MetricsListen:    ":9090",
		ModelDir:         ".",
		CacheSize:        costmodel.DefaultCacheSize,
		BatchSize:        costmodel.DefaultBatchSize,
		MaxModels:        DefaultMaxModels,
		Blobstore:        BlobstoreConfig{Kind: BlobstoreNone},
		CacheDir:         "~/.cache/vpunn/models",
		DownloadAttempts: blobs.DefaultMaxDownloadAttempts,
		RetryBackoff:     blobs.DefaultRetryBackoff,
		Tracing:          "none",
	}
}

// Load reads path (if not empty) over the defaults, applies the process
// environment and validates the result.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.Getenv)
}

func LoadWithEnv(path string, getenv func(string) string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parsing config %q: %w", path, err)
		}
	}
	if err := c.ApplyEnv(getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyEnv overrides fields from VPUNN_* variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s=%q: %w", key, v, err)
		}
		*dst = n
		return nil
	}

	str("VPUNN_LISTEN", &c.Listen)
	str("VPUNN_METRICS_LISTEN", &c.MetricsListen)
	str("VPUNN_MODEL_DIR", &c.ModelDir)
	str("VPUNN_CACHE_DIR", &c.CacheDir)
	str("VPUNN_TRACING", &c.Tracing)
	str("VPUNN_BLOBSTORE_KIND", &c.Blobstore.Kind)
	str("VPUNN_BLOBSTORE_BUCKET", &c.Blobstore.Bucket)
	str("VPUNN_BLOBSTORE_ENDPOINT", &c.Blobstore.Endpoint)
	str("VPUNN_BLOBSTORE_ACCESS_KEY", &c.Blobstore.AccessKey)
	str("VPUNN_BLOBSTORE_SECRET_KEY", &c.Blobstore.SecretKey)
	str("VPUNN_BLOBSTORE_URL", &c.Blobstore.URL)

	for key, dst := range map[string]*int{
		"VPUNN_CACHE_SIZE":        &c.CacheSize,
		"VPUNN_BATCH_SIZE":        &c.BatchSize,
		"VPUNN_MAX_MODELS":        &c.MaxModels,
		"VPUNN_DOWNLOAD_ATTEMPTS": &c.DownloadAttempts,
	} {
		if err := integer(key, dst); err != nil {
			return err
		}
	}

	if v := strings.TrimSpace(getenv("VPUNN_BLOBSTORE_SSL")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing VPUNN_BLOBSTORE_SSL=%q: %w", v, err)
		}
		c.Blobstore.SSL = b
	}
	if v := strings.TrimSpace(getenv("VPUNN_RETRY_BACKOFF")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing VPUNN_RETRY_BACKOFF=%q: %w", v, err)
		}
		c.RetryBackoff = d
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address must be set")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must not be negative, got %d", c.CacheSize)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1, got %d", c.BatchSize)
	}
	if c.MaxModels < 1 {
		return fmt.Errorf("max_models must be at least 1, got %d", c.MaxModels)
	}
	if len(c.Models) > c.MaxModels {
		return fmt.Errorf("%d models are configured but max_models is %d", len(c.Models), c.MaxModels)
	}
	if c.DownloadAttempts < 1 {
		return fmt.Errorf("download_attempts must be at least 1, got %d", c.DownloadAttempts)
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry_backoff must not be negative, got %v", c.RetryBackoff)
	}
	switch strings.ToLower(c.Tracing) {
	case "", "none", "stdout":
	default:
		return fmt.Errorf("unknown tracing exporter %q", c.Tracing)
	}

	b := c.Blobstore
	switch b.Kind {
	case "", BlobstoreNone:
	case BlobstoreGCS:
		if b.Bucket == "" {
			return fmt.Errorf("blobstore kind %q requires a bucket", b.Kind)
		}
	case BlobstoreMinIO:
		if b.Bucket == "" || b.Endpoint == "" {
			return fmt.Errorf("blobstore kind %q requires a bucket and an endpoint", b.Kind)
		}
	case BlobstoreHTTP:
		if _, err := url.Parse(b.URL); err != nil || b.URL == "" {
			return fmt.Errorf("blobstore kind %q requires a valid url, got %q", b.Kind, b.URL)
		}
	default:
		return fmt.Errorf("unknown blobstore kind %q", b.Kind)
	}

	for id, src := range c.Models {
		hasPath, hasBlob := src.Path != "", src.Blob != nil && src.Blob.Key != ""
		if hasPath == hasBlob {
			return fmt.Errorf("model %q must set exactly one of path or blob", id)
		}
		if hasBlob && (b.Kind == "" || b.Kind == BlobstoreNone) {
			return fmt.Errorf("model %q is a blob but no blobstore is configured", id)
		}
	}
	return nil
}

// BlobReader builds the configured blobstore client, or nil for kind none.
func (c *Config) BlobReader() (blobs.BlobReader, error) {
	b := c.Blobstore
	switch b.Kind {
	case BlobstoreGCS:
		return &blobs.GCSBlobstore{Bucket: strings.TrimPrefix(b.Bucket, "gs://")}, nil
	case BlobstoreMinIO:
		return &blobs.MinIOBlobstore{
			Endpoint:  b.Endpoint,
			Bucket:    b.Bucket,
			AccessKey: b.AccessKey,
			SecretKey: b.SecretKey,
			UseSSL:    b.SSL,
		}, nil
	case BlobstoreHTTP:
		u, err := url.Parse(b.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing model-store url %q: %w", b.URL, err)
		}
		return &blobs.ModelServer{BlobserverURL: u}, nil
	}
	return nil, nil
}

// Fetcher returns a fetcher over the configured blobstore, caching in CacheDir.
func (c *Config) Fetcher() (*blobs.Fetcher, error) {
	reader, err := c.BlobReader()
	if err != nil {
		return nil, err
	}
	cacheDir, err := ExpandHome(c.CacheDir)
	if err != nil {
		return nil, err
	}
	return &blobs.Fetcher{
		Reader:              reader,
		CacheDir:            cacheDir,
		MaxDownloadAttempts: c.DownloadAttempts,
		RetryBackoff:        c.RetryBackoff,
	}, nil
}

func (c *Config) CostModelOptions() []costmodel.Option {
	return []costmodel.Option{
		costmodel.WithCacheSize(c.CacheSize),
		costmodel.WithBatchSize(c.BatchSize),
	}
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(p string) (string, error) {
	if !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, strings.TrimPrefix(p, "~/")), nil
}
