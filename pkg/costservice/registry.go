package costservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/intel/npu-nn-cost-model/pkg/blobs"
	"github.com/intel/npu-nn-cost-model/pkg/config"
	"github.com/intel/npu-nn-cost-model/pkg/costmodel"
	"k8s.io/klog/v2"
)

// BlobPrefix marks a model reference as a blobstore key rather than a path.
const BlobPrefix = "blob:"

var (
	// ErrInvalidModelRef is returned for a path that leaves the model directory.
	ErrInvalidModelRef = errors.New("invalid model reference")
	// ErrRegistryFull is returned when MaxModels models are already loaded.
	ErrRegistryFull = errors.New("model registry is full")
)

type entry struct {
	ready chan struct{}
	model *costmodel.CostModel
	err   error
}

// Registry holds the loaded cost models, keyed by the id clients use.
type Registry struct {
	modelDir string
	fetcher  *blobs.Fetcher
	options  []costmodel.Option

	// MaxModels bounds the number of entries; 0 means no limit.
	MaxModels int

	mu      sync.Mutex
	entries map[string]*entry
}

// NewRegistry resolves relative model paths against modelDir. fetcher may be
// nil when no blobstore is configured.
func NewRegistry(modelDir string, fetcher *blobs.Fetcher, opts ...costmodel.Option) *Registry {
	return &Registry{
		modelDir: modelDir,
		fetcher:  fetcher,
		options:  opts,
		entries:  make(map[string]*entry),
	}
}

// Get returns a model that has finished loading.
func (r *Registry) Get(id string) (*costmodel.CostModel, bool) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	select {
	case <-e.ready:
		return e.model, e.err == nil
	default:
		return nil, false
	}
}

// Load returns the model for ref, loading it on first use. Concurrent
// callers for the same ref share one load. A path ref must be local to the
// model directory and name an existing file. Failures are not remembered.
func (r *Registry) Load(ctx context.Context, ref string) (*costmodel.CostModel, error) {
	return r.load(ctx, ref, func(ctx context.Context) (string, error) {
		return r.resolve(ctx, ref)
	})
}

// Preload loads a configured model under id.
func (r *Registry) Preload(ctx context.Context, id string, src config.ModelSource) (*costmodel.CostModel, error) {
	return r.load(ctx, id, func(ctx context.Context) (string, error) {
		if src.Blob != nil {
			return r.fetch(ctx, *src.Blob)
		}
		// Configured paths are trusted and may be absolute.
		if filepath.IsAbs(src.Path) {
			return src.Path, nil
		}
		return filepath.Join(r.modelDir, src.Path), nil
	})
}

func (r *Registry) load(ctx context.Context, id string, resolve func(context.Context) (string, error)) (*costmodel.CostModel, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		if r.MaxModels > 0 && len(r.entries) >= r.MaxModels {
			r.mu.Unlock()
			return nil, fmt.Errorf("loading %q: %w (%d models)", id, ErrRegistryFull, r.MaxModels)
		}
		e = &entry{ready: make(chan struct{})}
		r.entries[id] = e
	}
	r.mu.Unlock()

	if ok {
		select {
		case <-e.ready:
			return e.model, e.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	log := klog.FromContext(ctx)
	p, err := resolve(ctx)
	if err == nil {
		e.model = costmodel.New(p, r.options...)
		log.Info("loaded cost model", "id", id, "path", p, "initialized", e.model.Initialized())
	} else {
		e.err = err
		r.mu.Lock()
		delete(r.entries, id)
		r.mu.Unlock()
	}
	close(e.ready)
	return e.model, e.err
}

func (r *Registry) resolve(ctx context.Context, ref string) (string, error) {
	if key, ok := strings.CutPrefix(ref, BlobPrefix); ok {
		return r.fetch(ctx, blobs.BlobInfo{Key: key})
	}
	return r.localPath(ref)
}

// localPath resolves a client path against the model directory. The file
// must exist, so that unknown paths do not accumulate entries.
func (r *Registry) localPath(ref string) (string, error) {
	if !filepath.IsLocal(ref) {
		return "", fmt.Errorf("%w: %q must be a relative path inside the model directory", ErrInvalidModelRef, ref)
	}
	p := filepath.Join(r.modelDir, ref)
	info, err := os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("model %q: %w", ref, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %q is a directory", ErrInvalidModelRef, ref)
	}
	return p, nil
}

func (r *Registry) fetch(ctx context.Context, info blobs.BlobInfo) (string, error) {
	if r.fetcher == nil {
		return "", fmt.Errorf("model %q is a blob but no blobstore is configured", info.Key)
	}
	p, err := r.fetcher.Fetch(ctx, info)
	if err != nil {
		return "", fmt.Errorf("fetching model %q: %w", info.Key, err)
	}
	return p, nil
}

// loadedModel is a snapshot row for metrics.
type loadedModel struct {
	id    string
	model *costmodel.CostModel
}

// models lists the loaded models, sorted by id.
func (r *Registry) models() []loadedModel {
	r.mu.Lock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)

	var out []loadedModel
	for _, id := range ids {
		if m, ok := r.Get(id); ok {
			out = append(out, loadedModel{id: id, model: m})
		}
	}
	return out
}

// Len is the number of loaded models.
func (r *Registry) Len() int {
	return len(r.models())
}
