package blobs

import (
	"context"
	"errors"
)

type BlobReader interface {
	// If no such object exists, Download should return an error for which errors.Is(err, os.ErrNotExist) is true.
	Download(ctx context.Context, info BlobInfo, destPath string) error
}

type Blobstore interface {
	BlobReader
	// Upload uploads the file at sourcePath to the blobstore under info.Key.
	// If an object with the same key already exists, Upload should do nothing and return no error.
	Upload(ctx context.Context, sourcePath string, info BlobInfo) error
}

// BlobInfo identifies a model file in a blobstore.
type BlobInfo struct {
	// Key is the object name, for example "vpu_2_7.vpunn".
	Key string `json:"key" yaml:"key"`
	// SHA256 is the hex digest of the content. When set, downloads are verified against it.
	SHA256 string `json:"sha256,omitempty" yaml:"sha256,omitempty"`
}

// ErrChecksumMismatch is returned when downloaded content does not match BlobInfo.SHA256.
var ErrChecksumMismatch = errors.New("checksum mismatch")
