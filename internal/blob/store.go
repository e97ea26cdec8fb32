// Package blob stores uploaded binaries (payment proofs, product images) and
// hands back retrievable keys.
package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/mfreiras/menuflow/internal/domain"
)

// MaxUploadSize is the upload cap enforced before anything is written.
const MaxUploadSize = 5 << 20

// Store accepts an uploaded binary and returns a retrievable key.
type Store interface {
	Save(ctx context.Context, contentType string, size int64, r io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// DiskStore writes uploads under a root directory, one file per key.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &DiskStore{root: root}, nil
}

// Save validates the upload (image/*, at most 5MB) and writes it to disk.
// The returned key is opaque to callers.
func (s *DiskStore) Save(ctx context.Context, contentType string, size int64, r io.Reader) (string, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return "", domain.Validationf("unsupported content type %q, expected an image", contentType)
	}
	if size > MaxUploadSize {
		return "", domain.Validationf("file is %d bytes, exceeds the %d byte limit", size, MaxUploadSize)
	}

	key := uuid.New().String()
	path := filepath.Join(s.root, key)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create blob file: %w", err)
	}

	// LimitReader guards against declared sizes smaller than the stream.
	written, err := io.Copy(f, io.LimitReader(r, MaxUploadSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write blob file: %w", err)
	}
	if written > MaxUploadSize {
		_ = os.Remove(path)
		return "", domain.Validationf("file exceeds the %d byte limit", MaxUploadSize)
	}

	return key, nil
}

func (s *DiskStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	// Keys are uuids we generated; reject anything path-like.
	if key != filepath.Base(key) {
		return nil, domain.ErrNotFound
	}

	f, err := os.Open(filepath.Join(s.root, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}
