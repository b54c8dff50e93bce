package blobstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// BlobStore stores uploaded media and hands back an opaque URL. The rest of
// the system never looks inside the URL; it only serves it to clients and
// passes it back for best-effort cleanup.
type BlobStore interface {
	Upload(ctx context.Context, name string, r io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

// DiskStore keeps blobs in a flat directory and serves them under baseURL.
type DiskStore struct {
	dir     string
	baseURL string
	log     *slog.Logger
}

func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}
	return &DiskStore{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		log:     slog.Default().With("system", "blobstore"),
	}, nil
}

// Dir is the backing directory, for static file serving.
func (s *DiskStore) Dir() string {
	return s.dir
}

func (s *DiskStore) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	fname := uuid.NewString() + "-" + sanitizeName(name)

	f, err := os.Create(filepath.Join(s.dir, fname))
	if err != nil {
		return "", fmt.Errorf("creating blob file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("writing blob: %w", err)
	}

	url := s.baseURL + "/" + fname
	s.log.Debug("blob stored", "name", fname, "url", url)
	return url, nil
}

// Delete removes the blob behind a previously returned URL. Unknown or
// already-deleted blobs are not an error.
func (s *DiskStore) Delete(ctx context.Context, url string) error {
	fname := filepath.Base(url)
	if fname == "." || fname == "/" || fname == "" {
		return fmt.Errorf("malformed blob url: %q", url)
	}

	err := os.Remove(filepath.Join(s.dir, fname))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting blob: %w", err)
	}
	return nil
}

// sanitizeName strips path separators and whitespace from a client-supplied
// filename before it touches the filesystem.
func sanitizeName(name string) string {
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '.' || r == '-' || r == '_':
			return r
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, name)
	if name == "" || name == "." {
		name = "blob"
	}
	return name
}
