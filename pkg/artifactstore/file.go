package artifactstore

import (
	"context"
	"io"
	"os"
	"path/filepath"

	simerrors "github.com/o2csim/o2csim/pkg/errors"
)

// FileStore reads and writes an artifact on the local filesystem.
type FileStore struct {
	path string
}

// NewFileStore creates a store for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Open opens the artifact file.
func (s *FileStore) Open(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, simerrors.Wrap(err, simerrors.CodeSourceUnavailable, "failed to open artifact file").
			WithContext("path", s.path)
	}
	return f, nil
}

// Put writes data atomically via a temp file and rename.
func (s *FileStore) Put(ctx context.Context, data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return simerrors.Wrap(err, simerrors.CodeSourceUnavailable, "failed to create artifact directory").
			WithContext("path", dir)
	}

	tmp, err := os.CreateTemp(dir, ".artifact-*")
	if err != nil {
		return simerrors.Wrap(err, simerrors.CodeSourceUnavailable, "failed to create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return simerrors.Wrap(err, simerrors.CodeSourceUnavailable, "failed to write artifact")
	}
	if err := tmp.Close(); err != nil {
		return simerrors.Wrap(err, simerrors.CodeSourceUnavailable, "failed to write artifact")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return simerrors.Wrap(err, simerrors.CodeSourceUnavailable, "failed to move artifact into place").
			WithContext("path", s.path)
	}
	return nil
}

// Name returns the file URI.
func (s *FileStore) Name() string {
	return Location{Scheme: SchemeFile, Path: s.path}.String()
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }
