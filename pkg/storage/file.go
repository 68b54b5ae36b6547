package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// FileStore keeps one JSON file per document under a directory. This is the
// default backend. Writes go through a temp file plus rename, so a crash
// mid-rewrite never leaves a truncated document behind.
type FileStore struct {
	dir string
}

// NewFileStore initializes the directory-backed store, creating the
// directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

// Load reads the document file. A missing file means the document was never
// created: (nil, nil).
func (f *FileStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Save atomically replaces the document file.
func (f *FileStore) Save(ctx context.Context, key string, doc []byte) error {
	return atomic.WriteFile(f.path(key), bytes.NewReader(doc))
}

// Close implements the DocumentStore interface.
func (f *FileStore) Close() error {
	return nil
}
