package providers

import (
	"context"
	"os"
	"path/filepath"
)

// FileStore persists uploaded documents. The local implementation is the
// only one today; the interface keeps object storage on the table.
type FileStore interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
	Remove(ctx context.Context, path string) error
}

type localFileStore struct {
	rootDir string
}

func NewLocalFileStore(rootDir string) FileStore {
	return &localFileStore{rootDir: rootDir}
}

func (s *localFileStore) Save(_ context.Context, name string, data []byte) (string, error) {
	dst := filepath.Join(s.rootDir, name)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(dst)
	if err != nil {
		return dst, nil
	}
	return abs, nil
}

func (s *localFileStore) Remove(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
