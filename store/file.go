package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jacoelho/xmldoc"
)

// FileStore keeps one YAML file per snapshot in a directory.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore creates a FileStore, ensuring the directory exists.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &FileStore{dir: dir, logger: slog.Default().With("store", "file")}, nil
}

func (f *FileStore) path(id string) string {
	return filepath.Join(f.dir, id+".yaml")
}

// Save writes s to <dir>/<id>.yaml, replacing any earlier snapshot.
func (f *FileStore) Save(ctx context.Context, id string, s *xmldoc.Snapshot) error {
	if err := checkID(id); err != nil {
		return err
	}
	data, err := Encode(s, false)
	if err != nil {
		return err
	}
	fn := f.path(id)
	if err := os.WriteFile(fn, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", fn, err)
	}
	f.logger.DebugContext(ctx, "snapshot saved", "id", id, "path", fn)
	return nil
}

// Load returns the snapshot stored under id, or an error wrapping ErrNotFound.
func (f *FileStore) Load(ctx context.Context, id string) (*xmldoc.Snapshot, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	fn := f.path(id)
	data, err := os.ReadFile(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("read %s: %w", fn, err)
	}
	f.logger.DebugContext(ctx, "snapshot loaded", "id", id, "path", fn)
	return Decode(data)
}

// Delete removes the snapshot stored under id. A missing id wraps ErrNotFound.
func (f *FileStore) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	fn := f.path(id)
	if err := os.Remove(fn); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return notFound(id)
		}
		return fmt.Errorf("remove %s: %w", fn, err)
	}
	f.logger.DebugContext(ctx, "snapshot deleted", "id", id)
	return nil
}

// Close is a no-op.
func (f *FileStore) Close() error { return nil }
