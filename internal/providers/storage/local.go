package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/warrantydesk/warrantydesk/internal/config"
)

type LocalProvider struct {
	dir string
}

func NewLocal(cfg config.Config) (Provider, error) {
	if err := os.MkdirAll(cfg.Storage.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalProvider{dir: cfg.Storage.Dir}, nil
}

func (p *LocalProvider) Save(ctx context.Context, filename, contentType string, r io.Reader) (StoredFile, error) {
	stored := uuid.NewString()
	if ext := filepath.Ext(filename); ext != "" {
		stored += ext
	}

	f, err := os.Create(filepath.Join(p.dir, stored))
	if err != nil {
		return StoredFile{}, err
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		os.Remove(f.Name())
		return StoredFile{}, err
	}

	return StoredFile{
		Filename:    filename,
		StoredName:  stored,
		ContentType: contentType,
		Size:        n,
	}, nil
}

func (p *LocalProvider) Open(ctx context.Context, storedName string) (io.ReadCloser, error) {
	if !validStoredName(storedName) {
		return nil, os.ErrNotExist
	}
	return os.Open(filepath.Join(p.dir, storedName))
}

func (p *LocalProvider) Delete(ctx context.Context, storedName string) error {
	if !validStoredName(storedName) {
		return os.ErrNotExist
	}
	return os.Remove(filepath.Join(p.dir, storedName))
}

// validStoredName rejects anything that could escape the storage dir.
func validStoredName(name string) bool {
	return name != "" && !strings.ContainsAny(name, "/\\") && name != "." && name != ".."
}
