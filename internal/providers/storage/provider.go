package storage

import (
	"context"
	"io"
)

// StoredFile describes a persisted upload. StoredName is the name on disk,
// Filename is the name the uploader supplied.
type StoredFile struct {
	Filename    string `json:"filename"`
	StoredName  string `json:"storedName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type Provider interface {
	Save(ctx context.Context, filename, contentType string, r io.Reader) (StoredFile, error)
	Open(ctx context.Context, storedName string) (io.ReadCloser, error)
	Delete(ctx context.Context, storedName string) error
}
