package providers

import (
	"context"
	"errors"
	"io"
)

// StoredFile describes a file accepted by a FileStorage
type StoredFile struct {
	OriginalName string
	MimeType     string
	Size         int64
	StoredPath   string
}

// FileStorage persists uploaded binaries
type FileStorage interface {
	Save(ctx context.Context, originalName, mimeType string, r io.Reader) (*StoredFile, error)
}

// ErrFileTooLarge is returned by Save when the upload exceeds the size limit
var ErrFileTooLarge = errors.New("file exceeds the maximum upload size")
