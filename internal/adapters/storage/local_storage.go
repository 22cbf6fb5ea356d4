package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/toolshed/marketplace/internal/domain/providers"
)

// LocalStorage writes uploads under a directory on local disk.
type LocalStorage struct {
	dir     string
	maxSize int64
}

// NewLocalStorage creates the upload directory if needed
func NewLocalStorage(dir string, maxSize int64) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStorage{dir: dir, maxSize: maxSize}, nil
}

// Save stores r under a random name keeping the original extension
func (s *LocalStorage) Save(ctx context.Context, originalName, mimeType string, r io.Reader) (*providers.StoredFile, error) {
	name := uuid.NewString() + strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload file: %w", err)
	}

	size, err := copyLimited(ctx, f, r, s.maxSize)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	return &providers.StoredFile{
		OriginalName: originalName,
		MimeType:     mimeType,
		Size:         size,
		StoredPath:   path,
	}, nil
}

// copyLimited copies at most maxSize bytes and fails with ErrFileTooLarge
// when more are available. A non-positive maxSize disables the limit.
func copyLimited(ctx context.Context, w io.Writer, r io.Reader, maxSize int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if maxSize <= 0 {
		n, err := io.Copy(w, r)
		if err != nil {
			return n, fmt.Errorf("failed to write upload: %w", err)
		}
		return n, nil
	}

	n, err := io.Copy(w, io.LimitReader(r, maxSize+1))
	if err != nil {
		return n, fmt.Errorf("failed to write upload: %w", err)
	}
	if n > maxSize {
		return n, providers.ErrFileTooLarge
	}
	return n, nil
}

// IsTooLarge reports whether err was caused by the upload size limit
func IsTooLarge(err error) bool {
	return errors.Is(err, providers.ErrFileTooLarge)
}
