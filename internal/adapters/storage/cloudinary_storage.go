package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"github.com/toolshed/marketplace/internal/domain/providers"
)

const cloudinaryFolder = "tool-manuals"

// CloudinaryStorage uploads manuals to Cloudinary as raw assets.
type CloudinaryStorage struct {
	cld     *cloudinary.Cloudinary
	folder  string
	maxSize int64
}

// NewCloudinaryStorage creates a storage from a cloudinary:// URL
func NewCloudinaryStorage(cloudinaryURL string, maxSize int64) (*CloudinaryStorage, error) {
	if cloudinaryURL == "" {
		return nil, fmt.Errorf("cloudinary URL is required")
	}

	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &CloudinaryStorage{cld: cld, folder: cloudinaryFolder, maxSize: maxSize}, nil
}

// Save uploads r and returns its secure URL as the stored path
func (s *CloudinaryStorage) Save(ctx context.Context, originalName, mimeType string, r io.Reader) (*providers.StoredFile, error) {
	var buf bytes.Buffer
	size, err := copyLimited(ctx, &buf, r, s.maxSize)
	if err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	result, err := s.cld.Upload.Upload(ctx, &buf, uploader.UploadParams{
		PublicID:     fmt.Sprintf("%s_%s", base, uuid.NewString()),
		Folder:       s.folder,
		ResourceType: "raw",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}
	if result.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary rejected upload: %s", result.Error.Message)
	}

	path := result.SecureURL
	if path == "" {
		path = strings.Replace(result.URL, "http://", "https://", 1)
	}

	return &providers.StoredFile{
		OriginalName: originalName,
		MimeType:     mimeType,
		Size:         size,
		StoredPath:   path,
	}, nil
}
