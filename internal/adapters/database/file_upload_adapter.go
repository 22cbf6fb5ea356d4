package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/toolshed/marketplace/internal/domain/entities"
	"github.com/toolshed/marketplace/internal/domain/repositories"
	"github.com/toolshed/marketplace/internal/infrastructure/clients/postgres"
	apperrors "github.com/toolshed/marketplace/pkg/errors"
)

// FileUploadAdapter persists uploaded file metadata in Postgres.
type FileUploadAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewFileUploadAdapter creates a new file upload adapter.
func NewFileUploadAdapter(client *postgres.Client) repositories.FileUploadRepository {
	return &FileUploadAdapter{
		client: client,
		db:     client.Builder(),
	}
}

// Create inserts an upload record.
func (a *FileUploadAdapter) Create(ctx context.Context, upload *entities.FileUpload) error {
	query, args, err := a.db.Insert("file_uploads").Prepared(true).Rows(goqu.Record{
		"id":            upload.ID,
		"original_name": upload.OriginalName,
		"mime_type":     upload.MimeType,
		"size":          upload.Size,
		"path":          upload.Path,
		"uploader_id":   upload.UploaderID,
		"created_at":    upload.CreatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build file upload insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create file upload", err)
	}
	return nil
}

// GetByID retrieves an upload record.
func (a *FileUploadAdapter) GetByID(ctx context.Context, id string) (*entities.FileUpload, error) {
	query, args, err := a.db.Select(
		"id", "original_name", "mime_type", "size", "path", "uploader_id", "created_at",
	).From("file_uploads").
		Where(goqu.Ex{"id": id}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	upload := &entities.FileUpload{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&upload.ID,
		&upload.OriginalName,
		&upload.MimeType,
		&upload.Size,
		&upload.Path,
		&upload.UploaderID,
		&upload.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("file upload with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get file upload", err)
	}
	return upload, nil
}
