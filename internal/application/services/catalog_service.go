package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/toolshed/marketplace/internal/domain/entities"
	"github.com/toolshed/marketplace/internal/domain/providers"
	"github.com/toolshed/marketplace/internal/domain/repositories"
	"github.com/toolshed/marketplace/internal/infrastructure/observability"
	apperrors "github.com/toolshed/marketplace/pkg/errors"
)

const (
	maxToolNameLength        = 200
	maxToolDescriptionLength = 5000
)

var allowedManualTypes = map[string]bool{
	"application/pdf": true,
	"text/plain":      true,
	"image/png":       true,
	"image/jpeg":      true,
}

// CreateToolInput holds the fields of a new tool
type CreateToolInput struct {
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	ToolCategoryID *string `json:"tool_category_id,omitempty"`
	ToolMakerID    *string `json:"tool_maker_id,omitempty"`
	ManualFileID   *string `json:"manual_file_id,omitempty"`
}

// CreateListingInput holds the fields of a new listing
type CreateListingInput struct {
	ToolID              string                   `json:"tool_id"`
	PriceCents          int64                    `json:"price_cents"`
	BillingInterval     entities.BillingInterval `json:"billing_interval"`
	MaxBillingIntervals int                      `json:"max_billing_intervals"`
}

// CatalogService manages tools, their listings and uploaded manuals.
// Every mutation checks ownership before touching storage.
type CatalogService struct {
	tools    repositories.ToolRepository
	listings repositories.ListingRepository
	uploads  repositories.FileUploadRepository
	storage  providers.FileStorage
}

// NewCatalogService creates a new catalog service
func NewCatalogService(
	tools repositories.ToolRepository,
	listings repositories.ListingRepository,
	uploads repositories.FileUploadRepository,
	storage providers.FileStorage,
) *CatalogService {
	return &CatalogService{
		tools:    tools,
		listings: listings,
		uploads:  uploads,
		storage:  storage,
	}
}

// CreateTool creates a tool owned by actorID
func (s *CatalogService) CreateTool(ctx context.Context, actorID string, input CreateToolInput) (*entities.Tool, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("tool name is required")
	}
	if utf8.RuneCountInString(name) > maxToolNameLength {
		return nil, apperrors.NewValidationError("tool name is too long")
	}
	description := strings.TrimSpace(input.Description)
	if utf8.RuneCountInString(description) > maxToolDescriptionLength {
		return nil, apperrors.NewValidationError("tool description is too long")
	}

	if input.ManualFileID != nil && *input.ManualFileID != "" {
		upload, err := s.uploads.GetByID(ctx, *input.ManualFileID)
		if err != nil {
			return nil, err
		}
		if upload.UploaderID != actorID {
			return nil, apperrors.NewForbiddenError("manual was uploaded by another user")
		}
	}

	now := time.Now().UTC()
	tool := &entities.Tool{
		ID:             uuid.NewString(),
		Name:           name,
		Description:    description,
		OwnerID:        actorID,
		ToolCategoryID: input.ToolCategoryID,
		ToolMakerID:    input.ToolMakerID,
		ManualFileID:   input.ManualFileID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.tools.Create(ctx, tool); err != nil {
		return nil, err
	}
	return tool, nil
}

// GetTool retrieves a tool
func (s *CatalogService) GetTool(ctx context.Context, id string) (*entities.Tool, error) {
	return s.tools.GetByID(ctx, id)
}

// DeleteTool removes a tool of actorID. Tools with active listings cannot be
// deleted.
func (s *CatalogService) DeleteTool(ctx context.Context, actorID, toolID string) error {
	if _, err := s.ownedTool(ctx, actorID, toolID); err != nil {
		return err
	}

	active, err := s.tools.CountActiveListings(ctx, toolID)
	if err != nil {
		return err
	}
	if active > 0 {
		return apperrors.NewConflictError(fmt.Sprintf("tool has %d active listings; deactivate them first", active))
	}

	return s.tools.Delete(ctx, toolID)
}

// CreateListing offers a tool of actorID for rent. New listings are active.
func (s *CatalogService) CreateListing(ctx context.Context, actorID string, input CreateListingInput) (*entities.Listing, error) {
	if input.PriceCents <= 0 {
		return nil, apperrors.NewValidationError("price must be positive")
	}
	if !input.BillingInterval.Valid() {
		return nil, apperrors.NewValidationError("billing interval must be one of hour, day, week, month")
	}
	if input.MaxBillingIntervals < 1 {
		return nil, apperrors.NewValidationError("max billing intervals must be at least 1")
	}
	if _, err := s.ownedTool(ctx, actorID, input.ToolID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	listing := &entities.Listing{
		ID:                  uuid.NewString(),
		PriceCents:          input.PriceCents,
		BillingInterval:     input.BillingInterval,
		MaxBillingIntervals: input.MaxBillingIntervals,
		ToolID:              input.ToolID,
		Active:              true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.listings.Create(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

// SetListingActive shows or hides a listing of actorID
func (s *CatalogService) SetListingActive(ctx context.Context, actorID, listingID string, active bool) (*entities.Listing, error) {
	listing, err := s.ownedListing(ctx, actorID, listingID)
	if err != nil {
		return nil, err
	}
	if err := s.listings.SetActive(ctx, listingID, active); err != nil {
		return nil, err
	}
	listing.Active = active
	return listing, nil
}

// DeleteListing removes an inactive listing of actorID
func (s *CatalogService) DeleteListing(ctx context.Context, actorID, listingID string) error {
	listing, err := s.ownedListing(ctx, actorID, listingID)
	if err != nil {
		return err
	}
	if listing.Active {
		return apperrors.NewConflictError("listing is active; deactivate it first")
	}
	return s.listings.Delete(ctx, listingID)
}

// UploadManual stores a manual document and records its metadata
func (s *CatalogService) UploadManual(ctx context.Context, uploaderID, originalName, mimeType string, r io.Reader) (*entities.FileUpload, error) {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil || !allowedManualTypes[mediaType] {
		return nil, apperrors.NewValidationError("unsupported manual file type")
	}
	if strings.TrimSpace(originalName) == "" {
		return nil, apperrors.NewValidationError("file name is required")
	}

	stored, err := s.storage.Save(ctx, originalName, mediaType, r)
	if err != nil {
		if errors.Is(err, providers.ErrFileTooLarge) {
			return nil, apperrors.NewValidationError(err.Error())
		}
		return nil, apperrors.NewExternalError("failed to store file", err)
	}

	upload := &entities.FileUpload{
		ID:           uuid.NewString(),
		OriginalName: stored.OriginalName,
		MimeType:     stored.MimeType,
		Size:         stored.Size,
		Path:         stored.StoredPath,
		UploaderID:   uploaderID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.uploads.Create(ctx, upload); err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().
		Str("upload_id", upload.ID).
		Int64("size", upload.Size).
		Msg("manual uploaded")
	return upload, nil
}

func (s *CatalogService) ownedTool(ctx context.Context, actorID, toolID string) (*entities.Tool, error) {
	tool, err := s.tools.GetByID(ctx, toolID)
	if err != nil {
		return nil, err
	}
	if tool.OwnerID != actorID {
		return nil, apperrors.NewForbiddenError("tool belongs to another user")
	}
	return tool, nil
}

func (s *CatalogService) ownedListing(ctx context.Context, actorID, listingID string) (*entities.Listing, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	tool, err := s.tools.GetByID(ctx, listing.ToolID)
	if err != nil {
		return nil, err
	}
	if tool.OwnerID != actorID {
		return nil, apperrors.NewForbiddenError("listing belongs to another user")
	}
	return listing, nil
}
