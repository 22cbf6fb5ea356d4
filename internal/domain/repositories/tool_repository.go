package repositories

import (
	"context"

	"github.com/toolshed/marketplace/internal/domain/entities"
)

// ToolRepository defines the interface for tool operations
type ToolRepository interface {
	Create(ctx context.Context, tool *entities.Tool) error
	GetByID(ctx context.Context, id string) (*entities.Tool, error)
	Delete(ctx context.Context, id string) error

	// CountActiveListings returns how many active listings reference the tool
	CountActiveListings(ctx context.Context, toolID string) (int, error)
}

// LookupRepository serves the maker and category lookup tables
type LookupRepository interface {
	Create(ctx context.Context, entry *entities.LookupEntry) error

	// Search returns entries whose search vector matches tsquery, ordered by
	// name. An empty tsquery returns every entry of the kind.
	Search(ctx context.Context, kind entities.LookupKind, tsquery string) ([]*entities.LookupEntry, error)
}

// FileUploadRepository stores uploaded file metadata
type FileUploadRepository interface {
	Create(ctx context.Context, upload *entities.FileUpload) error
	GetByID(ctx context.Context, id string) (*entities.FileUpload, error)
}
