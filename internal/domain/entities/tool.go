package entities

import (
	"fmt"
	"strings"
	"time"
)

// Tool represents an item a user owns and may list for rent
type Tool struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Description    string    `json:"description" db:"description"`
	OwnerID        string    `json:"owner_id" db:"owner_id"`
	ToolCategoryID *string   `json:"tool_category_id,omitempty" db:"tool_category_id"`
	ToolMakerID    *string   `json:"tool_maker_id,omitempty" db:"tool_maker_id"`
	ManualFileID   *string   `json:"manual_file_id,omitempty" db:"manual_file_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// LookupKind selects one of the independently searchable lookup tables.
type LookupKind string

const (
	LookupKindMaker    LookupKind = "maker"
	LookupKindCategory LookupKind = "category"
)

// ParseLookupKind accepts the singular or plural path form of a kind.
func ParseLookupKind(s string) (LookupKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "maker", "makers":
		return LookupKindMaker, nil
	case "category", "categories":
		return LookupKindCategory, nil
	default:
		return "", fmt.Errorf("unknown lookup kind %q", s)
	}
}

// LookupEntry is a row of the tool_makers or tool_categories table.
type LookupEntry struct {
	ID        string     `json:"id" db:"id"`
	Kind      LookupKind `json:"kind" db:"-"`
	Name      string     `json:"name" db:"name"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// FileUpload is the stored metadata of an uploaded tool manual
type FileUpload struct {
	ID           string    `json:"id" db:"id"`
	OriginalName string    `json:"original_name" db:"original_name"`
	MimeType     string    `json:"mime_type" db:"mime_type"`
	Size         int64     `json:"size" db:"size"`
	Path         string    `json:"path" db:"path"`
	UploaderID   string    `json:"uploader_id" db:"uploader_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
