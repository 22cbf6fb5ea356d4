package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/toolshed/marketplace/internal/domain/entities"
	"github.com/toolshed/marketplace/internal/domain/repositories"
	apperrors "github.com/toolshed/marketplace/pkg/errors"
	"github.com/toolshed/marketplace/pkg/utils"
)

const maxLookupNameLength = 100

// LookupService searches and creates tool makers and categories
type LookupService struct {
	repo repositories.LookupRepository
}

// NewLookupService creates a new lookup service
func NewLookupService(repo repositories.LookupRepository) *LookupService {
	return &LookupService{repo: repo}
}

// Search returns entries of kind matching q by word prefix, ordered by name.
// Without usable terms every entry of the kind is returned.
func (s *LookupService) Search(ctx context.Context, kind entities.LookupKind, q string) ([]*entities.LookupEntry, error) {
	return s.repo.Search(ctx, kind, utils.BuildLookupTSQuery(q))
}

// Create adds an entry. Duplicate names are allowed.
func (s *LookupService) Create(ctx context.Context, kind entities.LookupKind, name string) (*entities.LookupEntry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required")
	}
	if utf8.RuneCountInString(name) > maxLookupNameLength {
		return nil, apperrors.NewValidationError("name is too long")
	}

	entry := &entities.LookupEntry{
		ID:        uuid.NewString(),
		Kind:      kind,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}
