// Package mocks holds testify mocks of the domain repositories and providers.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/toolshed/marketplace/internal/domain/entities"
	"github.com/toolshed/marketplace/internal/domain/repositories"
)

type UserRepository struct {
	mock.Mock
}

var _ repositories.UserRepository = (*UserRepository)(nil)

func (m *UserRepository) Create(ctx context.Context, user *entities.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *UserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

type AddressRepository struct {
	mock.Mock
}

var _ repositories.AddressRepository = (*AddressRepository)(nil)

func (m *AddressRepository) Create(ctx context.Context, address *entities.Address) error {
	args := m.Called(ctx, address)
	return args.Error(0)
}

func (m *AddressRepository) GetByID(ctx context.Context, id string) (*entities.Address, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Address), args.Error(1)
}

func (m *AddressRepository) GetByUserID(ctx context.Context, userID string) (*entities.Address, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Address), args.Error(1)
}

func (m *AddressRepository) UpdateGeocode(ctx context.Context, address *entities.Address) error {
	args := m.Called(ctx, address)
	return args.Error(0)
}

type ToolRepository struct {
	mock.Mock
}

var _ repositories.ToolRepository = (*ToolRepository)(nil)

func (m *ToolRepository) Create(ctx context.Context, tool *entities.Tool) error {
	args := m.Called(ctx, tool)
	return args.Error(0)
}

func (m *ToolRepository) GetByID(ctx context.Context, id string) (*entities.Tool, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Tool), args.Error(1)
}

func (m *ToolRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *ToolRepository) CountActiveListings(ctx context.Context, toolID string) (int, error) {
	args := m.Called(ctx, toolID)
	return args.Int(0), args.Error(1)
}

type LookupRepository struct {
	mock.Mock
}

var _ repositories.LookupRepository = (*LookupRepository)(nil)

func (m *LookupRepository) Create(ctx context.Context, entry *entities.LookupEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *LookupRepository) Search(ctx context.Context, kind entities.LookupKind, tsquery string) ([]*entities.LookupEntry, error) {
	args := m.Called(ctx, kind, tsquery)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.LookupEntry), args.Error(1)
}

type FileUploadRepository struct {
	mock.Mock
}

var _ repositories.FileUploadRepository = (*FileUploadRepository)(nil)

func (m *FileUploadRepository) Create(ctx context.Context, upload *entities.FileUpload) error {
	args := m.Called(ctx, upload)
	return args.Error(0)
}

func (m *FileUploadRepository) GetByID(ctx context.Context, id string) (*entities.FileUpload, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.FileUpload), args.Error(1)
}

type ListingRepository struct {
	mock.Mock
}

var _ repositories.ListingRepository = (*ListingRepository)(nil)

func (m *ListingRepository) Create(ctx context.Context, listing *entities.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func (m *ListingRepository) GetByID(ctx context.Context, id string) (*entities.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Listing), args.Error(1)
}

func (m *ListingRepository) SetActive(ctx context.Context, id string, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

func (m *ListingRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *ListingRepository) Search(ctx context.Context, query repositories.ListingQuery) ([]entities.ListingSearchResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.ListingSearchResult), args.Error(1)
}

func (m *ListingRepository) ListAddressesNeedingGeocode(ctx context.Context, query repositories.ListingQuery) ([]*entities.Address, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Address), args.Error(1)
}

type MessageRepository struct {
	mock.Mock
}

var _ repositories.MessageRepository = (*MessageRepository)(nil)

func (m *MessageRepository) Create(ctx context.Context, message *entities.UserMessage) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MessageRepository) ListForUser(ctx context.Context, userID string) ([]*entities.UserMessage, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.UserMessage), args.Error(1)
}

func (m *MessageRepository) ListBetween(ctx context.Context, userID, counterpartyID string) ([]*entities.UserMessage, error) {
	args := m.Called(ctx, userID, counterpartyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.UserMessage), args.Error(1)
}
