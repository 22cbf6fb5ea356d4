package mocks

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/toolshed/marketplace/internal/domain/entities"
	"github.com/toolshed/marketplace/internal/domain/providers"
	"github.com/toolshed/marketplace/pkg/geo"
)

type GeolocationProvider struct {
	mock.Mock
}

var _ providers.GeolocationProvider = (*GeolocationProvider)(nil)

func (m *GeolocationProvider) Geocode(ctx context.Context, address string) (*geo.Coordinates, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*geo.Coordinates), args.Error(1)
}

type CacheProvider struct {
	mock.Mock
}

var _ providers.CacheProvider = (*CacheProvider)(nil)

func (m *CacheProvider) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *CacheProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *CacheProvider) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type MessagePublisher struct {
	mock.Mock
}

var _ providers.MessagePublisher = (*MessagePublisher)(nil)

func (m *MessagePublisher) Publish(ctx context.Context, message *entities.UserMessage) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

type FileStorage struct {
	mock.Mock
}

var _ providers.FileStorage = (*FileStorage)(nil)

func (m *FileStorage) Save(ctx context.Context, originalName, mimeType string, r io.Reader) (*providers.StoredFile, error) {
	args := m.Called(ctx, originalName, mimeType, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.StoredFile), args.Error(1)
}
