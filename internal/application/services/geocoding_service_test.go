package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/toolshed/marketplace/internal/adapters/cache"
	"github.com/toolshed/marketplace/internal/application/services"
	"github.com/toolshed/marketplace/internal/domain/entities"
	"github.com/toolshed/marketplace/internal/domain/providers"
	"github.com/toolshed/marketplace/internal/mocks"
	"github.com/toolshed/marketplace/pkg/geo"
)

func pendingAddress(id string) *entities.Address {
	return &entities.Address{
		ID:            id,
		LineOne:       "1 Main St",
		City:          "Springfield",
		State:         "IL",
		ZipCode:       "62701",
		GeocodeStatus: entities.GeocodeStatusPending,
	}
}

func TestGeocodingService_EnsureGeocoded(t *testing.T) {
	ctx := context.Background()

	t.Run("already resolved address needs no work", func(t *testing.T) {
		addresses := new(mocks.AddressRepository)
		provider := new(mocks.GeolocationProvider)
		service := services.NewGeocodingService(addresses, provider, nil, time.Hour, nil)

		address := pendingAddress("a1")
		address.SetCoordinates(geo.Coordinates{Latitude: 1, Longitude: 2})

		assert.True(t, service.EnsureGeocoded(ctx, address))
		provider.AssertNotCalled(t, "Geocode", mock.Anything, mock.Anything)
		addresses.AssertNotCalled(t, "UpdateGeocode", mock.Anything, mock.Anything)
	})

	t.Run("nil address", func(t *testing.T) {
		service := services.NewGeocodingService(new(mocks.AddressRepository), new(mocks.GeolocationProvider), nil, time.Hour, nil)
		assert.False(t, service.EnsureGeocoded(ctx, nil))
	})

	t.Run("resolves persists and caches", func(t *testing.T) {
		addresses := new(mocks.AddressRepository)
		provider := new(mocks.GeolocationProvider)
		memory := cache.NewMemoryCache()
		service := services.NewGeocodingService(addresses, provider, memory, time.Hour, nil)

		provider.On("Geocode", mock.Anything, "1 Main St, Springfield, IL 62701").
			Return(&geo.Coordinates{Latitude: 39.78, Longitude: -89.65}, nil).Once()
		addresses.On("UpdateGeocode", mock.Anything, mock.MatchedBy(func(a *entities.Address) bool {
			return a.ID == "a1" && a.GeocodeStatus == entities.GeocodeStatusResolved && a.HasCoordinates()
		})).Return(nil)

		address := pendingAddress("a1")
		require.True(t, service.EnsureGeocoded(ctx, address))
		coords, ok := address.Coordinates()
		require.True(t, ok)
		assert.InDelta(t, 39.78, coords.Latitude, 1e-9)

		cached, err := memory.Get(ctx, "geo:address:a1")
		require.NoError(t, err)
		assert.Contains(t, string(cached), "39.78")

		// a fresh copy of the same row is served from the cache
		assert.True(t, service.EnsureGeocoded(ctx, pendingAddress("a1")))
		provider.AssertExpectations(t)
	})

	t.Run("failure marks the address and is remembered", func(t *testing.T) {
		addresses := new(mocks.AddressRepository)
		provider := new(mocks.GeolocationProvider)
		service := services.NewGeocodingService(addresses, provider, cache.NewMemoryCache(), time.Hour, nil)

		provider.On("Geocode", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("no results: %w", providers.ErrAddressNotLocatable)).Once()
		addresses.On("UpdateGeocode", mock.Anything, mock.MatchedBy(func(a *entities.Address) bool {
			return a.GeocodeStatus == entities.GeocodeStatusFailed && !a.HasCoordinates()
		})).Return(nil).Once()

		address := pendingAddress("a2")
		assert.False(t, service.EnsureGeocoded(ctx, address))
		assert.Equal(t, entities.GeocodeStatusFailed, address.GeocodeStatus)

		assert.False(t, service.EnsureGeocoded(ctx, pendingAddress("a2")))
		provider.AssertExpectations(t)
		addresses.AssertExpectations(t)
	})

	t.Run("transient failure leaves the address pending", func(t *testing.T) {
		addresses := new(mocks.AddressRepository)
		provider := new(mocks.GeolocationProvider)
		memory := cache.NewMemoryCache()
		service := services.NewGeocodingService(addresses, provider, memory, time.Hour, nil)

		provider.On("Geocode", mock.Anything, mock.Anything).
			Return(nil, errors.New("geocode request returned status 503")).Once()

		address := pendingAddress("a4")
		assert.False(t, service.EnsureGeocoded(ctx, address))
		assert.Equal(t, entities.GeocodeStatusPending, address.GeocodeStatus)

		// remembered briefly, so an immediate retry does not reach the provider
		assert.False(t, service.EnsureGeocoded(ctx, pendingAddress("a4")))
		provider.AssertExpectations(t)
		addresses.AssertNotCalled(t, "UpdateGeocode", mock.Anything, mock.Anything)
	})

	t.Run("persist failure still yields coordinates", func(t *testing.T) {
		addresses := new(mocks.AddressRepository)
		provider := new(mocks.GeolocationProvider)
		service := services.NewGeocodingService(addresses, provider, nil, time.Hour, nil)

		provider.On("Geocode", mock.Anything, mock.Anything).Return(&geo.Coordinates{Latitude: 1, Longitude: 1}, nil)
		addresses.On("UpdateGeocode", mock.Anything, mock.Anything).Return(errors.New("db down"))

		assert.True(t, service.EnsureGeocoded(ctx, pendingAddress("a3")))
	})
}

type blockingGeocoder struct {
	calls   atomic.Int32
	release chan struct{}
}

func (g *blockingGeocoder) Geocode(ctx context.Context, address string) (*geo.Coordinates, error) {
	g.calls.Add(1)
	<-g.release
	return &geo.Coordinates{Latitude: 5, Longitude: 5}, nil
}

func TestGeocodingService_CollapsesConcurrentLookups(t *testing.T) {
	addresses := new(mocks.AddressRepository)
	addresses.On("UpdateGeocode", mock.Anything, mock.Anything).Return(nil)
	geocoder := &blockingGeocoder{release: make(chan struct{})}
	service := services.NewGeocodingService(addresses, geocoder, nil, time.Hour, nil)

	var wg sync.WaitGroup
	results := make([]bool, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = service.EnsureGeocoded(context.Background(), pendingAddress("a1"))
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(geocoder.release)
	wg.Wait()

	assert.Equal(t, int32(1), geocoder.calls.Load())
	for _, ok := range results {
		assert.True(t, ok)
	}
}

type cancelObservingGeocoder struct {
	calls     atomic.Int32
	sawCancel atomic.Bool
}

func (g *cancelObservingGeocoder) Geocode(ctx context.Context, address string) (*geo.Coordinates, error) {
	g.calls.Add(1)
	if ctx.Err() != nil {
		g.sawCancel.Store(true)
	}
	return nil, context.Canceled
}

func TestGeocodingService_CancelledCallerDoesNotFailAddress(t *testing.T) {
	addresses := new(mocks.AddressRepository)
	geocoder := &cancelObservingGeocoder{}
	service := services.NewGeocodingService(addresses, geocoder, cache.NewMemoryCache(), time.Hour, nil)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	address := pendingAddress("a5")
	assert.False(t, service.EnsureGeocoded(cancelled, address))

	// joins the lookup if it is still running, otherwise hits its cached outcome
	assert.False(t, service.EnsureGeocoded(context.Background(), pendingAddress("a5")))

	assert.Equal(t, entities.GeocodeStatusPending, address.GeocodeStatus)
	assert.False(t, geocoder.sawCancel.Load())
	assert.Equal(t, int32(1), geocoder.calls.Load())
	addresses.AssertNotCalled(t, "UpdateGeocode", mock.Anything, mock.Anything)
}
