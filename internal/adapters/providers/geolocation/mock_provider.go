package geolocation

import (
	"context"
	"strings"

	"github.com/toolshed/marketplace/internal/domain/providers"
	"github.com/toolshed/marketplace/pkg/geo"
)

// mockCities are the places the mock provider can resolve, matched by city
// name anywhere in the address.
var mockCities = map[string]geo.Coordinates{
	"new york":    {Latitude: 40.7128, Longitude: -74.0060},
	"los angeles": {Latitude: 34.0522, Longitude: -118.2437},
	"chicago":     {Latitude: 41.8781, Longitude: -87.6298},
	"houston":     {Latitude: 29.7604, Longitude: -95.3698},
	"phoenix":     {Latitude: 33.4484, Longitude: -112.0740},
	"springfield": {Latitude: 39.7817, Longitude: -89.6501},
	"portland":    {Latitude: 45.5152, Longitude: -122.6784},
}

// MockGeolocationProvider resolves a fixed set of cities, for development and tests
type MockGeolocationProvider struct{}

// NewMockGeolocationProvider creates a new mock geolocation provider
func NewMockGeolocationProvider() providers.GeolocationProvider {
	return &MockGeolocationProvider{}
}

// Geocode returns the coordinates of the first known city in address, or
// ErrNoResults.
func (m *MockGeolocationProvider) Geocode(ctx context.Context, address string) (*geo.Coordinates, error) {
	lower := strings.ToLower(address)
	for city, coords := range mockCities {
		if strings.Contains(lower, city) {
			c := coords
			return &c, nil
		}
	}
	return nil, ErrNoResults
}
