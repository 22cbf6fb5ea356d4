package providers

import (
	"context"
	"errors"

	"github.com/toolshed/marketplace/pkg/geo"
)

// ErrAddressNotLocatable marks a geocoding answer that is final for the
// address itself. Any other Geocode error is treated as transient.
var ErrAddressNotLocatable = errors.New("address cannot be located")

// GeolocationProvider resolves postal addresses to coordinates
type GeolocationProvider interface {
	// Geocode converts a single-line address to coordinates
	Geocode(ctx context.Context, address string) (*geo.Coordinates, error)
}
