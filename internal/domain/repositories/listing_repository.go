package repositories

import (
	"context"

	"github.com/toolshed/marketplace/internal/domain/entities"
	"github.com/toolshed/marketplace/pkg/geo"
)

// ListingQuery holds the resolved filters of a listing search
type ListingQuery struct {
	// TSQuery is a to_tsquery expression; empty disables the text filter
	TSQuery    string
	CategoryID string
	// Origin enables distance computation and ordering
	Origin *geo.Coordinates
	// RadiusKm keeps rows strictly closer than the radius; needs Origin
	RadiusKm *float64
	Limit    int
	Offset   int
}

// ListingRepository defines the interface for listing operations
type ListingRepository interface {
	Create(ctx context.Context, listing *entities.Listing) error
	GetByID(ctx context.Context, id string) (*entities.Listing, error)
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error

	// Search returns active listings whose owner address is geocoded
	Search(ctx context.Context, query ListingQuery) ([]entities.ListingSearchResult, error)

	// ListAddressesNeedingGeocode returns owner addresses of listings matching
	// query's text and category filters that have no coordinates yet
	ListAddressesNeedingGeocode(ctx context.Context, query ListingQuery) ([]*entities.Address, error)
}
