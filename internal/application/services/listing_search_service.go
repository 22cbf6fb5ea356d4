package services

import (
	"context"
	"math"

	"github.com/toolshed/marketplace/internal/domain/entities"
	"github.com/toolshed/marketplace/internal/domain/repositories"
	"github.com/toolshed/marketplace/internal/infrastructure/observability"
	apperrors "github.com/toolshed/marketplace/pkg/errors"
	"github.com/toolshed/marketplace/pkg/geo"
	"github.com/toolshed/marketplace/pkg/utils"
)

// ListingSearchParams are the caller's search inputs
type ListingSearchParams struct {
	Query      string
	CategoryID string
	Origin     *geo.Coordinates
	RadiusKm   *float64
	// UseOwnAddress replaces Origin with the viewer's geocoded address
	UseOwnAddress bool
	ViewerID      string
	Limit         int
	Offset        int
}

// ListingSearchService finds active listings by text relevance and proximity
type ListingSearchService struct {
	listings  repositories.ListingRepository
	addresses repositories.AddressRepository
	geocoder  *GeocodingService
}

// NewListingSearchService creates a new listing search service
func NewListingSearchService(
	listings repositories.ListingRepository,
	addresses repositories.AddressRepository,
	geocoder *GeocodingService,
) *ListingSearchService {
	return &ListingSearchService{
		listings:  listings,
		addresses: addresses,
		geocoder:  geocoder,
	}
}

// Search returns matching listings, nearest first when an origin is known.
// An origin address that cannot be geocoded yields an empty result.
func (s *ListingSearchService) Search(ctx context.Context, params ListingSearchParams) ([]entities.ListingSearchResult, error) {
	ctx, span := observability.StartSpan(ctx, "ListingSearchService.Search")
	defer span.End()

	origin := params.Origin
	if params.UseOwnAddress {
		if params.ViewerID == "" {
			return nil, apperrors.NewUnauthorizedError("sign in to search near your address")
		}
		address, err := s.addresses.GetByUserID(ctx, params.ViewerID)
		if err != nil {
			return nil, err
		}
		if !s.geocoder.EnsureGeocoded(ctx, address) {
			return []entities.ListingSearchResult{}, nil
		}
		coords, _ := address.Coordinates()
		origin = &coords
	}

	if origin != nil && !origin.Valid() {
		return nil, apperrors.NewValidationError("origin coordinates are out of range")
	}
	if params.RadiusKm != nil {
		if origin == nil {
			return nil, apperrors.NewValidationError("radius requires an origin")
		}
		if r := *params.RadiusKm; math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
			return nil, apperrors.NewValidationError("radius must be a positive number")
		}
	}

	query := repositories.ListingQuery{
		TSQuery:    utils.BuildListingTSQuery(params.Query),
		CategoryID: params.CategoryID,
		Origin:     origin,
		RadiusKm:   params.RadiusKm,
		Limit:      params.Limit,
		Offset:     params.Offset,
	}

	s.geocodeCandidates(ctx, query)

	return s.listings.Search(ctx, query)
}

// geocodeCandidates resolves owner addresses that matching listings still
// need. Failures only exclude the affected listings.
func (s *ListingSearchService) geocodeCandidates(ctx context.Context, query repositories.ListingQuery) {
	pending, err := s.listings.ListAddressesNeedingGeocode(ctx, query)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("could not list addresses needing geocode")
		return
	}
	for _, address := range pending {
		s.geocoder.EnsureGeocoded(ctx, address)
	}
}
