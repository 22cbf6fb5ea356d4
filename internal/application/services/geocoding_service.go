package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/toolshed/marketplace/internal/domain/entities"
	"github.com/toolshed/marketplace/internal/domain/providers"
	"github.com/toolshed/marketplace/internal/domain/repositories"
	"github.com/toolshed/marketplace/internal/infrastructure/observability"
	"github.com/toolshed/marketplace/pkg/geo"
	"golang.org/x/sync/singleflight"
)

const (
	geocodeCachePrefix = "geo:address:"
	geocodeCacheFamily = "geocode"
	// failed lookups are remembered briefly so a hot search does not hammer the geocoder
	geocodeNegativeTTL = 10 * time.Minute
	// transient failures keep the address pending and are retried after this
	geocodeRetryTTL = time.Minute
	// bounds a shared lookup, which outlives the caller that started it
	geocodeTimeout = 15 * time.Second
)

type geocodeCacheEntry struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Failed    bool    `json:"failed,omitempty"`
	Transient bool    `json:"transient,omitempty"`
}

// geocodeOutcome is the shared result of one lookup. unlocatable is set
// only when the provider gave a final answer for the address.
type geocodeOutcome struct {
	coords      *geo.Coordinates
	unlocatable bool
}

// GeocodingService lazily resolves address coordinates and memoizes them in
// the address row and the cache.
type GeocodingService struct {
	addresses repositories.AddressRepository
	provider  providers.GeolocationProvider
	cache     providers.CacheProvider
	cacheTTL  time.Duration
	metrics   *observability.Metrics
	group     singleflight.Group
}

// NewGeocodingService creates a geocoding service. cache and metrics may be nil.
func NewGeocodingService(
	addresses repositories.AddressRepository,
	provider providers.GeolocationProvider,
	cache providers.CacheProvider,
	cacheTTL time.Duration,
	metrics *observability.Metrics,
) *GeocodingService {
	return &GeocodingService{
		addresses: addresses,
		provider:  provider,
		cache:     cache,
		cacheTTL:  cacheTTL,
		metrics:   metrics,
	}
}

// EnsureGeocoded reports whether address has coordinates after the call,
// resolving them on first need. Failures are logged, never returned.
//
// Concurrent calls for one address share a single lookup that runs detached
// from any one caller, so a caller that goes away only stops waiting.
func (s *GeocodingService) EnsureGeocoded(ctx context.Context, address *entities.Address) bool {
	if address == nil {
		return false
	}
	if address.HasCoordinates() {
		return true
	}

	snapshot := *address
	ch := s.group.DoChan(address.ID, func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), geocodeTimeout)
		defer cancel()
		return s.resolve(lookupCtx, snapshot), nil
	})

	var outcome geocodeOutcome
	select {
	case res := <-ch:
		outcome, _ = res.Val.(geocodeOutcome)
	case <-ctx.Done():
		return false
	}

	if outcome.coords == nil {
		if outcome.unlocatable {
			address.GeocodeStatus = entities.GeocodeStatusFailed
		}
		return false
	}
	address.SetCoordinates(*outcome.coords)
	return true
}

func (s *GeocodingService) resolve(ctx context.Context, address entities.Address) geocodeOutcome {
	logger := observability.LoggerFromContext(ctx).With().Str("address_id", address.ID).Logger()
	key := geocodeCachePrefix + address.ID

	if entry, ok := s.cached(ctx, key); ok {
		observability.RecordCacheHit(ctx, s.metrics, geocodeCacheFamily)
		if entry.Failed {
			return geocodeOutcome{unlocatable: !entry.Transient}
		}
		coords := geo.Coordinates{Latitude: entry.Lat, Longitude: entry.Lon}
		s.persist(ctx, &address, coords)
		return geocodeOutcome{coords: &coords}
	}
	observability.RecordCacheMiss(ctx, s.metrics, geocodeCacheFamily)

	coords, err := s.provider.Geocode(ctx, address.Formatted())
	if err == nil && (coords == nil || !coords.Valid()) {
		err = providers.ErrAddressNotLocatable
	}
	if err != nil {
		if !errors.Is(err, providers.ErrAddressNotLocatable) {
			observability.RecordGeocode(ctx, s.metrics, "deferred")
			logger.Warn().Err(err).Msg("address geocoding deferred after transient failure")
			s.store(ctx, key, geocodeCacheEntry{Failed: true, Transient: true}, geocodeRetryTTL)
			return geocodeOutcome{}
		}

		observability.RecordGeocode(ctx, s.metrics, "failed")
		logger.Warn().Err(err).Msg("address geocoding failed")

		address.GeocodeStatus = entities.GeocodeStatusFailed
		if err := s.addresses.UpdateGeocode(ctx, &address); err != nil {
			logger.Error().Err(err).Msg("failed to record geocode failure")
		}
		s.store(ctx, key, geocodeCacheEntry{Failed: true}, geocodeNegativeTTL)
		return geocodeOutcome{unlocatable: true}
	}

	observability.RecordGeocode(ctx, s.metrics, "resolved")
	s.persist(ctx, &address, *coords)
	s.store(ctx, key, geocodeCacheEntry{Lat: coords.Latitude, Lon: coords.Longitude}, s.cacheTTL)
	return geocodeOutcome{coords: coords}
}

func (s *GeocodingService) persist(ctx context.Context, address *entities.Address, coords geo.Coordinates) {
	address.SetCoordinates(coords)
	if err := s.addresses.UpdateGeocode(ctx, address); err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).
			Str("address_id", address.ID).
			Msg("failed to persist geocoded coordinates")
	}
}

func (s *GeocodingService) cached(ctx context.Context, key string) (geocodeCacheEntry, bool) {
	var entry geocodeCacheEntry
	if s.cache == nil {
		return entry, false
	}

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("geocode cache read failed")
		}
		return entry, false
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		return entry, false
	}
	return entry, true
}

func (s *GeocodingService) store(ctx context.Context, key string, entry geocodeCacheEntry, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, ttl); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("geocode cache write failed")
	}
}
