package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/toolshed/marketplace/internal/domain/providers"
	"github.com/toolshed/marketplace/pkg/geo"
)

const (
	googleGeocodeURL   = "https://maps.googleapis.com/maps/api/geocode/json"
	defaultHTTPTimeout = 8 * time.Second
	maxGeocodeRetries  = 2
)

// ErrNoResults is returned when the geocoder knows no location for an address.
var ErrNoResults = fmt.Errorf("no results for address: %w", providers.ErrAddressNotLocatable)

// GoogleGeolocationProvider implements the GeolocationProvider using the Google Geocoding API.
type GoogleGeolocationProvider struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	newBackOff func() backoff.BackOff
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	return backoff.WithMaxRetries(b, maxGeocodeRetries)
}

// NewGoogleGeolocationProvider creates a new Google geolocation provider.
func NewGoogleGeolocationProvider(apiKey string) providers.GeolocationProvider {
	return NewGoogleGeolocationProviderWithOptions(apiKey, googleGeocodeURL, nil)
}

// NewGoogleGeolocationProviderWithOptions allows overriding base URL and HTTP client (used for tests).
func NewGoogleGeolocationProviderWithOptions(apiKey, baseURL string, httpClient *http.Client) providers.GeolocationProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = googleGeocodeURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &GoogleGeolocationProvider{
		apiKey:     apiKey,
		httpClient: httpClient,
		baseURL:    baseURL,
		newBackOff: defaultBackOff,
	}
}

// Geocode converts an address to coordinates. Transport failures, 5xx
// responses and quota errors are retried with exponential backoff.
func (g *GoogleGeolocationProvider) Geocode(ctx context.Context, address string) (*geo.Coordinates, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return nil, fmt.Errorf("address is required: %w", providers.ErrAddressNotLocatable)
	}
	if g.apiKey == "" {
		return nil, fmt.Errorf("google maps api key is required")
	}

	var resp *googleGeocodeResponse
	err := backoff.Retry(func() error {
		var err error
		resp, err = g.doGeocodeRequest(ctx, url.Values{"address": []string{trimmed}})
		return err
	}, backoff.WithContext(g.newBackOff(), ctx))
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, ErrNoResults
	}

	location := resp.Results[0].Geometry.Location
	coords := &geo.Coordinates{Latitude: location.Lat, Longitude: location.Lng}
	if !coords.Valid() {
		return nil, fmt.Errorf("geocoder returned invalid coordinates %f,%f: %w",
			location.Lat, location.Lng, providers.ErrAddressNotLocatable)
	}
	return coords, nil
}

// doGeocodeRequest performs one attempt. Errors that retrying cannot fix are
// wrapped as permanent.
func (g *GoogleGeolocationProvider) doGeocodeRequest(ctx context.Context, params url.Values) (*googleGeocodeResponse, error) {
	params.Set("key", g.apiKey)
	reqURL := fmt.Sprintf("%s?%s", g.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build geocode request: %w", err))
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("geocode request returned status %d", resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	var payload googleGeocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to decode geocode response: %w", err))
	}

	switch payload.Status {
	case "OK":
		return &payload, nil
	case "ZERO_RESULTS":
		return nil, backoff.Permanent(ErrNoResults)
	case "INVALID_REQUEST":
		return nil, backoff.Permanent(fmt.Errorf("geocode request rejected the address: %w", providers.ErrAddressNotLocatable))
	}

	err = fmt.Errorf("geocode request failed: %s", payload.Status)
	if payload.ErrorMessage != "" {
		err = fmt.Errorf("geocode request failed: %s - %s", payload.Status, payload.ErrorMessage)
	}
	if payload.Status == "OVER_QUERY_LIMIT" || payload.Status == "UNKNOWN_ERROR" {
		return nil, err
	}
	return nil, backoff.Permanent(err)
}

type googleGeocodeResponse struct {
	Status       string                `json:"status"`
	ErrorMessage string                `json:"error_message,omitempty"`
	Results      []googleGeocodeResult `json:"results"`
}

type googleGeocodeResult struct {
	FormattedAddress string         `json:"formatted_address"`
	Geometry         googleGeometry `json:"geometry"`
}

type googleGeometry struct {
	Location googleLocation `json:"location"`
}

type googleLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
