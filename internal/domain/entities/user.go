package entities

import (
	"strings"
	"time"

	"github.com/toolshed/marketplace/pkg/geo"
)

// User represents a marketplace member. Every user has exactly one address.
type User struct {
	ID           string    `json:"id" db:"id"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Active       bool      `json:"active" db:"active"`
	AddressID    string    `json:"address_id" db:"address_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName returns "First L." for public views of a user.
func (u *User) DisplayName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + string([]rune(u.LastName)[0]) + "."
}

// UserSummary is the public projection of a user embedded in search results
// and conversations.
type UserSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Summary returns the public projection of u.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, DisplayName: u.DisplayName()}
}

// GeocodeStatus tracks whether an address still needs geocoding
type GeocodeStatus string

const (
	GeocodeStatusPending  GeocodeStatus = "pending"
	GeocodeStatusResolved GeocodeStatus = "resolved"
	GeocodeStatusFailed   GeocodeStatus = "failed"
)

// Address represents a postal address. Coordinates are filled lazily by the
// geocoding service and never cleared afterwards.
type Address struct {
	ID            string        `json:"id" db:"id"`
	LineOne       string        `json:"line_one" db:"line_one"`
	LineTwo       string        `json:"line_two,omitempty" db:"line_two"`
	City          string        `json:"city" db:"city"`
	State         string        `json:"state" db:"state"`
	ZipCode       string        `json:"zip_code" db:"zip_code"`
	GeocodedLat   *float64      `json:"geocoded_lat,omitempty" db:"geocoded_lat"`
	GeocodedLon   *float64      `json:"geocoded_lon,omitempty" db:"geocoded_lon"`
	GeocodeStatus GeocodeStatus `json:"geocode_status" db:"geocode_status"`
}

// HasCoordinates reports whether both coordinates are resolved.
func (a *Address) HasCoordinates() bool {
	return a != nil && a.GeocodedLat != nil && a.GeocodedLon != nil
}

// Coordinates returns the resolved coordinates, if any.
func (a *Address) Coordinates() (geo.Coordinates, bool) {
	if !a.HasCoordinates() {
		return geo.Coordinates{}, false
	}
	return geo.Coordinates{Latitude: *a.GeocodedLat, Longitude: *a.GeocodedLon}, true
}

// SetCoordinates marks the address as resolved at c.
func (a *Address) SetCoordinates(c geo.Coordinates) {
	lat, lon := c.Latitude, c.Longitude
	a.GeocodedLat = &lat
	a.GeocodedLon = &lon
	a.GeocodeStatus = GeocodeStatusResolved
}

// Formatted renders the address as a single line suitable for a geocoder.
func (a *Address) Formatted() string {
	parts := []string{a.LineOne, a.LineTwo, a.City}
	stateZip := strings.TrimSpace(a.State + " " + a.ZipCode)
	parts = append(parts, stateZip)

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}
