package entities

import "time"

// BillingInterval is the unit a listing price is charged per
type BillingInterval string

const (
	BillingIntervalHour  BillingInterval = "hour"
	BillingIntervalDay   BillingInterval = "day"
	BillingIntervalWeek  BillingInterval = "week"
	BillingIntervalMonth BillingInterval = "month"
)

// Valid reports whether b is a known interval.
func (b BillingInterval) Valid() bool {
	switch b {
	case BillingIntervalHour, BillingIntervalDay, BillingIntervalWeek, BillingIntervalMonth:
		return true
	}
	return false
}

// Listing is a rental offer for a tool. Only active listings are searchable.
type Listing struct {
	ID                  string          `json:"id" db:"id"`
	PriceCents          int64           `json:"price_cents" db:"price_cents"`
	BillingInterval     BillingInterval `json:"billing_interval" db:"billing_interval"`
	MaxBillingIntervals int             `json:"max_billing_intervals" db:"max_billing_intervals"`
	ToolID              string          `json:"tool_id" db:"tool_id"`
	Active              bool            `json:"active" db:"active"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}

// ListingSearchResult is a listing with its tool, owner and owner address
// embedded. DistanceKm is nil when the search had no origin.
type ListingSearchResult struct {
	Listing    Listing     `json:"listing"`
	Tool       Tool        `json:"tool"`
	Owner      UserSummary `json:"owner"`
	Address    Address     `json:"address"`
	DistanceKm *float64    `json:"distance_km,omitempty"`
	Rank       float64     `json:"rank,omitempty"`
}
