package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/toolshed/marketplace/internal/domain/entities"
	"github.com/toolshed/marketplace/internal/domain/repositories"
	"github.com/toolshed/marketplace/internal/infrastructure/clients/postgres"
	apperrors "github.com/toolshed/marketplace/pkg/errors"
	"github.com/toolshed/marketplace/pkg/geo"
)

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 200
	// geocodeBatchLimit caps how many addresses one search geocodes inline
	geocodeBatchLimit = 25
)

// distanceSQL is the spherical law of cosines in kilometres. The cosine
// argument is clamped because rounding can push it just outside [-1, 1].
const distanceSQL = "? * acos(LEAST(1, GREATEST(-1, " +
	"cos(radians(?)) * cos(radians(?)) * cos(radians(?) - radians(?)) + " +
	"sin(radians(?)) * sin(radians(?)))))"

var listingColumns = []interface{}{
	"listings.id", "listings.price_cents", "listings.billing_interval",
	"listings.max_billing_intervals", "listings.tool_id", "listings.active",
	"listings.created_at", "listings.updated_at",
}

// ListingAdapter implements the ListingRepository interface
type ListingAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewListingAdapter creates a new listing adapter
func NewListingAdapter(client *postgres.Client) repositories.ListingRepository {
	return &ListingAdapter{
		client: client,
		db:     client.Builder(),
	}
}

// Create creates a new listing
func (a *ListingAdapter) Create(ctx context.Context, listing *entities.Listing) error {
	record := goqu.Record{
		"id":                    listing.ID,
		"price_cents":           listing.PriceCents,
		"billing_interval":      string(listing.BillingInterval),
		"max_billing_intervals": listing.MaxBillingIntervals,
		"tool_id":               listing.ToolID,
		"active":                listing.Active,
		"created_at":            listing.CreatedAt,
		"updated_at":            listing.UpdatedAt,
	}

	query, args, err := a.db.Insert("listings").Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create listing", err)
	}
	return nil
}

// GetByID retrieves a listing by ID
func (a *ListingAdapter) GetByID(ctx context.Context, id string) (*entities.Listing, error) {
	query, args, err := a.db.Select(listingColumns...).
		From("listings").
		Where(goqu.Ex{"listings.id": id}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	listing := &entities.Listing{}
	var interval string
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&listing.ID,
		&listing.PriceCents,
		&interval,
		&listing.MaxBillingIntervals,
		&listing.ToolID,
		&listing.Active,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("listing with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get listing", err)
	}
	listing.BillingInterval = entities.BillingInterval(interval)
	return listing, nil
}

// SetActive toggles whether a listing is searchable
func (a *ListingAdapter) SetActive(ctx context.Context, id string, active bool) error {
	query, args, err := a.db.Update("listings").
		Set(goqu.Record{"active": active, "updated_at": goqu.L("NOW()")}).
		Where(goqu.Ex{"id": id}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}
	return a.execOne(ctx, query, args, id, "failed to update listing")
}

// Delete removes a listing
func (a *ListingAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete("listings").
		Where(goqu.Ex{"id": id}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}
	return a.execOne(ctx, query, args, id, "failed to delete listing")
}

func (a *ListingAdapter) execOne(ctx context.Context, query string, args []interface{}, id, failure string) error {
	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError(failure, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("listing with id %s not found", id))
	}
	return nil
}

// distanceExpr builds the parameterised distance from origin to the owner address.
func distanceExpr(origin geo.Coordinates) exp.LiteralExpression {
	lat := goqu.I("addresses.geocoded_lat")
	lon := goqu.I("addresses.geocoded_lon")
	return goqu.L(distanceSQL,
		geo.EarthRadiusKm,
		origin.Latitude, lat,
		origin.Longitude, lon,
		origin.Latitude, lat,
	)
}

func tsQueryExpr(tsquery string) exp.LiteralExpression {
	return goqu.L("to_tsquery('english', ?)", tsquery)
}

// candidates joins listings to their tool, owner and owner address and applies
// the text and category filters shared by Search and ListAddressesNeedingGeocode.
func (a *ListingAdapter) candidates(q repositories.ListingQuery) *goqu.SelectDataset {
	ds := a.db.From("listings").
		Join(goqu.T("tools"), goqu.On(goqu.Ex{"tools.id": goqu.I("listings.tool_id")})).
		Join(goqu.T("users"), goqu.On(goqu.Ex{"users.id": goqu.I("tools.owner_id")})).
		Join(goqu.T("addresses"), goqu.On(goqu.Ex{"addresses.id": goqu.I("users.address_id")}))

	if q.TSQuery != "" {
		ds = ds.Where(goqu.L("? @@ ?", goqu.I("tools.search_vector"), tsQueryExpr(q.TSQuery)))
	}
	if q.CategoryID != "" {
		ds = ds.Where(goqu.Ex{"tools.tool_category_id": q.CategoryID})
	}
	return ds
}

// Search returns active listings whose owner address is geocoded, nearest
// first when an origin is given, otherwise by text rank.
func (a *ListingAdapter) Search(ctx context.Context, q repositories.ListingQuery) ([]entities.ListingSearchResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	rankExpr := goqu.L("0::real")
	if q.TSQuery != "" {
		rankExpr = goqu.L("ts_rank(?, ?)", goqu.I("tools.search_vector"), tsQueryExpr(q.TSQuery))
	}

	distance := goqu.L("NULL::double precision").As("distance")
	if q.Origin != nil {
		distance = distanceExpr(*q.Origin).As("distance")
	}

	columns := make([]interface{}, 0, len(listingColumns)+len(toolColumns)+len(addressColumns)+5)
	columns = append(columns, listingColumns...)
	columns = append(columns, toolColumns...)
	columns = append(columns, "users.first_name", "users.last_name")
	columns = append(columns, addressColumns...)
	columns = append(columns, distance, rankExpr.As("rank"))

	ds := a.candidates(q).
		Select(columns...).
		Where(
			goqu.Ex{"listings.active": true},
			goqu.I("addresses.geocoded_lat").IsNotNull(),
			goqu.I("addresses.geocoded_lon").IsNotNull(),
		)

	if q.Origin != nil {
		if q.RadiusKm != nil {
			ds = ds.Where(distanceExpr(*q.Origin).Lt(*q.RadiusKm))
		}
		ds = ds.Order(goqu.C("distance").Asc(), goqu.C("rank").Desc(), goqu.I("listings.id").Asc())
	} else {
		ds = ds.Order(goqu.C("rank").Desc(), goqu.I("listings.id").Asc())
	}

	query, args, err := ds.Limit(uint(limit)).Offset(uint(max(q.Offset, 0))).Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build search query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to search listings", err)
	}
	defer rows.Close()

	results := []entities.ListingSearchResult{}
	for rows.Next() {
		result, err := scanSearchResult(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan listing", err)
		}
		results = append(results, *result)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating listings", err)
	}

	return results, nil
}

// ListAddressesNeedingGeocode returns owner addresses of matching listings that
// have never been geocoded. Failed addresses are not retried on the read path.
func (a *ListingAdapter) ListAddressesNeedingGeocode(ctx context.Context, q repositories.ListingQuery) ([]*entities.Address, error) {
	query, args, err := a.candidates(q).
		Select(addressColumns...).
		Distinct().
		Where(
			goqu.Ex{"listings.active": true},
			goqu.Or(
				goqu.I("addresses.geocoded_lat").IsNull(),
				goqu.I("addresses.geocoded_lon").IsNull(),
			),
			goqu.Ex{"addresses.geocode_status": string(entities.GeocodeStatusPending)},
		).
		Limit(geocodeBatchLimit).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list addresses needing geocode", err)
	}
	defer rows.Close()

	addresses := []*entities.Address{}
	for rows.Next() {
		address, err := scanAddress(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan address", err)
		}
		addresses = append(addresses, address)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating addresses", err)
	}

	return addresses, nil
}

func scanSearchResult(rows *sql.Rows) (*entities.ListingSearchResult, error) {
	r := &entities.ListingSearchResult{}
	var interval, firstName, lastName, status string
	var categoryID, makerID, manualID, lineTwo sql.NullString
	var lat, lon, distance sql.NullFloat64

	if err := rows.Scan(
		&r.Listing.ID, &r.Listing.PriceCents, &interval, &r.Listing.MaxBillingIntervals,
		&r.Listing.ToolID, &r.Listing.Active, &r.Listing.CreatedAt, &r.Listing.UpdatedAt,
		&r.Tool.ID, &r.Tool.Name, &r.Tool.Description, &r.Tool.OwnerID,
		&categoryID, &makerID, &manualID, &r.Tool.CreatedAt, &r.Tool.UpdatedAt,
		&firstName, &lastName,
		&r.Address.ID, &r.Address.LineOne, &lineTwo, &r.Address.City,
		&r.Address.State, &r.Address.ZipCode, &lat, &lon, &status,
		&distance, &r.Rank,
	); err != nil {
		return nil, err
	}

	r.Listing.BillingInterval = entities.BillingInterval(interval)
	r.Tool.ToolCategoryID = stringPtr(categoryID)
	r.Tool.ToolMakerID = stringPtr(makerID)
	r.Tool.ManualFileID = stringPtr(manualID)

	owner := entities.User{ID: r.Tool.OwnerID, FirstName: firstName, LastName: lastName}
	r.Owner = owner.Summary()

	r.Address.LineTwo = lineTwo.String
	if lat.Valid && lon.Valid {
		r.Address.SetCoordinates(geo.Coordinates{Latitude: lat.Float64, Longitude: lon.Float64})
	}
	r.Address.GeocodeStatus = entities.GeocodeStatus(status)
	if distance.Valid {
		d := distance.Float64
		r.DistanceKm = &d
	}
	return r, nil
}
