package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/toolshed/marketplace/internal/domain/entities"
	"github.com/toolshed/marketplace/internal/domain/repositories"
	"github.com/toolshed/marketplace/internal/infrastructure/clients/postgres"
	apperrors "github.com/toolshed/marketplace/pkg/errors"
)

var addressColumns = []interface{}{
	"addresses.id", "addresses.line_one", "addresses.line_two", "addresses.city",
	"addresses.state", "addresses.zip_code", "addresses.geocoded_lat",
	"addresses.geocoded_lon", "addresses.geocode_status",
}

// AddressAdapter implements the AddressRepository interface
type AddressAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAddressAdapter creates a new address adapter
func NewAddressAdapter(client *postgres.Client) repositories.AddressRepository {
	return &AddressAdapter{
		client: client,
		db:     client.Builder(),
	}
}

// Create creates a new address
func (a *AddressAdapter) Create(ctx context.Context, address *entities.Address) error {
	if address.GeocodeStatus == "" {
		address.GeocodeStatus = entities.GeocodeStatusPending
	}
	record := goqu.Record{
		"id":             address.ID,
		"line_one":       address.LineOne,
		"line_two":       sql.NullString{String: address.LineTwo, Valid: address.LineTwo != ""},
		"city":           address.City,
		"state":          address.State,
		"zip_code":       address.ZipCode,
		"geocoded_lat":   nullFloat(address.GeocodedLat),
		"geocoded_lon":   nullFloat(address.GeocodedLon),
		"geocode_status": string(address.GeocodeStatus),
	}

	query, args, err := a.db.Insert("addresses").Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create address", err)
	}
	return nil
}

// GetByID retrieves an address by ID
func (a *AddressAdapter) GetByID(ctx context.Context, id string) (*entities.Address, error) {
	ds := a.db.Select(addressColumns...).
		From("addresses").
		Where(goqu.Ex{"addresses.id": id})
	return a.getOne(ctx, ds, fmt.Sprintf("address with id %s not found", id))
}

// GetByUserID retrieves the address of a user
func (a *AddressAdapter) GetByUserID(ctx context.Context, userID string) (*entities.Address, error) {
	ds := a.db.Select(addressColumns...).
		From("addresses").
		Join(goqu.T("users"), goqu.On(goqu.Ex{"users.address_id": goqu.I("addresses.id")})).
		Where(goqu.Ex{"users.id": userID})
	return a.getOne(ctx, ds, fmt.Sprintf("address for user %s not found", userID))
}

func (a *AddressAdapter) getOne(ctx context.Context, ds *goqu.SelectDataset, notFound string) (*entities.Address, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	address, err := scanAddress(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(notFound)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get address", err)
	}
	return address, nil
}

// UpdateGeocode persists the geocoding outcome of an address
func (a *AddressAdapter) UpdateGeocode(ctx context.Context, address *entities.Address) error {
	record := goqu.Record{"geocode_status": string(address.GeocodeStatus)}
	if address.GeocodeStatus == entities.GeocodeStatusResolved {
		record["geocoded_lat"] = nullFloat(address.GeocodedLat)
		record["geocoded_lon"] = nullFloat(address.GeocodedLon)
	}

	query, args, err := a.db.Update("addresses").
		Set(record).
		Where(goqu.Ex{"id": address.ID}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update address geocode", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("address with id %s not found", address.ID))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAddress(row rowScanner) (*entities.Address, error) {
	address := &entities.Address{}
	var lineTwo sql.NullString
	var lat, lon sql.NullFloat64
	var status string

	if err := row.Scan(
		&address.ID,
		&address.LineOne,
		&lineTwo,
		&address.City,
		&address.State,
		&address.ZipCode,
		&lat,
		&lon,
		&status,
	); err != nil {
		return nil, err
	}

	address.LineTwo = lineTwo.String
	address.GeocodeStatus = entities.GeocodeStatus(status)
	if lat.Valid && lon.Valid {
		address.GeocodedLat = &lat.Float64
		address.GeocodedLon = &lon.Float64
	}
	return address, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil || *v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
