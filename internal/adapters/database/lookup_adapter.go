package database

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/toolshed/marketplace/internal/domain/entities"
	"github.com/toolshed/marketplace/internal/domain/repositories"
	"github.com/toolshed/marketplace/internal/infrastructure/clients/postgres"
	apperrors "github.com/toolshed/marketplace/pkg/errors"
)

// LookupAdapter implements LookupRepository over tool_makers and tool_categories
type LookupAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewLookupAdapter creates a new lookup adapter
func NewLookupAdapter(client *postgres.Client) repositories.LookupRepository {
	return &LookupAdapter{
		client: client,
		db:     client.Builder(),
	}
}

// lookupTable is the only place a lookup kind is mapped to storage.
func lookupTable(kind entities.LookupKind) (string, error) {
	switch kind {
	case entities.LookupKindMaker:
		return "tool_makers", nil
	case entities.LookupKindCategory:
		return "tool_categories", nil
	default:
		return "", apperrors.NewValidationError(fmt.Sprintf("unknown lookup kind %q", kind))
	}
}

// Create inserts a lookup entry. Names are not unique.
func (a *LookupAdapter) Create(ctx context.Context, entry *entities.LookupEntry) error {
	table, err := lookupTable(entry.Kind)
	if err != nil {
		return err
	}

	query, args, err := a.db.Insert(table).Prepared(true).Rows(goqu.Record{
		"id":         entry.ID,
		"name":       entry.Name,
		"created_at": entry.CreatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError(fmt.Sprintf("failed to create %s", entry.Kind), err)
	}
	return nil
}

// Search lists lookup entries ordered by name, filtered by tsquery when set
func (a *LookupAdapter) Search(ctx context.Context, kind entities.LookupKind, tsquery string) ([]*entities.LookupEntry, error) {
	table, err := lookupTable(kind)
	if err != nil {
		return nil, err
	}

	ds := a.db.Select("id", "name", "created_at").From(table)
	if tsquery != "" {
		ds = ds.Where(goqu.L("search_vector @@ to_tsquery('simple', ?)", tsquery))
	}

	query, args, err := ds.Order(goqu.C("name").Asc(), goqu.C("id").Asc()).Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to search %s", kind), err)
	}
	defer rows.Close()

	entries := []*entities.LookupEntry{}
	for rows.Next() {
		entry := &entities.LookupEntry{Kind: kind}
		if err := rows.Scan(&entry.ID, &entry.Name, &entry.CreatedAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan lookup entry", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating lookup entries", err)
	}

	return entries, nil
}
