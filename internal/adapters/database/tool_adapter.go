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

var toolColumns = []interface{}{
	"tools.id", "tools.name", "tools.description", "tools.owner_id",
	"tools.tool_category_id", "tools.tool_maker_id", "tools.manual_file_id",
	"tools.created_at", "tools.updated_at",
}

// ToolAdapter implements the ToolRepository interface
type ToolAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewToolAdapter creates a new tool adapter
func NewToolAdapter(client *postgres.Client) repositories.ToolRepository {
	return &ToolAdapter{
		client: client,
		db:     client.Builder(),
	}
}

// Create creates a new tool. The search vector is a generated column.
func (a *ToolAdapter) Create(ctx context.Context, tool *entities.Tool) error {
	record := goqu.Record{
		"id":               tool.ID,
		"name":             tool.Name,
		"description":      tool.Description,
		"owner_id":         tool.OwnerID,
		"tool_category_id": nullString(tool.ToolCategoryID),
		"tool_maker_id":    nullString(tool.ToolMakerID),
		"manual_file_id":   nullString(tool.ManualFileID),
		"created_at":       tool.CreatedAt,
		"updated_at":       tool.UpdatedAt,
	}

	query, args, err := a.db.Insert("tools").Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.NewValidationError("unknown category, maker or manual")
		}
		return apperrors.NewInternalError("failed to create tool", err)
	}
	return nil
}

// GetByID retrieves a tool by ID
func (a *ToolAdapter) GetByID(ctx context.Context, id string) (*entities.Tool, error) {
	query, args, err := a.db.Select(toolColumns...).
		From("tools").
		Where(goqu.Ex{"tools.id": id}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	tool, err := scanTool(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("tool with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get tool", err)
	}
	return tool, nil
}

// Delete removes a tool
func (a *ToolAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete("tools").
		Where(goqu.Ex{"id": id}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete tool", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("tool with id %s not found", id))
	}
	return nil
}

// CountActiveListings returns the number of active listings of a tool
func (a *ToolAdapter) CountActiveListings(ctx context.Context, toolID string) (int, error) {
	query, args, err := a.db.Select(goqu.COUNT("*")).
		From("listings").
		Where(goqu.Ex{"tool_id": toolID, "active": true}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build count query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count active listings", err)
	}
	return count, nil
}

func scanTool(row rowScanner) (*entities.Tool, error) {
	tool := &entities.Tool{}
	var categoryID, makerID, manualID sql.NullString

	if err := row.Scan(
		&tool.ID,
		&tool.Name,
		&tool.Description,
		&tool.OwnerID,
		&categoryID,
		&makerID,
		&manualID,
		&tool.CreatedAt,
		&tool.UpdatedAt,
	); err != nil {
		return nil, err
	}

	tool.ToolCategoryID = stringPtr(categoryID)
	tool.ToolMakerID = stringPtr(makerID)
	tool.ManualFileID = stringPtr(manualID)
	return tool, nil
}
