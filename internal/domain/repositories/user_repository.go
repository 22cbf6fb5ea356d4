package repositories

import (
	"context"

	"github.com/toolshed/marketplace/internal/domain/entities"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *entities.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id string) (*entities.User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
}

// AddressRepository defines the interface for address operations
type AddressRepository interface {
	// Create creates a new address
	Create(ctx context.Context, address *entities.Address) error

	// GetByID retrieves an address by ID
	GetByID(ctx context.Context, id string) (*entities.Address, error)

	// GetByUserID retrieves the address of a user
	GetByUserID(ctx context.Context, userID string) (*entities.Address, error)

	// UpdateGeocode persists coordinates and status. Coordinates are only
	// written when status is resolved.
	UpdateGeocode(ctx context.Context, address *entities.Address) error
}
