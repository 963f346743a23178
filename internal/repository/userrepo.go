// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/hfdforum/backend/internal/model"
	"github.com/hfdforum/backend/internal/snowflake"
)

// UserRepository provides CRUD access for forum accounts.
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id snowflake.ID) (*model.User, error)
	// GetByUsername loads a user by username.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// UpdateProfile replaces display name and bio.
	UpdateProfile(ctx context.Context, id snowflake.ID, displayName, bio *string) error
}
