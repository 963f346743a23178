package postgres

import (
	"context"
	"errors"

	"github.com/hfdforum/backend/internal/errs"
	"github.com/hfdforum/backend/internal/model"
	"github.com/hfdforum/backend/internal/snowflake"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (id, username, display_name, bio, permissions, flags, pwd_hash, pwd_salt)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Pool.Exec(ctx, q,
		int64(u.ID), u.Username, u.DisplayName, u.Bio,
		int64(u.Permissions), int32(u.Flags), u.PasswordHash, u.PasswordSalt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id snowflake.ID) (*model.User, error) {
	const q = `
SELECT id, username, display_name, bio, permissions, flags, pwd_hash, pwd_salt
FROM users WHERE id=$1`
	return r.scanUser(r.db.Pool.QueryRow(ctx, q, int64(id)))
}

// GetByUsername selects a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	const q = `
SELECT id, username, display_name, bio, permissions, flags, pwd_hash, pwd_salt
FROM users WHERE username=$1`
	return r.scanUser(r.db.Pool.QueryRow(ctx, q, username))
}

// UpdateProfile replaces display name and bio.
func (r *UserRepo) UpdateProfile(ctx context.Context, id snowflake.ID, displayName, bio *string) error {
	const q = `UPDATE users SET display_name=$2, bio=$3 WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, int64(id), displayName, bio)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

type row interface{ Scan(dest ...any) error }

func (r *UserRepo) scanUser(rw row) (*model.User, error) {
	var (
		u           model.User
		id          int64
		permissions int64
		flags       int32
	)
	if err := rw.Scan(&id, &u.Username, &u.DisplayName, &u.Bio, &permissions, &flags, &u.PasswordHash, &u.PasswordSalt); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, errs.ErrNotFound
	}
	u.ID = snowflake.ID(id)
	u.Permissions = model.Permissions(permissions)
	u.Flags = model.UserFlags(flags)
	return &u, nil
}
