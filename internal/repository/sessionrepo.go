package repository

import (
	"context"

	"github.com/hfdforum/backend/internal/model"
	"github.com/hfdforum/backend/internal/snowflake"
)

// SessionRepository stores the per-session secret triples tokens derive from.
type SessionRepository interface {
	// Create inserts a new session with its secret triple.
	Create(ctx context.Context, s *model.Session) error
	// GetByID loads a session by ID.
	GetByID(ctx context.Context, id snowflake.ID) (*model.Session, error)
	// Delete removes the session, revoking its token.
	Delete(ctx context.Context, id snowflake.ID) error
	// RotateSecrets atomically replaces the whole secret triple,
	// invalidating every token previously issued for the session.
	RotateSecrets(ctx context.Context, id snowflake.ID, s1, s2, s3 int64) error
}
