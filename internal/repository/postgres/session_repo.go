package postgres

import (
	"context"
	"errors"

	"github.com/hfdforum/backend/internal/errs"
	"github.com/hfdforum/backend/internal/model"
	"github.com/hfdforum/backend/internal/snowflake"
)

// SessionRepo implements SessionRepository using PostgreSQL.
type SessionRepo struct{ db *DB }

// NewSessionRepo constructs a session repository.
func NewSessionRepo(db *DB) *SessionRepo { return &SessionRepo{db: db} }

// Create inserts a new session row with its secret triple.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	const q = `
INSERT INTO sessions (id, user_id, secret1, secret2, secret3, browser_user_agent, ip)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Pool.Exec(ctx, q,
		int64(s.ID), int64(s.UserID), s.Secret1, s.Secret2, s.Secret3, s.UserAgent, s.IP)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects a session by ID.
func (r *SessionRepo) GetByID(ctx context.Context, id snowflake.ID) (*model.Session, error) {
	const q = `
SELECT id, user_id, secret1, secret2, secret3, browser_user_agent, ip, created_at
FROM sessions WHERE id=$1`
	var (
		s      model.Session
		sid    int64
		userID int64
	)
	err := r.db.Pool.QueryRow(ctx, q, int64(id)).
		Scan(&sid, &userID, &s.Secret1, &s.Secret2, &s.Secret3, &s.UserAgent, &s.IP, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, errs.ErrNotFound
	}
	s.ID = snowflake.ID(sid)
	s.UserID = snowflake.ID(userID)
	return &s, nil
}

// Delete removes the session, revoking its token.
func (r *SessionRepo) Delete(ctx context.Context, id snowflake.ID) error {
	const q = `DELETE FROM sessions WHERE id=$1`
	_, err := r.db.Pool.Exec(ctx, q, int64(id))
	return err
}

// RotateSecrets replaces the whole triple in a single statement. Tokens
// issued from the previous triple stop verifying immediately.
func (r *SessionRepo) RotateSecrets(ctx context.Context, id snowflake.ID, s1, s2, s3 int64) error {
	const q = `UPDATE sessions SET secret1=$2, secret2=$3, secret3=$4 WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, int64(id), s1, s2, s3)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
