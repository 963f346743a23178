// Package service contains application services for authentication and identity.
package service

import (
	"context"
	"errors"

	"github.com/hfdforum/backend/internal/crypto"
	"github.com/hfdforum/backend/internal/errs"
	"github.com/hfdforum/backend/internal/limiter"
	"github.com/hfdforum/backend/internal/model"
	"github.com/hfdforum/backend/internal/repository"
	"github.com/hfdforum/backend/internal/snowflake"
	"github.com/hfdforum/backend/internal/token"
)

const minPasswordLen = 8

// AuthService defines authentication operations consumed by the HTTP layer
// and the gateway.
type AuthService interface {
	// Register creates a new user and issues their first session token.
	Register(ctx context.Context, username, displayName, password string) (model.User, string, error)
	// LoginWithIP applies rate-limiting, authenticates the user and issues a
	// fresh session token.
	LoginWithIP(ctx context.Context, username, password, ip, userAgent string) (model.User, string, error)
	// VerifyToken resolves a bearer token to its user by recomputing the
	// token from the stored secret triple.
	VerifyToken(ctx context.Context, tok string) (model.User, model.Session, error)
	// Logout deletes the session, revoking its token.
	Logout(ctx context.Context, sessionID snowflake.ID) error
	// RotateSecrets replaces the session's secret triple and returns the new
	// token. Every previously issued token for the session stops verifying.
	RotateSecrets(ctx context.Context, sessionID snowflake.ID) (string, error)
}

// Auth implements AuthService over the user and session repositories.
type Auth struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	gen      *snowflake.Generator
	lim      limiter.Limiter
}

var _ AuthService = (*Auth)(nil)

// NewAuth constructs the authentication service with required dependencies.
func NewAuth(users repository.UserRepository, sessions repository.SessionRepository, gen *snowflake.Generator, lim limiter.Limiter) *Auth {
	return &Auth{users: users, sessions: sessions, gen: gen, lim: lim}
}

// Register creates a new user record and their first session.
func (s *Auth) Register(ctx context.Context, username, displayName, password string) (model.User, string, error) {
	if username == "" {
		return model.User{}, "", errors.New("validation: empty username")
	}
	if len(password) < minPasswordLen {
		return model.User{}, "", errors.New("validation: password too short")
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		return model.User{}, "", err
	}
	u := model.User{
		ID:           s.gen.Generate(),
		Username:     username,
		Permissions:  model.DefaultPermissions,
		PasswordHash: crypto.HashPassword([]byte(password), salt),
		PasswordSalt: salt,
	}
	if displayName != "" {
		u.DisplayName = &displayName
	}
	if err := s.users.Create(ctx, &u); err != nil {
		return model.User{}, "", err
	}

	tok, err := s.issueSession(ctx, u.ID, "", "")
	if err != nil {
		return model.User{}, "", err
	}
	return u, tok, nil
}

// LoginWithIP authenticates with rate limiting by (username, ip).
func (s *Auth) LoginWithIP(ctx context.Context, username, password, ip, userAgent string) (model.User, string, error) {
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, username, ipHash)
	if err != nil {
		return model.User{}, "", err
	}
	if !allowed {
		return model.User{}, "", errs.ErrRateLimited
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil || !crypto.VerifyPassword([]byte(password), u.PasswordSalt, u.PasswordHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, username, ipHash); ferr == nil && blocked {
			return model.User{}, "", errs.ErrRateLimited
		}
		// lookup failures are masked so usernames cannot be probed
		return model.User{}, "", errs.ErrUnauthorized
	}
	if u.Flags.Has(model.FlagBanned) || u.Flags.Has(model.FlagDeleted) {
		return model.User{}, "", errs.ErrUnauthorized
	}

	// Success: reset counters (best-effort).
	_ = s.lim.Success(ctx, username, ipHash)

	tok, err := s.issueSession(ctx, u.ID, userAgent, ip)
	if err != nil {
		return model.User{}, "", err
	}
	return *u, tok, nil
}

// VerifyToken resolves the token's session, recomputes the token from the
// stored triple and compares the full strings. Any failure is reported as
// ErrUnauthorized so callers cannot distinguish a revoked session from a
// forged token.
func (s *Auth) VerifyToken(ctx context.Context, tok string) (model.User, model.Session, error) {
	sid, err := token.DecodeID(tok)
	if err != nil {
		return model.User{}, model.Session{}, errs.ErrUnauthorized
	}
	sess, err := s.sessions.GetByID(ctx, snowflake.ID(sid))
	if err != nil {
		return model.User{}, model.Session{}, errs.ErrUnauthorized
	}
	if !token.Verify(tok, sid, sess.Secret1, sess.Secret2, sess.Secret3) {
		return model.User{}, model.Session{}, errs.ErrUnauthorized
	}
	u, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return model.User{}, model.Session{}, errs.ErrUnauthorized
	}
	if u.Flags.Has(model.FlagBanned) || u.Flags.Has(model.FlagDeleted) {
		return model.User{}, model.Session{}, errs.ErrUnauthorized
	}
	return *u, *sess, nil
}

// Logout deletes the session row; the derived token stops verifying.
func (s *Auth) Logout(ctx context.Context, sessionID snowflake.ID) error {
	return s.sessions.Delete(ctx, sessionID)
}

// RotateSecrets atomically replaces the session's triple and returns the
// freshly derived token.
func (s *Auth) RotateSecrets(ctx context.Context, sessionID snowflake.ID) (string, error) {
	s1, s2, s3, err := token.GenerateSecrets()
	if err != nil {
		return "", err
	}
	if err := s.sessions.RotateSecrets(ctx, sessionID, s1, s2, s3); err != nil {
		return "", err
	}
	return token.Serialize(int64(sessionID), s1, s2, s3), nil
}

// issueSession creates a session with a fresh secret triple and derives its token.
func (s *Auth) issueSession(ctx context.Context, userID snowflake.ID, userAgent, ip string) (string, error) {
	s1, s2, s3, err := token.GenerateSecrets()
	if err != nil {
		return "", err
	}
	sess := model.Session{
		ID:        s.gen.Generate(),
		UserID:    userID,
		Secret1:   s1,
		Secret2:   s2,
		Secret3:   s3,
		UserAgent: userAgent,
		IP:        ip,
	}
	if err := s.sessions.Create(ctx, &sess); err != nil {
		return "", err
	}
	return token.Serialize(int64(sess.ID), s1, s2, s3), nil
}
