package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/hfdforum/backend/internal/errs"
	"github.com/hfdforum/backend/internal/model"
	"github.com/hfdforum/backend/internal/snowflake"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func strptr(s string) *string { return &s }

func TestUserRepo_Create_OK_and_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	u := &model.User{
		ID:           snowflake.ID(1001),
		Username:     "alice",
		DisplayName:  strptr("Alice"),
		Permissions:  model.DefaultPermissions,
		PasswordHash: []byte("h"),
		PasswordSalt: []byte("s"),
	}

	// OK
	mock.ExpectExec(`INSERT INTO users \(id, username, display_name, bio, permissions, flags, pwd_hash, pwd_salt\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8\)`).
		WithArgs(int64(1001), "alice", u.DisplayName, (*string)(nil), int64(model.DefaultPermissions), int32(0), u.PasswordHash, u.PasswordSalt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(ctx, u))

	// Unique violation on username
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(int64(1001), "alice", u.DisplayName, (*string)(nil), int64(model.DefaultPermissions), int32(0), u.PasswordHash, u.PasswordSalt).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Create(ctx, u), errs.ErrAlreadyExists)
}

func TestUserRepo_GetByID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()

	cols := []string{"id", "username", "display_name", "bio", "permissions", "flags", "pwd_hash", "pwd_salt"}
	mock.ExpectQuery(`SELECT id, username, display_name, bio, permissions, flags, pwd_hash, pwd_salt FROM users WHERE id=\$1`).
		WithArgs(int64(1001)).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(int64(1001), "alice", strptr("Alice"), (*string)(nil), int64(11), int32(2), []byte("h"), []byte("s")))
	u, err := r.GetByID(ctx, 1001)
	require.NoError(t, err)
	require.Equal(t, snowflake.ID(1001), u.ID)
	require.Equal(t, model.Permissions(11), u.Permissions)
	require.True(t, u.Flags.Has(model.FlagStaff))

	mock.ExpectQuery(`SELECT id, username, display_name, bio, permissions, flags, pwd_hash, pwd_salt FROM users WHERE id=\$1`).
		WithArgs(int64(1002)).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByID(ctx, 1002)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepo_GetByUsername(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()

	cols := []string{"id", "username", "display_name", "bio", "permissions", "flags", "pwd_hash", "pwd_salt"}
	mock.ExpectQuery(`SELECT id, username, display_name, bio, permissions, flags, pwd_hash, pwd_salt FROM users WHERE username=\$1`).
		WithArgs("bob").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(int64(7), "bob", (*string)(nil), (*string)(nil), int64(0), int32(0), []byte("h"), []byte("s")))
	u, err := r.GetByUsername(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, "bob", u.Username)
}

func TestUserRepo_UpdateProfile(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE users SET display_name=\$2, bio=\$3 WHERE id=\$1`).
		WithArgs(int64(7), strptr("Bob"), strptr("hi")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.UpdateProfile(ctx, 7, strptr("Bob"), strptr("hi")))

	mock.ExpectExec(`UPDATE users SET display_name=\$2, bio=\$3 WHERE id=\$1`).
		WithArgs(int64(8), (*string)(nil), (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.UpdateProfile(ctx, 8, nil, nil), errs.ErrNotFound)
}
