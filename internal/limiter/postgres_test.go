package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return mock
}

func TestPG_Allow(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	l := NewPG(mock, 15*time.Minute, 5, 15*time.Minute)
	ctx := context.Background()
	ip := HashIP("127.0.0.1")

	// no row yet: allowed
	mock.ExpectQuery(`SELECT blocked_until FROM auth_limiter`).
		WithArgs("alice", ip).
		WillReturnError(pgx.ErrNoRows)
	ok, _, err := l.Allow(ctx, "alice", ip)
	require.NoError(t, err)
	require.True(t, ok)

	// active block: denied with retry-after
	mock.ExpectQuery(`SELECT blocked_until FROM auth_limiter`).
		WithArgs("alice", ip).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(time.Now().Add(time.Minute)))
	ok, retry, err := l.Allow(ctx, "alice", ip)
	require.NoError(t, err)
	require.False(t, ok)
	require.Greater(t, retry, time.Duration(0))

	// expired block: allowed again
	mock.ExpectQuery(`SELECT blocked_until FROM auth_limiter`).
		WithArgs("alice", ip).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(time.Now().Add(-time.Minute)))
	ok, _, err = l.Allow(ctx, "alice", ip)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPG_Failure_BlocksAtThreshold(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	l := NewPG(mock, 15*time.Minute, 3, 10*time.Minute)
	ctx := context.Background()
	ip := HashIP("10.0.0.1")

	// below threshold
	mock.ExpectQuery(`INSERT INTO auth_limiter`).
		WithArgs("bob", ip, 15*time.Minute).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(2))
	blocked, _, err := l.Failure(ctx, "bob", ip)
	require.NoError(t, err)
	require.False(t, blocked)

	// threshold reached: block is written
	mock.ExpectQuery(`INSERT INTO auth_limiter`).
		WithArgs("bob", ip, 15*time.Minute).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(3))
	mock.ExpectExec(`UPDATE auth_limiter SET blocked_until=\$3`).
		WithArgs("bob", ip, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	blocked, retry, err := l.Failure(ctx, "bob", ip)
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, 10*time.Minute, retry)
}

func TestHashIP_Stable(t *testing.T) {
	require.Equal(t, HashIP("1.2.3.4"), HashIP("1.2.3.4"))
	require.NotEqual(t, HashIP("1.2.3.4"), HashIP("1.2.3.5"))
}
