package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/identity/storetest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "identities.db")
	s, err := Open(context.Background(), SQLite, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) identity.Store { return openTestStore(t) })
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, Migrate(context.Background(), s.DB(), SQLite))

	var n int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&n))
	assert.Equal(t, len(migrations), n)
}

func TestZeroTimesRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := storetest.NewIdentity("zero@example.com")
	require.NoError(t, s.Insert(ctx, rec))

	got, err := s.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, got.LockedUntil.IsZero())
	assert.True(t, got.ResetTokenExpiry.IsZero())
	assert.True(t, got.VerificationTokenExpiry.IsZero())
	assert.False(t, got.Locked(rec.CreatedAt))
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", Postgres.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))
	assert.Equal(t, "SELECT ?", SQLite.rebind("SELECT ?"))
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("PostgreSQL")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	d, err = ParseDialect("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)

	_, err = ParseDialect("mysql")
	assert.Error(t, err)
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), SQLite, " ")
	assert.Error(t, err)
}
