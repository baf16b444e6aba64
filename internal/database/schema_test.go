package database

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return New(sqlDB, SQLite)
}

func TestEnsureSchemaIsReentrant(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seed := SeedOptions{
		AdminName:         "root",
		AdminPasswordHash: "x",
		FirstUsername:     "founder",
		FirstUserEmail:    "founder@example.com",
		FirstUserPassHash: "y",
	}

	require.NoError(t, EnsureSchema(ctx, db, seed))
	first := tableCounts(t, db)

	require.NoError(t, EnsureSchema(ctx, db, seed))
	second := tableCounts(t, db)

	assert.Equal(t, first, second, "re-running must not duplicate seeds")
	assert.Equal(t, int64(len(defaultStrainNames)), first["strain_names"])
	assert.Equal(t, int64(len(defaultBreeders)), first["breeders"])
	assert.Equal(t, int64(4), first["admin_settings"])
	assert.Equal(t, int64(1), first["admin_accounts"])
	assert.Equal(t, int64(1), first["users"])
}

func TestEnsureSchemaAppliesColumnMigrations(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, EnsureSchema(ctx, db, SeedOptions{}))

	for _, m := range columnMigrations {
		ok, err := columnExists(ctx, db, m.table, m.column)
		require.NoError(t, err)
		assert.True(t, ok, "%s.%s must exist after EnsureSchema", m.table, m.column)
	}
}

func TestSeededFirstUserIsApproved(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, EnsureSchema(ctx, db, SeedOptions{
		FirstUsername:     "founder",
		FirstUserEmail:    "founder@example.com",
		FirstUserPassHash: "y",
	}))

	var approved, verified bool
	var code string
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT is_approved, is_verified, referral_code FROM users WHERE username = ?",
		"founder").Scan(&approved, &verified, &code))
	assert.True(t, approved)
	assert.True(t, verified)
	assert.NotEmpty(t, code)
}

func TestInsertReturningID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, EnsureSchema(ctx, db, SeedOptions{}))

	id1, err := db.InsertReturningID(ctx, "INSERT INTO strain_names (name) VALUES (?)", "Test Kush")
	require.NoError(t, err)
	id2, err := db.InsertReturningID(ctx, "INSERT INTO strain_names (name) VALUES (?)", "Test Haze")
	require.NoError(t, err)
	assert.Equal(t, id1+1, id2)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, EnsureSchema(ctx, db, SeedOptions{}))

	before := tableCounts(t, db)["strain_names"]
	err := db.WithTx(ctx, func(ctx context.Context, tx *Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO strain_names (name) VALUES (?)", "Doomed"); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, before, tableCounts(t, db)["strain_names"])
}

func tableCounts(t *testing.T, db *DB) map[string]int64 {
	t.Helper()
	out := map[string]int64{}
	for _, table := range []string{"users", "admin_accounts", "admin_settings", "strain_names", "breeders"} {
		var n int64
		require.NoError(t, db.QueryRowContext(context.Background(),
			"SELECT COUNT(*) FROM "+table).Scan(&n))
		out[table] = n
	}
	return out
}
