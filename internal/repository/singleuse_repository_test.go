package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleUseTokenRedeemOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewEmailVerificationRepo(db)

	u := createUser(t, db, "alice", nil)
	token, err := repo.Issue(ctx, u.ID, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	gotID, err := repo.Redeem(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, gotID)

	_, err = repo.Redeem(ctx, token)
	assert.ErrorIs(t, err, ErrTokenInvalid, "a token is valid exactly once")
}

func TestSingleUseTokenExpiry(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewPasswordResetRepo(db)

	u := createUser(t, db, "alice", nil)
	token, err := repo.Issue(ctx, u.ID, -time.Minute)
	require.NoError(t, err)

	_, err = repo.Redeem(ctx, token)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = repo.Redeem(ctx, "no-such-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerificationAndResetTablesAreIndependent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := createUser(t, db, "alice", nil)
	verify, err := NewEmailVerificationRepo(db).Issue(ctx, u.ID, time.Hour)
	require.NoError(t, err)

	_, err = NewPasswordResetRepo(db).Redeem(ctx, verify)
	assert.ErrorIs(t, err, ErrTokenInvalid,
		"a verification token cannot reset a password")
}
