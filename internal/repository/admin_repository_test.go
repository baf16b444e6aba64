package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminAuthenticateSuccess(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admins := NewAdminRepo(db)

	sess, err := admins.Authenticate(ctx, "root", "hunter2!")
	require.NoError(t, err)
	assert.Equal(t, "root", sess.AdminName)
	assert.NotEmpty(t, sess.Token)
	assert.True(t, sess.ExpiresAt.After(time.Now()))

	a, err := admins.ValidateToken(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "root", a.AdminName)
	require.NotNil(t, a.LastLogin)
}

func TestAdminLockoutAfterFiveFailures(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admins := NewAdminRepo(db)

	for i := 0; i < maxFailedAttempts-1; i++ {
		_, err := admins.Authenticate(ctx, "root", "wrong")
		assert.ErrorIs(t, err, ErrBadCredentials)
	}

	_, err := admins.Authenticate(ctx, "root", "wrong")
	assert.ErrorIs(t, err, ErrAdminLocked, "the fifth consecutive failure locks")

	_, err = admins.Authenticate(ctx, "root", "hunter2!")
	assert.ErrorIs(t, err, ErrAdminLocked,
		"the correct password is rejected while the lockout holds")
}

func TestAdminLockoutExpiryResetsCounter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admins := NewAdminRepo(db)

	for i := 0; i < maxFailedAttempts; i++ {
		_, _ = admins.Authenticate(ctx, "root", "wrong")
	}

	// simulate the cooldown having elapsed
	_, err := db.ExecContext(ctx,
		"UPDATE admin_accounts SET locked_until = ? WHERE admin_name = ?",
		time.Now().UTC().Add(-time.Minute), "root")
	require.NoError(t, err)

	sess, err := admins.Authenticate(ctx, "root", "hunter2!")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)

	a, err := admins.GetByName(ctx, "root")
	require.NoError(t, err)
	assert.Zero(t, a.FailedAttempts, "a success clears the counter")
	assert.Nil(t, a.LockedUntil)
}

func TestAdminSingleActiveSession(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admins := NewAdminRepo(db)

	first, err := admins.Authenticate(ctx, "root", "hunter2!")
	require.NoError(t, err)
	second, err := admins.Authenticate(ctx, "root", "hunter2!")
	require.NoError(t, err)
	require.NotEqual(t, first.Token, second.Token)

	_, err = admins.ValidateToken(ctx, first.Token)
	assert.ErrorIs(t, err, ErrAdminTokenExpired, "a new login replaces the old token")
	_, err = admins.ValidateToken(ctx, second.Token)
	assert.NoError(t, err)
}

func TestAdminValidateTokenExpiry(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admins := NewAdminRepo(db)

	sess, err := admins.Authenticate(ctx, "root", "hunter2!")
	require.NoError(t, err)

	_, err = db.ExecContext(ctx,
		"UPDATE admin_accounts SET token_expires_at = ? WHERE admin_name = ?",
		time.Now().UTC().Add(-time.Minute), "root")
	require.NoError(t, err)

	_, err = admins.ValidateToken(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrAdminTokenExpired)
}

func TestAdminDisableDropsSession(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admins := NewAdminRepo(db)

	_, err := admins.Create(ctx, "junior", testPassHash)
	require.NoError(t, err)
	_, err = admins.Create(ctx, "junior", testPassHash)
	assert.ErrorIs(t, err, ErrConflict)

	sess, err := admins.Authenticate(ctx, "junior", "hunter2!")
	require.NoError(t, err)

	require.NoError(t, admins.SetActive(ctx, "junior", false))
	_, err = admins.ValidateToken(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrAdminTokenExpired, "disabling invalidates the token")

	_, err = admins.Authenticate(ctx, "junior", "hunter2!")
	assert.ErrorIs(t, err, ErrAdminDisabled)

	assert.ErrorIs(t, admins.SetActive(ctx, "ghost", true), ErrAdminNotFound)
}

func TestAdminUnknownNameIsBadCredentials(t *testing.T) {
	db := newTestDB(t)
	admins := NewAdminRepo(db)

	_, err := admins.Authenticate(context.Background(), "nobody", "hunter2!")
	assert.ErrorIs(t, err, ErrBadCredentials,
		"unknown names are indistinguishable from wrong passwords")
}
