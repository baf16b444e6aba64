package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingGetFallsBackToDefault(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	settings := NewSettingRepo(db)

	v, err := settings.Get(ctx, "registration_mode", "public")
	require.NoError(t, err)
	assert.Equal(t, "public", v, "the seed provides the default mode")

	v, err = settings.Get(ctx, "unknown_setting", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)
}

func TestSettingSetUpserts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	settings := NewSettingRepo(db)

	require.NoError(t, settings.Set(ctx, "registration_mode", "referral_only", "root"))
	v, err := settings.Get(ctx, "registration_mode", "public")
	require.NoError(t, err)
	assert.Equal(t, "referral_only", v)

	require.NoError(t, settings.Set(ctx, "brand_color", "green", "root"))
	v, err = settings.Get(ctx, "brand_color", "")
	require.NoError(t, err)
	assert.Equal(t, "green", v, "setting an unknown name inserts it")

	all, err := settings.All(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(all), 5)
}
