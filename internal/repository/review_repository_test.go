package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwanjai/budbook/internal/model"
)

func TestReviewOnePerUserPerBud(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	reviews := NewReviewRepo(db)

	owner := createUser(t, db, "grower", nil)
	reader := createUser(t, db, "reader", nil)
	b := createBud(t, db, owner.ID, "Test Kush")

	v := model.Review{BudID: b.ID, UserID: reader.ID, Rating: 4}
	require.NoError(t, reviews.Create(ctx, &v))
	require.NotZero(t, v.ID)

	dup := model.Review{BudID: b.ID, UserID: reader.ID, Rating: 5}
	assert.ErrorIs(t, reviews.Create(ctx, &dup), ErrDuplicateReview)

	second := model.Review{BudID: b.ID, UserID: owner.ID, Rating: 5}
	assert.NoError(t, reviews.Create(ctx, &second), "a different user may review the same bud")
}

func TestReviewAverageRating(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	reviews := NewReviewRepo(db)

	owner := createUser(t, db, "grower", nil)
	b := createBud(t, db, owner.ID, "Test Kush")

	avg, n, err := reviews.AverageRating(ctx, b.ID)
	require.NoError(t, err)
	assert.Zero(t, avg)
	assert.Zero(t, n)

	for i, rating := range []int{2, 3, 4} {
		u := createUser(t, db, "reviewer"+string(rune('a'+i)), nil)
		require.NoError(t, reviews.Create(ctx, &model.Review{BudID: b.ID, UserID: u.ID, Rating: rating}))
	}

	avg, n, err = reviews.AverageRating(ctx, b.ID)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, avg, 0.001)
	assert.Equal(t, int64(3), n)
}

func TestReviewDeleteOwnership(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	reviews := NewReviewRepo(db)

	owner := createUser(t, db, "grower", nil)
	author := createUser(t, db, "author", nil)
	intruder := createUser(t, db, "intruder", nil)
	b := createBud(t, db, owner.ID, "Test Kush")

	v := model.Review{BudID: b.ID, UserID: author.ID, Rating: 3}
	require.NoError(t, reviews.Create(ctx, &v))

	assert.ErrorIs(t, reviews.Delete(ctx, v.ID, intruder.ID), ErrForbidden)
	require.NoError(t, reviews.Delete(ctx, v.ID, author.ID))
	assert.ErrorIs(t, reviews.Delete(ctx, v.ID, author.ID), sql.ErrNoRows)
}

func TestReviewListByBudNewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	reviews := NewReviewRepo(db)

	owner := createUser(t, db, "grower", nil)
	b := createBud(t, db, owner.ID, "Test Kush")
	u1 := createUser(t, db, "one", nil)
	u2 := createUser(t, db, "two", nil)

	require.NoError(t, reviews.Create(ctx, &model.Review{BudID: b.ID, UserID: u1.ID, Rating: 4}))
	require.NoError(t, reviews.Create(ctx, &model.Review{BudID: b.ID, UserID: u2.ID, Rating: 5}))

	got, err := reviews.ListByBud(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, u2.ID, got[0].UserID)

	mine, err := reviews.ListByUser(ctx, u1.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, b.ID, mine[0].BudID)
}
