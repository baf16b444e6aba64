package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/kwanjai/budbook/internal/database"
	"github.com/kwanjai/budbook/internal/model"
	"github.com/kwanjai/budbook/internal/repository"
)

func newApprovalFixture(t *testing.T) *repository.UserRepo {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db := database.New(sqlDB, database.SQLite)
	require.NoError(t, database.EnsureSchema(context.Background(), db, database.SeedOptions{}))
	return repository.NewUserRepo(db)
}

func newUser(t *testing.T, users *repository.UserRepo, name string, referredBy *int64, approved bool) model.User {
	t.Helper()
	u := model.User{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		IsConsumer:   true,
		IsApproved:   approved,
		ReferredBy:   referredBy,
		ReferralCode: uuid.NewString(),
	}
	require.NoError(t, users.Create(context.Background(), &u))
	return u
}

func callApproval(t *testing.T, users *repository.UserRepo, userID any) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != nil {
		c.Set("user_id", userID)
	}
	nextCalled := false
	h := RequireApproved(users)(func(c echo.Context) error {
		nextCalled = true
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	return rec, nextCalled
}

func TestRequireApprovedBlocksPendingReferee(t *testing.T) {
	users := newApprovalFixture(t)
	referrer := newUser(t, users, "referrer", nil, true)
	pending := newUser(t, users, "pending", &referrer.ID, false)

	rec, nextCalled := callApproval(t, users, pending.ID)
	assert.False(t, nextCalled)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "pending_approval")
}

func TestRequireApprovedPassesApprovedReferee(t *testing.T) {
	users := newApprovalFixture(t)
	referrer := newUser(t, users, "referrer", nil, true)
	referee := newUser(t, users, "referee", &referrer.ID, false)
	require.NoError(t, users.Approve(context.Background(), referee.ID, referrer.ID))

	rec, nextCalled := callApproval(t, users, referee.ID)
	assert.True(t, nextCalled)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireApprovedPassesUnreferredUser(t *testing.T) {
	users := newApprovalFixture(t)
	u := newUser(t, users, "solo", nil, true)

	rec, nextCalled := callApproval(t, users, u.ID)
	assert.True(t, nextCalled)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireApprovedRejectsAnonymous(t *testing.T) {
	users := newApprovalFixture(t)

	rec, nextCalled := callApproval(t, users, nil)
	assert.False(t, nextCalled)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, nextCalled = callApproval(t, users, int64(99999))
	assert.False(t, nextCalled)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "deleted account loses access immediately")
}
