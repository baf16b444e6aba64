package router

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/kwanjai/budbook/internal/cache"
	"github.com/kwanjai/budbook/internal/config"
	"github.com/kwanjai/budbook/internal/database"
	"github.com/kwanjai/budbook/internal/handler"
	"github.com/kwanjai/budbook/internal/mailer"
	"github.com/kwanjai/budbook/internal/model"
	"github.com/kwanjai/budbook/internal/repository"
	"github.com/kwanjai/budbook/internal/utils"
)

const testSecret = "test-secret"

func newRouterFixture(t *testing.T) (*echo.Echo, *database.DB) {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db := database.New(sqlDB, database.SQLite)

	hash, err := utils.HashPassword("hunter2!", bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, database.EnsureSchema(context.Background(), db, database.SeedOptions{
		FirstUsername:     "founder",
		FirstUserEmail:    "founder@example.com",
		FirstUserPassHash: hash,
	}))

	cfg := config.Config{
		JWTSecret:      testSecret,
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
		BcryptCost:     bcrypt.MinCost,
		BaseURL:        "http://localhost:8080",
		MediaDir:       t.TempDir(),
	}

	users := repository.NewUserRepo(db)
	admins := repository.NewAdminRepo(db)
	tokens := repository.NewTokenRepo(db)
	settings := repository.NewSettingRepo(db)
	referrals := repository.NewReferralRepo(db)
	buds := repository.NewBudRepo(db)
	reviews := repository.NewReviewRepo(db)
	activities := repository.NewActivityRepo(db)
	store := cache.New()

	h := Handlers{
		Health: handler.NewHealthHandler(db),
		Auth: &handler.AuthHandler{
			Cfg: cfg, Users: users, Tokens: tokens, Settings: settings,
			Referrals: referrals, Verifications: repository.NewEmailVerificationRepo(db),
			Mail: mailer.LogMailer{},
		},
		Profile: &handler.ProfileHandler{
			Cfg: cfg, Users: users, Tokens: tokens, Referrals: referrals,
			Verifications: repository.NewEmailVerificationRepo(db),
			Resets:        repository.NewPasswordResetRepo(db),
			Mail:          mailer.LogMailer{},
		},
		Buds:      &handler.BudHandler{Buds: buds, Reviews: reviews, Cache: store, MediaDir: cfg.MediaDir},
		Reviews:   &handler.ReviewHandler{Reviews: reviews, Buds: buds, Settings: settings, Cache: store},
		Activity:  &handler.ActivityHandler{Activities: activities, Buds: buds, Users: users, Settings: settings, Cache: store},
		Search:    &handler.SearchHandler{Buds: buds, Cache: store},
		AdminAuth: &handler.AdminAuthHandler{Cfg: cfg, Admins: admins},
		Admin: &handler.AdminHandler{
			Cfg: cfg, Users: users, Admins: admins, Settings: settings,
			Activities: activities, Referrals: referrals, Cache: store, Mail: mailer.LogMailer{},
		},
	}

	e := echo.New()
	Register(e, cfg, h, users, admins, nil)
	return e, db
}

func insertUser(t *testing.T, db *database.DB, username string, referredBy *int64) model.User {
	t.Helper()
	hash, err := utils.HashPassword("hunter2!", bcrypt.MinCost)
	require.NoError(t, err)
	u := model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		IsConsumer:   true,
		IsApproved:   referredBy == nil,
		ReferredBy:   referredBy,
		ReferralCode: uuid.NewString(),
	}
	require.NoError(t, repository.NewUserRepo(db).Create(context.Background(), &u))
	return u
}

func bearerFor(t *testing.T, userID int64) string {
	t.Helper()
	tok, err := utils.NewAccessToken(testSecret, userID, []string{"CONSUMER"}, 15)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func doAuthed(e *echo.Echo, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set(echo.HeaderAuthorization, bearer)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestReferralRoutesRequireApproval(t *testing.T) {
	e, db := newRouterFixture(t)
	users := repository.NewUserRepo(db)
	ctx := context.Background()

	founder, err := users.GetByUsername(ctx, "founder")
	require.NoError(t, err)
	pending := insertUser(t, db, "pending", &founder.ID)
	referee := insertUser(t, db, "referee", &pending.ID)

	bearer := bearerFor(t, pending.ID)
	routes := []struct{ method, path string }{
		{http.MethodGet, "/v1/me/referees"},
		{http.MethodPost, fmt.Sprintf("/v1/me/referees/%d/approve", referee.ID)},
		{http.MethodGet, "/v1/me/referrals"},
		{http.MethodGet, "/v1/me/reviews"},
	}
	for _, r := range routes {
		rec := doAuthed(e, r.method, r.path, bearer)
		assert.Equal(t, http.StatusForbidden, rec.Code, r.path)
		assert.Contains(t, rec.Body.String(), "pending_approval", r.path)
	}

	got, err := users.GetByID(ctx, referee.ID)
	require.NoError(t, err)
	assert.False(t, got.IsApproved, "a pending referrer must not be able to approve their referee")
}

func TestPendingUserKeepsSelfServiceRoutes(t *testing.T) {
	e, db := newRouterFixture(t)
	users := repository.NewUserRepo(db)
	ctx := context.Background()

	founder, err := users.GetByUsername(ctx, "founder")
	require.NoError(t, err)
	pending := insertUser(t, db, "pending", &founder.ID)

	bearer := bearerFor(t, pending.ID)
	rec := doAuthed(e, http.MethodGet, "/v1/me", bearer)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doAuthed(e, http.MethodGet, "/v1/me/status", bearer)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pending")

	// an approved account reaches the referral queue as before
	rec = doAuthed(e, http.MethodGet, "/v1/me/referees", bearerFor(t, founder.ID))
	assert.Equal(t, http.StatusOK, rec.Code)
}
