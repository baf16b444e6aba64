package handler

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/kwanjai/budbook/internal/cache"
	"github.com/kwanjai/budbook/internal/database"
	"github.com/kwanjai/budbook/internal/model"
	"github.com/kwanjai/budbook/internal/repository"
)

type budFixture struct {
	h     *BudHandler
	db    *database.DB
	users *repository.UserRepo
}

func newBudFixture(t *testing.T) *budFixture {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db := database.New(sqlDB, database.SQLite)
	require.NoError(t, database.EnsureSchema(context.Background(), db, database.SeedOptions{}))
	return &budFixture{
		h: &BudHandler{
			Buds:     repository.NewBudRepo(db),
			Reviews:  repository.NewReviewRepo(db),
			Cache:    cache.New(),
			MediaDir: t.TempDir(),
		},
		db:    db,
		users: repository.NewUserRepo(db),
	}
}

func (f *budFixture) addUser(t *testing.T, name string) model.User {
	t.Helper()
	u := model.User{
		Username: name, Email: name + "@example.com", PasswordHash: "x",
		IsGrower: true, IsApproved: true, ReferralCode: uuid.NewString(),
	}
	require.NoError(t, f.users.Create(context.Background(), &u))
	return u
}

// call runs a handler as an authenticated user; uid 0 means anonymous.
func call(t *testing.T, h echo.HandlerFunc, method, path, body string, uid int64, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if uid != 0 {
		c.Set("user_id", uid)
	}
	var names, values []string
	for i := 0; i+1 < len(params); i += 2 {
		names = append(names, params[i])
		values = append(values, params[i+1])
	}
	if len(names) > 0 {
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	require.NoError(t, h(c))
	return rec
}

func TestBudCreateValidation(t *testing.T) {
	f := newBudFixture(t)
	u := f.addUser(t, "grower")

	rec := call(t, f.h.Create, http.MethodPost, "/v1/buds",
		`{"strain_name_en":"OG Kush","category":"hybrid","thc":21.5}`, u.ID)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = call(t, f.h.Create, http.MethodPost, "/v1/buds",
		`{"strain_name_en":"","category":"hybrid"}`, u.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, f.h.Create, http.MethodPost, "/v1/buds",
		`{"strain_name_en":"X","category":"ruderalis"}`, u.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, f.h.Create, http.MethodPost, "/v1/buds",
		`{"strain_name_en":"X","category":"indica","thc":150}`, u.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, f.h.Create, http.MethodPost, "/v1/buds",
		`{"strain_name_en":"X","category":"indica"}`, 0)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBudUpdateOwnership(t *testing.T) {
	f := newBudFixture(t)
	owner := f.addUser(t, "owner")
	other := f.addUser(t, "other")

	b := model.Bud{StrainNameEN: "OG Kush", Category: "hybrid", Status: model.BudAvailable, CreatedBy: owner.ID}
	require.NoError(t, f.h.Buds.Create(context.Background(), &b))

	body := `{"strain_name_en":"OG Kush v2","category":"indica"}`
	rec := call(t, f.h.Update, http.MethodPut, "/v1/buds/1", body, other.ID, "id", "1")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, f.h.Update, http.MethodPut, "/v1/buds/1", body, owner.ID, "id", "1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "OG Kush v2")

	rec = call(t, f.h.Update, http.MethodPut, "/v1/buds/999", body, owner.ID, "id", "999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBudGetCachesDetail(t *testing.T) {
	f := newBudFixture(t)
	owner := f.addUser(t, "owner")
	b := model.Bud{StrainNameEN: "OG Kush", Category: "hybrid", Status: model.BudAvailable, CreatedBy: owner.ID}
	require.NoError(t, f.h.Buds.Create(context.Background(), &b))

	rec := call(t, f.h.Get, http.MethodGet, "/v1/buds/1", "", 0, "id", "1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"review_count":0`)
	_, cached := f.h.Cache.Get("bud_1")
	assert.True(t, cached, "the detail view is cached after the first read")

	rec = call(t, f.h.Get, http.MethodGet, "/v1/buds/999", "", 0, "id", "999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBudDeleteInvalidatesCache(t *testing.T) {
	f := newBudFixture(t)
	owner := f.addUser(t, "owner")
	b := model.Bud{StrainNameEN: "OG Kush", Category: "hybrid", Status: model.BudAvailable, CreatedBy: owner.ID}
	require.NoError(t, f.h.Buds.Create(context.Background(), &b))

	call(t, f.h.Get, http.MethodGet, "/v1/buds/1", "", 0, "id", "1")
	call(t, f.h.Mine, http.MethodGet, "/v1/my-buds", "", owner.ID)

	rec := call(t, f.h.Delete, http.MethodDelete, "/v1/buds/1", "", owner.ID, "id", "1")
	require.Equal(t, http.StatusOK, rec.Code)

	_, cached := f.h.Cache.Get("bud_1")
	assert.False(t, cached)
	_, cached = f.h.Cache.Get("user_buds_1")
	assert.False(t, cached)

	rec = call(t, f.h.Get, http.MethodGet, "/v1/buds/1", "", 0, "id", "1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBudListOnlyAvailable(t *testing.T) {
	f := newBudFixture(t)
	owner := f.addUser(t, "owner")
	avail := model.Bud{StrainNameEN: "Visible", Category: "hybrid", Status: model.BudAvailable, CreatedBy: owner.ID}
	sold := model.Bud{StrainNameEN: "Hidden", Category: "hybrid", Status: model.BudSoldOut, CreatedBy: owner.ID}
	require.NoError(t, f.h.Buds.Create(context.Background(), &avail))
	require.NoError(t, f.h.Buds.Create(context.Background(), &sold))

	rec := call(t, f.h.List, http.MethodGet, "/v1/buds", "", 0)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Visible")
	assert.NotContains(t, rec.Body.String(), "Hidden")

	rec = call(t, f.h.Mine, http.MethodGet, "/v1/my-buds", "", owner.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hidden", "owners see every status")
}
