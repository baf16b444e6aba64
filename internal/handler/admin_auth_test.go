package handler

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/kwanjai/budbook/internal/database"
	"github.com/kwanjai/budbook/internal/repository"
	"github.com/kwanjai/budbook/internal/utils"
)

func newAdminAuthFixture(t *testing.T) (*AdminAuthHandler, *repository.AdminRepo) {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db := database.New(sqlDB, database.SQLite)

	hash, err := utils.HashPassword("op-secret!", bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, database.EnsureSchema(context.Background(), db, database.SeedOptions{
		AdminName:         "root",
		AdminPasswordHash: hash,
	}))

	cfg := testConfig()
	cfg.MasterAdmin = "breakglass"
	cfg.MasterSecret = "master-secret!"
	admins := repository.NewAdminRepo(db)
	return &AdminAuthHandler{Cfg: cfg, Admins: admins}, admins
}

func TestAdminLoginSuccess(t *testing.T) {
	h, _ := newAdminAuthFixture(t)

	rec := doJSON(t, h.Login, http.MethodPost, "/v1/admin/login",
		`{"admin_name":"root","password":"op-secret!"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "root", body["admin_name"])
	assert.NotEmpty(t, body["token"])
}

func TestAdminLoginLockout(t *testing.T) {
	h, admins := newAdminAuthFixture(t)

	for i := 0; i < 4; i++ {
		rec := doJSON(t, h.Login, http.MethodPost, "/v1/admin/login",
			`{"admin_name":"root","password":"wrong"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := doJSON(t, h.Login, http.MethodPost, "/v1/admin/login",
		`{"admin_name":"root","password":"wrong"}`)
	assert.Equal(t, http.StatusLocked, rec.Code)
	assert.NotContains(t, rec.Body.String(), "minutes",
		"the response must not reveal the cooldown")

	rec = doJSON(t, h.Login, http.MethodPost, "/v1/admin/login",
		`{"admin_name":"root","password":"op-secret!"}`)
	assert.Equal(t, http.StatusLocked, rec.Code)

	log, err := admins.RecentLog(context.Background(), 20)
	require.NoError(t, err)
	require.NotEmpty(t, log)
	assert.Equal(t, "locked", log[0].Outcome, "every attempt lands in the audit log")
}

func TestAdminMasterLogin(t *testing.T) {
	h, _ := newAdminAuthFixture(t)

	rec := doJSON(t, h.Login, http.MethodPost, "/v1/admin/login",
		`{"admin_name":"breakglass","password":"master-secret!"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeBody(t, rec)["token"])

	rec = doJSON(t, h.Login, http.MethodPost, "/v1/admin/login",
		`{"admin_name":"breakglass","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// the master path never locks, no matter how many failures
	for i := 0; i < 10; i++ {
		rec = doJSON(t, h.Login, http.MethodPost, "/v1/admin/login",
			`{"admin_name":"breakglass","password":"wrong"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestAdminLoginValidation(t *testing.T) {
	h, _ := newAdminAuthFixture(t)

	rec := doJSON(t, h.Login, http.MethodPost, "/v1/admin/login",
		`{"admin_name":"","password":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h.Login, http.MethodPost, "/v1/admin/login",
		`{"admin_name":"ghost","password":"whatever"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
