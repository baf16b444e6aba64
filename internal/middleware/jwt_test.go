package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwanjai/budbook/internal/utils"
)

const testSecret = "test-secret"

func callJWT(t *testing.T, authHeader string) (*httptest.ResponseRecorder, echo.Context, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	nextCalled := false
	h := JWTAuth(testSecret)(func(c echo.Context) error {
		nextCalled = true
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	return rec, c, nextCalled
}

func TestJWTAuthInjectsSubjectAndRoles(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, 42, []string{"GROWER", "CONSUMER"}, 15)
	require.NoError(t, err)

	rec, c, nextCalled := callJWT(t, "Bearer "+tok.Token)
	require.True(t, nextCalled)
	assert.Equal(t, http.StatusOK, rec.Code)

	uid, ok := UserID(c)
	require.True(t, ok)
	assert.Equal(t, int64(42), uid)
	assert.Equal(t, []string{"GROWER", "CONSUMER"}, c.Get("roles"))
}

func TestJWTAuthRejectsMissingAndGarbage(t *testing.T) {
	rec, _, nextCalled := callJWT(t, "")
	assert.False(t, nextCalled)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _, nextCalled = callJWT(t, "Bearer not-a-jwt")
	assert.False(t, nextCalled)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejectsWrongSecret(t *testing.T) {
	tok, err := utils.NewAccessToken("other-secret", 42, nil, 15)
	require.NoError(t, err)

	rec, _, nextCalled := callJWT(t, "Bearer "+tok.Token)
	assert.False(t, nextCalled)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejectsMasterAdminToken(t *testing.T) {
	tok, err := utils.NewMasterAdminToken(testSecret, "root", time.Hour)
	require.NoError(t, err)

	rec, _, nextCalled := callJWT(t, "Bearer "+tok.Token)
	assert.False(t, nextCalled)
	assert.Equal(t, http.StatusUnauthorized, rec.Code,
		"an admin session token never identifies a catalog user")
}

func TestRequireRole(t *testing.T) {
	e := echo.New()

	run := func(roles any) (*httptest.ResponseRecorder, bool) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if roles != nil {
			c.Set("roles", roles)
		}
		nextCalled := false
		h := RequireRole("GROWER", "BUDTENDER")(func(c echo.Context) error {
			nextCalled = true
			return c.NoContent(http.StatusOK)
		})
		require.NoError(t, h(c))
		return rec, nextCalled
	}

	rec, ok := run([]string{"CONSUMER", "BUDTENDER"})
	assert.True(t, ok, "any listed role suffices")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, ok = run([]string{"CONSUMER"})
	assert.False(t, ok)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, ok = run(nil)
	assert.False(t, ok)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
