package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/kwanjai/budbook/internal/repository"
)

// AdminAuth protects the admin console.  Two token shapes are accepted on
// the Authorization header: a signed master-admin JWT (claim adm=master),
// validated by signature and expiry alone, and a stored session token for
// regular admin accounts, matched against the database with its expiry.
// The admin name lands in the context under "admin_name".
func AdminAuth(secret string, admins *repository.AdminRepo) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			if name, ok := masterName(raw, secret); ok {
				c.Set("admin_name", name)
				c.Set("admin_master", true)
				return next(c)
			}

			a, err := admins.ValidateToken(c.Request().Context(), raw)
			if err != nil {
				if errors.Is(err, repository.ErrAdminTokenExpired) || errors.Is(err, repository.ErrAdminDisabled) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid admin session"})
				}
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "service unavailable"})
			}
			c.Set("admin_name", a.AdminName)
			c.Set("admin_master", false)
			return next(c)
		}
	}
}

// masterName verifies a master-admin JWT and returns the admin name claim.
func masterName(raw, secret string) (string, bool) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, echo.ErrUnauthorized
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return "", false
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}
	if adm, _ := claims["adm"].(string); adm != "master" {
		return "", false
	}
	name, _ := claims["sub"].(string)
	return name, name != ""
}

// AdminName reads the admin identity set by AdminAuth.
func AdminName(c echo.Context) string {
	name, _ := c.Get("admin_name").(string)
	return name
}
