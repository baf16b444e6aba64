package middleware // reusable HTTP middleware shared by the route groups

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects the subject and role claims into the request context.
// Handlers downstream read the authenticated user via `c.Get("user_id")`
// (int64) and `c.Get("roles")` ([]string).
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			// Master admin session tokens carry "adm" and never identify a
			// catalog user; they are rejected here and accepted only by the
			// admin middleware.
			if _, isAdmin := claims["adm"]; isAdmin {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			// JSON numbers decode as float64.
			sub, ok := claims["sub"].(float64)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			c.Set("user_id", int64(sub))
			c.Set("roles", claimRoles(claims))
			return next(c)
		}
	}
}

// claimRoles converts the decoded "roles" claim back into a string slice.
func claimRoles(claims jwt.MapClaims) []string {
	raw, ok := claims["roles"].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// UserID reads the authenticated user id set by JWTAuth.  The second
// return value is false on unauthenticated requests.
func UserID(c echo.Context) (int64, bool) {
	v, ok := c.Get("user_id").(int64)
	return v, ok
}
