package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kwanjai/budbook/internal/repository"
)

// RequireApproved gates full-access routes behind the referral approval
// state.  The state is derived fresh from the users row on every request
// rather than from the JWT, so an approval (or a revocation) takes effect
// immediately instead of at the next token refresh.  Only the PENDING
// state is blocked: an account whose referred_by is set but which has not
// been approved yet.  Accounts without a referrer proceed, as does the
// seeded first account.  Routes a pending user still needs, such as
// profile and referral-code submission, simply omit this middleware.
func RequireApproved(users *repository.UserRepo) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid, ok := UserID(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			u, err := users.GetByID(c.Request().Context(), uid)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown user"})
			}
			if u.ReferredBy != nil && !u.IsApproved {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "pending_approval"})
			}
			return next(c)
		}
	}
}
