package handler

import (
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kwanjai/budbook/internal/config"
	"github.com/kwanjai/budbook/internal/middleware"
	"github.com/kwanjai/budbook/internal/model"
	"github.com/kwanjai/budbook/internal/repository"
	"github.com/kwanjai/budbook/internal/utils"
)

// AdminAuthHandler serves the admin console login.  Two credential paths
// exist: regular accounts stored in admin_accounts (with the lockout state
// machine) and the break-glass master admin configured through the
// environment, which is never locked and never counted.
type AdminAuthHandler struct {
	Cfg    config.Config
	Admins *repository.AdminRepo
}

type adminLoginReq struct {
	AdminName string `json:"admin_name"`
	Password  string `json:"password"`
}

// Login verifies admin credentials and returns a session token.
func (h *AdminAuthHandler) Login(c echo.Context) error {
	var req adminLoginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.AdminName = strings.TrimSpace(req.AdminName)
	if req.AdminName == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "admin_name/password required"})
	}

	if h.Cfg.MasterAdmin != "" && req.AdminName == h.Cfg.MasterAdmin {
		return h.masterLogin(c, req)
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	sess, err := h.Admins.Authenticate(ctx, req.AdminName, req.Password)
	switch {
	case err == nil:
		h.logAttempt(c, req.AdminName, "login", "success", "")
		return c.JSON(http.StatusOK, sess)
	case errors.Is(err, repository.ErrAdminLocked):
		h.logAttempt(c, req.AdminName, "login", "locked", "")
		// No remaining-cooldown detail: the message must not tell an
		// attacker when to come back.
		return c.JSON(http.StatusLocked, echo.Map{"error": "account temporarily locked"})
	case errors.Is(err, repository.ErrAdminDisabled):
		h.logAttempt(c, req.AdminName, "login", "disabled", "")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account disabled"})
	case errors.Is(err, repository.ErrBadCredentials):
		h.logAttempt(c, req.AdminName, "login", "failure", "")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "service unavailable"})
}

// masterLogin handles the env-configured break-glass account.
func (h *AdminAuthHandler) masterLogin(c echo.Context, req adminLoginReq) error {
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.Cfg.MasterSecret)) != 1 {
		h.logAttempt(c, req.AdminName, "login", "failure", "master")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	tok, err := utils.NewMasterAdminToken(h.Cfg.JWTSecret, req.AdminName, 2*time.Hour)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	h.logAttempt(c, req.AdminName, "login", "success", "master")
	return c.JSON(http.StatusOK, repository.AdminSession{
		AdminName: req.AdminName,
		Token:     tok.Token,
		ExpiresAt: tok.Exp,
	})
}

// Logout ends a regular admin session.  Master sessions are stateless
// JWTs, so the client just drops the token.
func (h *AdminAuthHandler) Logout(c echo.Context) error {
	name := middleware.AdminName(c)
	if master, _ := c.Get("admin_master").(bool); !master {
		ctx, cancel := contextWithTimeout(c, 5*time.Second)
		defer cancel()
		if err := h.Admins.ClearToken(ctx, name); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
		}
	}
	h.logAttempt(c, name, "logout", "success", "")
	return c.JSON(http.StatusOK, echo.Map{"status": "logged out"})
}

// logAttempt appends to the admin activity log; logging failures never
// affect the request outcome.
func (h *AdminAuthHandler) logAttempt(c echo.Context, name, action, outcome, detail string) {
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	e := model.AdminLogEntry{
		AdminName: name,
		Action:    action,
		Outcome:   outcome,
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
		Detail:    detail,
	}
	if err := h.Admins.Log(ctx, e); err != nil {
		log.Printf("admin: activity log append failed: %v", err)
	}
}
