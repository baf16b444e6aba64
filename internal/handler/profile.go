package handler

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kwanjai/budbook/internal/config"
	"github.com/kwanjai/budbook/internal/mailer"
	"github.com/kwanjai/budbook/internal/middleware"
	"github.com/kwanjai/budbook/internal/queue"
	"github.com/kwanjai/budbook/internal/repository"
	"github.com/kwanjai/budbook/internal/service"
	"github.com/kwanjai/budbook/internal/utils"
)

// ProfileHandler covers self-service account management: profile fields,
// the referral queue on the referrer's side, email verification and
// password reset.
type ProfileHandler struct {
	Cfg           config.Config
	Users         *repository.UserRepo
	Tokens        *repository.TokenRepo
	Referrals     *repository.ReferralRepo
	Verifications *repository.SingleUseTokenRepo
	Resets        *repository.SingleUseTokenRepo
	Mail          mailer.Mailer
}

type updateProfileReq struct {
	Phone       *string `json:"phone"`
	LineID      *string `json:"line_id"`
	IsGrower    bool    `json:"is_grower"`
	IsBudtender bool    `json:"is_budtender"`
	IsConsumer  bool    `json:"is_consumer"`
}

// UpdateProfile rewrites the caller's contact fields and role flags.
func (h *ProfileHandler) UpdateProfile(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
	}
	var req updateProfileReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if !req.IsGrower && !req.IsBudtender && !req.IsConsumer {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "at least one role required"})
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	if err := h.Users.UpdateProfile(ctx, uid, req.Phone, req.LineID,
		req.IsGrower, req.IsBudtender, req.IsConsumer); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reload failed"})
	}
	return c.JSON(http.StatusOK, u)
}

// PendingStatus reports where the caller stands with the referral gate.
func (h *ProfileHandler) PendingStatus(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown user"})
	}
	state := "approved"
	switch {
	case u.ReferredBy != nil && !u.IsApproved:
		state = "pending"
	case u.ReferredBy == nil && !u.IsApproved:
		state = "unreferred"
	}
	return c.JSON(http.StatusOK, echo.Map{"state": state, "is_verified": u.IsVerified})
}

type referralCodeReq struct {
	ReferralCode string `json:"referral_code"`
}

// SubmitReferralCode binds a referrer to an account that registered
// without one, moving it into the pending queue.  The binding is one-shot;
// a second code is rejected.
func (h *ProfileHandler) SubmitReferralCode(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
	}
	var req referralCodeReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.ReferralCode) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "referral_code required"})
	}
	code := strings.TrimSpace(req.ReferralCode)

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	referrer, err := h.Users.GetByReferralCode(ctx, code)
	if errors.Is(err, repository.ErrBadReferralCode) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown referral code"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "resolve referral failed"})
	}
	if referrer.ID == uid {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot refer yourself"})
	}
	if err := h.Users.BindReferrer(ctx, uid, referrer.ID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "referrer already set"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "bind failed"})
	}
	clientHash := utils.HashClient(c.RealIP(), c.Request().UserAgent())
	if err := h.Referrals.MarkSignedUp(ctx, code, referrer.ID, clientHash); err != nil {
		log.Printf("profile: referral ledger update failed: %v", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"state": "pending"})
}

// Referees lists the caller's referees still waiting for approval.
func (h *ProfileHandler) Referees(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	users, err := h.Users.ListPending(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": users})
}

// ApproveReferee lets a referrer approve one of their own referees.  The
// seeded first account may approve anyone.
func (h *ProfileHandler) ApproveReferee(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
	}
	refereeID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	referee, err := h.Users.GetByID(ctx, refereeID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	bootstrapID, err := h.Users.BootstrapID(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	if uid != bootstrapID && (referee.ReferredBy == nil || *referee.ReferredBy != uid) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your referee"})
	}
	if err := h.Users.Approve(ctx, refereeID, uid); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "approve failed"})
	}
	h.notifyApproved(c, referee.ID)
	return c.JSON(http.StatusOK, echo.Map{"status": "approved"})
}

// MyReferrals returns the caller's referral ledger rows.
func (h *ProfileHandler) MyReferrals(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	items, err := h.Referrals.ListByReferrer(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// VerifyEmail consumes a verification token from the signup mail.
func (h *ProfileHandler) VerifyEmail(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	userID, err := h.Verifications.Redeem(ctx, token)
	if errors.Is(err, repository.ErrTokenInvalid) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verify failed"})
	}
	if err := h.Users.SetVerified(ctx, userID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verify failed"})
	}
	h.markLedgerVerified(c, userID)
	return c.JSON(http.StatusOK, echo.Map{"status": "verified"})
}

type resetRequestReq struct {
	Email string `json:"email"`
}
type resetPerformReq struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// RequestPasswordReset issues a single-use reset token.  The response is
// identical whether or not the address exists.
func (h *ProfileHandler) RequestPasswordReset(c echo.Context) error {
	var req resetRequestReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	resp := echo.Map{"status": "reset mail sent if the address exists"}

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		return c.JSON(http.StatusOK, resp)
	}
	token, err := h.Resets.Issue(ctx, u.ID, time.Hour)
	if err != nil {
		log.Printf("profile: issue reset token failed: %v", err)
		return c.JSON(http.StatusOK, resp)
	}
	link := h.Cfg.BaseURL + "/reset-password?token=" + token
	ev := queue.NotificationEvent{
		Kind:       queue.KindPasswordResetRequested,
		UserID:     u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Link:       link,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := service.PublishNotification(ctx, ev); err != nil {
		if err := h.Mail.Send(u.Email, "Budbook password reset", link); err != nil {
			log.Printf("profile: direct mail fallback failed: %v", err)
		}
	}
	if _, demo := h.Mail.(mailer.LogMailer); demo {
		resp["reset_link"] = link
	}
	return c.JSON(http.StatusOK, resp)
}

// PerformPasswordReset consumes a reset token, replaces the credential and
// revokes every live session.
func (h *ProfileHandler) PerformPasswordReset(c echo.Context) error {
	var req resetPerformReq
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}
	if len(req.NewPassword) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password too short"})
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	userID, err := h.Resets.Redeem(ctx, req.Token)
	if errors.Is(err, repository.ErrTokenInvalid) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset failed"})
	}
	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset failed"})
	}
	if err := h.Users.SetPassword(ctx, userID, hash); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset failed"})
	}
	if err := h.Tokens.RevokeAllForUser(ctx, userID); err != nil {
		log.Printf("profile: revoke sessions after reset failed: %v", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "password updated"})
}

// notifyApproved publishes the approval event, falling back to direct mail.
func (h *ProfileHandler) notifyApproved(c echo.Context, userID int64) {
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return
	}
	if u.ReferredBy != nil {
		if referrer, err := h.Users.GetByID(ctx, *u.ReferredBy); err == nil {
			if err := h.Referrals.MarkConverted(ctx, referrer.ReferralCode); err != nil {
				log.Printf("profile: referral ledger update failed: %v", err)
			}
		}
	}
	ev := queue.NotificationEvent{
		Kind:       queue.KindUserApproved,
		UserID:     u.ID,
		Username:   u.Username,
		Email:      u.Email,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := service.PublishNotification(ctx, ev); err != nil {
		if err := h.Mail.Send(u.Email, "Your Budbook account is approved", "You now have full access."); err != nil {
			log.Printf("profile: direct mail fallback failed: %v", err)
		}
	}
}

// markLedgerVerified stamps the verification step for a referred user.
func (h *ProfileHandler) markLedgerVerified(c echo.Context, userID int64) {
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil || u.ReferredBy == nil {
		return
	}
	referrer, err := h.Users.GetByID(ctx, *u.ReferredBy)
	if err != nil {
		return
	}
	if err := h.Referrals.MarkVerified(ctx, referrer.ReferralCode); err != nil {
		log.Printf("profile: referral ledger update failed: %v", err)
	}
}
