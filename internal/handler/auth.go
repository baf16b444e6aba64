package handler

import (
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/kwanjai/budbook/internal/config"
	"github.com/kwanjai/budbook/internal/mailer"
	"github.com/kwanjai/budbook/internal/middleware"
	"github.com/kwanjai/budbook/internal/model"
	"github.com/kwanjai/budbook/internal/queue"
	"github.com/kwanjai/budbook/internal/repository"
	"github.com/kwanjai/budbook/internal/service"
	"github.com/kwanjai/budbook/internal/utils"
)

// AuthHandler bundles dependencies for the identity endpoints.
type AuthHandler struct {
	Cfg           config.Config
	Users         *repository.UserRepo
	Tokens        *repository.TokenRepo
	Settings      *repository.SettingRepo
	Referrals     *repository.ReferralRepo
	Verifications *repository.SingleUseTokenRepo
	Mail          mailer.Mailer
	Provider      service.IdentityProvider // nil until a provider is wired
}

// ----- DTOs -----

type registerReq struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	ReferralCode string `json:"referral_code"`
	IsGrower     bool   `json:"is_grower"`
	IsBudtender  bool   `json:"is_budtender"`
	IsConsumer   bool   `json:"is_consumer"`
}
type loginReq struct {
	Login    string `json:"login"` // username or email
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type authResp struct {
	User    model.User `json:"user"`
	Access  tokenPart  `json:"access"`
	Refresh tokenPart  `json:"refresh"`
}

// Register creates an account and returns a token pair immediately.  The
// registration mode setting decides how the referral gate applies: in
// public mode a referral-less signup is approved on the spot while a
// referred one starts pending; in referral_only mode a valid code is
// mandatory and every signup starts pending.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.ReferralCode = strings.TrimSpace(req.ReferralCode)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/email/password required"})
	}
	if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password too short"})
	}
	if !req.IsGrower && !req.IsBudtender && !req.IsConsumer {
		req.IsConsumer = true
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	mode, err := h.Settings.Get(ctx, "registration_mode", model.RegistrationPublic)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load settings failed"})
	}

	var referrer *model.User
	if req.ReferralCode != "" {
		ref, err := h.Users.GetByReferralCode(ctx, req.ReferralCode)
		if errors.Is(err, repository.ErrBadReferralCode) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown referral code"})
		}
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "resolve referral failed"})
		}
		referrer = &ref
	} else if mode == model.RegistrationReferralOnly {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "referral code required"})
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash password failed"})
	}
	u := model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		IsGrower:     req.IsGrower,
		IsBudtender:  req.IsBudtender,
		IsConsumer:   req.IsConsumer,
		IsApproved:   referrer == nil, // referral-less public signups skip the queue
		ReferralCode: uuid.NewString(),
	}
	if referrer != nil {
		u.ReferredBy = &referrer.ID
	}
	err = h.Users.Create(ctx, &u)
	if errors.Is(err, repository.ErrReferralCodeTaken) {
		// the generated code collided with an existing one, not a user error
		u.ReferralCode = uuid.NewString()
		err = h.Users.Create(ctx, &u)
	}
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUsernameExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "username already exists"})
		case errors.Is(err, repository.ErrEmailExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	if referrer != nil {
		clientHash := utils.HashClient(c.RealIP(), c.Request().UserAgent())
		if err := h.Referrals.MarkSignedUp(ctx, req.ReferralCode, referrer.ID, clientHash); err != nil {
			log.Printf("auth: referral ledger update failed: %v", err)
		}
	}

	verifyLink := ""
	if token, err := h.Verifications.Issue(ctx, u.ID, 24*time.Hour); err != nil {
		log.Printf("auth: issue verification token failed: %v", err)
	} else {
		verifyLink = h.Cfg.BaseURL + "/v1/auth/verify-email?token=" + token
		h.notify(c, queue.NotificationEvent{
			Kind:       queue.KindUserRegistered,
			UserID:     u.ID,
			Username:   u.Username,
			Email:      u.Email,
			Link:       verifyLink,
			OccurredAt: time.Now().UTC().Format(time.RFC3339),
		})
	}

	access, refresh, err := h.issuePair(c, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	resp := echo.Map{
		"user":    u,
		"access":  access,
		"refresh": refresh,
	}
	// Without a mail server the link would otherwise be unreachable.
	if _, demo := h.Mail.(mailer.LogMailer); demo && verifyLink != "" {
		resp["verify_link"] = verifyLink
	}
	return c.JSON(http.StatusCreated, resp)
}

// ReferralLanding records a sighting of a shared referral link with its
// campaign attribution, then forwards the visitor to the signup page with
// the code prefilled.  An unknown code still redirects so a stale link
// never dead-ends, but nothing is written to the ledger for it.
func (h *AuthHandler) ReferralLanding(c echo.Context) error {
	code := strings.TrimSpace(c.Param("code"))
	target := h.Cfg.BaseURL + "/register"
	if code == "" {
		return c.Redirect(http.StatusFound, target)
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	referrer, err := h.Users.GetByReferralCode(ctx, code)
	if err != nil {
		return c.Redirect(http.StatusFound, target)
	}

	ref := model.Referral{Code: code, ReferrerID: &referrer.ID}
	if v := strings.TrimSpace(c.QueryParam("utm_source")); v != "" {
		ref.UTMSource = &v
	}
	if v := strings.TrimSpace(c.QueryParam("utm_medium")); v != "" {
		ref.UTMMedium = &v
	}
	if v := strings.TrimSpace(c.QueryParam("utm_campaign")); v != "" {
		ref.UTMCampaign = &v
	}
	clientHash := utils.HashClient(c.RealIP(), c.Request().UserAgent())
	ref.ClientHash = &clientHash
	if err := h.Referrals.Track(ctx, &ref); err != nil {
		log.Printf("auth: referral ledger track failed: %v", err)
	}
	return c.Redirect(http.StatusFound, target+"?ref="+url.QueryEscape(code))
}

// Login verifies credentials (username or email) and returns a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Login = strings.TrimSpace(req.Login)
	if req.Login == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "login/password required"})
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByUsername(ctx, req.Login)
	if errors.Is(err, repository.ErrUserNotFound) {
		u, err = h.Users.GetByEmail(ctx, req.Login)
	}
	if errors.Is(err, repository.ErrUserNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	access, refresh, err := h.issuePair(c, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	return c.JSON(http.StatusOK, authResp{User: u, Access: access, Refresh: refresh})
}

// Refresh rotates a refresh token: the presented token is revoked and a
// fresh pair issued, so a leaked token stops working after first use.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	hash := utils.HashRefreshRaw(req.RefreshToken)
	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown user"})
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "rotate failed"})
	}

	access, refresh, err := h.issuePair(c, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	return c.JSON(http.StatusOK, authResp{User: u, Access: access, Refresh: refresh})
}

// Logout revokes the presented refresh token.  Revoking an already-revoked
// or unknown token is a silent success.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	if err := h.Tokens.RevokeByHash(ctx, utils.HashRefreshRaw(req.RefreshToken)); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "logged out"})
}

// Me returns the authenticated user's record.
func (h *AuthHandler) Me(c echo.Context) error {
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
	return c.JSON(http.StatusOK, u)
}

// OAuthLogin starts a federated login.  Without a configured provider the
// endpoint answers 503 so clients can distinguish "not set up" from a
// broken flow.
func (h *AuthHandler) OAuthLogin(c echo.Context) error {
	if h.Provider == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": service.ErrNoIdentityProvider.Error()})
	}
	state := uuid.NewString()
	return c.JSON(http.StatusOK, echo.Map{"url": h.Provider.AuthorizationURL(state), "state": state})
}

// OAuthCallback finishes a federated login for an existing account.
func (h *AuthHandler) OAuthCallback(c echo.Context) error {
	if h.Provider == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": service.ErrNoIdentityProvider.Error()})
	}
	code := c.QueryParam("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code required"})
	}
	ctx, cancel := contextWithTimeout(c, 10*time.Second)
	defer cancel()
	ident, err := h.Provider.Exchange(ctx, code)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "exchange failed"})
	}
	u, err := h.Users.GetByEmail(ctx, ident.Email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no account for this identity"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	access, refresh, err := h.issuePair(c, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	return c.JSON(http.StatusOK, authResp{User: u, Access: access, Refresh: refresh})
}

// issuePair mints an access/refresh pair and persists the refresh hash.
func (h *AuthHandler) issuePair(c echo.Context, u model.User) (tokenPart, tokenPart, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Roles(), h.Cfg.AccessTTLMin)
	if err != nil {
		return tokenPart{}, tokenPart{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return tokenPart{}, tokenPart{}, err
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return tokenPart{}, tokenPart{}, err
	}
	return tokenPart{Token: access.Token, Expires: access.Exp},
		tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, nil
}

// notify publishes an account event; on broker failure it falls back to
// sending the mail directly so the user is never left without the link.
func (h *AuthHandler) notify(c echo.Context, ev queue.NotificationEvent) {
	if err := service.PublishNotification(c.Request().Context(), ev); err != nil {
		if err := h.Mail.Send(ev.Email, "Budbook notification", ev.Kind+"\n"+ev.Link); err != nil {
			log.Printf("auth: direct mail fallback failed: %v", err)
		}
	}
}
