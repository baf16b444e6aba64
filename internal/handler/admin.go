package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kwanjai/budbook/internal/cache"
	"github.com/kwanjai/budbook/internal/config"
	"github.com/kwanjai/budbook/internal/mailer"
	"github.com/kwanjai/budbook/internal/middleware"
	"github.com/kwanjai/budbook/internal/model"
	"github.com/kwanjai/budbook/internal/queue"
	"github.com/kwanjai/budbook/internal/repository"
	"github.com/kwanjai/budbook/internal/service"
	"github.com/kwanjai/budbook/internal/utils"
)

// AdminHandler is the authenticated admin console: the approval queue,
// user and settings management, admin account management, activity
// creation and judging, and the activity log.
type AdminHandler struct {
	Cfg        config.Config
	Users      *repository.UserRepo
	Admins     *repository.AdminRepo
	Settings   *repository.SettingRepo
	Activities *repository.ActivityRepo
	Referrals  *repository.ReferralRepo
	Cache      *cache.Store
	Mail       mailer.Mailer
}

// PendingUsers lists every account waiting for approval.
func (h *AdminHandler) PendingUsers(c echo.Context) error {
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	items, err := h.Users.ListPending(ctx, 0)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ApproveUser approves any pending account.  The approved_by column is a
// users foreign key, so admin approvals are stamped with the seeded first
// account; the acting admin is recorded in the activity log.
func (h *AdminHandler) ApproveUser(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
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
	if err := h.Users.Approve(ctx, id, bootstrapID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "approve failed"})
	}
	h.logAction(c, "approve_user", "success", fmt.Sprintf("user_id=%d", id))
	h.notifyApproved(c, u)
	return c.JSON(http.StatusOK, echo.Map{"status": "approved"})
}

// RejectUser hard-deletes a pending account; dependents cascade.
func (h *AdminHandler) RejectUser(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	if err := h.Users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	h.logAction(c, "reject_user", "success", fmt.Sprintf("user_id=%d", id))
	h.Cache.Clear()
	return c.JSON(http.StatusOK, echo.Map{"status": "deleted"})
}

// ListUsers returns every account.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	items, err := h.Users.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetSettings returns every admin setting.
func (h *AdminHandler) GetSettings(c echo.Context) error {
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	items, err := h.Settings.All(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

type settingReq struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// settingValidators constrains the values of known settings; unknown names
// are rejected outright.
var settingValidators = map[string]func(string) bool{
	"registration_mode": func(v string) bool {
		return v == model.RegistrationPublic || v == model.RegistrationReferralOnly
	},
	"site_name":          func(v string) bool { return strings.TrimSpace(v) != "" },
	"reviews_enabled":    func(v string) bool { return v == "true" || v == "false" },
	"activities_enabled": func(v string) bool { return v == "true" || v == "false" },
}

// PutSetting updates one setting.
func (h *AdminHandler) PutSetting(c echo.Context) error {
	var req settingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	validate, ok := settingValidators[req.Name]
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown setting"})
	}
	if !validate(req.Value) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid value for " + req.Name})
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	if err := h.Settings.Set(ctx, req.Name, req.Value, middleware.AdminName(c)); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save failed"})
	}
	h.logAction(c, "put_setting", "success", req.Name+"="+req.Value)
	return c.JSON(http.StatusOK, echo.Map{"status": "saved"})
}

type createAdminReq struct {
	AdminName string `json:"admin_name"`
	Password  string `json:"password"`
}

// CreateAdmin adds a regular admin account.
func (h *AdminHandler) CreateAdmin(c echo.Context) error {
	var req createAdminReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.AdminName = strings.TrimSpace(req.AdminName)
	if req.AdminName == "" || len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "admin_name and password (8+ chars) required"})
	}
	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash failed"})
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	id, err := h.Admins.Create(ctx, req.AdminName, hash)
	if errors.Is(err, repository.ErrConflict) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "admin name already exists"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	h.logAction(c, "create_admin", "success", req.AdminName)
	return c.JSON(http.StatusCreated, echo.Map{"id": id, "admin_name": req.AdminName})
}

type adminActiveReq struct {
	Active bool `json:"active"`
}

// SetAdminActive enables or disables a regular admin account.
func (h *AdminHandler) SetAdminActive(c echo.Context) error {
	name := strings.TrimSpace(c.Param("name"))
	var req adminActiveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if name == middleware.AdminName(c) && !req.Active {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot disable yourself"})
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	if err := h.Admins.SetActive(ctx, name, req.Active); err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "admin not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	h.logAction(c, "set_admin_active", "success", fmt.Sprintf("%s active=%t", name, req.Active))
	return c.JSON(http.StatusOK, echo.Map{"status": "updated"})
}

type createActivityReq struct {
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	OpensAt     time.Time `json:"opens_at"`
	ClosesAt    time.Time `json:"closes_at"`
	FirstPrize  *string   `json:"first_prize"`
	SecondPrize *string   `json:"second_prize"`
	ThirdPrize  *string   `json:"third_prize"`
	Eligibility string    `json:"eligibility"`
}

// CreateActivity opens a new judged contest.
func (h *AdminHandler) CreateActivity(c echo.Context) error {
	var req createActivityReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Title) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title required"})
	}
	if !req.ClosesAt.After(req.OpensAt) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "closes_at must be after opens_at"})
	}
	switch req.Eligibility {
	case "", "any":
		req.Eligibility = "any"
	case "grower", "budtender":
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "eligibility must be any, grower or budtender"})
	}

	actor := middleware.AdminName(c)
	a := model.Activity{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		OpensAt:     req.OpensAt.UTC(),
		ClosesAt:    req.ClosesAt.UTC(),
		FirstPrize:  req.FirstPrize,
		SecondPrize: req.SecondPrize,
		ThirdPrize:  req.ThirdPrize,
		Eligibility: req.Eligibility,
		Status:      model.ActivityOpen,
		CreatedBy:   &actor,
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	if err := h.Activities.Create(ctx, &a); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	h.logAction(c, "create_activity", "success", fmt.Sprintf("activity_id=%d", a.ID))
	h.Cache.InvalidatePrefix("activity_")
	return c.JSON(http.StatusCreated, a)
}

type activityStatusReq struct {
	Status string `json:"status"`
}

// SetActivityStatus moves a contest between open, judged and closed.
func (h *AdminHandler) SetActivityStatus(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req activityStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	switch req.Status {
	case model.ActivityOpen, model.ActivityJudged, model.ActivityClosed:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	if err := h.Activities.SetStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, repository.ErrActivityNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "activity not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	h.logAction(c, "set_activity_status", "success", fmt.Sprintf("activity_id=%d status=%s", id, req.Status))
	h.Cache.InvalidatePrefix("activity_")
	return c.JSON(http.StatusOK, echo.Map{"status": req.Status})
}

type assignRankReq struct {
	Rank  int     `json:"rank"`
	Prize *string `json:"prize"`
}

// AssignRank records the judging result for one participant entry.
func (h *AdminHandler) AssignRank(c echo.Context) error {
	participantID, ok := paramID(c, "participant_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req assignRankReq
	if err := c.Bind(&req); err != nil || req.Rank < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rank (>=1) required"})
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	if err := h.Activities.AssignRank(ctx, participantID, req.Rank, req.Prize); err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "participant not found"})
	}
	h.logAction(c, "assign_rank", "success", fmt.Sprintf("participant_id=%d rank=%d", participantID, req.Rank))
	h.Cache.InvalidatePrefix("activity_")
	return c.JSON(http.StatusOK, echo.Map{"status": "ranked"})
}

// ActivityLog lists the newest admin activity log entries.
func (h *AdminHandler) ActivityLog(c echo.Context) error {
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	items, err := h.Admins.RecentLog(ctx, queryInt(c, "limit", 100))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (h *AdminHandler) logAction(c echo.Context, action, outcome, detail string) {
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	e := model.AdminLogEntry{
		AdminName: middleware.AdminName(c),
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

// notifyApproved mirrors the referrer-side approval notification.
func (h *AdminHandler) notifyApproved(c echo.Context, u model.User) {
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	if u.ReferredBy != nil {
		if referrer, err := h.Users.GetByID(ctx, *u.ReferredBy); err == nil {
			if err := h.Referrals.MarkConverted(ctx, referrer.ReferralCode); err != nil {
				log.Printf("admin: referral ledger update failed: %v", err)
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
			log.Printf("admin: direct mail fallback failed: %v", err)
		}
	}
}
