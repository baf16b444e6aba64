package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kwanjai/budbook/internal/cache"
	"github.com/kwanjai/budbook/internal/middleware"
	"github.com/kwanjai/budbook/internal/repository"
)

// ActivityHandler covers the user-facing side of judged contests: browsing
// and joining.  Creation and judging live on the admin console.
type ActivityHandler struct {
	Activities *repository.ActivityRepo
	Buds       *repository.BudRepo
	Users      *repository.UserRepo
	Settings   *repository.SettingRepo
	Cache      *cache.Store
}

// ListOpen returns contests currently inside their registration window.
func (h *ActivityHandler) ListOpen(c echo.Context) error {
	if v, ok := h.Cache.Get("activity_open"); ok {
		return c.JSON(http.StatusOK, echo.Map{"items": v})
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	items, err := h.Activities.ListOpen(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	h.Cache.Set("activity_open", items, 30*time.Second)
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get returns one contest with its entries in rank order.
func (h *ActivityHandler) Get(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	key := fmt.Sprintf("activity_%d", id)
	if v, ok := h.Cache.Get(key); ok {
		return c.JSON(http.StatusOK, v)
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	a, err := h.Activities.GetByID(ctx, id)
	if errors.Is(err, repository.ErrActivityNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "activity not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load failed"})
	}
	participants, err := h.Activities.Participants(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load failed"})
	}
	detail := echo.Map{"activity": a, "participants": participants}
	h.Cache.Set(key, detail, 30*time.Second)
	return c.JSON(http.StatusOK, detail)
}

type joinReq struct {
	BudID int64 `json:"bud_id"`
}

// Join submits one of the caller's buds to a contest.  Eligibility is
// checked against the caller's role flags, the bud must belong to the
// caller, and the (activity, user, bud) triple is unique.
func (h *ActivityHandler) Join(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
	}
	activityID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req joinReq
	if err := c.Bind(&req); err != nil || req.BudID < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "bud_id required"})
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	if enabled, err := h.Settings.Get(ctx, "activities_enabled", "true"); err == nil && enabled != "true" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "activities are disabled"})
	}

	b, err := h.Buds.GetByID(ctx, req.BudID)
	if errors.Is(err, repository.ErrBudNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "bud not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load failed"})
	}
	if b.CreatedBy != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your bud"})
	}

	a, err := h.Activities.GetByID(ctx, activityID)
	if errors.Is(err, repository.ErrActivityNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "activity not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load failed"})
	}
	if !h.eligible(c, a.Eligibility, uid) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not eligible for this activity"})
	}

	entryID, err := h.Activities.Join(ctx, activityID, uid, req.BudID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrActivityClosed):
			return c.JSON(http.StatusConflict, echo.Map{"error": "activity is not open"})
		case errors.Is(err, repository.ErrAlreadyJoined):
			return c.JSON(http.StatusConflict, echo.Map{"error": "already joined with this bud"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "join failed"})
	}
	h.Cache.InvalidatePrefix("activity_")
	return c.JSON(http.StatusCreated, echo.Map{"entry_id": entryID})
}

// eligible checks the activity's eligibility rule against the caller.
func (h *ActivityHandler) eligible(c echo.Context, rule string, uid int64) bool {
	switch rule {
	case "", "any":
		return true
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return false
	}
	switch rule {
	case "grower":
		return u.IsGrower
	case "budtender":
		return u.IsBudtender
	}
	return false
}
