package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kwanjai/budbook/internal/cache"
	"github.com/kwanjai/budbook/internal/middleware"
	"github.com/kwanjai/budbook/internal/model"
	"github.com/kwanjai/budbook/internal/repository"
)

// ReviewHandler covers review creation, listing and deletion.  Reviews can
// be disabled site-wide through the reviews_enabled setting.
type ReviewHandler struct {
	Reviews  *repository.ReviewRepo
	Buds     *repository.BudRepo
	Settings *repository.SettingRepo
	Cache    *cache.Store
}

type reviewReq struct {
	Rating     int     `json:"rating"`
	Content    *string `json:"content"`
	AromaTags  *string `json:"aroma_tags"`
	EffectTags *string `json:"effect_tags"`
	MediaURL   *string `json:"media_url"`
}

// Create adds the caller's review of a bud.  One review per (user, bud).
func (h *ReviewHandler) Create(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
	}
	budID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req reviewReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Rating < 1 || req.Rating > 5 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rating must be 1-5"})
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	if enabled, err := h.Settings.Get(ctx, "reviews_enabled", "true"); err == nil && enabled != "true" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "reviews are disabled"})
	}
	if _, err := h.Buds.GetByID(ctx, budID); err != nil {
		if errors.Is(err, repository.ErrBudNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "bud not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load failed"})
	}

	v := model.Review{
		BudID:      budID,
		UserID:     uid,
		Rating:     req.Rating,
		Content:    req.Content,
		AromaTags:  req.AromaTags,
		EffectTags: req.EffectTags,
		MediaURL:   req.MediaURL,
	}
	if err := h.Reviews.Create(ctx, &v); err != nil {
		if errors.Is(err, repository.ErrDuplicateReview) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "already reviewed this bud"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	h.Cache.InvalidatePrefix(fmt.Sprintf("bud_%d", budID))
	return c.JSON(http.StatusCreated, v)
}

// ListByBud returns a bud's reviews, newest first.
func (h *ReviewHandler) ListByBud(c echo.Context) error {
	budID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	items, err := h.Reviews.ListByBud(ctx, budID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Mine returns the caller's reviews.
func (h *ReviewHandler) Mine(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	items, err := h.Reviews.ListByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Delete removes the caller's own review.
func (h *ReviewHandler) Delete(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
	}
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	if err := h.Reviews.Delete(ctx, id, uid); err != nil {
		if errors.Is(err, repository.ErrForbidden) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "not your review"})
		}
		return c.JSON(http.StatusNotFound, echo.Map{"error": "review not found"})
	}
	h.Cache.InvalidatePrefix("bud_")
	return c.JSON(http.StatusOK, echo.Map{"status": "deleted"})
}
