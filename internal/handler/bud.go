package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/kwanjai/budbook/internal/cache"
	"github.com/kwanjai/budbook/internal/middleware"
	"github.com/kwanjai/budbook/internal/model"
	"github.com/kwanjai/budbook/internal/repository"
)

// budCacheTTL is the short window for catalog reads.  Writers invalidate
// eagerly, so the TTL only bounds staleness across instances.
const budCacheTTL = 30 * time.Second

// BudHandler covers catalog CRUD and image upload.
type BudHandler struct {
	Buds     *repository.BudRepo
	Reviews  *repository.ReviewRepo
	Cache    *cache.Store
	MediaDir string
}

type budReq struct {
	StrainNameTH *string    `json:"strain_name_th"`
	StrainNameEN string     `json:"strain_name_en"`
	Breeder      *string    `json:"breeder"`
	Category     string     `json:"category"`
	THC          *float64   `json:"thc"`
	CBD          *float64   `json:"cbd"`
	Status       string     `json:"status"`
	TestLab      *string    `json:"test_lab"`
	TestedAt     *time.Time `json:"tested_at"`
}

func (r budReq) validate() string {
	if strings.TrimSpace(r.StrainNameEN) == "" {
		return "strain_name_en required"
	}
	if !model.ValidCategory(r.Category) {
		return "category must be indica, sativa or hybrid"
	}
	if r.THC != nil && (*r.THC < 0 || *r.THC > 100) {
		return "thc must be 0-100"
	}
	if r.CBD != nil && (*r.CBD < 0 || *r.CBD > 100) {
		return "cbd must be 0-100"
	}
	if r.Status != "" && r.Status != model.BudAvailable && r.Status != model.BudSoldOut {
		return "unknown status"
	}
	return ""
}

// Create adds a bud owned by the caller.
func (h *BudHandler) Create(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
	}
	var req budReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Category = strings.ToLower(strings.TrimSpace(req.Category))
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	if req.Status == "" {
		req.Status = model.BudAvailable
	}

	b := model.Bud{
		StrainNameTH: req.StrainNameTH,
		StrainNameEN: strings.TrimSpace(req.StrainNameEN),
		Breeder:      req.Breeder,
		Category:     req.Category,
		THC:          req.THC,
		CBD:          req.CBD,
		Status:       req.Status,
		TestLab:      req.TestLab,
		TestedAt:     req.TestedAt,
		CreatedBy:    uid,
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	if err := h.Buds.Create(ctx, &b); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	h.invalidateOwner(uid)
	return c.JSON(http.StatusCreated, b)
}

// Mine lists the caller's own buds, any status.
func (h *BudHandler) Mine(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
	}
	key := fmt.Sprintf("user_buds_%d", uid)
	if v, ok := h.Cache.Get(key); ok {
		return c.JSON(http.StatusOK, echo.Map{"items": v})
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	items, err := h.Buds.ListByOwner(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	h.Cache.Set(key, items, budCacheTTL)
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// List returns a page of available buds (public browse).
func (h *BudHandler) List(c echo.Context) error {
	page := queryInt(c, "page", 1)
	size := queryInt(c, "page_size", 20)
	if size < 1 || size > 100 {
		size = 20
	}
	key := fmt.Sprintf("search_list_p%d_s%d", page, size)
	if v, ok := h.Cache.Get(key); ok {
		return c.JSON(http.StatusOK, echo.Map{"items": v})
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	items, err := h.Buds.ListAvailable(ctx, page, size)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	h.Cache.Set(key, items, budCacheTTL)
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

type budDetail struct {
	model.Bud
	AvgRating   float64 `json:"avg_rating"`
	ReviewCount int64   `json:"review_count"`
}

// Get returns one bud with its aggregated rating.
func (h *BudHandler) Get(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	key := fmt.Sprintf("bud_%d", id)
	if v, ok := h.Cache.Get(key); ok {
		return c.JSON(http.StatusOK, v)
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	b, err := h.Buds.GetByID(ctx, id)
	if errors.Is(err, repository.ErrBudNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "bud not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load failed"})
	}
	avg, n, err := h.Reviews.AverageRating(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load failed"})
	}
	detail := budDetail{Bud: b, AvgRating: avg, ReviewCount: n}
	h.Cache.Set(key, detail, budCacheTTL)
	return c.JSON(http.StatusOK, detail)
}

// Update rewrites an owned bud.
func (h *BudHandler) Update(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
	}
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req budReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Category = strings.ToLower(strings.TrimSpace(req.Category))
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	if req.Status == "" {
		req.Status = model.BudAvailable
	}

	b := model.Bud{
		ID:           id,
		StrainNameTH: req.StrainNameTH,
		StrainNameEN: strings.TrimSpace(req.StrainNameEN),
		Breeder:      req.Breeder,
		Category:     req.Category,
		THC:          req.THC,
		CBD:          req.CBD,
		Status:       req.Status,
		TestLab:      req.TestLab,
		TestedAt:     req.TestedAt,
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	if err := h.Buds.Update(ctx, &b, uid); err != nil {
		return h.mutationError(c, err)
	}
	h.invalidateBud(uid, id)
	updated, err := h.Buds.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reload failed"})
	}
	return c.JSON(http.StatusOK, updated)
}

// imageExts whitelists upload types; certificates may also be PDFs.
var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

// UploadImage stores a multipart file into one of the fixed slots
// (image1..image4, cert1, cert2) and records its public path.
func (h *BudHandler) UploadImage(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
	}
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	slot := c.Param("slot")

	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file required"})
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !imageExts[ext] && !(strings.HasPrefix(slot, "cert") && ext == ".pdf") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unsupported file type"})
	}

	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "read upload failed"})
	}
	defer src.Close()

	if err := os.MkdirAll(h.MediaDir, 0o755); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store failed"})
	}
	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(h.MediaDir, name))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store failed"})
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store failed"})
	}

	path := "/media/" + name
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	if err := h.Buds.SetImage(ctx, id, uid, slot, path); err != nil {
		_ = os.Remove(filepath.Join(h.MediaDir, name))
		if strings.Contains(err.Error(), "unknown image slot") {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown image slot"})
		}
		return h.mutationError(c, err)
	}
	h.invalidateBud(uid, id)
	return c.JSON(http.StatusOK, echo.Map{"slot": slot, "path": path})
}

// Delete removes an owned bud.
func (h *BudHandler) Delete(c echo.Context) error {
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
	if err := h.Buds.Delete(ctx, id, uid); err != nil {
		return h.mutationError(c, err)
	}
	h.invalidateBud(uid, id)
	return c.JSON(http.StatusOK, echo.Map{"status": "deleted"})
}

func (h *BudHandler) mutationError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrBudNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "bud not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not the owner"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "operation failed"})
}

func (h *BudHandler) invalidateOwner(uid int64) {
	h.Cache.InvalidatePrefix(fmt.Sprintf("user_buds_%d", uid))
	h.Cache.InvalidatePrefix("search_")
}

func (h *BudHandler) invalidateBud(uid, budID int64) {
	h.invalidateOwner(uid)
	h.Cache.InvalidatePrefix(fmt.Sprintf("bud_%d", budID))
}
