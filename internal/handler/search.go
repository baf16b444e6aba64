package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kwanjai/budbook/internal/cache"
	"github.com/kwanjai/budbook/internal/repository"
)

// SearchHandler serves catalog search and the autocomplete lists.
type SearchHandler struct {
	Buds  *repository.BudRepo
	Cache *cache.Store
}

// Search filters available buds by name, breeder and category.
func (h *SearchHandler) Search(c echo.Context) error {
	q := repository.BudSearchQuery{
		Name:     strings.TrimSpace(c.QueryParam("name")),
		Breeder:  strings.TrimSpace(c.QueryParam("breeder")),
		Category: strings.ToLower(strings.TrimSpace(c.QueryParam("category"))),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}
	key := fmt.Sprintf("search_q_%s|%s|%s|%d|%d", q.Name, q.Breeder, q.Category, q.Page, q.PageSize)
	if v, ok := h.Cache.Get(key); ok {
		return c.JSON(http.StatusOK, v)
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	items, total, err := h.Buds.Search(ctx, q)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "search failed"})
	}
	resp := echo.Map{"items": items, "total": total, "page": q.Page}
	h.Cache.Set(key, resp, budCacheTTL)
	return c.JSON(http.StatusOK, resp)
}

// StrainNames returns autocomplete suggestions for the given prefix.
func (h *SearchHandler) StrainNames(c echo.Context) error {
	prefix := strings.TrimSpace(c.QueryParam("q"))
	key := "search_names_" + strings.ToLower(prefix)
	if v, ok := h.Cache.Get(key); ok {
		return c.JSON(http.StatusOK, echo.Map{"items": v})
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	names, err := h.Buds.StrainNames(ctx, prefix)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	h.Cache.Set(key, names, 5*time.Minute)
	return c.JSON(http.StatusOK, echo.Map{"items": names})
}

// Breeders returns the known breeder list.
func (h *SearchHandler) Breeders(c echo.Context) error {
	if v, ok := h.Cache.Get("search_breeders"); ok {
		return c.JSON(http.StatusOK, echo.Map{"items": v})
	}
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()
	names, err := h.Buds.Breeders(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	h.Cache.Set("search_breeders", names, 5*time.Minute)
	return c.JSON(http.StatusOK, echo.Map{"items": names})
}
