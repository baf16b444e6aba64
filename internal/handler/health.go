package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kwanjai/budbook/internal/database"
)

// HealthHandler reports liveness and database reachability.
type HealthHandler struct {
	DB *database.DB
}

func NewHealthHandler(db *database.DB) *HealthHandler { return &HealthHandler{DB: db} }

// Health answers 200 while the database responds to a ping, 503 otherwise.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := contextWithTimeout(c, 2*time.Second)
	defer cancel()
	if err := h.DB.SQL.PingContext(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded", "error": "database unreachable"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
