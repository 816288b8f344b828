package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/bidroom/internal/negotiation"
)

// GET /admin/stats
func (h *Handler) Stats(c echo.Context) error {
	s, err := h.stats.Stats(c.Request().Context())
	if err != nil {
		return errorJSON(c, negotiation.Classify("admin_stats", err))
	}
	return c.JSON(http.StatusOK, s)
}
