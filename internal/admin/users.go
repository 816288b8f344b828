package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/bidroom/internal/models"
	"github.com/sudo-init-do/bidroom/internal/negotiation"
)

// Registry is what the admin endpoints need from the role registry.
type Registry interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	AssignRole(ctx context.Context, id int64, role models.Role) error
}

// StatsSource reports dashboard counters.
type StatsSource interface {
	Stats(ctx context.Context) (models.Stats, error)
}

type Handler struct {
	registry Registry
	stats    StatsSource
}

func NewHandler(registry Registry, stats StatsSource) *Handler {
	return &Handler{registry: registry, stats: stats}
}

// GET /admin/users
func (h *Handler) ListUsers(c echo.Context) error {
	users, err := h.registry.ListUsers(c.Request().Context())
	if err != nil {
		return errorJSON(c, negotiation.Classify("admin_list_users", err))
	}
	if users == nil {
		users = []models.User{}
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

type setRoleRequest struct {
	Role string `json:"role"`
}

// POST /admin/users/:id/role
func (h *Handler) SetRole(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user id required"})
	}
	var req setRoleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	role := models.ParseRole(req.Role)
	if role == models.RoleUnknown {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be requester, responder or admin"})
	}
	if err := h.registry.AssignRole(c.Request().Context(), id, role); err != nil {
		return errorJSON(c, negotiation.Classify("admin_set_role", err, "target_id", id))
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "role updated", "user_id": id, "role": role})
}

// errorJSON maps the negotiation error taxonomy onto HTTP statuses.
func errorJSON(c echo.Context, err error) error {
	status := http.StatusServiceUnavailable
	switch {
	case errors.Is(err, negotiation.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, negotiation.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, negotiation.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, negotiation.ErrInvalidFormat):
		status = http.StatusBadRequest
	}
	return c.JSON(status, echo.Map{"error": negotiation.UserMessage(err)})
}
