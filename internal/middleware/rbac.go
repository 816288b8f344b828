package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/bidroom/internal/models"
	"github.com/sudo-init-do/bidroom/internal/user"
)

// RoleLookup resolves the authenticated user's role.
type RoleLookup interface {
	RoleOf(ctx context.Context, id int64) (models.Role, error)
}

// RequireCapability lets the request through only if the user's role holds c.
// It stores the resolved "role" in the echo context.
// Usage: route(..., RequireCapability(registry, user.CapManageRoles))
func RequireCapability(roles RoleLookup, c user.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ec echo.Context) error {
			userID, ok := ec.Get("user_id").(int64)
			if !ok || userID == 0 {
				return ec.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			role, err := roles.RoleOf(ec.Request().Context(), userID)
			if err != nil {
				slog.Error("role lookup failed", "user_id", userID, "error", err)
				return ec.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable"})
			}
			if !user.HasCapability(role, c) {
				return ec.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
			}
			ec.Set("role", role)
			return next(ec)
		}
	}
}
