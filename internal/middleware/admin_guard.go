package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/bidroom/internal/user"
)

// AdminGuard ensures only users allowed to manage roles reach admin routes.
func AdminGuard(roles RoleLookup) echo.MiddlewareFunc {
	return RequireCapability(roles, user.CapManageRoles)
}
