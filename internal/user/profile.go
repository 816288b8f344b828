package user

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/bidroom/internal/db"
)

type ProfileResponse struct {
	ID           int64        `json:"id"`
	DisplayName  string       `json:"display_name"`
	Handle       string       `json:"handle"`
	Role         string       `json:"role"`
	Note         string       `json:"note"`
	Capabilities []Capability `json:"capabilities"`
}

// Me handles GET /me for the authenticated user.
func (r *Registry) Me(c echo.Context) error {
	userID, ok := c.Get("user_id").(int64)
	if !ok || userID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	u, err := r.GetUser(c.Request().Context(), userID)
	if errors.Is(err, db.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not registered"})
	}
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "service unavailable"})
	}

	return c.JSON(http.StatusOK, ProfileResponse{
		ID:           u.ID,
		DisplayName:  u.DisplayName,
		Handle:       u.Handle,
		Role:         string(u.Role),
		Note:         u.Note,
		Capabilities: CapabilitiesOf(u.Role),
	})
}
