package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/bidroom/internal/utils"
)

// JWTMiddleware authenticates the bearer token and stores the numeric
// "user_id" in the echo context. Browsers cannot set headers on websocket
// upgrades, so a "token" query parameter is accepted too.
func JWTMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				if tok := c.QueryParam("token"); tok != "" {
					header = "Bearer " + tok
				}
			}
			userID, err := utils.ExtractUserIDFromToken(secret, header)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			c.Set("user_id", userID)
			return next(c)
		}
	}
}
