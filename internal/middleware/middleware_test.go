package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/bidroom/internal/models"
	"github.com/sudo-init-do/bidroom/internal/utils"
)

type roleMap map[int64]models.Role

func (m roleMap) RoleOf(_ context.Context, id int64) (models.Role, error) {
	if id == 500 {
		return models.RoleUnknown, errors.New("db down")
	}
	return m[id], nil
}

func newServer(secret string) *echo.Echo {
	e := echo.New()
	roles := roleMap{1: models.RoleRequester, 9: models.RoleAdmin}
	g := e.Group("/admin", JWTMiddleware(secret), AdminGuard(roles))
	g.GET("/ping", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"user_id": c.Get("user_id"), "role": c.Get("role")})
	})
	return e
}

func doGet(e *echo.Echo, path, token string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestAdminGuard(t *testing.T) {
	const secret = "test-secret"
	e := newServer(secret)
	tok := func(id int64) string {
		s, err := utils.IssueToken(secret, id, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		return s
	}

	if code := doGet(e, "/admin/ping", ""); code != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", code)
	}
	if code := doGet(e, "/admin/ping", tok(1)); code != http.StatusForbidden {
		t.Errorf("requester: expected 403, got %d", code)
	}
	if code := doGet(e, "/admin/ping", tok(2)); code != http.StatusForbidden {
		t.Errorf("unregistered: expected 403, got %d", code)
	}
	if code := doGet(e, "/admin/ping", tok(500)); code != http.StatusServiceUnavailable {
		t.Errorf("lookup failure: expected 503, got %d", code)
	}
	if code := doGet(e, "/admin/ping", tok(9)); code != http.StatusOK {
		t.Errorf("admin: expected 200, got %d", code)
	}
	if code := doGet(e, "/admin/ping?token="+tok(9), ""); code != http.StatusOK {
		t.Errorf("query token: expected 200, got %d", code)
	}
}
