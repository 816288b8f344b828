package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/bidroom/internal/db"
	"github.com/sudo-init-do/bidroom/internal/models"
)

type fakeRegistry struct {
	users    []models.User
	assigned map[int64]models.Role
}

func (f *fakeRegistry) ListUsers(context.Context) ([]models.User, error) {
	return f.users, nil
}

func (f *fakeRegistry) AssignRole(_ context.Context, id int64, role models.Role) error {
	for _, u := range f.users {
		if u.ID == id {
			f.assigned[id] = role
			return nil
		}
	}
	return db.ErrNotFound
}

type fakeStats struct {
	stats models.Stats
	err   error
}

func (f fakeStats) Stats(context.Context) (models.Stats, error) {
	return f.stats, f.err
}

func newTestServer(stats fakeStats) (*echo.Echo, *fakeRegistry) {
	reg := &fakeRegistry{
		users:    []models.User{{ID: 1, Handle: "acme", Role: models.RoleRequester}},
		assigned: map[int64]models.Role{},
	}
	h := NewHandler(reg, stats)
	e := echo.New()
	e.GET("/admin/users", h.ListUsers)
	e.POST("/admin/users/:id/role", h.SetRole)
	e.GET("/admin/stats", h.Stats)
	return e, reg
}

func serve(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestListUsers(t *testing.T) {
	e, _ := newTestServer(fakeStats{})
	rec := serve(e, http.MethodGet, "/admin/users", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Users []models.User `json:"users"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Users) != 1 || body.Users[0].ID != 1 {
		t.Errorf("unexpected users %+v", body.Users)
	}
}

func TestSetRole(t *testing.T) {
	e, reg := newTestServer(fakeStats{})

	if rec := serve(e, http.MethodPost, "/admin/users/1/role", `{"role":"responder"}`); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if reg.assigned[1] != models.RoleResponder {
		t.Errorf("role not assigned: %v", reg.assigned)
	}
	if rec := serve(e, http.MethodPost, "/admin/users/1/role", `{"role":"overlord"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad role: expected 400, got %d", rec.Code)
	}
	if rec := serve(e, http.MethodPost, "/admin/users/abc/role", `{"role":"admin"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: expected 400, got %d", rec.Code)
	}
	if rec := serve(e, http.MethodPost, "/admin/users/404/role", `{"role":"admin"}`); rec.Code != http.StatusNotFound {
		t.Errorf("unknown user: expected 404, got %d", rec.Code)
	}
}

func TestStats(t *testing.T) {
	e, _ := newTestServer(fakeStats{stats: models.Stats{Users: 3, OpenRequests: 2}})
	rec := serve(e, http.MethodGet, "/admin/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	e, _ = newTestServer(fakeStats{err: errors.Join(db.ErrUnavailable, errors.New("timeout"))})
	if rec := serve(e, http.MethodGet, "/admin/stats", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}
