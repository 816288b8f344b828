package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sudo-init-do/bidroom/internal/db"
	"github.com/sudo-init-do/bidroom/internal/models"
)

// Store is the slice of the persistence gateway the registry needs.
type Store interface {
	UpsertUser(ctx context.Context, u models.User) error
	GetUser(ctx context.Context, id int64) (models.User, error)
	SetRole(ctx context.Context, id int64, role models.Role) error
	ListUsers(ctx context.Context) ([]models.User, error)
	ListUserIDsByRole(ctx context.Context, role models.Role) ([]int64, error)
}

// RoleChangeFunc is called after a registered user's role changed.
type RoleChangeFunc func(ctx context.Context, userID int64, from, to models.Role)

// Registry resolves user identifiers to roles and keeps profile metadata.
type Registry struct {
	store  Store
	admins map[int64]bool

	mu       sync.RWMutex
	onChange []RoleChangeFunc
}

func NewRegistry(store Store, adminIDs map[int64]bool) *Registry {
	if adminIDs == nil {
		adminIDs = map[int64]bool{}
	}
	return &Registry{store: store, admins: adminIDs}
}

// OnRoleChange registers fn to run whenever a role actually changes.
func (r *Registry) OnRoleChange(fn RoleChangeFunc) {
	r.mu.Lock()
	r.onChange = append(r.onChange, fn)
	r.mu.Unlock()
}

// IsAdminID reports whether id is in the configured administrator set.
func (r *Registry) IsAdminID(id int64) bool {
	return r.admins[id]
}

// UpsertUser registers u or overwrites its metadata and role.
func (r *Registry) UpsertUser(ctx context.Context, u models.User) error {
	if u.Role == models.RoleUnknown {
		return fmt.Errorf("upsert user %d: role is required", u.ID)
	}
	prev, err := r.RoleOf(ctx, u.ID)
	if err != nil {
		return err
	}
	if err := r.store.UpsertUser(ctx, u); err != nil {
		return err
	}
	slog.Info("user registered", "user_id", u.ID, "role", u.Role)
	r.roleChanged(ctx, u.ID, prev, u.Role)
	return nil
}

// AssignRole changes the role of an existing user. Callers check that the
// acting user holds CapManageRoles.
func (r *Registry) AssignRole(ctx context.Context, id int64, role models.Role) error {
	if role == models.RoleUnknown {
		return fmt.Errorf("assign role to %d: role is required", id)
	}
	prev, err := r.RoleOf(ctx, id)
	if err != nil {
		return err
	}
	if prev == models.RoleUnknown {
		return db.ErrNotFound
	}
	if err := r.store.SetRole(ctx, id, role); err != nil {
		return err
	}
	slog.Info("role assigned", "user_id", id, "from", prev, "to", role)
	r.roleChanged(ctx, id, prev, role)
	return nil
}

// RoleOf returns RoleUnknown, not an error, for identifiers never seen before.
func (r *Registry) RoleOf(ctx context.Context, id int64) (models.Role, error) {
	u, err := r.store.GetUser(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return models.RoleUnknown, nil
	}
	if err != nil {
		return models.RoleUnknown, err
	}
	return u.Role, nil
}

func (r *Registry) GetUser(ctx context.Context, id int64) (models.User, error) {
	return r.store.GetUser(ctx, id)
}

func (r *Registry) ListUsers(ctx context.Context) ([]models.User, error) {
	return r.store.ListUsers(ctx)
}

// ListResponders returns every user currently holding the responder role.
func (r *Registry) ListResponders(ctx context.Context) ([]int64, error) {
	return r.store.ListUserIDsByRole(ctx, models.RoleResponder)
}

// SeedAdmins makes sure every configured administrator exists with the admin role.
func (r *Registry) SeedAdmins(ctx context.Context) error {
	for id := range r.admins {
		role, err := r.RoleOf(ctx, id)
		if err != nil {
			return fmt.Errorf("seed admin %d: %w", id, err)
		}
		switch role {
		case models.RoleAdmin:
			continue
		case models.RoleUnknown:
			err = r.UpsertUser(ctx, models.User{ID: id, Role: models.RoleAdmin, Note: "Admin"})
		default:
			err = r.AssignRole(ctx, id, models.RoleAdmin)
		}
		if err != nil {
			return fmt.Errorf("seed admin %d: %w", id, err)
		}
	}
	return nil
}

func (r *Registry) roleChanged(ctx context.Context, id int64, from, to models.Role) {
	if from == to || from == models.RoleUnknown {
		return
	}
	r.mu.RLock()
	hooks := r.onChange
	r.mu.RUnlock()
	for _, fn := range hooks {
		fn(ctx, id, from, to)
	}
}
