package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudo-init-do/bidroom/internal/models"
)

// UpsertUser inserts the user or overwrites display metadata and role.
func (g *Gateway) UpsertUser(ctx context.Context, u models.User) error {
	return g.withConn(ctx, func(conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `
            INSERT INTO users (id, display_name, handle, role, note)
            VALUES ($1, $2, $3, $4, $5)
            ON CONFLICT (id) DO UPDATE
            SET display_name = $2, handle = $3, role = $4, note = $5, updated_at = NOW()`,
			u.ID, u.DisplayName, u.Handle, string(u.Role), u.Note,
		)
		return err
	})
}

// GetUser returns ErrNotFound for identifiers that never registered.
func (g *Gateway) GetUser(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	err := g.withConn(ctx, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx,
			`SELECT id, display_name, handle, role, note, created_at FROM users WHERE id = $1`, id)
		var err error
		u, err = scanUser(row)
		return err
	})
	return u, err
}

// SetRole changes only the role. Returns ErrNotFound if the user does not exist.
func (g *Gateway) SetRole(ctx context.Context, id int64, role models.Role) error {
	return g.withConn(ctx, func(conn *pgxpool.Conn) error {
		ct, err := conn.Exec(ctx,
			`UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2`, string(role), id)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ListUsers returns every user, newest first.
func (g *Gateway) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := g.withConn(ctx, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT id, display_name, handle, role, note, created_at FROM users ORDER BY created_at DESC`)
		if err != nil {
			return err
		}
		users, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.User, error) {
			return scanUser(row)
		})
		return err
	})
	return users, err
}

// ListUserIDsByRole returns the identifiers of every user holding role.
func (g *Gateway) ListUserIDsByRole(ctx context.Context, role models.Role) ([]int64, error) {
	var ids []int64
	err := g.withConn(ctx, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, `SELECT id FROM users WHERE role = $1 ORDER BY id`, string(role))
		if err != nil {
			return err
		}
		ids, err = pgx.CollectRows(rows, pgx.RowTo[int64])
		return err
	})
	return ids, err
}

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	var role string
	if err := row.Scan(&u.ID, &u.DisplayName, &u.Handle, &role, &u.Note, &u.CreatedAt); err != nil {
		return models.User{}, err
	}
	u.Role = models.ParseRole(role)
	return u, nil
}
