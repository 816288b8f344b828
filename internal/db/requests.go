package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudo-init-do/bidroom/internal/models"
)

const requestColumns = `id, requester_id, content, status, created_at`

// InsertRequest persists a new open request.
func (g *Gateway) InsertRequest(ctx context.Context, requesterID int64, content string) (models.Request, error) {
	var r models.Request
	err := g.withConn(ctx, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `
            INSERT INTO requests (requester_id, content, status)
            VALUES ($1, $2, 'open')
            RETURNING `+requestColumns,
			requesterID, content,
		)
		var err error
		r, err = scanRequest(row)
		return err
	})
	return r, err
}

// GetRequest returns ErrNotFound if the request does not exist.
func (g *Gateway) GetRequest(ctx context.Context, id int64) (models.Request, error) {
	var r models.Request
	err := g.withConn(ctx, func(conn *pgxpool.Conn) error {
		var err error
		r, err = scanRequest(conn.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = $1`, id))
		return err
	})
	return r, err
}

// ListOpenRequests returns at most limit open requests, newest first.
func (g *Gateway) ListOpenRequests(ctx context.Context, limit int) ([]models.Request, error) {
	var out []models.Request
	err := g.withConn(ctx, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, `
            SELECT `+requestColumns+` FROM requests
            WHERE status = 'open'
            ORDER BY created_at DESC, id DESC
            LIMIT $1`, limit)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Request, error) {
			return scanRequest(row)
		})
		return err
	})
	return out, err
}

// DeleteRequest locks the request, lets authorize inspect it, and deletes it
// together with its offers.
func (g *Gateway) DeleteRequest(ctx context.Context, id int64, authorize func(models.Request) error) error {
	return g.withTx(ctx, func(tx pgx.Tx) error {
		r, err := scanRequest(tx.QueryRow(ctx,
			`SELECT `+requestColumns+` FROM requests WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if err := authorize(r); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM requests WHERE id = $1`, id)
		return err
	})
}

func scanRequest(row pgx.Row) (models.Request, error) {
	var r models.Request
	err := row.Scan(&r.ID, &r.RequesterID, &r.Content, &r.Status, &r.CreatedAt)
	return r, err
}
