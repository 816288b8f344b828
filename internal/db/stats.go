package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudo-init-do/bidroom/internal/models"
)

// Stats counts users, requests by status and offers by status.
func (g *Gateway) Stats(ctx context.Context) (models.Stats, error) {
	var s models.Stats
	err := g.withConn(ctx, func(conn *pgxpool.Conn) error {
		return conn.QueryRow(ctx, `
            SELECT
                (SELECT COUNT(*) FROM users),
                (SELECT COUNT(*) FROM requests WHERE status = 'open'),
                (SELECT COUNT(*) FROM requests WHERE status = 'closed'),
                (SELECT COUNT(*) FROM offers WHERE status = 'pending'),
                (SELECT COUNT(*) FROM offers WHERE status = 'accepted'),
                (SELECT COUNT(*) FROM offers WHERE status = 'rejected')`,
		).Scan(&s.Users, &s.OpenRequests, &s.ClosedRequests, &s.PendingOffers, &s.AcceptedOffers, &s.RejectedOffers)
	})
	return s, err
}
