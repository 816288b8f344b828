package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the users, requests and offers tables if missing.
// Safe to call on every start; run it before serving any negotiation.
func (g *Gateway) EnsureSchema(ctx context.Context) error {
	err := g.withConn(ctx, func(conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, schema)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	slog.Info("schema ensured", "tables", "users,requests,offers")
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id BIGINT PRIMARY KEY,
    display_name TEXT NOT NULL DEFAULT '',
    handle TEXT NOT NULL DEFAULT '',
    role TEXT NOT NULL CHECK (role IN ('requester', 'responder', 'admin')),
    note TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);

CREATE TABLE IF NOT EXISTS requests (
    id BIGSERIAL PRIMARY KEY,
    requester_id BIGINT NOT NULL REFERENCES users(id),
    content TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'closed')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_requests_status_created ON requests(status, created_at DESC);

CREATE TABLE IF NOT EXISTS offers (
    id BIGSERIAL PRIMARY KEY,
    request_id BIGINT NOT NULL REFERENCES requests(id) ON DELETE CASCADE,
    responder_id BIGINT NOT NULL REFERENCES users(id),
    description TEXT NOT NULL,
    price NUMERIC(14, 2) NOT NULL CHECK (price > 0),
    status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'accepted', 'rejected')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_offers_request ON offers(request_id);
CREATE UNIQUE INDEX IF NOT EXISTS uq_offers_one_accepted ON offers(request_id) WHERE status = 'accepted';
`
