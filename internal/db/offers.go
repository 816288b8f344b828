package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudo-init-do/bidroom/internal/models"
)

const offerColumns = `id, request_id, responder_id, description, price, status, created_at`

// InsertOffer stores a pending offer against an open request and returns it
// with the parent request. The request row is share-locked so it cannot be
// closed between the status check and the insert.
func (g *Gateway) InsertOffer(ctx context.Context, o models.Offer) (models.Offer, models.Request, error) {
	var (
		created models.Offer
		parent  models.Request
	)
	err := g.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		parent, err = scanRequest(tx.QueryRow(ctx,
			`SELECT `+requestColumns+` FROM requests WHERE id = $1 FOR SHARE`, o.RequestID))
		if err != nil {
			return err
		}
		if parent.Status != models.RequestOpen {
			return ErrRequestClosed
		}
		created, err = scanOffer(tx.QueryRow(ctx, `
            INSERT INTO offers (request_id, responder_id, description, price, status)
            VALUES ($1, $2, $3, $4, 'pending')
            RETURNING `+offerColumns,
			o.RequestID, o.ResponderID, o.Description, o.Price,
		))
		return err
	})
	return created, parent, err
}

// GetOffer returns ErrNotFound if the offer does not exist.
func (g *Gateway) GetOffer(ctx context.Context, id int64) (models.Offer, error) {
	var o models.Offer
	err := g.withConn(ctx, func(conn *pgxpool.Conn) error {
		var err error
		o, err = scanOffer(conn.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, id))
		return err
	})
	return o, err
}

// ResolveOffer accepts or rejects a pending offer in one transaction.
//
// The parent request is locked first, so two acceptances on the same request
// serialize and the loser sees the request already closed. authorize runs
// inside the transaction against the locked rows. Accepting also closes the
// request; rejecting leaves it untouched.
func (g *Gateway) ResolveOffer(ctx context.Context, offerID int64, accept bool, authorize func(models.Offer, models.Request) error) (models.Offer, models.Request, error) {
	var (
		offer  models.Offer
		parent models.Request
	)
	err := g.withTx(ctx, func(tx pgx.Tx) error {
		var requestID int64
		if err := tx.QueryRow(ctx, `SELECT request_id FROM offers WHERE id = $1`, offerID).Scan(&requestID); err != nil {
			return err
		}
		var err error
		parent, err = scanRequest(tx.QueryRow(ctx,
			`SELECT `+requestColumns+` FROM requests WHERE id = $1 FOR UPDATE`, requestID))
		if err != nil {
			return err
		}
		offer, err = scanOffer(tx.QueryRow(ctx,
			`SELECT `+offerColumns+` FROM offers WHERE id = $1 FOR UPDATE`, offerID))
		if err != nil {
			return err
		}
		if err := authorize(offer, parent); err != nil {
			return err
		}

		if accept && parent.Status != models.RequestOpen {
			return ErrRequestClosed
		}
		if offer.Status != models.OfferPending {
			return ErrOfferResolved
		}

		status := models.OfferRejected
		if accept {
			status = models.OfferAccepted
		}
		if _, err := tx.Exec(ctx,
			`UPDATE offers SET status = $1, updated_at = NOW() WHERE id = $2`, status, offerID); err != nil {
			return err
		}
		offer.Status = status

		if accept {
			ct, err := tx.Exec(ctx,
				`UPDATE requests SET status = 'closed' WHERE id = $1 AND status = 'open'`, parent.ID)
			if err != nil {
				return err
			}
			if ct.RowsAffected() == 0 {
				return ErrRequestClosed
			}
			parent.Status = models.RequestClosed
		}
		return nil
	})
	return offer, parent, err
}

func scanOffer(row pgx.Row) (models.Offer, error) {
	var o models.Offer
	err := row.Scan(&o.ID, &o.RequestID, &o.ResponderID, &o.Description, &o.Price, &o.Status, &o.CreatedAt)
	return o, err
}
