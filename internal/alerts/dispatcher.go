package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/sudo-init-do/bidroom/internal/models"
)

// ResponderLister lists the users a new request is fanned out to.
type ResponderLister interface {
	ListResponders(ctx context.Context) ([]int64, error)
}

// Outcome tells a responder what happened to their offer.
type Outcome struct {
	OfferID   int64
	RequestID int64
	Accepted  bool
}

// Dispatcher turns negotiation results into notifications. A failed delivery
// is logged and never undoes what was already stored.
type Dispatcher struct {
	sender     Sender
	responders ResponderLister
}

func NewDispatcher(sender Sender, responders ResponderLister) *Dispatcher {
	return &Dispatcher{sender: sender, responders: responders}
}

// FanOutNewRequest sends the request to every responder, each delivery on its
// own. It returns how many deliveries succeeded; the error is only for
// failing to list responders.
func (d *Dispatcher) FanOutNewRequest(ctx context.Context, req models.Request) (int, error) {
	ids, err := d.responders.ListResponders(ctx)
	if err != nil {
		return 0, fmt.Errorf("list responders: %w", err)
	}
	delivered := 0
	for _, id := range ids {
		n := Notification{
			UserID:  id,
			Text:    fmt.Sprintf("New request #%d: %s", req.ID, req.Content),
			Actions: []Action{NewAction("Make an offer", VerbSubmitOffer, req.ID)},
		}
		if err := d.sender.Send(ctx, n); err != nil {
			slog.Warn("fan-out delivery failed", "user_id", id, "request_id", req.ID, "error", err)
			continue
		}
		delivered++
	}
	slog.Info("request fanned out", "request_id", req.ID, "responders", len(ids), "delivered", delivered)
	return delivered, nil
}

// NotifyRequester tells the request owner about a new offer, with buttons to accept or reject it.
func (d *Dispatcher) NotifyRequester(ctx context.Context, requesterID int64, offer models.Offer) error {
	n := Notification{
		UserID: requesterID,
		Text: fmt.Sprintf("New offer #%d on request #%d: %s, %s",
			offer.ID, offer.RequestID, offer.Description, FormatPrice(offer.Price)),
		Actions: []Action{
			NewAction("Accept", VerbAcceptOffer, offer.ID),
			NewAction("Reject", VerbRejectOffer, offer.ID),
		},
	}
	return d.deliver(ctx, n, "offer_id", offer.ID)
}

// NotifyResponder tells a responder their offer was accepted or rejected.
func (d *Dispatcher) NotifyResponder(ctx context.Context, responderID int64, out Outcome) error {
	text := fmt.Sprintf("Your offer #%d on request #%d was rejected.", out.OfferID, out.RequestID)
	if out.Accepted {
		text = fmt.Sprintf("Your offer #%d on request #%d was accepted!", out.OfferID, out.RequestID)
	}
	return d.deliver(ctx, Notification{UserID: responderID, Text: text}, "offer_id", out.OfferID)
}

// Reply sends a direct answer to the user who triggered an event.
func (d *Dispatcher) Reply(ctx context.Context, userID int64, text string, actions ...Action) error {
	return d.deliver(ctx, Notification{UserID: userID, Text: text, Actions: actions})
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification, attrs ...any) error {
	if err := d.sender.Send(ctx, n); err != nil {
		slog.Warn("notification delivery failed", append([]any{"user_id", n.UserID, "error", err}, attrs...)...)
		return err
	}
	return nil
}

// FormatPrice renders a price with two decimals.
func FormatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}
