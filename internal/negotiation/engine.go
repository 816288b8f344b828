package negotiation

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/sudo-init-do/bidroom/internal/models"
	"github.com/sudo-init-do/bidroom/internal/user"
)

// Store is the persistence the engine runs against. *db.Gateway implements it.
type Store interface {
	InsertRequest(ctx context.Context, requesterID int64, content string) (models.Request, error)
	ListOpenRequests(ctx context.Context, limit int) ([]models.Request, error)
	DeleteRequest(ctx context.Context, id int64, authorize func(models.Request) error) error
	InsertOffer(ctx context.Context, o models.Offer) (models.Offer, models.Request, error)
	ResolveOffer(ctx context.Context, offerID int64, accept bool, authorize func(models.Offer, models.Request) error) (models.Offer, models.Request, error)
}

// RoleLookup resolves a user to a role. RoleUnknown means never registered.
type RoleLookup interface {
	RoleOf(ctx context.Context, id int64) (models.Role, error)
}

// Engine owns the request/offer lifecycle.
type Engine struct {
	store    Store
	roles    RoleLookup
	pageSize int
}

func New(store Store, roles RoleLookup, pageSize int) *Engine {
	if pageSize < 1 {
		pageSize = 10
	}
	return &Engine{store: store, roles: roles, pageSize: pageSize}
}

// SubmittedOffer is a stored offer plus who has to hear about it.
type SubmittedOffer struct {
	Offer       models.Offer
	RequesterID int64
}

// Resolution is the outcome of accepting or rejecting an offer.
type Resolution struct {
	Offer   models.Offer
	Request models.Request
}

// =========================
// Requests
// =========================

// CreateRequest stores an open request. Fan-out is the caller's job.
func (e *Engine) CreateRequest(ctx context.Context, requesterID int64, content string) (models.Request, error) {
	if err := e.authorize(ctx, requesterID, user.CapCreateRequest); err != nil {
		return models.Request{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Request{}, ErrInvalidFormat
	}
	r, err := e.store.InsertRequest(ctx, requesterID, content)
	if err != nil {
		return models.Request{}, Classify("create_request", err, "user_id", requesterID)
	}
	return r, nil
}

// ListOpenRequests returns the newest open requests. limit <= 0 uses the configured page size.
func (e *Engine) ListOpenRequests(ctx context.Context, limit int) ([]models.Request, error) {
	if limit <= 0 {
		limit = e.pageSize
	}
	out, err := e.store.ListOpenRequests(ctx, limit)
	if err != nil {
		return nil, Classify("list_open_requests", err)
	}
	return out, nil
}

// DeleteRequest removes a request and its offers. Only the owner or an administrator may.
func (e *Engine) DeleteRequest(ctx context.Context, requestID, actingUserID int64) error {
	role, err := e.roleOf(ctx, actingUserID)
	if err != nil {
		return err
	}
	err = e.store.DeleteRequest(ctx, requestID, func(r models.Request) error {
		if r.RequesterID != actingUserID && !user.HasCapability(role, user.CapResolveAnyOffer) {
			return ErrForbidden
		}
		return nil
	})
	return Classify("delete_request", err, "request_id", requestID, "user_id", actingUserID)
}

// =========================
// Offers
// =========================

// priceFormat matches what NUMERIC(14,2) stores exactly: up to twelve integer
// digits and at most two decimals.
var priceFormat = regexp.MustCompile(`^[0-9]{1,12}(\.[0-9]{1,2})?$`)

// ParseOffer splits "description, price" on the first comma. The description
// must be non-empty and the price a plain decimal greater than zero.
func ParseOffer(text string) (string, float64, error) {
	parts := strings.SplitN(text, ",", 2)
	if len(parts) != 2 {
		return "", 0, ErrInvalidFormat
	}
	desc := strings.TrimSpace(parts[0])
	if desc == "" {
		return "", 0, ErrInvalidFormat
	}
	raw := strings.TrimSpace(parts[1])
	if !priceFormat.MatchString(raw) {
		return "", 0, ErrInvalidFormat
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil || price <= 0 {
		return "", 0, ErrInvalidFormat
	}
	return desc, price, nil
}

// SubmitOffer parses text and stores a pending offer against an open request.
// A closed request yields ErrConflict, a missing one ErrNotFound.
func (e *Engine) SubmitOffer(ctx context.Context, requestID, responderID int64, text string) (SubmittedOffer, error) {
	if err := e.authorize(ctx, responderID, user.CapSubmitOffer); err != nil {
		return SubmittedOffer{}, err
	}
	desc, price, err := ParseOffer(text)
	if err != nil {
		return SubmittedOffer{}, err
	}
	o, parent, err := e.store.InsertOffer(ctx, models.Offer{
		RequestID:   requestID,
		ResponderID: responderID,
		Description: desc,
		Price:       price,
	})
	if err != nil {
		return SubmittedOffer{}, Classify("submit_offer", err, "request_id", requestID, "user_id", responderID)
	}
	return SubmittedOffer{Offer: o, RequesterID: parent.RequesterID}, nil
}

// AcceptOffer marks the offer accepted and closes its request atomically.
// If another offer on the same request won first, it fails with ErrConflict.
func (e *Engine) AcceptOffer(ctx context.Context, offerID, actingUserID int64) (Resolution, error) {
	return e.resolve(ctx, "accept_offer", offerID, actingUserID, true)
}

// RejectOffer marks the offer rejected. The request stays as it is.
func (e *Engine) RejectOffer(ctx context.Context, offerID, actingUserID int64) (Resolution, error) {
	return e.resolve(ctx, "reject_offer", offerID, actingUserID, false)
}

func (e *Engine) resolve(ctx context.Context, op string, offerID, actingUserID int64, accept bool) (Resolution, error) {
	role, err := e.roleOf(ctx, actingUserID)
	if err != nil {
		return Resolution{}, err
	}
	o, r, err := e.store.ResolveOffer(ctx, offerID, accept, func(_ models.Offer, r models.Request) error {
		if r.RequesterID != actingUserID && !user.HasCapability(role, user.CapResolveAnyOffer) {
			return ErrForbidden
		}
		return nil
	})
	if err != nil {
		return Resolution{}, Classify(op, err, "offer_id", offerID, "user_id", actingUserID)
	}
	return Resolution{Offer: o, Request: r}, nil
}

func (e *Engine) roleOf(ctx context.Context, id int64) (models.Role, error) {
	role, err := e.roles.RoleOf(ctx, id)
	if err != nil {
		return models.RoleUnknown, Classify("role_of", err, "user_id", id)
	}
	return role, nil
}

func (e *Engine) authorize(ctx context.Context, id int64, want user.Capability) error {
	role, err := e.roleOf(ctx, id)
	if err != nil {
		return err
	}
	if !user.HasCapability(role, want) {
		return ErrForbidden
	}
	return nil
}
