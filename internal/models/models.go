package models

import "time"

// Role is the part a user plays in a negotiation.
type Role string

const (
	RoleUnknown   Role = ""
	RoleRequester Role = "requester"
	RoleResponder Role = "responder"
	RoleAdmin     Role = "admin"
)

// ParseRole accepts the stored role names. Anything else is RoleUnknown.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleRequester, RoleResponder, RoleAdmin:
		return Role(s)
	}
	return RoleUnknown
}

// Request statuses
const (
	RequestOpen   = "open"
	RequestClosed = "closed"
)

// Offer statuses
const (
	OfferPending  = "pending"
	OfferAccepted = "accepted"
	OfferRejected = "rejected"
)

// User is created on first contact and never deleted.
type User struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"display_name"`
	Handle      string    `json:"handle,omitempty"`
	Role        Role      `json:"role"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Request is posted by a requester and fanned out to responders.
type Request struct {
	ID          int64     `json:"id"`
	RequesterID int64     `json:"requester_id"`
	Content     string    `json:"content"`
	Status      string    `json:"status"` // open, closed
	CreatedAt   time.Time `json:"created_at"`
}

// Offer is a responder's priced answer to a request.
type Offer struct {
	ID          int64     `json:"id"`
	RequestID   int64     `json:"request_id"`
	ResponderID int64     `json:"responder_id"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Status      string    `json:"status"` // pending, accepted, rejected
	CreatedAt   time.Time `json:"created_at"`
}

// Stats are the admin dashboard counters.
type Stats struct {
	Users          int `json:"users"`
	OpenRequests   int `json:"open_requests"`
	ClosedRequests int `json:"closed_requests"`
	PendingOffers  int `json:"pending_offers"`
	AcceptedOffers int `json:"accepted_offers"`
	RejectedOffers int `json:"rejected_offers"`
}
