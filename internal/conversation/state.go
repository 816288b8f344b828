package conversation

import (
	"fmt"

	"github.com/sudo-init-do/bidroom/internal/models"
)

// Kind tags which prompt a user is answering.
type Kind int

const (
	Idle Kind = iota
	AwaitingRequestText
	AwaitingOfferText
	AwaitingProfileNote
)

// State is the ephemeral per-user context. RequestID is set only for
// AwaitingOfferText and Role only for AwaitingProfileNote.
type State struct {
	Kind      Kind
	RequestID int64
	Role      models.Role
}

func AwaitRequest() State {
	return State{Kind: AwaitingRequestText}
}

func AwaitOffer(requestID int64) State {
	return State{Kind: AwaitingOfferText, RequestID: requestID}
}

func AwaitProfile(role models.Role) State {
	return State{Kind: AwaitingProfileNote, Role: role}
}

func (s State) String() string {
	switch s.Kind {
	case AwaitingRequestText:
		return "awaiting-request-text"
	case AwaitingOfferText:
		return fmt.Sprintf("awaiting-offer-text(%d)", s.RequestID)
	case AwaitingProfileNote:
		return fmt.Sprintf("awaiting-profile-note(%s)", s.Role)
	}
	return "idle"
}
