package user

import (
	"sort"

	"github.com/sudo-init-do/bidroom/internal/models"
)

// Capability is an action a role may be allowed to perform.
type Capability string

const (
	CapCreateRequest  Capability = "create-request"
	CapBrowseRequests Capability = "browse-requests"
	CapSubmitOffer    Capability = "submit-offer"
	// CapResolveAnyOffer lets a role act on requests it does not own.
	CapResolveAnyOffer Capability = "resolve-any-offer"
	CapManageRoles     Capability = "manage-roles"
	CapListUsers       Capability = "list-users"
)

var capabilities = map[models.Role]map[Capability]bool{
	models.RoleRequester: {
		CapCreateRequest: true,
	},
	models.RoleResponder: {
		CapBrowseRequests: true,
		CapSubmitOffer:    true,
	},
	models.RoleAdmin: {
		CapCreateRequest:   true,
		CapBrowseRequests:  true,
		CapSubmitOffer:     true,
		CapResolveAnyOffer: true,
		CapManageRoles:     true,
		CapListUsers:       true,
	},
}

// HasCapability reports whether role may perform c. RoleUnknown may do nothing.
func HasCapability(role models.Role, c Capability) bool {
	return capabilities[role][c]
}

// CapabilitiesOf lists the capabilities of role in a stable order.
func CapabilitiesOf(role models.Role) []Capability {
	out := make([]Capability, 0, len(capabilities[role]))
	for c := range capabilities[role] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
