package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sudo-init-do/bidroom/internal/alerts"
	"github.com/sudo-init-do/bidroom/internal/models"
	"github.com/sudo-init-do/bidroom/internal/negotiation"
	"github.com/sudo-init-do/bidroom/internal/user"
)

// EventKind distinguishes free text from button presses.
type EventKind string

const (
	KindText   EventKind = "text"
	KindAction EventKind = "action"
)

// Event is one inbound message from the transport.
type Event struct {
	UserID      int64
	Kind        EventKind
	Payload     string
	DisplayName string
	Handle      string
}

// Engine is the negotiation surface the router drives.
type Engine interface {
	CreateRequest(ctx context.Context, requesterID int64, content string) (models.Request, error)
	ListOpenRequests(ctx context.Context, limit int) ([]models.Request, error)
	SubmitOffer(ctx context.Context, requestID, responderID int64, text string) (negotiation.SubmittedOffer, error)
	AcceptOffer(ctx context.Context, offerID, actingUserID int64) (negotiation.Resolution, error)
	RejectOffer(ctx context.Context, offerID, actingUserID int64) (negotiation.Resolution, error)
	DeleteRequest(ctx context.Context, requestID, actingUserID int64) error
}

// Registry is the role registry surface the router needs.
type Registry interface {
	RoleOf(ctx context.Context, id int64) (models.Role, error)
	UpsertUser(ctx context.Context, u models.User) error
	AssignRole(ctx context.Context, id int64, role models.Role) error
	ListUsers(ctx context.Context) ([]models.User, error)
	IsAdminID(id int64) bool
}

// Notifier emits outbound notifications.
type Notifier interface {
	FanOutNewRequest(ctx context.Context, req models.Request) (int, error)
	NotifyRequester(ctx context.Context, requesterID int64, offer models.Offer) error
	NotifyResponder(ctx context.Context, responderID int64, out alerts.Outcome) error
	Reply(ctx context.Context, userID int64, text string, actions ...alerts.Action) error
}

// Router resolves inbound events against the per-user state and calls the engine.
type Router struct {
	states   *Store
	engine   Engine
	registry Registry
	notify   Notifier
}

func NewRouter(states *Store, engine Engine, registry Registry, notify Notifier) *Router {
	return &Router{states: states, engine: engine, registry: registry, notify: notify}
}

// HandleEvent processes ev. Events of one user are handled one at a time.
// The only error returned is for a malformed event; everything else is
// answered to the user.
func (r *Router) HandleEvent(ctx context.Context, ev Event) error {
	if ev.Kind != KindText && ev.Kind != KindAction {
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}

	unlock := r.states.Lock(ev.UserID)
	defer unlock()

	role, err := r.registry.RoleOf(ctx, ev.UserID)
	if err != nil {
		r.fail(ctx, ev.UserID, negotiation.Classify("role_of", err, "user_id", ev.UserID))
		return nil
	}
	if r.registry.IsAdminID(ev.UserID) && role != models.RoleAdmin {
		admin := models.User{ID: ev.UserID, DisplayName: ev.DisplayName, Handle: ev.Handle, Role: models.RoleAdmin, Note: "Admin"}
		if err := r.registry.UpsertUser(ctx, admin); err != nil {
			r.fail(ctx, ev.UserID, negotiation.Classify("seed_admin", err, "user_id", ev.UserID))
			return nil
		}
		role = models.RoleAdmin
	}

	if ev.Kind == KindText {
		if verb, ok := textCommand(ev.Payload); ok {
			r.handleAction(ctx, ev, role, verb, "")
			return nil
		}
		r.handleText(ctx, ev, role)
		return nil
	}

	verb, arg, _ := strings.Cut(strings.TrimSpace(ev.Payload), ":")
	r.handleAction(ctx, ev, role, verb, arg)
	return nil
}

func textCommand(text string) (string, bool) {
	switch strings.TrimSpace(text) {
	case "/start", "/menu":
		return alerts.VerbStart, true
	case "/help":
		return alerts.VerbHelp, true
	case "/cancel":
		return alerts.VerbCancel, true
	}
	return "", false
}

// =========================
// Free text
// =========================

func (r *Router) handleText(ctx context.Context, ev Event, role models.Role) {
	// Cleared before acting so a bad reply can never wedge the user in the same prompt.
	st := r.states.Take(ev.UserID)
	switch st.Kind {
	case AwaitingRequestText:
		r.createRequest(ctx, ev)
	case AwaitingOfferText:
		r.submitOffer(ctx, ev, st.RequestID)
	case AwaitingProfileNote:
		r.completeRegistration(ctx, ev, st.Role)
	default:
		if role == models.RoleUnknown {
			r.promptRegistration(ctx, ev.UserID)
			return
		}
		r.reply(ctx, ev.UserID, "I didn't understand that. Pick an action from the menu.", menuFor(role)...)
	}
}

func (r *Router) createRequest(ctx context.Context, ev Event) {
	req, err := r.engine.CreateRequest(ctx, ev.UserID, ev.Payload)
	if errors.Is(err, negotiation.ErrInvalidFormat) {
		r.reply(ctx, ev.UserID, "The request text can't be empty.",
			alerts.Action{Label: "Create request", Data: alerts.VerbCreateRequest})
		return
	}
	if err != nil {
		r.fail(ctx, ev.UserID, err)
		return
	}
	delivered, err := r.notify.FanOutNewRequest(ctx, req)
	if err != nil {
		slog.Error("fan-out failed", "request_id", req.ID, "error", err)
		r.reply(ctx, ev.UserID, fmt.Sprintf("Request #%d saved, but responders could not be notified right now.", req.ID))
		return
	}
	r.reply(ctx, ev.UserID, fmt.Sprintf("Request #%d sent to %d responder(s)!", req.ID, delivered))
}

func (r *Router) submitOffer(ctx context.Context, ev Event, requestID int64) {
	sub, err := r.engine.SubmitOffer(ctx, requestID, ev.UserID, ev.Payload)
	if errors.Is(err, negotiation.ErrInvalidFormat) {
		r.reply(ctx, ev.UserID, negotiation.UserMessage(err),
			alerts.NewAction("Try again", alerts.VerbSubmitOffer, requestID))
		return
	}
	if err != nil {
		r.fail(ctx, ev.UserID, err)
		return
	}
	// Delivery failures are logged by the notifier; the offer stays stored.
	_ = r.notify.NotifyRequester(ctx, sub.RequesterID, sub.Offer)
	r.reply(ctx, ev.UserID, fmt.Sprintf("Offer #%d sent to the requester!", sub.Offer.ID))
}

func (r *Router) completeRegistration(ctx context.Context, ev Event, role models.Role) {
	note := strings.TrimSpace(ev.Payload)
	if note == "" {
		r.states.Set(ev.UserID, AwaitProfile(role))
		r.reply(ctx, ev.UserID, profilePrompt(role))
		return
	}
	u := models.User{ID: ev.UserID, DisplayName: ev.DisplayName, Handle: ev.Handle, Role: role, Note: note}
	if err := r.registry.UpsertUser(ctx, u); err != nil {
		r.fail(ctx, ev.UserID, negotiation.Classify("register", err, "user_id", ev.UserID))
		return
	}
	r.reply(ctx, ev.UserID, fmt.Sprintf("Registration complete. Your role: %s.", role), menuFor(role)...)
}

// =========================
// Actions
// =========================

func (r *Router) handleAction(ctx context.Context, ev Event, role models.Role, verb, arg string) {
	uid := ev.UserID
	if verb == alerts.VerbCancel {
		r.states.Clear(uid)
	}
	if role == models.RoleUnknown && verb != alerts.VerbRegister {
		r.promptRegistration(ctx, uid)
		return
	}

	switch verb {
	case alerts.VerbStart:
		r.states.Clear(uid)
		r.reply(ctx, uid, "Main menu:", menuFor(role)...)

	case alerts.VerbCancel:
		r.reply(ctx, uid, "Cancelled.", menuFor(role)...)

	case alerts.VerbHelp:
		r.reply(ctx, uid, helpText(role))

	case alerts.VerbRegister:
		r.register(ctx, uid, role, arg)

	case alerts.VerbCreateRequest:
		if !r.allowed(ctx, uid, role, user.CapCreateRequest) {
			return
		}
		r.states.Set(uid, AwaitRequest())
		r.reply(ctx, uid, "Enter the full request text in one message:")

	case alerts.VerbViewRequests:
		if !r.allowed(ctx, uid, role, user.CapBrowseRequests) {
			return
		}
		r.viewRequests(ctx, uid)

	case alerts.VerbSubmitOffer:
		id, ok := r.idArg(ctx, uid, arg)
		if !ok || !r.allowed(ctx, uid, role, user.CapSubmitOffer) {
			return
		}
		r.states.Set(uid, AwaitOffer(id))
		r.reply(ctx, uid, fmt.Sprintf("Enter your offer for request #%d as: description, price", id))

	case alerts.VerbAcceptOffer, alerts.VerbRejectOffer:
		id, ok := r.idArg(ctx, uid, arg)
		if !ok {
			return
		}
		r.resolveOffer(ctx, uid, id, verb == alerts.VerbAcceptOffer)

	case alerts.VerbDeleteRequest:
		id, ok := r.idArg(ctx, uid, arg)
		if !ok {
			return
		}
		if err := r.engine.DeleteRequest(ctx, id, uid); err != nil {
			r.fail(ctx, uid, err)
			return
		}
		r.reply(ctx, uid, fmt.Sprintf("Request #%d deleted.", id))

	case alerts.VerbListUsers:
		if !r.allowed(ctx, uid, role, user.CapListUsers) {
			return
		}
		r.listUsers(ctx, uid)

	case alerts.VerbSetRole:
		if !r.allowed(ctx, uid, role, user.CapManageRoles) {
			return
		}
		r.setRole(ctx, uid, arg)

	default:
		r.reply(ctx, uid, "Unknown action.", menuFor(role)...)
	}
}

func (r *Router) register(ctx context.Context, uid int64, current models.Role, arg string) {
	if current != models.RoleUnknown {
		r.reply(ctx, uid, fmt.Sprintf("You are already registered as %s.", current), menuFor(current)...)
		return
	}
	role := models.ParseRole(arg)
	if role != models.RoleRequester && role != models.RoleResponder {
		r.promptRegistration(ctx, uid)
		return
	}
	r.states.Set(uid, AwaitProfile(role))
	r.reply(ctx, uid, profilePrompt(role))
}

func (r *Router) viewRequests(ctx context.Context, uid int64) {
	reqs, err := r.engine.ListOpenRequests(ctx, 0)
	if err != nil {
		r.fail(ctx, uid, err)
		return
	}
	if len(reqs) == 0 {
		r.reply(ctx, uid, "No open requests right now.")
		return
	}
	var b strings.Builder
	actions := make([]alerts.Action, 0, len(reqs))
	b.WriteString("Open requests:")
	for _, req := range reqs {
		fmt.Fprintf(&b, "\n#%d: %s", req.ID, req.Content)
		actions = append(actions, alerts.NewAction(fmt.Sprintf("Offer on #%d", req.ID), alerts.VerbSubmitOffer, req.ID))
	}
	r.reply(ctx, uid, b.String(), actions...)
}

func (r *Router) resolveOffer(ctx context.Context, uid, offerID int64, accept bool) {
	var (
		res negotiation.Resolution
		err error
	)
	if accept {
		res, err = r.engine.AcceptOffer(ctx, offerID, uid)
	} else {
		res, err = r.engine.RejectOffer(ctx, offerID, uid)
	}
	if err != nil {
		r.fail(ctx, uid, err)
		return
	}
	_ = r.notify.NotifyResponder(ctx, res.Offer.ResponderID, alerts.Outcome{
		OfferID:   res.Offer.ID,
		RequestID: res.Request.ID,
		Accepted:  accept,
	})
	if accept {
		r.reply(ctx, uid, fmt.Sprintf("Offer #%d accepted. Request #%d is now closed.", res.Offer.ID, res.Request.ID))
		return
	}
	r.reply(ctx, uid, fmt.Sprintf("Offer #%d rejected.", res.Offer.ID))
}

func (r *Router) listUsers(ctx context.Context, uid int64) {
	users, err := r.registry.ListUsers(ctx)
	if err != nil {
		r.fail(ctx, uid, negotiation.Classify("list_users", err))
		return
	}
	if len(users) == 0 {
		r.reply(ctx, uid, "No users.")
		return
	}
	lines := make([]string, 0, len(users))
	for _, u := range users {
		lines = append(lines, fmt.Sprintf("%d | %s | %s | %s", u.ID, u.Handle, u.Role, u.Note))
	}
	r.reply(ctx, uid, strings.Join(lines, "\n"))
}

// setRole expects "<user id>=<role>".
func (r *Router) setRole(ctx context.Context, uid int64, arg string) {
	rawID, rawRole, _ := strings.Cut(arg, "=")
	target, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	role := models.ParseRole(strings.TrimSpace(rawRole))
	if err != nil || role == models.RoleUnknown {
		r.reply(ctx, uid, "Invalid format. Use: set-role:<user id>=<requester|responder|admin>")
		return
	}
	if err := r.registry.AssignRole(ctx, target, role); err != nil {
		r.fail(ctx, uid, negotiation.Classify("assign_role", err, "target_id", target))
		return
	}
	r.reply(ctx, uid, fmt.Sprintf("User %d is now %s.", target, role))
}

// =========================
// Helpers
// =========================

func (r *Router) allowed(ctx context.Context, uid int64, role models.Role, c user.Capability) bool {
	if user.HasCapability(role, c) {
		return true
	}
	r.fail(ctx, uid, negotiation.ErrForbidden)
	return false
}

func (r *Router) idArg(ctx context.Context, uid int64, arg string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		r.reply(ctx, uid, "Invalid action.")
		return 0, false
	}
	return id, true
}

func (r *Router) promptRegistration(ctx context.Context, uid int64) {
	r.reply(ctx, uid, "Choose your role:",
		alerts.Action{Label: "Requester", Data: alerts.VerbRegister + ":" + string(models.RoleRequester)},
		alerts.Action{Label: "Responder", Data: alerts.VerbRegister + ":" + string(models.RoleResponder)},
	)
}

func (r *Router) fail(ctx context.Context, uid int64, err error) {
	r.reply(ctx, uid, negotiation.UserMessage(err))
}

func (r *Router) reply(ctx context.Context, uid int64, text string, actions ...alerts.Action) {
	// Failures are logged by the notifier and the user can retry.
	_ = r.notify.Reply(ctx, uid, text, actions...)
}

func profilePrompt(role models.Role) string {
	if role == models.RoleResponder {
		return "Enter your company name:"
	}
	return "Enter your name:"
}

func menuFor(role models.Role) []alerts.Action {
	help := alerts.Action{Label: "Help", Data: alerts.VerbHelp}
	switch role {
	case models.RoleRequester:
		return []alerts.Action{{Label: "Create request", Data: alerts.VerbCreateRequest}, help}
	case models.RoleResponder:
		return []alerts.Action{{Label: "View requests", Data: alerts.VerbViewRequests}, help}
	case models.RoleAdmin:
		return []alerts.Action{
			{Label: "Create request", Data: alerts.VerbCreateRequest},
			{Label: "View requests", Data: alerts.VerbViewRequests},
			{Label: "List users", Data: alerts.VerbListUsers},
			help,
		}
	}
	return nil
}

func helpText(role models.Role) string {
	switch role {
	case models.RoleRequester:
		return "Requester:\n- Create a request with 'Create request'.\n- Accept or reject the offers you receive."
	case models.RoleResponder:
		return "Responder:\n- Browse open requests with 'View requests'.\n- Make an offer as: description, price."
	case models.RoleAdmin:
		return "Administrator:\n- Everything requesters and responders can do.\n- 'List users' shows everyone; set-role:<id>=<role> reassigns a role."
	}
	return "Choose an action from the menu."
}
