package messaging

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/bidroom/internal/conversation"
)

// EventHandler consumes inbound events. *conversation.Router implements it.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev conversation.Event) error
}

type EventRequest struct {
	Kind        string `json:"kind"`
	Payload     string `json:"payload"`
	DisplayName string `json:"display_name"`
	Handle      string `json:"handle"`
}

// PostEvent handles POST /events. Replies go out through the socket hub, so
// the response only acknowledges receipt.
func PostEvent(h EventHandler) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := c.Get("user_id").(int64)
		if !ok || userID == 0 {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}

		var req EventRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
		}
		kind := conversation.EventKind(strings.ToLower(strings.TrimSpace(req.Kind)))
		if kind != conversation.KindText && kind != conversation.KindAction {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "kind must be text or action"})
		}
		if strings.TrimSpace(req.Payload) == "" && kind == conversation.KindAction {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing payload"})
		}

		eventID := uuid.NewString()
		ev := conversation.Event{
			UserID:      userID,
			Kind:        kind,
			Payload:     req.Payload,
			DisplayName: req.DisplayName,
			Handle:      req.Handle,
		}
		slog.Info("event received", "event_id", eventID, "user_id", userID, "kind", kind)
		// A client hanging up must not abort a half-done negotiation step.
		ctx := context.WithoutCancel(c.Request().Context())
		if err := h.HandleEvent(ctx, ev); err != nil {
			slog.Warn("event rejected", "event_id", eventID, "user_id", userID, "error", err)
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusAccepted, echo.Map{"event_id": eventID})
	}
}
