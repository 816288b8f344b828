package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/bidroom/internal/alerts"
)

// ErrNotConnected is returned when the recipient has no open socket.
var ErrNotConnected = errors.New("recipient not connected")

type wsEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex // one writer at a time per connection
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub holds every open socket per user and delivers notifications to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*client]bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[int64]map[*client]bool)}
}

func (h *Hub) register(userID int64, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[*client]bool)
		h.clients[userID] = set
	}
	set[c] = true
}

func (h *Hub) unregister(userID int64, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, userID)
		}
	}
}

// Connected reports how many sockets userID has open.
func (h *Hub) Connected(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Send writes n to every socket of n.UserID. It succeeds if at least one write did.
func (h *Hub) Send(_ context.Context, n alerts.Notification) error {
	payload, err := json.Marshal(wsEvent{Type: "notification", Data: n})
	if err != nil {
		return err
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients[n.UserID]))
	for c := range h.clients[n.UserID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return ErrNotConnected
	}
	var lastErr error
	sent := 0
	for _, c := range targets {
		if err := c.write(payload); err != nil {
			lastErr = err
			continue
		}
		sent++
	}
	if sent == 0 {
		return lastErr
	}
	return nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades GET /ws for the authenticated user. The protocol is server
// push only; inbound frames are discarded.
func (h *Hub) ServeWS(c echo.Context) error {
	userID, ok := c.Get("user_id").(int64)
	if !ok || userID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	cl := &client{conn: ws}
	h.register(userID, cl)
	slog.Info("socket connected", "user_id", userID)

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			h.unregister(userID, cl)
			_ = ws.Close()
			slog.Info("socket disconnected", "user_id", userID)
			break
		}
	}
	return nil
}
