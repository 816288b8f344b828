package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/bidroom/internal/alerts"
	"github.com/sudo-init-do/bidroom/internal/conversation"
)

type captureHandler struct {
	events []conversation.Event
	err    error
}

func (h *captureHandler) HandleEvent(_ context.Context, ev conversation.Event) error {
	h.events = append(h.events, ev)
	return h.err
}

func withUser(id int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("user_id", id)
			return next(c)
		}
	}
}

func TestPostEvent(t *testing.T) {
	h := &captureHandler{}
	e := echo.New()
	e.POST("/events", PostEvent(h), withUser(7))

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := post(`{"kind":"action","payload":"accept-offer:3","handle":"acme"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["event_id"] == "" {
		t.Error("expected an event id")
	}
	if len(h.events) != 1 || h.events[0].UserID != 7 || h.events[0].Payload != "accept-offer:3" || h.events[0].Handle != "acme" {
		t.Errorf("unexpected events %+v", h.events)
	}

	if rec := post(`{"kind":"photo","payload":"x"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad kind: expected 400, got %d", rec.Code)
	}
	if rec := post(`{"kind":"action","payload":" "}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty action: expected 400, got %d", rec.Code)
	}

	h.err = errors.New("unknown event kind")
	if rec := post(`{"kind":"text","payload":"hi"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("handler error: expected 400, got %d", rec.Code)
	}
}

func TestHub_SendWithoutSocket(t *testing.T) {
	hub := NewHub()
	err := hub.Send(context.Background(), alerts.Notification{UserID: 1, Text: "hi"})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestHub_DeliversOverSocket(t *testing.T) {
	hub := NewHub()
	e := echo.New()
	e.GET("/ws", hub.ServeWS, withUser(3))
	srv := httptest.NewServer(e)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Connected(3) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("socket never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	n := alerts.Notification{UserID: 3, Text: "New request #1: bolts", Actions: []alerts.Action{alerts.NewAction("Make an offer", alerts.VerbSubmitOffer, 1)}}
	if err := hub.Send(context.Background(), n); err != nil {
		t.Fatal(err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got struct {
		Type string              `json:"type"`
		Data alerts.Notification `json:"data"`
	}
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatal(err)
	}
	if got.Type != "notification" || got.Data.Text != n.Text || got.Data.Actions[0].Data != "submit-offer:1" {
		t.Errorf("unexpected frame %+v", got)
	}
}
