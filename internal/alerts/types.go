package alerts

import (
	"context"
	"strconv"
)

// Task type constants
const (
	TaskDeliver = "notify:deliver"
)

// Queue names
const (
	QueueNotifications = "notifications"
)

// Action is a button attached to a notification. Data is a "verb:argument" pair.
type Action struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// NewAction builds an action whose data is verb:arg.
func NewAction(label, verb string, arg int64) Action {
	return Action{Label: label, Data: verb + ":" + strconv.FormatInt(arg, 10)}
}

// Notification is what the transport delivers to one user.
type Notification struct {
	UserID  int64    `json:"user_id"`
	Text    string   `json:"text"`
	Actions []Action `json:"actions,omitempty"`
}

// Sender delivers a single notification. Implemented by the websocket hub and by Queue.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Delivery task payload
type DeliverPayload struct {
	Notification Notification `json:"notification"`
	EventID      string       `json:"event_id,omitempty"`
}
