package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/sudo-init-do/bidroom/internal/models"
)

type fakeSender struct {
	mu     sync.Mutex
	failOn map[int64]bool
	got    []Notification
}

func (f *fakeSender) Send(_ context.Context, n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[n.UserID] {
		return errors.New("recipient blocked the bot")
	}
	f.got = append(f.got, n)
	return nil
}

type staticResponders struct {
	ids []int64
	err error
}

func (s staticResponders) ListResponders(context.Context) ([]int64, error) {
	return s.ids, s.err
}

func TestFanOutNewRequest_ToleratesFailures(t *testing.T) {
	sender := &fakeSender{failOn: map[int64]bool{20: true}}
	d := NewDispatcher(sender, staticResponders{ids: []int64{10, 20, 30}})

	delivered, err := d.FanOutNewRequest(context.Background(), models.Request{ID: 4, Content: "need bearings"})
	if err != nil {
		t.Fatal(err)
	}
	if delivered != 2 {
		t.Errorf("expected 2 deliveries, got %d", delivered)
	}
	for _, n := range sender.got {
		if n.Text != "New request #4: need bearings" {
			t.Errorf("unexpected text %q", n.Text)
		}
		if len(n.Actions) != 1 || n.Actions[0].Data != "submit-offer:4" {
			t.Errorf("unexpected actions %+v", n.Actions)
		}
	}
}

func TestFanOutNewRequest_ListFailure(t *testing.T) {
	d := NewDispatcher(&fakeSender{}, staticResponders{err: errors.New("db down")})
	if _, err := d.FanOutNewRequest(context.Background(), models.Request{ID: 1}); err == nil {
		t.Fatal("expected error when responders cannot be listed")
	}
}

func TestNotifyRequester_CarriesButtons(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, staticResponders{})

	err := d.NotifyRequester(context.Background(), 1, models.Offer{ID: 8, RequestID: 4, Description: "Bearing", Price: 42.5})
	if err != nil {
		t.Fatal(err)
	}
	n := sender.got[0]
	if n.UserID != 1 || n.Text != "New offer #8 on request #4: Bearing, 42.50" {
		t.Errorf("unexpected notification %+v", n)
	}
	if len(n.Actions) != 2 || n.Actions[0].Data != "accept-offer:8" || n.Actions[1].Data != "reject-offer:8" {
		t.Errorf("unexpected actions %+v", n.Actions)
	}
}

func TestNotifyResponder(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, staticResponders{})

	_ = d.NotifyResponder(context.Background(), 2, Outcome{OfferID: 8, RequestID: 4, Accepted: true})
	_ = d.NotifyResponder(context.Background(), 2, Outcome{OfferID: 9, RequestID: 4})
	if !strings.Contains(sender.got[0].Text, "accepted") || !strings.Contains(sender.got[1].Text, "rejected") {
		t.Errorf("unexpected texts %q / %q", sender.got[0].Text, sender.got[1].Text)
	}
}

func TestHandleDeliver(t *testing.T) {
	sender := &fakeSender{}
	h := HandleDeliver(sender)

	task, err := NewDeliverTask(Notification{UserID: 5, Text: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.ProcessTask(context.Background(), task); err != nil {
		t.Fatal(err)
	}
	if len(sender.got) != 1 || sender.got[0].UserID != 5 {
		t.Errorf("unexpected deliveries %+v", sender.got)
	}

	var p DeliverPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil || p.EventID == "" {
		t.Errorf("payload must carry an event id: %+v %v", p, err)
	}

	bad := asynq.NewTask(TaskDeliver, []byte("{"))
	if err := h.ProcessTask(context.Background(), bad); !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("malformed payload must skip retry, got %v", err)
	}
}
