package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Worker drains the notifications queue into a direct Sender.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewWorker(redisAddr string, sender Sender, concurrency int) *Worker {
	if concurrency < 1 {
		concurrency = 5
	}
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskDeliver, HandleDeliver(sender))

	server := asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueNotifications: 10,
		},
	})
	return &Worker{server: server, mux: mux}
}

// Start runs the worker in the background.
func (w *Worker) Start() error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start delivery worker: %w", err)
	}
	slog.Info("delivery worker started", "queue", QueueNotifications)
	return nil
}

// Shutdown waits for in-flight deliveries and stops the worker.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

// HandleDeliver decodes a delivery task and hands it to sender. A malformed
// payload is not retried.
func HandleDeliver(sender Sender) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p DeliverPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode delivery: %v: %w", err, asynq.SkipRetry)
		}
		if err := sender.Send(ctx, p.Notification); err != nil {
			slog.Warn("queued delivery failed", "user_id", p.Notification.UserID, "event_id", p.EventID, "error", err)
			return err
		}
		slog.Info("notification delivered", "user_id", p.Notification.UserID, "event_id", p.EventID)
		return nil
	}
}
