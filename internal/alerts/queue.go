package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Queue is a Sender that enqueues deliveries on Redis instead of sending
// them inline. A Worker performs the actual send.
type Queue struct {
	client *asynq.Client
}

func NewQueue(redisAddr string) *Queue {
	return &Queue{client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})}
}

// Send schedules n for delivery. It fails only if the task cannot be enqueued.
func (q *Queue) Send(ctx context.Context, n Notification) error {
	task, err := NewDeliverTask(n)
	if err != nil {
		return err
	}
	_, err = q.client.EnqueueContext(ctx, task, asynq.Queue(QueueNotifications), asynq.MaxRetry(3))
	return err
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// NewDeliverTask wraps n in a uniquely identified delivery task.
func NewDeliverTask(n Notification) (*asynq.Task, error) {
	id := uuid.NewString()
	b, err := json.Marshal(DeliverPayload{Notification: n, EventID: id})
	if err != nil {
		return nil, fmt.Errorf("marshal delivery: %w", err)
	}
	return asynq.NewTask(TaskDeliver, b, asynq.TaskID(id)), nil
}
