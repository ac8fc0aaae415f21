package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/harborchat/harbor/internal/backup"
)

// TaskNotify is the task type for operator notifications.
const TaskNotify = "notify:send"

// NotifyPayload carries one operator notification through the queue.
type NotifyPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewNotifyTask constructs an Asynq task for an operator notification.
func NewNotifyTask(payload NotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotify, data, asynq.MaxRetry(3)), nil
}

// EnqueueNotify enqueues a notification task.
func (c *Client) EnqueueNotify(ctx context.Context, payload NotifyPayload) (*asynq.TaskInfo, error) {
	task, err := NewNotifyTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

// NotifyJob delivers operator notifications. Delivery currently writes to the
// structured log; a webhook transport slots in here without touching callers.
type NotifyJob struct {
	Logger *slog.Logger
}

// Handle processes notify:send tasks.
func (j *NotifyJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload NotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if payload.Kind == string(backup.KindFailure) {
		logger.Error("operator notification",
			slog.String("kind", payload.Kind),
			slog.String("message", payload.Message))
		return nil
	}
	logger.Info("operator notification",
		slog.String("kind", payload.Kind),
		slog.String("message", payload.Message))
	return nil
}

// QueueNotifier implements backup.Notifier by enqueueing notify:send tasks, so
// notification delivery survives orchestrator restarts. Enqueue failures fall
// back to logging the notification directly.
type QueueNotifier struct {
	Client *Client
	Logger *slog.Logger
}

// Notify implements backup.Notifier.
func (n QueueNotifier) Notify(ctx context.Context, kind backup.Kind, message string) {
	if n.Client != nil {
		if _, err := n.Client.EnqueueNotify(ctx, NotifyPayload{Kind: string(kind), Message: message}); err == nil {
			return
		} else if n.Logger != nil {
			n.Logger.Warn("enqueue notification", slog.Any("error", err))
		}
	}
	backup.LogNotifier{Logger: n.Logger}.Notify(ctx, kind, message)
}
