package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBackupRun is the task type for database backup runs.
	TaskBackupRun = "backup:run"
)

// BackupRunPayload selects the destinations and retry budget for a backup run.
type BackupRunPayload struct {
	Method     string `json:"method"`
	MaxRetries int    `json:"max_retries"`
}

// NewBackupRunTask constructs an Asynq task. The orchestrator owns its own
// retry loop, so Asynq-level retries are disabled for this task.
func NewBackupRunTask(payload BackupRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBackupRun, data, asynq.MaxRetry(0)), nil
}
