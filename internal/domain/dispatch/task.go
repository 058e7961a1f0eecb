package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TaskTypeDispatch is the asynq task type for inbound dispatch jobs.
const TaskTypeDispatch = "notification:dispatch"

// WorkerNotificationSender is the only worker name this process handles.
const WorkerNotificationSender = "notification_sender"

// JobPayload is the inbound job envelope consumed from the queue.
type JobPayload struct {
	Worker        string        `json:"worker"`
	WorkerPayload WorkerPayload `json:"worker_payload"`
}

// WorkerPayload names the target service and carries its raw send
// request, validated against the service's schema at dispatch time.
type WorkerPayload struct {
	SenderType    string          `json:"sender_type"`
	SenderPayload json.RawMessage `json:"sender_payload"`
}

// NewDispatchTask wraps a job payload in an asynq task.
func NewDispatchTask(job *JobPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshaling dispatch job: %w", err)
	}
	return asynq.NewTask(TaskTypeDispatch, payload), nil
}

// Enqueuer hands a dispatch job to the surrounding queue infrastructure.
// This keeps the HTTP handlers decoupled from the asynq client.
type Enqueuer interface {
	EnqueueDispatch(job *JobPayload) error
}
