package queue

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"notico/internal/domain/dispatch"
)

// QueueDispatch is the asynq queue name carrying dispatch jobs.
const QueueDispatch = "dispatch"

// NewClient creates a new asynq client connected to Redis.
func NewClient(redisAddr, password string, db int) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})
}

// NewServer creates a new asynq server connected to Redis.
func NewServer(redisAddr, password string, db int, concurrency int) *asynq.Server {
	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisAddr,
			Password: password,
			DB:       db,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueDispatch: 10, // priority weight
				"default":     1,
			},
			RetryDelayFunc: func(n int, e error, t *asynq.Task) time.Duration {
				// Exponential backoff: 30s, 60s, 120s, ...
				return time.Duration(30*(1<<uint(n-1))) * time.Second
			},
		},
	)
}

// Enqueuer adapts the asynq client to the dispatch.Enqueuer interface.
type Enqueuer struct {
	client   *asynq.Client
	maxRetry int
}

var _ dispatch.Enqueuer = (*Enqueuer)(nil)

// NewEnqueuer wraps an asynq client for dispatch job submission.
func NewEnqueuer(client *asynq.Client, maxRetry int) *Enqueuer {
	return &Enqueuer{client: client, maxRetry: maxRetry}
}

// EnqueueDispatch queues one dispatch job.
func (e *Enqueuer) EnqueueDispatch(job *dispatch.JobPayload) error {
	task, err := dispatch.NewDispatchTask(job)
	if err != nil {
		return fmt.Errorf("creating task: %w", err)
	}

	_, err = e.client.Enqueue(task,
		asynq.MaxRetry(e.maxRetry),
		asynq.Queue(QueueDispatch),
	)
	if err != nil {
		return fmt.Errorf("enqueuing task: %w", err)
	}

	return nil
}
