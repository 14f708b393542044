package tasks

import "github.com/hibiken/asynq"

// TaskEnqueuer is satisfied by *asynq.Client and replaced by a recorder in tests.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}
