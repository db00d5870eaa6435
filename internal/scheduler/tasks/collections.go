package tasks

import (
	"context"

	"github.com/curatarr/curatarr/internal/scheduler"
	"github.com/curatarr/curatarr/internal/worker"
)

const CollectionHandlerTaskID = "collection-handler"

// CollectionWorker handles due collection members.
type CollectionWorker interface {
	Execute(ctx context.Context) (*worker.Result, error)
}

// RegisterCollectionHandlerTask registers the task that applies collection
// actions to members whose grace period has passed.
func RegisterCollectionHandlerTask(sched *scheduler.Scheduler, w CollectionWorker, cron string) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          CollectionHandlerTaskID,
		Name:        "Collection Handler",
		Description: "Delete or unmonitor collection media once it has been in a collection long enough",
		Cron:        cron,
		Func: func(ctx context.Context) error {
			_, err := w.Execute(ctx)
			return err
		},
	})
}
