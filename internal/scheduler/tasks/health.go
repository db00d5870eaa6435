package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/curatarr/curatarr/internal/scheduler"
)

const ConnectionHealthTaskID = "connection-health"

// ConnectionChecker probes external applications.
type ConnectionChecker interface {
	CheckAll(ctx context.Context) int
}

// RegisterConnectionHealthTask registers the periodic connectivity check of
// every external application. Failures are reported through the health
// service and never fail the task.
func RegisterConnectionHealthTask(sched *scheduler.Scheduler, checker ConnectionChecker, interval time.Duration) error {
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          ConnectionHealthTaskID,
		Name:        "Connection Health Check",
		Description: "Tests connectivity to Plex and the configured *arr, request and stats applications",
		Cron:        fmt.Sprintf("@every %s", interval.String()),
		RunOnStart:  true,
		Func: func(ctx context.Context) error {
			checker.CheckAll(ctx)
			return nil
		},
	})
}
