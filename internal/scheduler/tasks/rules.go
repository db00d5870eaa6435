package tasks

import (
	"context"

	"github.com/curatarr/curatarr/internal/scheduler"
)

const RuleHandlerTaskID = "rule-handler"

// RuleExecutor runs every active rule group.
type RuleExecutor interface {
	ExecuteAll(ctx context.Context) error
}

// RegisterRuleHandlerTask registers the task that evaluates rule groups and
// updates collection membership.
func RegisterRuleHandlerTask(sched *scheduler.Scheduler, exec RuleExecutor, cron string) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          RuleHandlerTaskID,
		Name:        "Rule Handler",
		Description: "Evaluate rule groups against their libraries and update collection membership",
		Cron:        cron,
		Func:        exec.ExecuteAll,
	})
}
