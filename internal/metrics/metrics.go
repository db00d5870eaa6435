// Package metrics exposes Prometheus collectors for rule runs, collection
// membership and media actions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RuleRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curatarr_rule_runs_total",
			Help: "Total number of rule group executions",
		},
		[]string{"status"}, // "success", "error", "skipped"
	)

	RuleRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "curatarr_rule_run_duration_seconds",
			Help:    "Duration of a single rule group execution",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 180, 600},
		},
	)

	ItemsEvaluated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "curatarr_items_evaluated_total",
			Help: "Total number of library items evaluated by rule groups",
		},
	)

	MembersAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "curatarr_collection_members_added_total",
			Help: "Total number of items added to collections",
		},
	)

	MembersRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "curatarr_collection_members_removed_total",
			Help: "Total number of items removed from collections",
		},
	)

	CollectionSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "curatarr_collection_members",
			Help: "Current number of members per collection",
		},
		[]string{"collection"},
	)

	MediaActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curatarr_media_actions_total",
			Help: "Total number of media actions by target application and outcome",
		},
		[]string{"app", "action", "outcome"}, // outcome: see actions.Outcome
	)

	TaskRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curatarr_task_runs_total",
			Help: "Total number of scheduled task triggers",
		},
		[]string{"task", "status"}, // status: "success", "error", "skipped"
	)

	ConnectionUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "curatarr_connection_up",
			Help: "Whether the last check of an external application succeeded",
		},
		[]string{"app"},
	)
)

// RecordRuleRun records a rule group execution.
func RecordRuleRun(duration time.Duration, evaluated int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	RuleRuns.WithLabelValues(status).Inc()
	RuleRunDuration.Observe(duration.Seconds())
	ItemsEvaluated.Add(float64(evaluated))
}

// RecordRuleRunSkipped records a rule group that was not executed.
func RecordRuleRunSkipped() {
	RuleRuns.WithLabelValues("skipped").Inc()
}

// RecordMembership records membership changes and the resulting size.
func RecordMembership(collection string, added, removed, size int) {
	MembersAdded.Add(float64(added))
	MembersRemoved.Add(float64(removed))
	CollectionSize.WithLabelValues(collection).Set(float64(size))
}

// RecordMediaAction records the outcome of a media action.
func RecordMediaAction(app, action, outcome string) {
	MediaActions.WithLabelValues(app, action, outcome).Inc()
}

// RecordTaskRun records a task trigger.
func RecordTaskRun(task, status string) {
	TaskRuns.WithLabelValues(task, status).Inc()
}

// SetConnectionUp records the result of a connection check.
func SetConnectionUp(app string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	ConnectionUp.WithLabelValues(app).Set(v)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
