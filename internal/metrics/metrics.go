package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsEvaluated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_events_evaluated_total",
			Help: "Total number of events run through the evaluation pass",
		},
	)

	RulesMatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_rules_matched_total",
			Help: "Total number of rule matches across all evaluation passes",
		},
	)

	NotificationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_notifications_created_total",
			Help: "Total number of notifications created",
		},
	)

	NotificationsDeduped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_notifications_deduped_total",
			Help: "Total number of fire attempts suppressed by the cooldown window",
		},
	)

	RuleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_rule_errors_total",
			Help: "Total number of per-rule pipeline failures",
		},
		[]string{"stage"}, // stage: load, count, gate
	)

	DispatchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_dispatch_failures_total",
			Help: "Total number of failed outbound message sends",
		},
		[]string{"channel"},
	)
)
