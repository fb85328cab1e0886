package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EscalationsTotal 自动创建跟进的次数，result 为 success / failure
	EscalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_escalations_total",
			Help: "Total number of follow-ups spawned from domain record creation",
		},
		[]string{"record_type", "result"},
	)

	EscalationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "followup_escalation_duration_seconds",
			Help:    "Duration of auto-escalation follow-up creation in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"record_type"},
	)

	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_transitions_total",
			Help: "Total number of follow-up status transitions",
		},
		[]string{"from", "to"},
	)

	OverdueSynced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "followup_overdue_synced_total",
			Help: "Total number of persisted overdue flags changed by the daily sync",
		},
	)
)
