package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconcileCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pr_needs_review_reconciliations_total",
			Help: "Total number of pull request reconciliations by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	skippedEventCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pr_needs_review_skipped_events_total",
			Help: "Total number of events that did not trigger a reconciliation",
		},
		[]string{"reason"},
	)

	labelOperationCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pr_needs_review_label_operations_total",
			Help: "Total number of label additions and removals",
		},
		[]string{"operation", "label"},
	)

	commentCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pr_needs_review_comments_posted_total",
			Help: "Total number of needs-changes explanatory comments posted",
		},
	)
)
