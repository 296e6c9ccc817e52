// Package metrics exposes Prometheus instrumentation for the split engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PlansCreated counts split plans persisted, labeled by payable kind.
	PlansCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "buildhub_split_plans_created_total",
		Help: "Number of split payment groups created.",
	}, []string{"payable_type"})

	// OrdersRequested counts gateway orders requested for installments.
	OrdersRequested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "buildhub_split_orders_requested_total",
		Help: "Number of gateway orders requested for installments.",
	})

	// Confirmations counts confirmation attempts by outcome:
	// completed, already_completed, signature_failed.
	Confirmations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "buildhub_split_confirmations_total",
		Help: "Number of installment confirmations by outcome.",
	}, []string{"outcome"})

	// GroupsCompleted counts groups driven to completion.
	GroupsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "buildhub_split_groups_completed_total",
		Help: "Number of split payment groups fully collected.",
	})
)
