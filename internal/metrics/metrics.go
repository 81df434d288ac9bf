package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsProcessed counts handled requests by variant and terminal
	// outcome (ok, rejected, dropped, failed).
	RequestsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_requests_processed_total",
		Help: "Requests handled to a terminal state.",
	}, []string{"variant", "outcome"})

	// RetriesTotal counts transient-fault retries by variant.
	RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_retries_total",
		Help: "Handler re-entries after a transient fault.",
	}, []string{"variant"})

	// OutboxEnqueued counts outgoing events appended to the outbox by kind.
	OutboxEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_outbox_enqueued_total",
		Help: "Outgoing events appended to the outbox.",
	}, []string{"kind"})

	// OutboxPublished counts outbox rows handed to the relay bridge.
	OutboxPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_outbox_published_total",
		Help: "Outbox rows published to the relay bridge topic.",
	})
)
