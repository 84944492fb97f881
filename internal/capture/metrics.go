package capture

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters exposed by the status server's /metrics endpoint.
var (
	shortcutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notary_shortcuts_total",
		Help: "Message shortcuts received.",
	})

	optionQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notary_option_queries_total",
		Help: "Typeahead option queries served, by field.",
	}, []string{"field"})

	recordsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notary_records_created_total",
		Help: "Records successfully created in the document store.",
	})

	failuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notary_failures_total",
		Help: "Workflow failures, by stage.",
	}, []string{"stage"})
)
