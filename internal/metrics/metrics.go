// Package metrics exposes Prometheus counters for the builder6 core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ModelRequests counts generation requests by provider and outcome.
	ModelRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "builder6",
		Subsystem: "llm",
		Name:      "requests_total",
		Help:      "Model generation requests by provider and outcome.",
	}, []string{"provider", "outcome"})

	// ModelRetries counts retry attempts for transient upstream failures.
	ModelRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "builder6",
		Subsystem: "llm",
		Name:      "retries_total",
		Help:      "Retry attempts for transient model upstream failures.",
	})

	// ToolExecutions counts tool dispatches by tool name and outcome.
	ToolExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "builder6",
		Subsystem: "tools",
		Name:      "executions_total",
		Help:      "Tool dispatches by tool name and outcome.",
	}, []string{"tool", "outcome"})

	// ContainersCreated counts containers started by the supervisor.
	ContainersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "builder6",
		Subsystem: "sandbox",
		Name:      "containers_created_total",
		Help:      "Containers created by the supervisor.",
	})

	// ContainersDestroyed counts containers removed by the supervisor.
	ContainersDestroyed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "builder6",
		Subsystem: "sandbox",
		Name:      "containers_destroyed_total",
		Help:      "Containers destroyed by the supervisor, including idle reaps.",
	})
)

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)
