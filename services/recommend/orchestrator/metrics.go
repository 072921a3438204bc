// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for orchestration runs. Registered once on the
// default registry; exposed by the API server's /metrics endpoint.
var (
	metricStepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signals",
		Subsystem: "orchestrator",
		Name:      "plan_steps_total",
		Help:      "Plan steps executed, by tool and terminal status.",
	}, []string{"tool", "status"})

	metricPlanFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "signals",
		Subsystem: "orchestrator",
		Name:      "plan_parse_fallbacks_total",
		Help:      "Planner responses that yielded no parseable plan and fell back to the default plan.",
	})

	metricRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signals",
		Subsystem: "orchestrator",
		Name:      "runs_total",
		Help:      "Orchestration runs, by outcome.",
	}, []string{"outcome"})

	metricStepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "signals",
		Subsystem: "orchestrator",
		Name:      "step_duration_seconds",
		Help:      "Wall time per executed plan step.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"tool"})

	metricSynthesisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "signals",
		Subsystem: "orchestrator",
		Name:      "synthesis_duration_seconds",
		Help:      "Wall time of the final synthesis call.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})
)
