// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package recommend is the HTTP surface of the recommendation service:
// request handling, routing, and the service object tying the
// orchestrator, the fixed pipeline, and the tool registry together.
package recommend

import (
	"context"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianSignals/services/recommend/chain"
	"github.com/AleutianAI/AleutianSignals/services/recommend/orchestrator"
	"github.com/AleutianAI/AleutianSignals/services/recommend/telemetry"
)

// Service bundles the two execution paths over the shared registry.
//
// Thread Safety: Safe for concurrent use; both paths keep per-run state
// local.
type Service struct {
	registry     *orchestrator.Registry
	orchestrator *orchestrator.Orchestrator
	pipeline     *chain.Pipeline
	runSink      *telemetry.RunSink
	logger       *slog.Logger
}

// NewService wires the service. runSink may be nil.
func NewService(
	registry *orchestrator.Registry,
	orch *orchestrator.Orchestrator,
	pipeline *chain.Pipeline,
	runSink *telemetry.RunSink,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry:     registry,
		orchestrator: orch,
		pipeline:     pipeline,
		runSink:      runSink,
		logger:       logger,
	}
}

// Recommend runs one recommendation.
//
// Description:
//
//	dynamic selects the LLM-planned orchestrator path; otherwise the
//	fixed parallel pipeline runs (which requires a token symbol, so
//	requests without one always take the dynamic path).
func (s *Service) Recommend(ctx context.Context, req orchestrator.Request, dynamic bool) (*orchestrator.Recommendation, error) {
	start := time.Now()

	var rec *orchestrator.Recommendation
	var err error
	if !dynamic && req.TokenSymbol != "" {
		rec, err = s.pipeline.Run(ctx, req)
	} else {
		rec, err = s.orchestrator.Run(ctx, req)
	}

	s.recordRun(req.WalletAddress, rec, err, time.Since(start))
	return rec, err
}

// recordRun forwards one run summary to the analytical sink. A nil sink
// drops the record.
func (s *Service) recordRun(wallet string, rec *orchestrator.Recommendation, runErr error, elapsed time.Duration) {
	record := telemetry.RunRecord{Wallet: wallet, Outcome: "ok", Elapsed: elapsed}
	if runErr != nil {
		record.Outcome = "error"
	} else if rec != nil {
		trace, _ := rec.Details["execution_trace"].([]map[string]any)
		record.Steps = len(trace)
		for _, entry := range trace {
			if status, _ := entry["status"].(string); status == string(orchestrator.StepFailed) {
				record.FailedSteps++
			}
		}
		if record.FailedSteps > 0 {
			record.Outcome = "degraded"
		}
	}
	s.runSink.Record(record)
}

// ToolCatalog lists the registered tools for discovery.
func (s *Service) ToolCatalog() []string {
	return s.registry.DescribeAll()
}

// Ready reports whether the service can serve recommendations.
func (s *Service) Ready() bool {
	return s.orchestrator != nil && len(s.registry.Names()) > 0
}
