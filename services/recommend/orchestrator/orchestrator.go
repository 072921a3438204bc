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
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianSignals/services/llm"
)

// Synthesizer turns the consolidated analyses into the final
// recommendation text. Implemented by the insights tool.
type Synthesizer interface {
	Synthesize(ctx context.Context, in ConsolidationInput) (string, error)
}

// ContextRetriever fetches semantically related historical insights used
// to augment the sentiment section before synthesis. Optional: a nil
// retriever skips augmentation.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, limit int) ([]string, error)
}

// Request is one recommendation request.
//
// Description:
//
//	WalletAddress is required. TokenSymbol is optional; when empty, the
//	plan derives the token of interest from the wallet's recent buys.
//	UserPreferences is free-form text forwarded verbatim into planning
//	and synthesis ("interested in DeFi opportunities with medium risk").
type Request struct {
	WalletAddress   string `json:"wallet_address"`
	TokenSymbol     string `json:"token_symbol,omitempty"`
	UserPreferences string `json:"user_preferences,omitempty"`
}

// Recommendation is the terminal result of a run.
type Recommendation struct {
	ConsolidatedInsights string         `json:"consolidated_insights"`
	Details              map[string]any `json:"details"`
}

// defaultRetrievalLimit caps the historical insights pulled per run when
// configuration does not say otherwise.
const defaultRetrievalLimit = 3

// Orchestrator drives one recommendation run end to end: plan, execute,
// consolidate, synthesize.
//
// Thread Safety: Safe for concurrent use. All per-run state lives in the
// per-run Executor; the tunable fields are read atomically per run.
type Orchestrator struct {
	registry       *Registry
	planner        llm.Client
	synthesizer    Synthesizer
	retriever      ContextRetriever
	stepTimeout    atomic.Int64
	retrievalLimit atomic.Int64
	logger         *slog.Logger
}

// NewOrchestrator wires an orchestrator from its collaborators.
// retriever may be nil; stepTimeout <= 0 selects the default.
func NewOrchestrator(
	registry *Registry,
	planner llm.Client,
	synthesizer Synthesizer,
	retriever ContextRetriever,
	stepTimeout time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		registry:    registry,
		planner:     planner,
		synthesizer: synthesizer,
		retriever:   retriever,
		logger:      logger,
	}
	o.stepTimeout.Store(int64(stepTimeout))
	o.retrievalLimit.Store(defaultRetrievalLimit)
	return o
}

// SetStepTimeout adjusts the per-step timeout for subsequent runs;
// in-flight runs keep the timeout they started with. Used by config hot
// reload.
func (o *Orchestrator) SetStepTimeout(d time.Duration) {
	o.stepTimeout.Store(int64(d))
}

// SetRetrievalLimit adjusts how many historical insights augment the
// sentiment section per run. n <= 0 restores the default. Used by config
// hot reload.
func (o *Orchestrator) SetRetrievalLimit(n int) {
	if n <= 0 {
		n = defaultRetrievalLimit
	}
	o.retrievalLimit.Store(int64(n))
}

// Run executes one recommendation request.
//
// Description:
//
//	The planner model is asked for an execution plan; an unparseable
//	response falls back to the built-in default plan rather than
//	aborting. Steps execute sequentially with per-step failure
//	containment. Before synthesis the sentiment section is augmented
//	with retrieved historical context when a retriever is configured.
//	Only a synthesis failure is fatal.
//
// Outputs:
//   - *Recommendation: The synthesized recommendation plus per-tool
//     detail sections and the step execution trace.
//   - error: Wraps ErrSynthesis; nil in every degraded-but-successful case.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Recommendation, error) {
	tracer := otel.Tracer("signals/orchestrator")
	ctx, span := tracer.Start(ctx, "orchestrator.run")
	span.SetAttributes(attribute.String("request.wallet", req.WalletAddress))
	defer span.End()

	plan := o.buildPlan(ctx, req)

	executor := NewExecutor(o.registry, time.Duration(o.stepTimeout.Load()), o.logger)
	results := executor.Execute(ctx, plan)

	outputs := executor.State().ToolOutputs()
	o.augmentSentiment(ctx, req, outputs)

	consolidated := Consolidate(outputs, req.UserPreferences)

	synthStart := time.Now()
	insights, err := o.synthesizer.Synthesize(ctx, consolidated)
	metricSynthesisDuration.Observe(time.Since(synthStart).Seconds())
	if err != nil {
		metricRunsTotal.WithLabelValues("synthesis_error").Inc()
		wrapped := fmt.Errorf("%w: %v", ErrSynthesis, err)
		span.RecordError(wrapped)
		span.SetStatus(codes.Error, wrapped.Error())
		return nil, wrapped
	}

	outcome := "ok"
	for _, r := range results {
		if r.Status == StepFailed {
			outcome = "degraded"
			break
		}
	}
	metricRunsTotal.WithLabelValues(outcome).Inc()

	return &Recommendation{
		ConsolidatedInsights: insights,
		Details:              buildDetails(consolidated, results),
	}, nil
}

// buildPlan asks the planner model for a plan, falling back to the
// default plan when the response yields nothing parseable.
func (o *Orchestrator) buildPlan(ctx context.Context, req Request) Plan {
	prompt := BuildPlanningPrompt(o.registry, req.WalletAddress, req.TokenSymbol, req.UserPreferences)
	messages := []llm.Message{
		{Role: "system", Content: planningSystemPrompt},
		{Role: "user", Content: prompt},
	}

	response, err := o.planner.Chat(ctx, messages, llm.GenerationParams{
		Temperature: llm.Temperature(0.2),
	})
	if err == nil {
		var plan Plan
		plan, err = ParsePlan(response)
		if err == nil {
			o.logger.Info("plan accepted", slog.Int("steps", len(plan)))
			return plan
		}
	}

	// Chat error or ErrPlanParse: either way the run proceeds on the
	// built-in plan instead of aborting.
	metricPlanFallbacks.Inc()
	o.logger.Warn("planner response unusable, using default plan",
		slog.String("error", err.Error()),
	)
	return DefaultPlan(req.WalletAddress, req.TokenSymbol)
}

// augmentSentiment folds retrieved historical insights into the sentiment
// section before consolidation. Retrieval failure degrades silently: the
// run proceeds with the unaugmented sentiment.
func (o *Orchestrator) augmentSentiment(ctx context.Context, req Request, outputs map[string]map[string]any) {
	if o.retriever == nil {
		return
	}
	query := req.TokenSymbol
	if query == "" {
		query = req.WalletAddress
	}
	retrieved, err := o.retriever.Retrieve(ctx, query, int(o.retrievalLimit.Load()))
	if err != nil {
		o.logger.Warn("context retrieval failed", slog.String("error", err.Error()))
		return
	}
	if len(retrieved) == 0 {
		return
	}

	sentiment, ok := outputs[ToolSentiment]
	if !ok {
		sentiment = map[string]any{}
		outputs[ToolSentiment] = sentiment
	}
	items := make([]any, 0, len(retrieved))
	for _, r := range retrieved {
		items = append(items, r)
	}
	sentiment["retrieved_context"] = items
}

// buildDetails assembles the response's details object: the analysis
// sections plus the per-step execution trace.
func buildDetails(in ConsolidationInput, results []StepResult) map[string]any {
	details := map[string]any{
		"sentiment": in.Sentiment,
		"technical": in.Technical,
		"wallet":    in.Wallet,
	}
	if in.VolumeAnalysis != nil {
		details["volume_analysis"] = in.VolumeAnalysis
	}
	if in.TechnicalDetails != nil {
		details["technical_details"] = in.TechnicalDetails
	}

	trace := make([]map[string]any, 0, len(results))
	for _, r := range results {
		entry := map[string]any{
			"step":       r.Step,
			"tool":       r.Tool,
			"status":     string(r.Status),
			"elapsed_ms": r.Elapsed.Milliseconds(),
		}
		if r.Err != nil {
			entry["error"] = r.Err.Error()
		}
		trace = append(trace, entry)
	}
	details["execution_trace"] = trace
	return details
}
