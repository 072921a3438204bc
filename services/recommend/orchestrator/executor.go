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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// StepStatus is a plan step's position in its execution state machine.
//
// Transitions: PENDING -> RESOLVING_INPUT -> INVOKING -> RECORDED | FAILED.
type StepStatus string

const (
	StepPending        StepStatus = "PENDING"
	StepResolvingInput StepStatus = "RESOLVING_INPUT"
	StepInvoking       StepStatus = "INVOKING"
	StepRecorded       StepStatus = "RECORDED"
	StepFailed         StepStatus = "FAILED"
)

// StepResult is the terminal record of one executed plan step.
type StepResult struct {
	Step    int
	Tool    string
	Status  StepStatus
	Input   any
	Output  map[string]any
	Err     error
	Elapsed time.Duration
}

// defaultStepTimeout bounds a single tool invocation. Tool invocations
// wrap LLM calls plus upstream data fetches, so the bound is generous;
// expiry is classified as a step failure, not a fatal error.
const defaultStepTimeout = 90 * time.Second

// Executor runs plan steps in resolved order, invoking the named tool
// and capturing per-step success or failure without aborting the plan.
//
// Thread Safety: An Executor instance serves one run on one goroutine.
// It owns its StateManager exclusively; no step failure is fatal to the
// run, and no locking is needed under the sequential model.
type Executor struct {
	registry    *Registry
	state       *StateManager
	stepTimeout time.Duration
	logger      *slog.Logger
}

// NewExecutor creates an executor over the given registry with a fresh
// per-run state store. Pass stepTimeout <= 0 for the default.
func NewExecutor(registry *Registry, stepTimeout time.Duration, logger *slog.Logger) *Executor {
	if stepTimeout <= 0 {
		stepTimeout = defaultStepTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		registry:    registry,
		state:       NewStateManager(),
		stepTimeout: stepTimeout,
		logger:      logger,
	}
}

// State exposes the run's state store for consolidation after execution.
func (e *Executor) State() *StateManager {
	return e.state
}

// Execute runs every plan step in ascending step order.
//
// Description:
//
//	For each step: resolve its input against its declared dependencies,
//	look up the tool, invoke it under the step timeout, and record the
//	output. A step FAILS when its tool name is unregistered, the
//	invocation errors or times out, or input resolution panics; in all
//	failure cases an empty (non-nil) output is recorded under the step's
//	key so dependents see an absent-field pattern rather than a missing
//	key, and execution continues with the next step.
//
// Inputs:
//   - ctx: Run-scoped context. Per-step timeouts derive from it.
//   - plan: The validated plan. Assumed already sorted by ParsePlan;
//     callers constructing plans directly must keep ascending order.
//
// Outputs:
//   - []StepResult: One terminal record per step, in execution order.
func (e *Executor) Execute(ctx context.Context, plan Plan) []StepResult {
	tracer := otel.Tracer("signals/orchestrator")

	toolByStep := make(map[int]string, len(plan))
	for _, step := range plan {
		toolByStep[step.Step] = step.Tool
	}

	results := make([]StepResult, 0, len(plan))
	for _, step := range plan {
		stepCtx, span := tracer.Start(ctx, "orchestrator.step")
		span.SetAttributes(
			attribute.Int("plan.step", step.Step),
			attribute.String("plan.tool", step.Tool),
		)

		result := e.executeStep(stepCtx, step, toolByStep)

		if result.Err != nil {
			span.RecordError(result.Err)
			span.SetStatus(codes.Error, result.Err.Error())
		}
		span.End()

		metricStepsTotal.WithLabelValues(step.Tool, string(result.Status)).Inc()
		metricStepDuration.WithLabelValues(step.Tool).Observe(result.Elapsed.Seconds())
		results = append(results, result)
	}
	return results
}

// executeStep drives one step through its state machine.
func (e *Executor) executeStep(ctx context.Context, step PlanStep, toolByStep map[int]string) StepResult {
	start := time.Now()
	result := StepResult{Step: step.Step, Tool: step.Tool, Status: StepPending, Input: step.Input}

	fail := func(err error) StepResult {
		result.Status = StepFailed
		result.Err = err
		result.Output = map[string]any{}
		result.Elapsed = time.Since(start)
		// Record an empty output so downstream dependents resolve
		// against an absent-field pattern instead of a missing key.
		e.state.SetOutput(step.Step, step.Tool, map[string]any{})
		e.logger.Warn("plan step failed",
			slog.Int("step", step.Step),
			slog.String("tool", step.Tool),
			slog.String("error", err.Error()),
		)
		return result
	}

	result.Status = StepResolvingInput
	input, err := e.resolveStepInput(step, toolByStep)
	if err != nil {
		return fail(err)
	}
	result.Input = input

	tool, err := e.registry.Get(step.Tool)
	if err != nil {
		return fail(err)
	}

	result.Status = StepInvoking
	stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	output, err := tool.Invoke(stepCtx, input)
	if err != nil {
		return fail(fmt.Errorf("%w: %s: %v", ErrToolInvocation, step.Tool, err))
	}

	result.Status = StepRecorded
	result.Output = output
	result.Elapsed = time.Since(start)
	e.state.SetOutput(step.Step, step.Tool, output)
	e.logger.Info("plan step recorded",
		slog.Int("step", step.Step),
		slog.String("tool", step.Tool),
		slog.Duration("elapsed", result.Elapsed),
	)
	return result
}

// resolveStepInput applies the step's input mappings. A panic inside
// resolution (malformed structures from a failed upstream tool) is an
// unexpected resolution failure: converted to an error so the step is
// recorded as FAILED instead of crashing the run.
func (e *Executor) resolveStepInput(step PlanStep, toolByStep map[int]string) (input any, err error) {
	defer func() {
		if r := recover(); r != nil {
			input = nil
			err = fmt.Errorf("%w: step %d: panic: %v", ErrInputResolution, step.Step, r)
		}
	}()
	view := NewDependencyView(e.state, step.DependsOn, toolByStep)
	return ResolveInput(step.Input, step.InputMapping, view, e.logger), nil
}
