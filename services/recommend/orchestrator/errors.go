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

import "errors"

// Error taxonomy for orchestration runs.
//
// Propagation policy: every sub-step failure is contained and degrades the
// richness of the final recommendation instead of aborting the run. Only
// ErrSynthesis is fatal — without the synthesis call there is nothing to
// return to the user.
var (
	// ErrToolNotFound marks a plan step that names a tool absent from the
	// registry. The step is recorded as failed; the run continues.
	ErrToolNotFound = errors.New("tool not found")

	// ErrPlanParse marks a planner response from which no valid JSON plan
	// could be extracted. Recoverable: the orchestrator substitutes the
	// built-in default plan.
	ErrPlanParse = errors.New("plan parse failed")

	// ErrInputResolution marks a field mapping that could not be resolved.
	// Soft: logged, the mapping is skipped, never propagated.
	ErrInputResolution = errors.New("input resolution failed")

	// ErrToolInvocation marks a tool call that returned an error or timed
	// out. Per-step: recorded as a failed step with an empty output.
	ErrToolInvocation = errors.New("tool invocation failed")

	// ErrSynthesis marks a failed final synthesis call. Fatal: surfaced to
	// the caller as the run's terminal error.
	ErrSynthesis = errors.New("synthesis failed")
)
