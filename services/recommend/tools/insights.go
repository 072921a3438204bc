// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"fmt"

	"github.com/AleutianAI/AleutianSignals/services/llm"
	"github.com/AleutianAI/AleutianSignals/services/recommend/orchestrator"
)

const insightsSystemPrompt = "You are a professional crypto analyst specializing " +
	"in portfolio optimization and risk-adjusted trading recommendations."

// InsightsTool is the synthesis step: it renders the consolidated
// analyses into one prompt and asks the LLM for the final
// recommendation. Implements orchestrator.Synthesizer.
type InsightsTool struct {
	model llm.Client
}

// NewInsightsTool creates the synthesis tool.
func NewInsightsTool(model llm.Client) *InsightsTool {
	return &InsightsTool{model: model}
}

// Synthesize produces the consolidated recommendation text.
//
// Outputs:
//   - string: The recommendation. Never empty on success.
//   - error: Non-nil when the model call fails or returns empty output;
//     the orchestrator wraps it as its fatal synthesis error.
func (t *InsightsTool) Synthesize(ctx context.Context, in orchestrator.ConsolidationInput) (string, error) {
	prompt := orchestrator.BuildSynthesisPrompt(in)

	result, err := t.model.Chat(ctx, []llm.Message{
		{Role: "system", Content: insightsSystemPrompt},
		{Role: "user", Content: prompt},
	}, llm.GenerationParams{})
	if err != nil {
		return "", fmt.Errorf("insights: %w", err)
	}
	if result == "" {
		return "", fmt.Errorf("insights: model returned empty recommendation")
	}
	return result, nil
}
