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
	"encoding/json"
	"fmt"

	"github.com/AleutianAI/AleutianSignals/services/llm"
	"github.com/AleutianAI/AleutianSignals/services/recommend/orchestrator"
)

// technicalDetailSystemPrompt asks for a more structured read than the
// general pair analysis: named indicators and explicit levels.
const technicalDetailSystemPrompt = "You are a quantitative analyst. You produce " +
	"structured technical analyses of crypto pairs: trend direction, momentum, " +
	"liquidity depth, support and resistance levels."

// TechnicalTool produces the detailed single-token technical read that
// feeds the synthesis step's technical_details section.
//
// Description:
//
//	Same Dexscreener pair source as the dexscreener tool, but analyzed
//	under a stricter prompt and with every matched pair (not only the
//	first) summarized into the raw data, so the model sees cross-venue
//	liquidity.
type TechnicalTool struct {
	model  llm.Client
	client *DexscreenerClient
}

// NewTechnicalTool creates the detailed technical analysis tool.
func NewTechnicalTool(model llm.Client, client *DexscreenerClient) *TechnicalTool {
	return &TechnicalTool{model: model, client: client}
}

func (t *TechnicalTool) Name() string { return orchestrator.ToolTechnical }

func (t *TechnicalTool) Description() string {
	return "detailed technical analysis of a token across its trading pairs: trend, " +
		"momentum, liquidity, support/resistance; input is a token symbol"
}

// technicalPairLimit caps how many pairs feed one analysis prompt.
const technicalPairLimit = 5

// Invoke analyzes one token symbol in depth.
func (t *TechnicalTool) Invoke(ctx context.Context, input any) (map[string]any, error) {
	token, ok := input.(string)
	if !ok || token == "" {
		return nil, fmt.Errorf("technical: input must be a non-empty token symbol, got %T", input)
	}

	pairs, err := t.client.SearchPairs(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("technical: %w", err)
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("technical: no pairs found for token %q", token)
	}
	if len(pairs) > technicalPairLimit {
		pairs = pairs[:technicalPairLimit]
	}

	pairsAny := make([]any, 0, len(pairs))
	for _, p := range pairs {
		pairsAny = append(pairsAny, p)
	}
	rawData := map[string]any{
		"token": token,
		"pairs": pairsAny,
	}

	blob, err := json.MarshalIndent(rawData, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("technical: marshal pairs: %w", err)
	}
	prompt := fmt.Sprintf(
		"Below is Dexscreener data for trading pairs of %s across venues. "+
			"Provide a structured technical analysis: overall trend, momentum, liquidity "+
			"depth per venue, and key support/resistance levels.\n\n%s",
		token, blob,
	)

	analysis, err := t.model.Chat(ctx, []llm.Message{
		{Role: "system", Content: technicalDetailSystemPrompt},
		{Role: "user", Content: prompt},
	}, llm.GenerationParams{})
	if err != nil {
		return nil, fmt.Errorf("technical: analysis: %w", err)
	}

	return map[string]any{
		"token":              token,
		"technical_analysis": analysis,
		"raw_data":           rawData,
	}, nil
}
