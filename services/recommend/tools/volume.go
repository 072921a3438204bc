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

	"github.com/AleutianAI/AleutianSignals/services/recommend/orchestrator"
)

// VolumeTool profiles a token's trading volume against its market cap.
//
// Description:
//
//	Purely numeric — no LLM pass. Computes the token's 24h
//	volume/market-cap ratio from the cached markets snapshot and lists
//	tokens with a ratio inside the ±20% similarity band. A token absent
//	from the snapshot reports a zero ratio and no similar tokens rather
//	than failing.
type VolumeTool struct {
	markets *MarketCache
}

// NewVolumeTool creates the volume profiling tool.
func NewVolumeTool(markets *MarketCache) *VolumeTool {
	return &VolumeTool{markets: markets}
}

func (t *VolumeTool) Name() string { return orchestrator.ToolVolume }

func (t *VolumeTool) Description() string {
	return "computes a token's 24h volume to market cap ratio and finds tokens with a " +
		"similar ratio; input is a token symbol"
}

// Invoke profiles one token symbol.
func (t *VolumeTool) Invoke(ctx context.Context, input any) (map[string]any, error) {
	token, ok := input.(string)
	if !ok || token == "" {
		return nil, fmt.Errorf("volume: input must be a non-empty token symbol, got %T", input)
	}

	ratio, err := t.markets.VolumeMcapRatio(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("volume: %w", err)
	}

	similar := []string{}
	if ratio > 0 {
		similar, err = t.markets.SimilarRatioTokens(ctx, ratio, ratioSimilarityThreshold)
		if err != nil {
			return nil, fmt.Errorf("volume: %w", err)
		}
	}

	similarAny := make([]any, 0, len(similar))
	for _, s := range similar {
		similarAny = append(similarAny, s)
	}

	return map[string]any{
		"token":          token,
		"ratio":          ratio,
		"similar_tokens": similarAny,
		"raw_data": map[string]any{
			"threshold": ratioSimilarityThreshold,
		},
	}, nil
}
