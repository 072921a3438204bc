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
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianSignals/services/llm"
	"github.com/AleutianAI/AleutianSignals/services/recommend/orchestrator"
)

const (
	defaultDexscreenerBaseURL = "https://api.dexscreener.com/latest/dex"
	dexscreenerTimeout        = 10 * time.Second
)

const technicalSystemPrompt = "You are a skilled market analyst with expertise " +
	"in crypto technical analysis."

// DexscreenerClient searches DEX trading pairs on the Dexscreener API.
//
// Thread Safety: Safe for concurrent use.
type DexscreenerClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewDexscreenerClient creates a client for the given API root (empty
// for the public endpoint).
func NewDexscreenerClient(baseURL string) *DexscreenerClient {
	if baseURL == "" {
		baseURL = defaultDexscreenerBaseURL
	}
	return &DexscreenerClient{
		httpClient: &http.Client{Timeout: dexscreenerTimeout},
		baseURL:    baseURL,
	}
}

// SearchPairs returns the raw pair objects matching a token query. The
// pair shape is passed through untyped: Dexscreener's schema is broad
// and the LLM consumes it as-is.
func (c *DexscreenerClient) SearchPairs(ctx context.Context, query string) ([]map[string]any, error) {
	q := url.Values{}
	q.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("dexscreener: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dexscreener: %s", llm.SafeLogString(err.Error()))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("dexscreener: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dexscreener: status %d: %s", resp.StatusCode, llm.SafeLogString(string(body)))
	}

	var parsed struct {
		Pairs []map[string]any `json:"pairs"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("dexscreener: parse response: %w", err)
	}
	return parsed.Pairs, nil
}

// DexscreenerTool analyzes DEX market data for tokens.
//
// Description:
//
//	The tool dispatches on its input shape. A string input is a single
//	token: its first matching pair is analyzed by the LLM. A map input
//	carrying wallet insights (tokens_bought) runs the similar-tokens
//	analysis: each bought token's volume/mcap ratio is computed, tokens
//	with a comparable ratio are gathered (falling back to a fixed
//	major-token set when none match), and each candidate's first pair is
//	analyzed with per-token error capture.
type DexscreenerTool struct {
	model   llm.Client
	client  *DexscreenerClient
	markets *MarketCache
	logger  *slog.Logger
}

// NewDexscreenerTool creates the market-pair analysis tool.
func NewDexscreenerTool(model llm.Client, client *DexscreenerClient, markets *MarketCache, logger *slog.Logger) *DexscreenerTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &DexscreenerTool{model: model, client: client, markets: markets, logger: logger}
}

func (t *DexscreenerTool) Name() string { return orchestrator.ToolDexscreener }

func (t *DexscreenerTool) Description() string {
	return "analyzes DEX market pair data; input is a token symbol, or wallet insights " +
		"(with tokens_bought) for a similar-tokens analysis; output includes technical_analysis"
}

// Invoke analyzes one token or a wallet's similar-token set, depending
// on the input shape.
func (t *DexscreenerTool) Invoke(ctx context.Context, input any) (map[string]any, error) {
	switch v := input.(type) {
	case string:
		if v == "" {
			return nil, fmt.Errorf("dexscreener: empty token symbol")
		}
		return t.analyzeToken(ctx, v)
	case map[string]any:
		return t.analyzeSimilarTokens(ctx, v)
	default:
		return nil, fmt.Errorf("dexscreener: input must be a token symbol or wallet insights, got %T", input)
	}
}

// analyzeToken runs the single-token pair analysis.
func (t *DexscreenerTool) analyzeToken(ctx context.Context, token string) (map[string]any, error) {
	pair, err := t.firstPair(ctx, token)
	if err != nil {
		return nil, err
	}

	analysis, err := t.analyzePair(ctx, token, pair)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"token":              token,
		"technical_analysis": analysis,
		"raw_data":           pair,
	}, nil
}

// analyzeSimilarTokens runs the wallet-driven similar-tokens analysis.
func (t *DexscreenerTool) analyzeSimilarTokens(ctx context.Context, insights map[string]any) (map[string]any, error) {
	// Wallet insights may arrive nested under the mapping's target field.
	if nested, ok := insights["wallet_insights"].(map[string]any); ok {
		insights = nested
	}
	bought := stringSlice(insights["tokens_bought"])

	tokenRatios := make(map[string]float64, len(bought))
	for _, symbol := range bought {
		ratio, err := t.markets.VolumeMcapRatio(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("dexscreener: ratio for %q: %w", symbol, err)
		}
		tokenRatios[strings.ToUpper(symbol)] = ratio
	}

	candidates := map[string]bool{}
	for _, ratio := range tokenRatios {
		if ratio <= 0 {
			continue
		}
		similar, err := t.markets.SimilarRatioTokens(ctx, ratio, ratioSimilarityThreshold)
		if err != nil {
			return nil, fmt.Errorf("dexscreener: similar-ratio scan: %w", err)
		}
		for _, s := range similar {
			candidates[s] = true
		}
	}

	tokensOfInterest := make([]string, 0, len(candidates))
	for s := range candidates {
		tokensOfInterest = append(tokensOfInterest, s)
	}
	sort.Strings(tokensOfInterest)
	if len(tokensOfInterest) == 0 {
		tokensOfInterest = ratioFallbackTokens
	}

	// Per-token failures become error entries in the result instead of
	// failing the whole analysis.
	analysis := map[string]any{}
	for _, token := range tokensOfInterest {
		pair, err := t.firstPair(ctx, token)
		if err != nil {
			analysis[token] = map[string]any{"error": err.Error()}
			continue
		}
		text, err := t.analyzePair(ctx, token, pair)
		if err != nil {
			analysis[token] = map[string]any{"error": err.Error()}
			continue
		}
		analysis[token] = map[string]any{
			"technical_analysis": text,
			"raw_data":           pair,
		}
	}

	examined := make([]any, 0, len(tokenRatios))
	for symbol := range tokenRatios {
		examined = append(examined, symbol)
	}
	sort.Slice(examined, func(i, j int) bool { return examined[i].(string) < examined[j].(string) })

	return map[string]any{
		"similar_tokens_analysis": analysis,
		"tokens_examined":         examined,
	}, nil
}

// firstPair returns the first pair matching the token.
func (t *DexscreenerTool) firstPair(ctx context.Context, token string) (map[string]any, error) {
	pairs, err := t.client.SearchPairs(ctx, token)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("dexscreener: no pairs found for token %q", token)
	}
	return pairs[0], nil
}

// analyzePair asks the LLM for technical insights over one pair's data.
func (t *DexscreenerTool) analyzePair(ctx context.Context, token string, pair map[string]any) (string, error) {
	blob, err := json.MarshalIndent(pair, "", "  ")
	if err != nil {
		return "", fmt.Errorf("dexscreener: marshal pair: %w", err)
	}
	prompt := fmt.Sprintf(
		"Below is raw data from Dexscreener for a token pair related to %s. "+
			"Please analyze the data and provide technical insights, including trend, "+
			"volatility, and key indicators.\n\n%s",
		token, blob,
	)

	analysis, err := t.model.Chat(ctx, []llm.Message{
		{Role: "system", Content: technicalSystemPrompt},
		{Role: "user", Content: prompt},
	}, llm.GenerationParams{})
	if err != nil {
		return "", fmt.Errorf("dexscreener: analysis for %q: %w", token, err)
	}
	return analysis, nil
}

// stringSlice coerces a resolved field into a string list, tolerating
// the []any shape that JSON decoding produces.
func stringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
