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
	"strconv"
	"time"

	"github.com/AleutianAI/AleutianSignals/services/llm"
	"github.com/AleutianAI/AleutianSignals/services/recommend/orchestrator"
)

const (
	defaultFarcasterBaseURL = "https://client.warpcast.com"
	farcasterSearchPath     = "/v2/search-casts"
	farcasterDefaultTimeout = 10 * time.Second
	sentimentCastLimit      = 5
)

const sentimentSystemPrompt = "You are a market sentiment analyst with expertise " +
	"in crypto trends and social media analysis."

// Cast is one Farcaster post referencing the token under analysis.
type Cast struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// FarcasterClient searches Farcaster casts through the public search API.
//
// Thread Safety: Safe for concurrent use.
type FarcasterClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewFarcasterClient creates a Farcaster search client. Pass an empty
// baseURL for the public endpoint.
func NewFarcasterClient(baseURL string) *FarcasterClient {
	if baseURL == "" {
		baseURL = defaultFarcasterBaseURL
	}
	return &FarcasterClient{
		httpClient: &http.Client{Timeout: farcasterDefaultTimeout},
		baseURL:    baseURL,
	}
}

// farcasterSearchResponse mirrors the search endpoint's envelope.
type farcasterSearchResponse struct {
	Result struct {
		Casts []struct {
			Hash string `json:"hash"`
			Text string `json:"text"`
		} `json:"casts"`
	} `json:"result"`
}

// SearchCasts returns up to limit casts matching the token symbol.
func (c *FarcasterClient) SearchCasts(ctx context.Context, tokenSymbol string, limit int) ([]Cast, error) {
	q := url.Values{}
	q.Set("q", tokenSymbol)
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+farcasterSearchPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("farcaster: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("farcaster: %s", llm.SafeLogString(err.Error()))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("farcaster: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("farcaster: status %d: %s", resp.StatusCode, llm.SafeLogString(string(body)))
	}

	var parsed farcasterSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("farcaster: parse response: %w", err)
	}

	casts := make([]Cast, 0, len(parsed.Result.Casts))
	for _, c := range parsed.Result.Casts {
		casts = append(casts, Cast{ID: c.Hash, Content: c.Text})
	}
	return casts, nil
}

// SentimentTool analyzes social sentiment for a token from Farcaster
// casts.
//
// Description:
//
//	When the upstream search fails, the tool substitutes a small generic
//	cast set and tags the output ("degraded": true, source "fallback")
//	so the synthesis step can weigh it accordingly — a degraded signal
//	is never presented as live data.
type SentimentTool struct {
	model     llm.Client
	farcaster *FarcasterClient
	logger    *slog.Logger
}

// NewSentimentTool creates the sentiment tool.
func NewSentimentTool(model llm.Client, farcaster *FarcasterClient, logger *slog.Logger) *SentimentTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &SentimentTool{model: model, farcaster: farcaster, logger: logger}
}

func (t *SentimentTool) Name() string { return orchestrator.ToolSentiment }

func (t *SentimentTool) Description() string {
	return "analyzes social sentiment for a token from Farcaster casts; input is a token symbol; " +
		"output includes sentiment_analysis"
}

// Invoke runs sentiment analysis for one token symbol.
func (t *SentimentTool) Invoke(ctx context.Context, input any) (map[string]any, error) {
	token, ok := input.(string)
	if !ok || token == "" {
		return nil, fmt.Errorf("sentiment: input must be a non-empty token symbol, got %T", input)
	}

	degraded := false
	casts, err := t.farcaster.SearchCasts(ctx, token, sentimentCastLimit)
	if err != nil {
		degraded = true
		casts = fallbackCasts(token)
		t.logger.Warn("cast search failed, using tagged fallback data",
			slog.String("token", token),
			slog.String("error", llm.SafeLogString(err.Error())),
		)
	}

	rawData := map[string]any{
		"token": token,
		"casts": castMaps(casts),
	}
	if degraded {
		rawData["degraded"] = true
		rawData["source"] = "fallback"
	} else {
		rawData["source"] = "farcaster"
	}

	blob, err := json.MarshalIndent(rawData, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("sentiment: marshal casts: %w", err)
	}
	prompt := fmt.Sprintf(
		"Analyze the following social media data for token %s and provide a sentiment analysis. "+
			"Include an overall sentiment, key points, and any potential impact on the token's "+
			"performance.\n\n%s",
		token, blob,
	)

	analysis, err := t.model.Chat(ctx, []llm.Message{
		{Role: "system", Content: sentimentSystemPrompt},
		{Role: "user", Content: prompt},
	}, llm.GenerationParams{})
	if err != nil {
		return nil, fmt.Errorf("sentiment: analysis: %w", err)
	}

	return map[string]any{
		"token":              token,
		"sentiment_analysis": analysis,
		"raw_data":           rawData,
	}, nil
}

// fallbackCasts is the substitute cast set used when the search API is
// unreachable. Deliberately generic: the degraded tag on the output is
// what tells the synthesis step not to trust it.
func fallbackCasts(token string) []Cast {
	return []Cast{
		{ID: "fallback_1", Content: fmt.Sprintf("%s is showing strong bullish signals on Farcaster.", token)},
		{ID: "fallback_2", Content: fmt.Sprintf("Concerns remain about %s's volatility in the current market.", token)},
	}
}

func castMaps(casts []Cast) []any {
	out := make([]any, 0, len(casts))
	for _, c := range casts {
		out = append(out, map[string]any{"id": c.ID, "content": c.Content})
	}
	return out
}
