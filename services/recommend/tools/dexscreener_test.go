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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// pairServer serves a canned Dexscreener search response per token.
func pairServer(t *testing.T, pairsByToken map[string][]map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("q")
		pairs, ok := pairsByToken[token]
		if !ok {
			pairs = []map[string]any{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"pairs": pairs})
	}))
}

// marketsServer serves a canned CoinGecko /coins/markets response.
func marketsServer(t *testing.T, coins []MarketCoin) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/coins/markets") {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(coins)
	}))
}

func TestDexscreenerToolSingleToken(t *testing.T) {
	server := pairServer(t, map[string][]map[string]any{
		"SOL": {{"pairAddress": "p1", "priceUsd": "150.2"}, {"pairAddress": "p2"}},
	})
	defer server.Close()

	model := &echoLLM{response: "uptrend with thin liquidity"}
	tool := NewDexscreenerTool(model, NewDexscreenerClient(server.URL), nil, nil)

	out, err := tool.Invoke(context.Background(), "SOL")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out["token"] != "SOL" || out["technical_analysis"] != "uptrend with thin liquidity" {
		t.Errorf("output = %v", out)
	}
	raw, _ := out["raw_data"].(map[string]any)
	if raw["pairAddress"] != "p1" {
		t.Errorf("raw_data = %v, want first pair", raw)
	}
}

func TestDexscreenerToolNoPairsFound(t *testing.T) {
	server := pairServer(t, nil)
	defer server.Close()

	tool := NewDexscreenerTool(&echoLLM{}, NewDexscreenerClient(server.URL), nil, nil)
	_, err := tool.Invoke(context.Background(), "XYZ")
	if err == nil {
		t.Fatal("expected error for token with no pairs")
	}
	if !strings.Contains(err.Error(), "no pairs found") {
		t.Errorf("error = %v, want it to mention no pairs found", err)
	}
}

func TestDexscreenerToolSimilarTokens(t *testing.T) {
	// ETH ratio 0.1; DOT 0.105 and UNI 0.095 sit inside ±20%, FIL far outside.
	coins := []MarketCoin{
		{Symbol: "eth", MarketCap: 1000, TotalVolume: 100},
		{Symbol: "dot", MarketCap: 1000, TotalVolume: 105},
		{Symbol: "uni", MarketCap: 1000, TotalVolume: 95},
		{Symbol: "fil", MarketCap: 1000, TotalVolume: 900},
	}
	cg := marketsServer(t, coins)
	defer cg.Close()

	dex := pairServer(t, map[string][]map[string]any{
		"ETH": {{"pairAddress": "eth-pair"}},
		"DOT": {{"pairAddress": "dot-pair"}},
		// UNI intentionally absent: per-token error capture.
	})
	defer dex.Close()

	markets := NewMarketCache(NewCoinGeckoClient(cg.URL), nil, 0, nil)
	model := &echoLLM{response: "pair looks stable"}
	tool := NewDexscreenerTool(model, NewDexscreenerClient(dex.URL), markets, nil)

	out, err := tool.Invoke(context.Background(), map[string]any{
		"wallet_insights": map[string]any{
			"tokens_bought": []any{"ETH"},
		},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	examined, _ := out["tokens_examined"].([]any)
	if len(examined) != 1 || examined[0] != "ETH" {
		t.Errorf("tokens_examined = %v", examined)
	}

	analysis, _ := out["similar_tokens_analysis"].(map[string]any)
	for _, want := range []string{"ETH", "DOT", "UNI"} {
		if _, ok := analysis[want]; !ok {
			t.Errorf("analysis missing candidate %q (have %v)", want, analysis)
		}
	}
	if _, ok := analysis["FIL"]; ok {
		t.Error("FIL outside the ratio band was analyzed")
	}

	// UNI had no pairs: captured per-token, not a tool failure.
	uni, _ := analysis["UNI"].(map[string]any)
	errText, _ := uni["error"].(string)
	if !strings.Contains(errText, "no pairs found") {
		t.Errorf("UNI entry = %v, want captured no-pairs error", uni)
	}
	dot, _ := analysis["DOT"].(map[string]any)
	if dot["technical_analysis"] != "pair looks stable" {
		t.Errorf("DOT entry = %v", dot)
	}
}

func TestDexscreenerToolSimilarTokensFallbackSet(t *testing.T) {
	// No bought token appears in the snapshot, so no ratios and no
	// candidates: the fixed major-token set is examined instead.
	cg := marketsServer(t, []MarketCoin{{Symbol: "pepe", MarketCap: 100, TotalVolume: 10}})
	defer cg.Close()

	dex := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"pairs": [{"pairAddress": "%s-pair"}]}`, token)
	}))
	defer dex.Close()

	markets := NewMarketCache(NewCoinGeckoClient(cg.URL), nil, 0, nil)
	tool := NewDexscreenerTool(&echoLLM{response: "ok"}, NewDexscreenerClient(dex.URL), markets, nil)

	out, err := tool.Invoke(context.Background(), map[string]any{"tokens_bought": []any{"OBSCURE"}})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	analysis, _ := out["similar_tokens_analysis"].(map[string]any)
	for _, want := range []string{"ETH", "BTC", "SOL", "ADA"} {
		if _, ok := analysis[want]; !ok {
			t.Errorf("fallback set missing %q", want)
		}
	}
}
