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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSentimentToolLiveCasts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/search-casts" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "SOL" {
			t.Errorf("q = %q, want SOL", got)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %q, want 5", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"result": {"casts": [
				{"hash": "0xc1", "text": "SOL breaking out today"},
				{"hash": "0xc2", "text": "solana fees are low again"}
			]}
		}`))
	}))
	defer server.Close()

	model := &echoLLM{response: "overall bullish"}
	tool := NewSentimentTool(model, NewFarcasterClient(server.URL), nil)

	out, err := tool.Invoke(context.Background(), "SOL")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out["token"] != "SOL" || out["sentiment_analysis"] != "overall bullish" {
		t.Errorf("output = %v", out)
	}

	raw, _ := out["raw_data"].(map[string]any)
	if raw["source"] != "farcaster" {
		t.Errorf("source = %v, want farcaster", raw["source"])
	}
	if _, tagged := raw["degraded"]; tagged {
		t.Error("live data tagged as degraded")
	}
	casts, _ := raw["casts"].([]any)
	if len(casts) != 2 {
		t.Fatalf("casts = %v", raw["casts"])
	}

	prompt := strings.Join(model.prompts, "\n")
	if !strings.Contains(prompt, "SOL breaking out today") {
		t.Error("analysis prompt missing cast content")
	}
}

func TestSentimentToolDegradedFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	tool := NewSentimentTool(&echoLLM{response: "cautious"}, NewFarcasterClient(server.URL), nil)
	out, err := tool.Invoke(context.Background(), "BONK")
	if err != nil {
		t.Fatalf("Invoke should degrade, not fail: %v", err)
	}

	raw, _ := out["raw_data"].(map[string]any)
	if raw["degraded"] != true {
		t.Error("fallback output not tagged degraded")
	}
	if raw["source"] != "fallback" {
		t.Errorf("source = %v, want fallback", raw["source"])
	}
	casts, _ := raw["casts"].([]any)
	if len(casts) == 0 {
		t.Error("fallback produced no casts")
	}
}

func TestSentimentToolRejectsBadInput(t *testing.T) {
	tool := NewSentimentTool(&echoLLM{}, NewFarcasterClient("http://unused.invalid"), nil)
	if _, err := tool.Invoke(context.Background(), ""); err == nil {
		t.Error("empty token accepted")
	}
	if _, err := tool.Invoke(context.Background(), 7); err == nil {
		t.Error("non-string input accepted")
	}
}
