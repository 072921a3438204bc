// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianSignals/services/llm"
	"github.com/AleutianAI/AleutianSignals/services/recommend/chain"
	"github.com/AleutianAI/AleutianSignals/services/recommend/orchestrator"
)

type stubTool struct {
	name   string
	output map[string]any
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub tool" }

func (s *stubTool) Invoke(context.Context, any) (map[string]any, error) {
	return s.output, nil
}

type stubPlanner struct{ response string }

func (s *stubPlanner) Generate(context.Context, string, llm.GenerationParams) (string, error) {
	return s.response, nil
}

func (s *stubPlanner) Chat(context.Context, []llm.Message, llm.GenerationParams) (string, error) {
	return s.response, nil
}

type stubSynth struct {
	result string
	err    error
}

func (s *stubSynth) Synthesize(context.Context, orchestrator.ConsolidationInput) (string, error) {
	return s.result, s.err
}

func testRouter(t *testing.T, synth orchestrator.Synthesizer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := orchestrator.NewRegistry()
	reg.MustRegister(&stubTool{name: orchestrator.ToolWallet, output: map[string]any{"tokens_bought": []any{"SOL"}}})
	reg.MustRegister(&stubTool{name: orchestrator.ToolSentiment, output: map[string]any{"score": 0.5}})
	reg.MustRegister(&stubTool{name: orchestrator.ToolDexscreener, output: map[string]any{"price_usd": "1"}})

	orch := orchestrator.NewOrchestrator(reg, &stubPlanner{response: "no plan"}, synth, nil, 0, nil)
	pipeline := chain.NewPipeline(reg, synth, nil)
	service := NewService(reg, orch, pipeline, nil, nil)

	router := gin.New()
	RegisterRoutes(router.Group("/v1"), NewHandlers(service, nil))
	return router
}

func doRequest(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleRecommendOK(t *testing.T) {
	router := testRouter(t, &stubSynth{result: "accumulate slowly"})

	rec := doRequest(t, router, http.MethodPost, "/v1/signals/recommend",
		`{"wallet_address": "AVAZvHLR2PcWpDf8BXY4rVxNHYRBytycHkcB5z5QNXYm", "user_preferences": "medium risk"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp RecommendResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ConsolidatedInsights != "accumulate slowly" {
		t.Errorf("insights = %q", resp.ConsolidatedInsights)
	}
	if resp.RequestID == "" {
		t.Error("missing request_id")
	}
	if _, ok := resp.Details["wallet"]; !ok {
		t.Error("details missing wallet section")
	}
}

func TestHandleRecommendFixedPipeline(t *testing.T) {
	router := testRouter(t, &stubSynth{result: "fixed path"})

	rec := doRequest(t, router, http.MethodPost, "/v1/signals/recommend",
		`{"wallet_address": "w1", "token_symbol": "SOL", "dynamic": false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "fixed path") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHandleRecommendMissingWallet(t *testing.T) {
	router := testRouter(t, &stubSynth{result: "x"})

	rec := doRequest(t, router, http.MethodPost, "/v1/signals/recommend", `{"token_symbol": "SOL"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Code != "INVALID_REQUEST" {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestHandleRecommendSynthesisFailure(t *testing.T) {
	router := testRouter(t, &stubSynth{err: errors.New("model down")})

	rec := doRequest(t, router, http.MethodPost, "/v1/signals/recommend", `{"wallet_address": "w1"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "SYNTHESIS_FAILED") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHandleTools(t *testing.T) {
	router := testRouter(t, &stubSynth{result: "x"})

	rec := doRequest(t, router, http.MethodGet, "/v1/signals/tools", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	for _, want := range []string{orchestrator.ToolWallet, orchestrator.ToolSentiment, orchestrator.ToolDexscreener} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("tool list missing %q", want)
		}
	}
}

func TestHealthAndReady(t *testing.T) {
	router := testRouter(t, &stubSynth{result: "x"})

	if rec := doRequest(t, router, http.MethodGet, "/v1/signals/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
	if rec := doRequest(t, router, http.MethodGet, "/v1/signals/ready", ""); rec.Code != http.StatusOK {
		t.Errorf("ready status = %d", rec.Code)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	router := testRouter(t, &stubSynth{result: "x"})

	req := httptest.NewRequest(http.MethodPost, "/v1/signals/recommend",
		strings.NewReader(`{"wallet_address": "w1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "req-abc-123") {
		t.Error("inbound X-Request-ID not echoed in response")
	}
}
