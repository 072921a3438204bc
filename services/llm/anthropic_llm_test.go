// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewAnthropicClient_MissingAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := NewAnthropicClient()
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	if !strings.Contains(err.Error(), "anthropic:") {
		t.Errorf("error should include 'anthropic:' prefix, got: %s", err.Error())
	}
}

func TestAnthropicClient_Chat_SystemHoistedToTopLevel(t *testing.T) {
	var captured anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q, want %q", got, "test-key")
		}
		if got := r.Header.Get("anthropic-version"); got != anthropicAPIVersion {
			t.Errorf("anthropic-version = %q, want %q", got, anthropicAPIVersion)
		}
		json.NewDecoder(r.Body).Decode(&captured)
		resp := anthropicResponse{
			Content:    []anthropicContent{{Type: "text", Text: "Hold."}},
			StopReason: "end_turn",
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewAnthropicClientWithConfig("test-key", "claude-sonnet-4-20250514", server.URL)
	got, err := client.Chat(context.Background(), []Message{
		{Role: "system", Content: "You are a crypto analyst."},
		{Role: "user", Content: "Should I buy ETH?"},
	}, GenerationParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Hold." {
		t.Errorf("response = %q, want %q", got, "Hold.")
	}
	if captured.System != "You are a crypto analyst." {
		t.Errorf("system = %q, want hoisted system prompt", captured.System)
	}
	if len(captured.Messages) != 1 {
		t.Fatalf("messages = %d, want 1 (system removed from list)", len(captured.Messages))
	}
	if captured.MaxTokens != anthropicDefaultMaxTokens {
		t.Errorf("max_tokens = %d, want default %d", captured.MaxTokens, anthropicDefaultMaxTokens)
	}
}

func TestAnthropicClient_Chat_MergesConsecutiveSameRole(t *testing.T) {
	var captured anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		resp := anthropicResponse{Content: []anthropicContent{{Type: "text", Text: "ok"}}}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewAnthropicClientWithConfig("test-key", "claude-sonnet-4-20250514", server.URL)
	_, err := client.Chat(context.Background(), []Message{
		{Role: "user", Content: "first"},
		{Role: "user", Content: "second"},
	}, GenerationParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(captured.Messages) != 1 {
		t.Fatalf("messages = %d, want 1 merged message", len(captured.Messages))
	}
	if !strings.Contains(captured.Messages[0].Content, "first") ||
		!strings.Contains(captured.Messages[0].Content, "second") {
		t.Errorf("merged content = %q, want both parts", captured.Messages[0].Content)
	}
}

func TestAnthropicClient_Chat_NoMessagesError(t *testing.T) {
	client := NewAnthropicClientWithConfig("test-key", "claude-sonnet-4-20250514", "http://unused")
	_, err := client.Chat(context.Background(), []Message{
		{Role: "system", Content: "system only"},
	}, GenerationParams{})
	if err == nil {
		t.Fatal("expected error when only system messages are present")
	}
}

func TestAnthropicClient_Chat_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"type": "error", "error": {"type": "invalid_request_error", "message": "bad"}}`))
	}))
	defer server.Close()

	client := NewAnthropicClientWithConfig("test-key", "claude-sonnet-4-20250514", server.URL)
	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, GenerationParams{})
	if err == nil {
		t.Fatal("expected error for HTTP 400")
	}
	if !strings.Contains(err.Error(), "anthropic:") {
		t.Errorf("error should include 'anthropic:' prefix, got: %s", err.Error())
	}
}

func TestAnthropicClient_Chat_ConcatenatesTextBlocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := anthropicResponse{
			Content: []anthropicContent{
				{Type: "text", Text: "part one. "},
				{Type: "text", Text: "part two."},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewAnthropicClientWithConfig("test-key", "claude-sonnet-4-20250514", server.URL)
	got, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, GenerationParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "part one. part two." {
		t.Errorf("response = %q, want concatenated text blocks", got)
	}
}
