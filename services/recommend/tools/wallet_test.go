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

	"github.com/AleutianAI/AleutianSignals/services/llm"
)

const testSolanaAddress = "AVAZvHLR2PcWpDf8BXY4rVxNHYRBytycHkcB5z5QNXYm"
const testEVMAddress = "0x1111111111111111111111111111111111111111"

// echoLLM returns a canned response and records the prompts it saw.
type echoLLM struct {
	response string
	err      error
	prompts  []string
}

func (e *echoLLM) Generate(_ context.Context, prompt string, _ llm.GenerationParams) (string, error) {
	e.prompts = append(e.prompts, prompt)
	return e.response, e.err
}

func (e *echoLLM) Chat(_ context.Context, messages []llm.Message, _ llm.GenerationParams) (string, error) {
	for _, m := range messages {
		e.prompts = append(e.prompts, m.Content)
	}
	return e.response, e.err
}

func TestWalletToolSolanaAddress(t *testing.T) {
	model := &echoLLM{response: "frequent ETH buyer, medium risk"}
	tool := NewWalletTool(model, nil, nil)

	out, err := tool.Invoke(context.Background(), testSolanaAddress)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out["wallet"] != testSolanaAddress {
		t.Errorf("wallet = %v", out["wallet"])
	}
	if out["chain"] != "solana" {
		t.Errorf("chain = %v, want solana", out["chain"])
	}
	if out["wallet_insights"] != "frequent ETH buyer, medium risk" {
		t.Errorf("wallet_insights = %v", out["wallet_insights"])
	}

	bought, ok := out["tokens_bought"].([]any)
	if !ok {
		t.Fatalf("tokens_bought is %T", out["tokens_bought"])
	}
	// Built-in index buys ETH, SOL, ADA; BTC is a sell.
	want := []any{"ETH", "SOL", "ADA"}
	if len(bought) != len(want) {
		t.Fatalf("tokens_bought = %v, want %v", bought, want)
	}
	for i := range want {
		if bought[i] != want[i] {
			t.Errorf("tokens_bought[%d] = %v, want %v", i, bought[i], want[i])
		}
	}
}

func TestWalletToolRejectsInvalidAddress(t *testing.T) {
	tool := NewWalletTool(&echoLLM{}, nil, nil)
	for _, addr := range []string{
		"",
		"not-an-address",
		"0x123",                 // too short for EVM
		"0OIl11111111111111111111111111111111", // base58-forbidden chars
	} {
		if _, err := tool.Invoke(context.Background(), addr); err == nil {
			t.Errorf("address %q accepted, want error", addr)
		}
	}
	if _, err := tool.Invoke(context.Background(), 42); err == nil {
		t.Error("non-string input accepted")
	}
}

func TestWalletToolEVMUsesScanAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("action"); got != "tokentx" {
			t.Errorf("action = %q, want tokentx", got)
		}
		if got := r.URL.Query().Get("address"); got != testEVMAddress {
			t.Errorf("address = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "1", "message": "OK",
			"result": [
				{"hash": "0xaa", "tokenSymbol": "USDC", "tokenDecimal": "6",
				 "value": "2500000", "from": "0x2222222222222222222222222222222222222222",
				 "to": "` + testEVMAddress + `", "timeStamp": "1700000000"},
				{"hash": "0xbb", "tokenSymbol": "WETH", "tokenDecimal": "18",
				 "value": "1000000000000000000", "from": "` + testEVMAddress + `",
				 "to": "0x3333333333333333333333333333333333333333", "timeStamp": "1700000500"}
			]
		}`))
	}))
	defer server.Close()

	model := &echoLLM{response: "stablecoin accumulator"}
	tool := NewWalletTool(model, NewEVMScanClient(server.URL, "test-key"), nil)

	out, err := tool.Invoke(context.Background(), testEVMAddress)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out["chain"] != "evm" {
		t.Errorf("chain = %v", out["chain"])
	}
	bought, _ := out["tokens_bought"].([]any)
	if len(bought) != 1 || bought[0] != "USDC" {
		t.Errorf("tokens_bought = %v, want [USDC] (incoming transfer only)", bought)
	}

	// The prompt carries the real transfer data.
	joined := strings.Join(model.prompts, "\n")
	if !strings.Contains(joined, "USDC") || !strings.Contains(joined, "WETH") {
		t.Error("analysis prompt missing fetched transfer data")
	}
}

func TestTokenTransfersClassifiesBuyIgnoringCase(t *testing.T) {
	// Explorers return checksummed (mixed-case) addresses; the query
	// address may be all-lowercase. Direction must still classify.
	const queried = "0xabcdef1234567890abcdef1234567890abcdef12"
	const checksummed = "0xAbCdEf1234567890aBcDeF1234567890AbCdEf12"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "1", "message": "OK",
			"result": [
				{"hash": "0xcc", "tokenSymbol": "USDC", "tokenDecimal": "6",
				 "value": "1000000", "from": "0x2222222222222222222222222222222222222222",
				 "to": "` + checksummed + `", "timeStamp": "1700001000"},
				{"hash": "0xdd", "tokenSymbol": "WETH", "tokenDecimal": "18",
				 "value": "1000000000000000000", "from": "` + checksummed + `",
				 "to": "0x3333333333333333333333333333333333333333", "timeStamp": "1700001500"}
			]
		}`))
	}))
	defer server.Close()

	client := NewEVMScanClient(server.URL, "")
	txns, err := client.TokenTransfers(context.Background(), queried)
	if err != nil {
		t.Fatalf("TokenTransfers: %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("got %d transfers, want 2", len(txns))
	}
	if txns[0].Type != "buy" {
		t.Errorf("incoming transfer type = %q, want buy despite case mismatch", txns[0].Type)
	}
	if txns[1].Type != "sell" {
		t.Errorf("outgoing transfer type = %q, want sell", txns[1].Type)
	}
}

func TestWalletToolScanFailureFallsBackToIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	tool := NewWalletTool(&echoLLM{response: "x"}, NewEVMScanClient(server.URL, ""), nil)
	out, err := tool.Invoke(context.Background(), testEVMAddress)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	bought, _ := out["tokens_bought"].([]any)
	if len(bought) == 0 {
		t.Error("fallback index produced no tokens_bought")
	}
}

func TestScaledAmount(t *testing.T) {
	cases := []struct {
		value, decimals string
		want            float64
	}{
		{"2500000", "6", 2.5},
		{"1000000000000000000", "18", 1.0},
		{"bogus", "6", 0},
		{"100", "bogus", 100},
	}
	for _, tc := range cases {
		if got := scaledAmount(tc.value, tc.decimals); got != tc.want {
			t.Errorf("scaledAmount(%q, %q) = %v, want %v", tc.value, tc.decimals, got, tc.want)
		}
	}
}
