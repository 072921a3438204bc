// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package chain implements the fixed recommendation pipeline: the three
// core analyses run concurrently and feed one synthesis call. It is the
// predictable alternative to the orchestrator's LLM-authored plans —
// same tools, same consolidation, no planning step.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianSignals/services/recommend/orchestrator"
)

// Pipeline runs the fixed sentiment/technical/wallet fan-out.
//
// Thread Safety: Safe for concurrent use; all per-run state is local to
// Run.
type Pipeline struct {
	registry    *orchestrator.Registry
	synthesizer orchestrator.Synthesizer
	logger      *slog.Logger
}

// NewPipeline creates the fixed pipeline over the shared tool registry.
// The registry must contain the wallet, sentiment, and dexscreener tools.
func NewPipeline(registry *orchestrator.Registry, synthesizer orchestrator.Synthesizer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{registry: registry, synthesizer: synthesizer, logger: logger}
}

// Run executes the three analyses concurrently and synthesizes the
// result.
//
// Description:
//
//	Each branch failure degrades that branch to an empty section — the
//	branches never cancel each other. Only synthesis failure is
//	returned as an error, matching the orchestrator's propagation
//	policy.
func (p *Pipeline) Run(ctx context.Context, req orchestrator.Request) (*orchestrator.Recommendation, error) {
	token := req.TokenSymbol
	if token == "" {
		return nil, fmt.Errorf("chain: token symbol is required for the fixed pipeline")
	}

	var (
		mu      sync.Mutex
		outputs = make(map[string]map[string]any, 3)
	)
	record := func(tool string, out map[string]any) {
		mu.Lock()
		defer mu.Unlock()
		outputs[tool] = out
	}

	branches := []struct {
		tool  string
		input any
	}{
		{orchestrator.ToolSentiment, token},
		{orchestrator.ToolDexscreener, token},
		{orchestrator.ToolWallet, req.WalletAddress},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, branch := range branches {
		g.Go(func() error {
			out, err := p.invoke(gctx, branch.tool, branch.input)
			if err != nil {
				p.logger.Warn("pipeline branch failed",
					slog.String("tool", branch.tool),
					slog.String("error", err.Error()),
				)
				out = map[string]any{}
			}
			record(branch.tool, out)
			// Branch failures degrade; never cancel the siblings.
			return nil
		})
	}
	_ = g.Wait()

	consolidated := orchestrator.Consolidate(outputs, req.UserPreferences)
	insights, err := p.synthesizer.Synthesize(ctx, consolidated)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", orchestrator.ErrSynthesis, err)
	}

	return &orchestrator.Recommendation{
		ConsolidatedInsights: insights,
		Details: map[string]any{
			"sentiment": consolidated.Sentiment,
			"technical": consolidated.Technical,
			"wallet":    consolidated.Wallet,
		},
	}, nil
}

// invoke looks up and runs one registry tool.
func (p *Pipeline) invoke(ctx context.Context, tool string, input any) (map[string]any, error) {
	t, err := p.registry.Get(tool)
	if err != nil {
		return nil, err
	}
	return t.Invoke(ctx, input)
}
