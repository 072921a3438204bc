// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/AleutianAI/AleutianSignals/services/recommend/orchestrator"
)

type stubTool struct {
	name   string
	output map[string]any
	err    error
	inputs []any
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub" }

func (s *stubTool) Invoke(_ context.Context, input any) (map[string]any, error) {
	s.inputs = append(s.inputs, input)
	if s.err != nil {
		return nil, s.err
	}
	return s.output, nil
}

type stubSynthesizer struct {
	in     orchestrator.ConsolidationInput
	result string
	err    error
}

func (s *stubSynthesizer) Synthesize(_ context.Context, in orchestrator.ConsolidationInput) (string, error) {
	s.in = in
	return s.result, s.err
}

func pipelineFixture(t *testing.T, dexErr error) (*Pipeline, map[string]*stubTool, *stubSynthesizer) {
	t.Helper()
	tools := map[string]*stubTool{
		orchestrator.ToolWallet:      {name: orchestrator.ToolWallet, output: map[string]any{"risk_profile": "low"}},
		orchestrator.ToolSentiment:   {name: orchestrator.ToolSentiment, output: map[string]any{"score": 0.6}},
		orchestrator.ToolDexscreener: {name: orchestrator.ToolDexscreener, output: map[string]any{"price_usd": "9"}, err: dexErr},
	}
	reg := orchestrator.NewRegistry()
	for _, tool := range tools {
		reg.MustRegister(tool)
	}
	synth := &stubSynthesizer{result: "hold"}
	return NewPipeline(reg, synth, nil), tools, synth
}

func TestPipelineRunsAllBranches(t *testing.T) {
	p, tools, synth := pipelineFixture(t, nil)

	rec, err := p.Run(context.Background(), orchestrator.Request{
		WalletAddress:   "wallet-1",
		TokenSymbol:     "SOL",
		UserPreferences: "low risk",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.ConsolidatedInsights != "hold" {
		t.Errorf("insights = %q", rec.ConsolidatedInsights)
	}

	if got := tools[orchestrator.ToolSentiment].inputs; len(got) != 1 || got[0] != "SOL" {
		t.Errorf("sentiment inputs = %v", got)
	}
	if got := tools[orchestrator.ToolWallet].inputs; len(got) != 1 || got[0] != "wallet-1" {
		t.Errorf("wallet inputs = %v", got)
	}
	if synth.in.Wallet["risk_profile"] != "low" {
		t.Errorf("synthesis wallet section = %v", synth.in.Wallet)
	}
	if synth.in.UserPreferences != "low risk" {
		t.Errorf("preferences = %q", synth.in.UserPreferences)
	}
}

func TestPipelineBranchFailureDegrades(t *testing.T) {
	p, _, synth := pipelineFixture(t, errors.New("no pairs found for token SOL"))

	_, err := p.Run(context.Background(), orchestrator.Request{WalletAddress: "w", TokenSymbol: "SOL"})
	if err != nil {
		t.Fatalf("branch failure must degrade, got %v", err)
	}
	if synth.in.Technical == nil || len(synth.in.Technical) != 0 {
		t.Errorf("technical section = %v, want empty map", synth.in.Technical)
	}
	if len(synth.in.Sentiment) == 0 {
		t.Error("healthy branch lost its output")
	}
}

func TestPipelineRequiresToken(t *testing.T) {
	p, _, _ := pipelineFixture(t, nil)
	if _, err := p.Run(context.Background(), orchestrator.Request{WalletAddress: "w"}); err == nil {
		t.Error("expected error without token symbol")
	}
}

func TestPipelineSynthesisFailureIsFatal(t *testing.T) {
	p, _, synth := pipelineFixture(t, nil)
	synth.err = errors.New("model overloaded")

	_, err := p.Run(context.Background(), orchestrator.Request{WalletAddress: "w", TokenSymbol: "SOL"})
	if !errors.Is(err, orchestrator.ErrSynthesis) {
		t.Errorf("error = %v, want ErrSynthesis wrap", err)
	}
}
