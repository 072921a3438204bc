// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator implements the dependency-aware tool-orchestration
// engine: a registry of named analysis tools, a tolerant parser for
// LLM-authored execution plans, a per-run state store with field-path
// lookup, an input resolver that projects prior step outputs into later
// step inputs, and a sequential executor that records per-step success or
// failure without aborting the run. Everything the model proposes is
// interpreted as validated data by a fixed executor — model output is
// never executed as code.
package orchestrator

import (
	"context"
	"fmt"
)

// Canonical tool names. The planner prompt, the consolidation table, and
// the tool implementations all agree on these strings.
const (
	ToolWallet      = "wallet_analysis"
	ToolSentiment   = "x_sentiment"
	ToolDexscreener = "dexscreener"
	ToolVolume      = "volume_analysis"
	ToolTechnical   = "technical_analysis"
	ToolRetriever   = "context_retriever"
)

// Tool is a named external capability with a uniform invoke contract.
//
// Description:
//
//	Invocation is side-effecting (network calls) and may fail
//	independently per call. Input is either a string (token symbol,
//	wallet address) or a structured value projected from prior step
//	outputs; each tool documents what it accepts.
//
// Thread Safety: Implementations must be safe for concurrent use; the
// executor itself invokes tools strictly sequentially.
type Tool interface {
	// Name returns the registry key for this tool.
	Name() string

	// Description returns a one-line capability description for the
	// planning prompt, including what input the tool expects.
	Description() string

	// Invoke runs the tool. The returned map is the tool's recorded
	// output; it must be non-nil on success.
	Invoke(ctx context.Context, input any) (map[string]any, error)
}

// Registry holds the callable analysis tools available to a plan.
//
// Description:
//
//	An explicit registration object injected into the orchestrator at
//	construction — no ambient global state. Registration order is
//	preserved so the planning prompt's tool catalog is deterministic.
//
// Thread Safety: Register is construction-time only; after construction
// the registry is read-only and safe for concurrent use.
type Registry struct {
	order []string
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool under its name.
//
// Outputs:
//   - error: Non-nil if a tool with the same name is already registered.
func (r *Registry) Register(t Tool) error {
	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("registry: tool %q already registered", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// MustRegister is Register that panics on duplicate names. For use in
// construction code where a duplicate is a programming error.
func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Get looks up a tool by name.
//
// Outputs:
//   - Tool: The registered tool.
//   - error: Wraps ErrToolNotFound when the name is not registered.
func (r *Registry) Get(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("registry: %w: %q", ErrToolNotFound, name)
	}
	return t, nil
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// DescribeAll returns "name: description" lines in registration order,
// for inclusion in the planning prompt.
func (r *Registry) DescribeAll() []string {
	out := make([]string, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, fmt.Sprintf("%s: %s", name, r.tools[name].Description()))
	}
	return out
}
