// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// planningSystemPrompt frames the planner model's role. The plan format
// contract lives in the user prompt so a model override cannot lose it.
const planningSystemPrompt = "You are a planning assistant for a crypto trading " +
	"analysis engine. You decompose an analysis request into an ordered plan of " +
	"tool invocations. You respond with a JSON array only."

// BuildPlanningPrompt renders the planner request for one run.
//
// Description:
//
//	The prompt carries the tool catalog (from the registry, in
//	registration order), the request parameters, and the plan schema
//	with a worked example of depends_on and input_mapping. The example
//	teaches the path language by demonstration; the parser stays
//	tolerant regardless.
func BuildPlanningPrompt(reg *Registry, walletAddress, tokenSymbol, userPreferences string) string {
	var b strings.Builder

	b.WriteString("Plan a crypto trading analysis using the tools below.\n\n")
	b.WriteString("Available tools:\n")
	for _, line := range reg.DescribeAll() {
		b.WriteString("  - ")
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\nRequest:\n")
	fmt.Fprintf(&b, "  wallet_address: %s\n", walletAddress)
	if tokenSymbol != "" {
		fmt.Fprintf(&b, "  token_symbol: %s\n", tokenSymbol)
	}
	if userPreferences != "" {
		fmt.Fprintf(&b, "  user_preferences: %s\n", userPreferences)
	}

	b.WriteString(`
Respond with a JSON array of plan steps. Each step has:
  "step"          unique integer, execution order is ascending
  "tool"          one of the tool names above
  "input"         string or object input for the tool
  "depends_on"    list of earlier step numbers whose outputs this step reads
  "input_mapping" object mapping an input field to a path into a dependency
                  output, e.g. {"token": "$.step_1.tokens_bought[0]"}; a
                  ${field} placeholder in a string input is substituted

Example:
` + "```json" + `
[
  {"step": 1, "tool": "wallet_analysis", "input": "<wallet address>"},
  {"step": 2, "tool": "x_sentiment", "input": "${token}",
   "depends_on": [1],
   "input_mapping": {"token": "$.step_1.tokens_bought[0]"}}
]
` + "```" + `

Start with wallet_analysis. Include every tool whose output would improve
the recommendation. Respond with the JSON array only.
`)

	return b.String()
}

// BuildSynthesisPrompt renders the final consolidation request handed to
// the synthesis model. Optional sections appear only when their tool ran.
func BuildSynthesisPrompt(in ConsolidationInput) string {
	var b strings.Builder
	b.WriteString("Produce a trading recommendation from the analyses below.\n\n")
	writeSection(&b, "Sentiment analysis", in.Sentiment)
	writeSection(&b, "Technical analysis", in.Technical)
	writeSection(&b, "Wallet analysis", in.Wallet)
	if in.VolumeAnalysis != nil {
		writeSection(&b, "Volume analysis", in.VolumeAnalysis)
	}
	if in.TechnicalDetails != nil {
		writeSection(&b, "Technical details", in.TechnicalDetails)
	}
	if in.UserPreferences != "" {
		fmt.Fprintf(&b, "User preferences: %s\n\n", in.UserPreferences)
	}
	b.WriteString("Give a clear recommendation (buy, hold, or avoid) with reasoning, " +
		"sized to the user's stated risk preference.\n")
	return b.String()
}

// writeSection renders one analysis section as compact JSON. An empty map
// renders as "{}" — the model is told the analysis produced nothing rather
// than the section silently disappearing.
func writeSection(b *strings.Builder, name string, v map[string]any) {
	blob, err := json.Marshal(v)
	if err != nil {
		blob = []byte("{}")
	}
	fmt.Fprintf(b, "%s:\n%s\n\n", name, blob)
}
