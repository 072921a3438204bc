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
	"regexp"
	"sort"
	"strings"
)

// PlanStep is one tool invocation in an LLM-authored plan.
//
// Description:
//
//	Step is the unique execution-order number. Tool must resolve in the
//	registry at execution time (a dangling name fails that step only).
//	Input is a literal string or structured value; it may contain
//	${field} placeholders filled from InputMapping. DependsOn lists the
//	step numbers whose outputs are visible to this step's input
//	resolution. InputMapping maps a target field name to a source path
//	expression over those outputs.
type PlanStep struct {
	Step         int               `json:"step"`
	Tool         string            `json:"tool"`
	Input        any               `json:"input"`
	DependsOn    []int             `json:"depends_on"`
	InputMapping map[string]string `json:"input_mapping"`
}

// Plan is an ordered sequence of steps; execution order is ascending Step.
type Plan []PlanStep

// fencedJSONRe matches a ```json fenced block; fencedAnyRe matches any
// fenced block. Both are tried before the raw bracket scan.
var (
	fencedJSONRe = regexp.MustCompile("(?s)```json\\s*(.*?)```")
	fencedAnyRe  = regexp.MustCompile("(?s)```\\s*(.*?)```")
)

// ParsePlan extracts a structured step list from a free-form model
// response.
//
// Description:
//
//	The planner collaborator guarantees no bit-exact format, so
//	extraction is tolerant: first a fenced json block, then any fenced
//	block, then a scan for the outermost [...] array in the raw text.
//	Each record must carry "step" and "tool"; missing optional fields
//	default to empty. Steps are sorted ascending by step number;
//	duplicate step numbers keep the first occurrence.
//
// Inputs:
//   - raw: The model's response text.
//
// Outputs:
//   - Plan: The validated, sorted plan.
//   - error: Wraps ErrPlanParse when no array-shaped JSON is found, the
//     JSON does not parse, or no record is valid.
func ParsePlan(raw string) (Plan, error) {
	candidate, ok := extractJSONArray(raw)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON array in response (%d bytes)", ErrPlanParse, len(raw))
	}

	// First pass keeps raw records so required-field presence can be
	// checked: encoding/json would silently zero a missing "step".
	var records []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlanParse, err)
	}

	plan := make(Plan, 0, len(records))
	seen := make(map[int]bool)
	for i, rec := range records {
		if _, ok := rec["step"]; !ok {
			return nil, fmt.Errorf("%w: record %d missing required field \"step\"", ErrPlanParse, i)
		}
		if _, ok := rec["tool"]; !ok {
			return nil, fmt.Errorf("%w: record %d missing required field \"tool\"", ErrPlanParse, i)
		}
		blob, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPlanParse, err)
		}
		var step PlanStep
		if err := json.Unmarshal(blob, &step); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrPlanParse, i, err)
		}
		if step.Tool == "" {
			return nil, fmt.Errorf("%w: record %d has empty tool name", ErrPlanParse, i)
		}
		if step.InputMapping == nil {
			step.InputMapping = map[string]string{}
		}
		if seen[step.Step] {
			continue // duplicate step number: keep first
		}
		seen[step.Step] = true
		plan = append(plan, step)
	}
	if len(plan) == 0 {
		return nil, fmt.Errorf("%w: response contained no plan steps", ErrPlanParse)
	}

	sort.SliceStable(plan, func(i, j int) bool { return plan[i].Step < plan[j].Step })
	return plan, nil
}

// extractJSONArray locates the JSON array text inside a model response.
func extractJSONArray(raw string) (string, bool) {
	for _, re := range []*regexp.Regexp{fencedJSONRe, fencedAnyRe} {
		if m := re.FindStringSubmatch(raw); m != nil {
			inner := strings.TrimSpace(m[1])
			if strings.HasPrefix(inner, "[") {
				return inner, true
			}
		}
	}
	open := strings.Index(raw, "[")
	closeIdx := strings.LastIndex(raw, "]")
	if open >= 0 && closeIdx > open {
		return raw[open : closeIdx+1], true
	}
	return "", false
}

// DefaultPlan is the hard-coded minimal sequence covering the mandatory
// tools, used when the planner response yields no parseable plan.
//
// Description:
//
//	Wallet analysis first, then sentiment for the token (derived from
//	the wallet's first bought token when no symbol was supplied), then
//	the Dexscreener similar-token analysis fed by the wallet output.
//	The user still receives a best-effort recommendation instead of an
//	abort — a deliberate robustness property.
func DefaultPlan(walletAddress, tokenSymbol string) Plan {
	sentiment := PlanStep{
		Step:         2,
		Tool:         ToolSentiment,
		Input:        tokenSymbol,
		DependsOn:    []int{1},
		InputMapping: map[string]string{},
	}
	if tokenSymbol == "" {
		sentiment.Input = "${token}"
		sentiment.InputMapping = map[string]string{"token": "$.step_1.tokens_bought[0]"}
	}
	return Plan{
		{
			Step:         1,
			Tool:         ToolWallet,
			Input:        walletAddress,
			InputMapping: map[string]string{},
		},
		sentiment,
		{
			Step:         3,
			Tool:         ToolDexscreener,
			Input:        walletAddress,
			DependsOn:    []int{1},
			InputMapping: map[string]string{"wallet_insights": "$.step_1"},
		},
	}
}
