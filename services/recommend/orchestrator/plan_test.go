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
	"errors"
	"testing"
)

func TestParsePlanFencedJSON(t *testing.T) {
	raw := "Here is the plan:\n```json\n" +
		`[{"step": 1, "tool": "wallet_analysis", "input": "abc"},
		  {"step": 2, "tool": "x_sentiment", "input": "SOL", "depends_on": [1]}]` +
		"\n```\nLet me know if you need changes."

	plan, err := ParsePlan(raw)
	if err != nil {
		t.Fatalf("ParsePlan returned error: %v", err)
	}
	if len(plan) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(plan))
	}
	if plan[0].Tool != ToolWallet || plan[1].Tool != ToolSentiment {
		t.Errorf("unexpected tools: %q, %q", plan[0].Tool, plan[1].Tool)
	}
	if len(plan[1].DependsOn) != 1 || plan[1].DependsOn[0] != 1 {
		t.Errorf("step 2 depends_on = %v, want [1]", plan[1].DependsOn)
	}
}

func TestParsePlanBareArray(t *testing.T) {
	raw := `I suggest: [{"step": 1, "tool": "dexscreener", "input": "BONK"}] as the plan.`

	plan, err := ParsePlan(raw)
	if err != nil {
		t.Fatalf("ParsePlan returned error: %v", err)
	}
	if len(plan) != 1 || plan[0].Tool != ToolDexscreener {
		t.Fatalf("unexpected plan: %+v", plan)
	}
}

func TestParsePlanSortsAscending(t *testing.T) {
	raw := `[
		{"step": 3, "tool": "dexscreener", "input": "c"},
		{"step": 1, "tool": "wallet_analysis", "input": "a"},
		{"step": 2, "tool": "x_sentiment", "input": "b"}
	]`

	plan, err := ParsePlan(raw)
	if err != nil {
		t.Fatalf("ParsePlan returned error: %v", err)
	}
	for i, want := range []int{1, 2, 3} {
		if plan[i].Step != want {
			t.Errorf("position %d has step %d, want %d", i, plan[i].Step, want)
		}
	}
}

func TestParsePlanDuplicateStepKeepsFirst(t *testing.T) {
	raw := `[
		{"step": 1, "tool": "wallet_analysis", "input": "first"},
		{"step": 1, "tool": "x_sentiment", "input": "second"}
	]`

	plan, err := ParsePlan(raw)
	if err != nil {
		t.Fatalf("ParsePlan returned error: %v", err)
	}
	if len(plan) != 1 {
		t.Fatalf("expected 1 step after dedup, got %d", len(plan))
	}
	if plan[0].Tool != ToolWallet {
		t.Errorf("kept tool %q, want first occurrence %q", plan[0].Tool, ToolWallet)
	}
}

func TestParsePlanErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"no json at all", "I cannot produce a plan right now."},
		{"object not array", `{"step": 1, "tool": "wallet_analysis"}`},
		{"missing step field", `[{"tool": "wallet_analysis", "input": "x"}]`},
		{"missing tool field", `[{"step": 1, "input": "x"}]`},
		{"empty array", `[]`},
		{"malformed json", "```json\n[{\"step\": 1,]\n```"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePlan(tc.raw)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrPlanParse) {
				t.Errorf("error %v does not wrap ErrPlanParse", err)
			}
		})
	}
}

func TestDefaultPlanWithTokenSymbol(t *testing.T) {
	plan := DefaultPlan("wallet123", "SOL")
	if len(plan) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(plan))
	}
	if plan[0].Tool != ToolWallet || plan[1].Tool != ToolSentiment || plan[2].Tool != ToolDexscreener {
		t.Fatalf("unexpected tool order: %+v", plan)
	}
	if plan[1].Input != "SOL" {
		t.Errorf("sentiment input = %v, want supplied symbol", plan[1].Input)
	}
	if len(plan[1].InputMapping) != 0 {
		t.Errorf("sentiment mapping should be empty when symbol supplied, got %v", plan[1].InputMapping)
	}
}

func TestDefaultPlanDerivesTokenFromWallet(t *testing.T) {
	plan := DefaultPlan("wallet123", "")
	if plan[1].Input != "${token}" {
		t.Errorf("sentiment input = %v, want placeholder", plan[1].Input)
	}
	if plan[1].InputMapping["token"] != "$.step_1.tokens_bought[0]" {
		t.Errorf("sentiment mapping = %v", plan[1].InputMapping)
	}
}
