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

import "testing"

func TestStateManagerStepAndToolKeys(t *testing.T) {
	m := NewStateManager()
	m.SetOutput(1, ToolWallet, map[string]any{"risk": "low"})

	if got := m.StepOutput(1)["risk"]; got != "low" {
		t.Errorf("StepOutput(1)[risk] = %v, want low", got)
	}
	if got := m.ToolOutput(ToolWallet)["risk"]; got != "low" {
		t.Errorf("ToolOutput(wallet)[risk] = %v, want low", got)
	}
}

func TestStateManagerSameToolTwoStepsIndependent(t *testing.T) {
	m := NewStateManager()
	m.SetOutput(2, ToolSentiment, map[string]any{"token": "SOL"})
	m.SetOutput(5, ToolSentiment, map[string]any{"token": "BONK"})

	if got := m.StepOutput(2)["token"]; got != "SOL" {
		t.Errorf("step 2 output overwritten: got %v", got)
	}
	if got := m.StepOutput(5)["token"]; got != "BONK" {
		t.Errorf("step 5 output = %v, want BONK", got)
	}
	// Tool index is last writer wins.
	if got := m.ToolOutput(ToolSentiment)["token"]; got != "BONK" {
		t.Errorf("tool index = %v, want most recent", got)
	}
}

func TestStateManagerAbsentKeysReturnEmpty(t *testing.T) {
	m := NewStateManager()
	if out := m.StepOutput(99); out == nil || len(out) != 0 {
		t.Errorf("StepOutput for absent step = %v, want empty map", out)
	}
	if out := m.ToolOutput("nope"); out == nil || len(out) != 0 {
		t.Errorf("ToolOutput for absent tool = %v, want empty map", out)
	}
}

func TestStateManagerNilOutputStoredAsEmpty(t *testing.T) {
	m := NewStateManager()
	m.SetOutput(1, ToolWallet, nil)
	if out := m.StepOutput(1); out == nil {
		t.Fatal("nil output should be stored as empty map")
	}
}

func TestFieldPathLookup(t *testing.T) {
	m := NewStateManager()
	m.SetOutput(1, ToolWallet, map[string]any{
		"raw_data": map[string]any{
			"transactions": []any{
				map[string]any{"token": "SOL", "amount": 12.5},
				map[string]any{"token": "BONK"},
			},
		},
		"tokens_bought": []any{"SOL", "BONK"},
	})

	cases := []struct {
		name string
		key  string
		path string
		want any
		ok   bool
	}{
		{"nested map and index", "step_1", "raw_data.transactions[0].token", "SOL", true},
		{"tool name key", ToolWallet, "tokens_bought[1]", "BONK", true},
		{"bare numeric segment", "step_1", "tokens_bought.0", "SOL", true},
		{"empty path returns whole output", "step_1", "", nil, true},
		{"absent field", "step_1", "raw_data.missing", nil, false},
		{"index out of range", "step_1", "tokens_bought[9]", nil, false},
		{"negative index", "step_1", "tokens_bought[-1]", nil, false},
		{"index into scalar", "step_1", "raw_data.transactions[0].token[0]", nil, false},
		{"absent key", "step_9", "anything", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := m.Field(tc.key, tc.path)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if tc.want != nil && got != tc.want {
				t.Errorf("value = %v, want %v", got, tc.want)
			}
		})
	}
}
