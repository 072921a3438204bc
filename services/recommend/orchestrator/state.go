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
	"fmt"
	"strconv"
	"strings"
)

// StepKey renders a step number as a state-store key ("step_3").
func StepKey(step int) string {
	return fmt.Sprintf("step_%d", step)
}

// StateManager stores each executed step's output for the lifetime of a
// single orchestration run.
//
// Description:
//
//	Primary storage is step-keyed ("step_3"), so two plan steps that
//	invoke the same tool retain independently addressable outputs. A
//	secondary tool-name index (last writer wins) serves the final
//	consolidation mapping, which is expressed in tool names.
//
//	Created empty per run and discarded at run end — no persistence.
//
// Thread Safety: NOT safe for concurrent use. The executor is the only
// writer and runs steps strictly sequentially; no locking is required
// under that model.
type StateManager struct {
	byStep map[string]map[string]any
	byTool map[string]map[string]any
}

// NewStateManager creates an empty per-run state store.
func NewStateManager() *StateManager {
	return &StateManager{
		byStep: make(map[string]map[string]any),
		byTool: make(map[string]map[string]any),
	}
}

// SetOutput records a step's output under both its step key and its tool
// name. A nil output is stored as an empty map so downstream dependents
// see an absent-field pattern rather than a missing key.
func (m *StateManager) SetOutput(step int, tool string, output map[string]any) {
	if output == nil {
		output = map[string]any{}
	}
	m.byStep[StepKey(step)] = output
	if tool != "" {
		m.byTool[tool] = output
	}
}

// StepOutput returns the output recorded for a step number, or an empty
// map when the step has not run.
func (m *StateManager) StepOutput(step int) map[string]any {
	if out, ok := m.byStep[StepKey(step)]; ok {
		return out
	}
	return map[string]any{}
}

// ToolOutput returns the most recent output recorded for a tool name, or
// an empty map when the tool was never invoked.
func (m *StateManager) ToolOutput(tool string) map[string]any {
	if out, ok := m.byTool[tool]; ok {
		return out
	}
	return map[string]any{}
}

// ToolOutputs returns a shallow copy of the tool-name index for the
// consolidation adapter.
func (m *StateManager) ToolOutputs() map[string]map[string]any {
	out := make(map[string]map[string]any, len(m.byTool))
	for name, v := range m.byTool {
		out[name] = v
	}
	return out
}

// Field walks a dot-separated path into the output stored under key and
// returns the value at that path.
//
// Description:
//
//	key may be a step key ("step_3") or a tool name. Path segments
//	index maps by name and sequences by "name[2]" or a bare numeric
//	segment. Any absent segment, out-of-range index, or non-indexable
//	intermediate yields (nil, false) — never an error. A missing
//	optional metric must not abort a plan.
//
// Inputs:
//   - key: State-store key. Step key or tool name.
//   - path: Dot-separated path ("raw_data.transactions[0].token"). An
//     empty path returns the whole stored output.
//
// Outputs:
//   - any: The value at the path, nil when not found.
//   - bool: True when the path resolved.
func (m *StateManager) Field(key, path string) (any, bool) {
	root, ok := m.byStep[key]
	if !ok {
		root, ok = m.byTool[key]
	}
	if !ok {
		return nil, false
	}
	if path == "" {
		return root, true
	}
	return walkPath(root, path)
}

// walkPath resolves a dot-separated path against a nested structure of
// maps, slices, and scalars.
func walkPath(root any, path string) (any, bool) {
	current := root
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return nil, false
		}
		name, indexes, ok := splitIndexes(segment)
		if !ok {
			return nil, false
		}
		if name != "" {
			mp, ok := current.(map[string]any)
			if !ok {
				return nil, false
			}
			current, ok = mp[name]
			if !ok {
				return nil, false
			}
		}
		for _, idx := range indexes {
			seq, ok := current.([]any)
			if !ok {
				return nil, false
			}
			if idx < 0 || idx >= len(seq) {
				return nil, false
			}
			current = seq[idx]
		}
	}
	return current, true
}

// splitIndexes splits a path segment into its map key and any trailing
// array indexes. "tokens[0]" -> ("tokens", [0]); "3" -> ("", [3]) so a
// bare numeric segment indexes a sequence directly.
func splitIndexes(segment string) (string, []int, bool) {
	if n, err := strconv.Atoi(segment); err == nil {
		return "", []int{n}, true
	}
	name := segment
	var indexes []int
	for {
		open := strings.IndexByte(name, '[')
		if open < 0 {
			break
		}
		rest := name[open:]
		name = name[:open]
		for rest != "" {
			if rest[0] != '[' {
				return "", nil, false
			}
			closeIdx := strings.IndexByte(rest, ']')
			if closeIdx < 0 {
				return "", nil, false
			}
			n, err := strconv.Atoi(rest[1:closeIdx])
			if err != nil {
				return "", nil, false
			}
			indexes = append(indexes, n)
			rest = rest[closeIdx+1:]
		}
	}
	return name, indexes, true
}
