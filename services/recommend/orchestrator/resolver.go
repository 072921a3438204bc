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
	"log/slog"
	"sort"
	"strings"
)

// DependencyView is the read-only slice of state visible to one step's
// input resolution: only the outputs of the steps named in depends_on.
//
// Description:
//
//	Each entry is addressable by its step key ("step_2") and by the
//	tool name that produced it. A depends_on entry pointing at a step
//	that has not executed (forward or cyclic reference) simply
//	contributes nothing — path queries against it yield no matches and
//	the literal input is retained, a defined degradation rather than a
//	crash.
type DependencyView struct {
	entries []dependencyEntry
}

type dependencyEntry struct {
	stepKey string
	tool    string
	output  map[string]any
}

// NewDependencyView builds the view for a step from the state manager.
// Steps in deps that have no recorded output are skipped.
func NewDependencyView(state *StateManager, deps []int, toolByStep map[int]string) *DependencyView {
	v := &DependencyView{}
	for _, dep := range deps {
		key := StepKey(dep)
		out, ok := state.byStep[key]
		if !ok {
			continue
		}
		v.entries = append(v.entries, dependencyEntry{
			stepKey: key,
			tool:    toolByStep[dep],
			output:  out,
		})
	}
	return v
}

// Query evaluates a source path expression against the view and returns
// the first match.
//
// Description:
//
//	The path language is a sandboxed subset of JSONPath restricted to
//	map and sequence indexing: an optional "$." root prefix, dotted
//	segments, and "[n]" array indexes. When the first segment names a
//	dependency (step key or tool name) the remainder is walked inside
//	that output; otherwise every dependency output is probed in
//	depends_on order and the first successful walk wins.
//
// Outputs:
//   - any: The first matching value.
//   - bool: False when the expression matches nothing.
func (v *DependencyView) Query(path string) (any, bool) {
	expr := strings.TrimSpace(path)
	expr = strings.TrimPrefix(expr, "$.")
	expr = strings.TrimPrefix(expr, "$")
	if expr == "" {
		return nil, false
	}

	head, rest, _ := strings.Cut(expr, ".")
	for _, e := range v.entries {
		if head == e.stepKey || head == e.tool {
			if rest == "" {
				return e.output, true
			}
			return walkPath(e.output, rest)
		}
	}
	for _, e := range v.entries {
		if val, ok := walkPath(e.output, expr); ok {
			return val, true
		}
	}
	return nil, false
}

// ResolveInput projects prior step outputs through a step's declared
// field mappings into its final input.
//
// Description:
//
//	For each input_mapping entry (processed in sorted target-field
//	order for determinism), the source path expression is evaluated
//	against the dependency view and the first match is taken. A
//	"${target_field}" placeholder in a string input is substituted
//	textually; a map input gains the field; otherwise the resolved
//	value replaces the input wholesale. A mapping that matches nothing
//	leaves the input unchanged for that mapping and the remaining
//	mappings still run — one bad mapping must not abort the step.
//
// Inputs:
//   - input: The step's literal input (string template or structured value).
//   - mapping: target field name -> source path expression.
//   - view: Outputs of the step's declared dependencies.
//   - logger: Destination for soft ErrInputResolution diagnostics.
//
// Outputs:
//   - any: The final resolved input value.
func ResolveInput(input any, mapping map[string]string, view *DependencyView, logger *slog.Logger) any {
	if len(mapping) == 0 {
		return input
	}
	if logger == nil {
		logger = slog.Default()
	}

	fields := make([]string, 0, len(mapping))
	for field := range mapping {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	resolved := input
	for _, field := range fields {
		expr := mapping[field]
		value, ok := view.Query(expr)
		if !ok {
			logger.Debug("input mapping skipped",
				slog.String("err", ErrInputResolution.Error()),
				slog.String("field", field),
				slog.String("path", expr),
			)
			continue
		}
		resolved = applyMapping(resolved, field, value)
	}
	return resolved
}

// applyMapping merges one resolved value into the input.
func applyMapping(input any, field string, value any) any {
	placeholder := "${" + field + "}"
	if s, ok := input.(string); ok && strings.Contains(s, placeholder) {
		return strings.ReplaceAll(s, placeholder, stringifyValue(value))
	}
	if mp, ok := input.(map[string]any); ok {
		merged := make(map[string]any, len(mp)+1)
		for k, v := range mp {
			merged[k] = v
		}
		merged[field] = value
		return merged
	}
	return value
}

// stringifyValue renders a resolved value for textual substitution.
// Scalars print naturally; nested structures render as compact JSON.
func stringifyValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	case float64, int, int64, bool:
		return fmt.Sprint(val)
	default:
		blob, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(blob)
	}
}
