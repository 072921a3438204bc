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

// ConsolidationInput is the fixed-shape record consumed by the final
// synthesis step.
//
// Description:
//
//	Sentiment, Technical, and Wallet are mandatory parameters: a tool
//	that never ran contributes an empty (non-nil) map. VolumeAnalysis
//	and TechnicalDetails are optional and stay nil when their tools
//	never ran, so the synthesis prompt can omit those sections.
type ConsolidationInput struct {
	Sentiment        map[string]any `json:"sentiment"`
	Technical        map[string]any `json:"technical"`
	Wallet           map[string]any `json:"wallet"`
	VolumeAnalysis   map[string]any `json:"volume_analysis,omitempty"`
	TechnicalDetails map[string]any `json:"technical_details,omitempty"`
	UserPreferences  string         `json:"user_preferences"`
}

// consolidationTable is the static tool-name to synthesis-parameter
// mapping. Tool outputs with no entry here are dropped — the synthesis
// step only consumes known parameters.
var consolidationTable = map[string]string{
	ToolSentiment:   "sentiment",
	ToolDexscreener: "technical",
	ToolWallet:      "wallet",
	ToolVolume:      "volume_analysis",
	ToolTechnical:   "technical_details",
}

// Consolidate maps recorded tool outputs to the parameters expected by
// the synthesis step.
//
// Description:
//
//	Pure function over the tool-name index: idempotent, and independent
//	of the order in which plan steps executed. Never-invoked mandatory
//	tools default to empty maps; never-invoked optional tools are left
//	nil (omitted).
//
// Inputs:
//   - outputs: tool name -> most recent recorded output.
//   - userPreferences: Free-form preference text forwarded verbatim.
//
// Outputs:
//   - ConsolidationInput: The assembled synthesis input.
func Consolidate(outputs map[string]map[string]any, userPreferences string) ConsolidationInput {
	in := ConsolidationInput{
		Sentiment:       map[string]any{},
		Technical:       map[string]any{},
		Wallet:          map[string]any{},
		UserPreferences: userPreferences,
	}
	for tool, output := range outputs {
		param, ok := consolidationTable[tool]
		if !ok || output == nil {
			continue
		}
		switch param {
		case "sentiment":
			in.Sentiment = output
		case "technical":
			in.Technical = output
		case "wallet":
			in.Wallet = output
		case "volume_analysis":
			in.VolumeAnalysis = output
		case "technical_details":
			in.TechnicalDetails = output
		}
	}
	return in
}
