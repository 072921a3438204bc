// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"fmt"
	"os"
)

// NewClient creates a Client for the named provider.
//
// Description:
//
//	Centralizes provider selection so callers configure a provider name
//	and optional model instead of picking a concrete constructor. API
//	keys always come from the environment (OPENAI_API_KEY or
//	ANTHROPIC_API_KEY), never from configuration files.
//
// Inputs:
//   - provider: "openai" or "anthropic". Empty selects openai.
//   - model: Overrides the provider's default model when non-empty.
//
// Outputs:
//   - Client: The configured client.
//   - error: Non-nil if the provider is unknown or its API key is missing.
func NewClient(provider, model string) (Client, error) {
	switch provider {
	case "openai", "":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("openai: API key is missing (OPENAI_API_KEY)")
		}
		if model == "" {
			if model = os.Getenv("OPENAI_MODEL"); model == "" {
				model = "gpt-4o"
			}
		}
		return NewOpenAIClientWithConfig(apiKey, model, defaultOpenAIBaseURL), nil
	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("anthropic: API key is missing (ANTHROPIC_API_KEY)")
		}
		if model == "" {
			if model = os.Getenv("ANTHROPIC_MODEL"); model == "" {
				model = "claude-sonnet-4-20250514"
			}
		}
		return NewAnthropicClientWithConfig(apiKey, model, defaultAnthropicBaseURL), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", provider)
	}
}
