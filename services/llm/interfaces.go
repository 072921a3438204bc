// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides provider-agnostic clients for text-completion
// services. Each provider (OpenAI, Anthropic) is implemented against its
// REST API directly with raw net/http — no third-party SDKs — behind the
// shared Client interface.
package llm

import "context"

// Message is a single turn in a conversation.
type Message struct {
	// Role is "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the text content of the message.
	Content string `json:"content"`
}

// GenerationParams holds optional generation tuning parameters.
//
// Description:
//
//	Nil pointer fields mean "use the provider default". ModelOverride
//	selects a different model for a single call without reconstructing
//	the client.
//
// Thread Safety: GenerationParams is a value type; copies are independent.
type GenerationParams struct {
	Temperature   *float32
	MaxTokens     *int
	TopP          *float32
	Stop          []string
	ModelOverride string
}

// Client is the black-box text-completion boundary consumed by the
// orchestrator and the analysis tools.
//
// Description:
//
//	Generate wraps a single prompt in a system/user conversation.
//	Chat sends a full conversation history. Both block for the duration
//	of the remote call; callers bound them with a context deadline.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Client interface {
	// Generate produces a completion for a single prompt.
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)

	// Chat produces a completion for a conversation history.
	Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error)
}

// Temperature returns a pointer to v for use in GenerationParams.
func Temperature(v float32) *float32 { return &v }

// MaxTokens returns a pointer to n for use in GenerationParams.
func MaxTokens(n int) *int { return &n }
