// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"errors"
	"testing"
)

// recordingRetriever captures the query and limit it was asked for.
type recordingRetriever struct {
	hits  []string
	err   error
	query string
	limit int
}

func (r *recordingRetriever) Retrieve(_ context.Context, query string, limit int) ([]string, error) {
	r.query = query
	r.limit = limit
	return r.hits, r.err
}

func TestRetrieverToolPassesConfiguredLimit(t *testing.T) {
	retriever := &recordingRetriever{hits: []string{"SOL broke out on volume"}}
	tool := NewRetrieverTool(retriever, 7)

	out, err := tool.Invoke(context.Background(), "SOL")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if retriever.limit != 7 {
		t.Errorf("limit = %d, want configured 7", retriever.limit)
	}
	if retriever.query != "SOL" {
		t.Errorf("query = %q", retriever.query)
	}
	insights, _ := out["insights"].([]any)
	if len(insights) != 1 || insights[0] != "SOL broke out on volume" {
		t.Errorf("insights = %v", insights)
	}
}

func TestRetrieverToolDefaultLimit(t *testing.T) {
	retriever := &recordingRetriever{}
	tool := NewRetrieverTool(retriever, 0)

	if _, err := tool.Invoke(context.Background(), "BONK"); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if retriever.limit != 3 {
		t.Errorf("limit = %d, want default 3", retriever.limit)
	}
}

func TestRetrieverToolRejectsBadInput(t *testing.T) {
	tool := NewRetrieverTool(&recordingRetriever{}, 3)

	if _, err := tool.Invoke(context.Background(), 42); err == nil {
		t.Error("non-string input accepted")
	}
	if _, err := tool.Invoke(context.Background(), ""); err == nil {
		t.Error("empty query accepted")
	}
}

func TestRetrieverToolPropagatesError(t *testing.T) {
	tool := NewRetrieverTool(&recordingRetriever{err: errors.New("vector store unreachable")}, 3)

	if _, err := tool.Invoke(context.Background(), "SOL"); err == nil {
		t.Error("retriever error swallowed")
	}
}
