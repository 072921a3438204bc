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
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"github.com/AleutianAI/AleutianSignals/services/recommend/orchestrator"
)

// tradingInsightClass is the Weaviate class holding historical
// recommendation snippets.
const tradingInsightClass = "TradingInsight"

// WeaviateRetriever fetches semantically related historical insights
// from Weaviate via nearText search. Implements both the
// orchestrator.ContextRetriever augmentation hook and the
// context_retriever plan tool.
//
// Thread Safety: Safe for concurrent use.
type WeaviateRetriever struct {
	client *weaviate.Client
	logger *slog.Logger
}

// NewWeaviateRetriever connects a retriever to the Weaviate instance at
// host ("weaviate:8080") over the given scheme.
func NewWeaviateRetriever(host, scheme string, logger *slog.Logger) (*WeaviateRetriever, error) {
	if scheme == "" {
		scheme = "http"
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := weaviate.NewClient(weaviate.Config{Host: host, Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("retriever: weaviate client: %w", err)
	}
	return &WeaviateRetriever{client: client, logger: logger}, nil
}

// Retrieve returns up to limit insight texts semantically close to the
// query.
func (r *WeaviateRetriever) Retrieve(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 3
	}

	nearText := r.client.GraphQL().NearTextArgBuilder().WithConcepts([]string{query})
	resp, err := r.client.GraphQL().Get().
		WithClassName(tradingInsightClass).
		WithFields(graphql.Field{Name: "text"}).
		WithNearText(nearText).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("retriever: query: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("retriever: graphql: %s", resp.Errors[0].Message)
	}

	get, ok := resp.Data["Get"].(map[string]any)
	if !ok {
		return nil, nil
	}
	objects, ok := get[tradingInsightClass].([]any)
	if !ok {
		return nil, nil
	}

	texts := make([]string, 0, len(objects))
	for _, obj := range objects {
		fields, ok := obj.(map[string]any)
		if !ok {
			continue
		}
		if text, ok := fields["text"].(string); ok && text != "" {
			texts = append(texts, text)
		}
	}
	r.logger.Debug("retrieved historical insights",
		slog.String("query", query),
		slog.Int("hits", len(texts)),
	)
	return texts, nil
}

// RetrieverTool exposes retrieval as a plan tool so the planner can ask
// for historical context explicitly.
type RetrieverTool struct {
	retriever orchestrator.ContextRetriever
	limit     int
}

// NewRetrieverTool wraps a retriever as a registry tool returning up to
// limit insights per query. limit <= 0 selects the default of 3.
func NewRetrieverTool(retriever orchestrator.ContextRetriever, limit int) *RetrieverTool {
	if limit <= 0 {
		limit = 3
	}
	return &RetrieverTool{retriever: retriever, limit: limit}
}

func (t *RetrieverTool) Name() string { return orchestrator.ToolRetriever }

func (t *RetrieverTool) Description() string {
	return "retrieves historical trading insights semantically related to a query; " +
		"input is a token symbol or free-form query"
}

// Invoke retrieves historical context for a query string.
func (t *RetrieverTool) Invoke(ctx context.Context, input any) (map[string]any, error) {
	query, ok := input.(string)
	if !ok || query == "" {
		return nil, fmt.Errorf("retriever: input must be a non-empty query, got %T", input)
	}

	texts, err := t.retriever.Retrieve(ctx, query, t.limit)
	if err != nil {
		return nil, fmt.Errorf("retriever: %w", err)
	}

	items := make([]any, 0, len(texts))
	for _, text := range texts {
		items = append(items, text)
	}
	return map[string]any{
		"query":    query,
		"insights": items,
	}, nil
}
