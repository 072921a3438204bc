// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recommend

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianSignals/services/recommend/orchestrator"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// RecommendRequest is the POST /v1/signals/recommend body.
type RecommendRequest struct {
	WalletAddress   string `json:"wallet_address" binding:"required"`
	TokenSymbol     string `json:"token_symbol"`
	UserPreferences string `json:"user_preferences"`
	// Dynamic selects LLM-planned orchestration; defaults to true.
	Dynamic *bool `json:"dynamic"`
}

// RecommendResponse is the success body.
type RecommendResponse struct {
	RequestID            string         `json:"request_id"`
	Wallet               string         `json:"wallet"`
	ConsolidatedInsights string         `json:"consolidated_insights"`
	Details              map[string]any `json:"details"`
	ElapsedMs            int64          `json:"elapsed_ms"`
}

// Handlers holds the HTTP handlers over the service.
type Handlers struct {
	service *Service
	logger  *slog.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(service *Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{service: service, logger: logger}
}

// getOrCreateRequestID returns the inbound X-Request-ID or mints one.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// HandleRecommend handles POST /v1/signals/recommend.
//
// Description:
//
//	Runs one recommendation. Per-tool failures degrade the response
//	rather than failing it; only a synthesis failure maps to 502.
//
// Response:
//
//	200 OK: RecommendResponse
//	400 Bad Request: Missing wallet_address or malformed body
//	502 Bad Gateway: Synthesis model unavailable
func (h *Handlers) HandleRecommend(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With(slog.String("request_id", requestID))

	// The otelgin middleware has already extracted any inbound trace
	// context; carry the trace ID into the logs for correlation.
	if spanCtx := oteltrace.SpanFromContext(c.Request.Context()).SpanContext(); spanCtx.HasTraceID() {
		logger = logger.With(slog.String("trace_id", spanCtx.TraceID().String()))
	}

	var req RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "wallet_address is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	dynamic := req.Dynamic == nil || *req.Dynamic

	start := time.Now()
	rec, err := h.service.Recommend(c.Request.Context(), orchestrator.Request{
		WalletAddress:   req.WalletAddress,
		TokenSymbol:     req.TokenSymbol,
		UserPreferences: req.UserPreferences,
	}, dynamic)
	if err != nil {
		status := http.StatusInternalServerError
		code := "INTERNAL_ERROR"
		if errors.Is(err, orchestrator.ErrSynthesis) {
			status = http.StatusBadGateway
			code = "SYNTHESIS_FAILED"
		}
		logger.Error("recommendation failed",
			slog.String("wallet", req.WalletAddress),
			slog.String("error", err.Error()),
		)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	elapsed := time.Since(start)
	logger.Info("recommendation served",
		slog.String("wallet", req.WalletAddress),
		slog.Bool("dynamic", dynamic),
		slog.Duration("elapsed", elapsed),
	)
	c.JSON(http.StatusOK, RecommendResponse{
		RequestID:            requestID,
		Wallet:               req.WalletAddress,
		ConsolidatedInsights: rec.ConsolidatedInsights,
		Details:              rec.Details,
		ElapsedMs:            elapsed.Milliseconds(),
	})
}

// HandleTools handles GET /v1/signals/tools: tool discovery.
func (h *Handlers) HandleTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": h.service.ToolCatalog()})
}

// HandleHealth handles GET /v1/signals/health: process liveness.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleReady handles GET /v1/signals/ready: serving readiness.
func (h *Handlers) HandleReady(c *gin.Context) {
	if !h.service.Ready() {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "service not ready",
			Code:  "NOT_READY",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
