// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mq is the NATS transport: free-form request messages in,
// recommendation JSON out. A request message is plain text carrying a
// wallet address somewhere inside it; everything around the address is
// treated as the user's preferences.
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/AleutianAI/AleutianSignals/services/recommend/orchestrator"
)

// Wallet address extraction patterns. Solana first (the primary chain),
// then EVM.
var (
	solanaExtractRe = regexp.MustCompile(`\b[1-9A-HJ-NP-Za-km-z]{32,44}\b`)
	evmExtractRe    = regexp.MustCompile(`\b0x[0-9a-fA-F]{40}\b`)
)

// defaultPreferences is used when a message carries nothing beyond the
// wallet address.
const defaultPreferences = "default"

// Recommender runs one recommendation request; implemented by the
// orchestrator.
type Recommender interface {
	Run(ctx context.Context, req orchestrator.Request) (*orchestrator.Recommendation, error)
}

// ParseRequest splits a free-form message into wallet address and
// preferences.
//
// Description:
//
//	The first Solana-shaped token wins; when none is present the first
//	EVM address is tried. The remainder of the text (address removed,
//	trimmed) becomes the preferences, defaulting to "default" when
//	empty.
//
// Outputs:
//   - orchestrator.Request: Wallet plus preferences.
//   - error: Non-nil when no wallet address is present.
func ParseRequest(text string) (orchestrator.Request, error) {
	address := solanaExtractRe.FindString(text)
	if address == "" {
		address = evmExtractRe.FindString(text)
	}
	if address == "" {
		return orchestrator.Request{}, fmt.Errorf("mq: no wallet address in message")
	}

	preferences := strings.TrimSpace(strings.Replace(text, address, "", 1))
	if preferences == "" {
		preferences = defaultPreferences
	}
	return orchestrator.Request{
		WalletAddress:   address,
		UserPreferences: preferences,
	}, nil
}

// Consumer subscribes to the input subject and runs one recommendation
// per message.
//
// Thread Safety: Safe for concurrent use; NATS delivers messages to the
// handler serially per subscription, and the recommender is stateless
// across runs.
type Consumer struct {
	conn          *nats.Conn
	recommender   Recommender
	inputSubject  string
	outputSubject string
	queueGroup    string
	logger        *slog.Logger
}

// NewConsumer creates a consumer on an established connection.
func NewConsumer(conn *nats.Conn, recommender Recommender, inputSubject, outputSubject, queueGroup string, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		conn:          conn,
		recommender:   recommender,
		inputSubject:  inputSubject,
		outputSubject: outputSubject,
		queueGroup:    queueGroup,
		logger:        logger,
	}
}

// Run subscribes and blocks until ctx is done.
//
// Description:
//
//	Malformed messages (no wallet address) get an error reply and are
//	dropped — they are not failures of the consumer. Results are
//	published to the output subject, and additionally to the message's
//	reply subject for request/reply callers.
func (c *Consumer) Run(ctx context.Context) error {
	sub, err := c.conn.QueueSubscribe(c.inputSubject, c.queueGroup, func(msg *nats.Msg) {
		c.handle(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("mq: subscribe %s: %w", c.inputSubject, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	c.logger.Info("consuming recommendation requests",
		slog.String("subject", c.inputSubject),
		slog.String("queue_group", c.queueGroup),
	)
	<-ctx.Done()
	return nil
}

func (c *Consumer) handle(ctx context.Context, msg *nats.Msg) {
	text := string(msg.Data)

	req, err := ParseRequest(text)
	if err != nil {
		c.logger.Warn("request message missing wallet address")
		c.publish(msg, map[string]any{
			"error": "essential information missing: provide a valid wallet address " +
				"along with any trade preferences",
		})
		return
	}

	c.logger.Info("recommendation request received",
		slog.String("wallet", req.WalletAddress),
		slog.String("preferences", req.UserPreferences),
	)

	rec, err := c.recommender.Run(ctx, req)
	if err != nil {
		c.logger.Error("recommendation run failed",
			slog.String("wallet", req.WalletAddress),
			slog.String("error", err.Error()),
		)
		c.publish(msg, map[string]any{
			"wallet": req.WalletAddress,
			"error":  err.Error(),
		})
		return
	}

	c.publish(msg, map[string]any{
		"wallet":                req.WalletAddress,
		"user_preferences":      req.UserPreferences,
		"consolidated_insights": rec.ConsolidatedInsights,
		"details":               rec.Details,
	})
}

// publish sends the payload to the output subject and, when the message
// carries a reply inbox, to that inbox as well.
func (c *Consumer) publish(msg *nats.Msg, payload map[string]any) {
	blob, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("marshal result", slog.String("error", err.Error()))
		return
	}
	if c.outputSubject != "" {
		if err := c.conn.Publish(c.outputSubject, blob); err != nil {
			c.logger.Warn("publish result", slog.String("error", err.Error()))
		}
	}
	if msg.Reply != "" {
		if err := msg.Respond(blob); err != nil {
			c.logger.Warn("respond to request", slog.String("error", err.Error()))
		}
	}
}
