// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mq

import (
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Producer publishes recommendation requests onto the input subject.
type Producer struct {
	conn    *nats.Conn
	subject string
}

// NewProducer creates a producer on an established connection.
func NewProducer(conn *nats.Conn, subject string) *Producer {
	return &Producer{conn: conn, subject: subject}
}

// Publish sends a fire-and-forget request message.
func (p *Producer) Publish(walletAddress, preferences string) error {
	if err := p.conn.Publish(p.subject, requestBody(walletAddress, preferences)); err != nil {
		return fmt.Errorf("mq: publish request: %w", err)
	}
	return p.conn.Flush()
}

// Request sends the message and waits for the consumer's reply.
func (p *Producer) Request(walletAddress, preferences string, timeout time.Duration) ([]byte, error) {
	msg, err := p.conn.Request(p.subject, requestBody(walletAddress, preferences), timeout)
	if err != nil {
		return nil, fmt.Errorf("mq: request: %w", err)
	}
	return msg.Data, nil
}

// requestBody renders the plain-text message shape the consumer parses:
// wallet address plus free-form preferences.
func requestBody(walletAddress, preferences string) []byte {
	text := walletAddress
	if s := strings.TrimSpace(preferences); s != "" {
		text = text + " " + s
	}
	return []byte(text)
}
