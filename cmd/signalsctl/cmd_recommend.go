// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// Flag values for the recommend command.
var (
	recommendWallet      string
	recommendToken       string
	recommendPreferences string
	recommendStatic      bool
)

// recommendRequest is the payload for POST /v1/signals/recommend.
type recommendRequest struct {
	WalletAddress   string `json:"wallet_address"`
	TokenSymbol     string `json:"token_symbol,omitempty"`
	UserPreferences string `json:"user_preferences,omitempty"`
	Dynamic         *bool  `json:"dynamic,omitempty"`
}

func newRecommendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Call the HTTP API directly, bypassing NATS",
		Run:   runRecommendCommand,
	}
	cmd.Flags().StringVar(&recommendWallet, "wallet", "", "Wallet address to analyze (required)")
	cmd.Flags().StringVar(&recommendToken, "token", "", "Token symbol of interest")
	cmd.Flags().StringVar(&recommendPreferences, "preferences", "", "Free-form trade preferences")
	cmd.Flags().BoolVar(&recommendStatic, "static", false, "Use the fixed pipeline instead of LLM planning (requires --token)")
	_ = cmd.MarkFlagRequired("wallet")
	return cmd
}

// getServerBaseURL resolves the API endpoint, preferring SIGNALS_URL.
func getServerBaseURL() string {
	if url := os.Getenv("SIGNALS_URL"); url != "" {
		return url
	}
	return "http://localhost:8090"
}

func runRecommendCommand(_ *cobra.Command, _ []string) {
	payload := recommendRequest{
		WalletAddress:   recommendWallet,
		TokenSymbol:     recommendToken,
		UserPreferences: recommendPreferences,
	}
	if recommendStatic {
		if recommendToken == "" {
			log.Fatalf("--static requires --token")
		}
		dynamic := false
		payload.Dynamic = &dynamic
	}
	body, _ := json.Marshal(payload)

	url := getServerBaseURL() + "/v1/signals/recommend"
	fmt.Printf("Analyzing %s\n", recommendWallet)

	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: signals server unavailable at %s\n", url)
		fmt.Fprintf(os.Stderr, "Start it with: go run ./cmd/signals\n")
		fmt.Fprintf(os.Stderr, "Or set SIGNALS_URL to override the default address.\n")
		log.Fatalf("connection failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("failed to read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("recommendation error (HTTP %d): %s", resp.StatusCode, string(raw))
	}
	printResult(raw)
}
