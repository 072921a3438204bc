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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianSignals/services/llm"
)

// evmScanDefaultTimeout bounds one scan API request.
const evmScanDefaultTimeout = 10 * time.Second

// evmScanMaxTransfers caps how many transfers feed the analysis prompt.
const evmScanMaxTransfers = 25

// EVMScanClient talks to an Etherscan-compatible block explorer API
// (Basescan, Etherscan) for ERC-20 transfer history.
//
// Thread Safety: Safe for concurrent use.
type EVMScanClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewEVMScanClient creates a scan client. baseURL is the explorer API
// root ("https://api.basescan.org/api"); apiKey may be empty for the
// public rate tier.
func NewEVMScanClient(baseURL, apiKey string) *EVMScanClient {
	return &EVMScanClient{
		httpClient: &http.Client{Timeout: evmScanDefaultTimeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// evmScanResponse is the explorer's envelope. Status "1" is success;
// "0" with message "No transactions found" is an empty result, any
// other "0" is an API error.
type evmScanResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Result  []evmScanTransfer `json:"result"`
}

type evmScanTransfer struct {
	Hash         string `json:"hash"`
	TokenSymbol  string `json:"tokenSymbol"`
	TokenDecimal string `json:"tokenDecimal"`
	Value        string `json:"value"`
	From         string `json:"from"`
	To           string `json:"to"`
	TimeStamp    string `json:"timeStamp"`
}

// TokenTransfers returns the wallet's recent ERC-20 transfers mapped into
// the tool's transaction shape. A transfer into the wallet is a buy, out
// of it a sell.
func (c *EVMScanClient) TokenTransfers(ctx context.Context, address string) ([]WalletTransaction, error) {
	q := url.Values{}
	q.Set("module", "account")
	q.Set("action", "tokentx")
	q.Set("address", address)
	q.Set("sort", "desc")
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("evmscan: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("evmscan: %s", llm.SafeLogString(err.Error()))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("evmscan: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("evmscan: status %d: %s", resp.StatusCode, llm.SafeLogString(string(body)))
	}

	var parsed evmScanResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("evmscan: parse response: %w", err)
	}
	if parsed.Status != "1" && parsed.Message != "No transactions found" {
		return nil, fmt.Errorf("evmscan: API error: %s", parsed.Message)
	}

	transfers := parsed.Result
	if len(transfers) > evmScanMaxTransfers {
		transfers = transfers[:evmScanMaxTransfers]
	}

	txns := make([]WalletTransaction, 0, len(transfers))
	for _, tr := range transfers {
		txType := "sell"
		if strings.EqualFold(tr.To, address) {
			txType = "buy"
		}
		txns = append(txns, WalletTransaction{
			ID:        tr.Hash,
			Token:     tr.TokenSymbol,
			Amount:    scaledAmount(tr.Value, tr.TokenDecimal),
			Type:      txType,
			Timestamp: unixTimestamp(tr.TimeStamp),
		})
	}
	return txns, nil
}

// scaledAmount converts a raw integer token value by its decimal count.
// Unparseable values report 0 rather than failing the fetch.
func scaledAmount(value, decimals string) float64 {
	raw, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	dec, err := strconv.Atoi(decimals)
	if err != nil || dec < 0 || dec > 30 {
		return raw
	}
	for i := 0; i < dec; i++ {
		raw /= 10
	}
	return raw
}

// unixTimestamp renders an explorer epoch-seconds string as RFC 3339.
func unixTimestamp(s string) string {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return s
	}
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}
