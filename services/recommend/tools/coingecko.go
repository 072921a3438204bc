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
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianSignals/services/llm"
	badgerstore "github.com/AleutianAI/AleutianSignals/services/recommend/storage/badger"
)

const (
	defaultCoinGeckoBaseURL = "https://api.coingecko.com/api/v3"
	coinGeckoTimeout        = 10 * time.Second

	// marketsPerPage is how many top coins one markets fetch covers.
	// 300 matches the breadth the ratio comparison needs without paging.
	marketsPerPage = 300

	// marketCacheTTL bounds staleness of the cached markets snapshot.
	// Ratio comparison tolerates minutes-old data; the cache exists to
	// stay inside CoinGecko's public rate tier.
	marketCacheTTL = 10 * time.Minute

	// marketCacheKey is versioned so a MarketCoin shape change cannot
	// collide with an old snapshot.
	marketCacheKey = "coingecko/markets/v1"
)

// ratioSimilarityThreshold is the ±20% band used when hunting tokens
// with a comparable volume/market-cap profile.
const ratioSimilarityThreshold = 0.2

// ratioFallbackTokens are examined when no token clears the similarity
// band, so the downstream market analysis always has candidates.
var ratioFallbackTokens = []string{"ETH", "BTC", "SOL", "ADA"}

// MarketCoin is one row of a CoinGecko markets snapshot.
type MarketCoin struct {
	ID          string  `json:"id"`
	Symbol      string  `json:"symbol"`
	Name        string  `json:"name"`
	MarketCap   float64 `json:"market_cap"`
	TotalVolume float64 `json:"total_volume"`
}

// Ratio returns 24h volume over market cap, 0 when the cap is unusable.
func (c MarketCoin) Ratio() float64 {
	if c.MarketCap <= 0 {
		return 0
	}
	return c.TotalVolume / c.MarketCap
}

// CoinGeckoClient fetches market snapshots from the CoinGecko public API
// under a client-side rate limit.
//
// Thread Safety: Safe for concurrent use.
type CoinGeckoClient struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// NewCoinGeckoClient creates a client for the given API root (empty for
// the public endpoint). The public tier allows roughly 30 calls/minute;
// the limiter keeps a margin under that.
func NewCoinGeckoClient(baseURL string) *CoinGeckoClient {
	if baseURL == "" {
		baseURL = defaultCoinGeckoBaseURL
	}
	return &CoinGeckoClient{
		httpClient: &http.Client{Timeout: coinGeckoTimeout},
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Every(3*time.Second), 2),
	}
}

// Markets fetches the top coins by market cap.
func (c *CoinGeckoClient) Markets(ctx context.Context) ([]MarketCoin, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("coingecko: rate wait: %w", err)
	}

	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(marketsPerPage))
	q.Set("page", "1")
	q.Set("sparkline", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/coins/markets?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("coingecko: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coingecko: %s", llm.SafeLogString(err.Error()))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coingecko: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coingecko: status %d: %s", resp.StatusCode, llm.SafeLogString(string(body)))
	}

	var coins []MarketCoin
	if err := json.Unmarshal(body, &coins); err != nil {
		return nil, fmt.Errorf("coingecko: parse response: %w", err)
	}
	return coins, nil
}

// MarketCache serves markets snapshots from BadgerDB with TTL, fetching
// from CoinGecko only on a miss.
//
// Thread Safety: Safe for concurrent use. Concurrent misses may fetch
// twice; the second write simply refreshes the entry.
type MarketCache struct {
	client *CoinGeckoClient
	db     *badgerstore.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewMarketCache creates the cache. db may be nil for a fetch-through
// (uncached) mode; ttl <= 0 selects the default.
func NewMarketCache(client *CoinGeckoClient, db *badgerstore.DB, ttl time.Duration, logger *slog.Logger) *MarketCache {
	if ttl <= 0 {
		ttl = marketCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MarketCache{client: client, db: db, ttl: ttl, logger: logger}
}

// Markets returns the current snapshot, cached when possible.
func (m *MarketCache) Markets(ctx context.Context) ([]MarketCoin, error) {
	if m.db != nil {
		raw, found, err := m.db.Get(ctx, []byte(marketCacheKey))
		if err != nil {
			m.logger.Warn("market cache read failed", slog.String("error", err.Error()))
		} else if found {
			var coins []MarketCoin
			if err := json.Unmarshal(raw, &coins); err == nil {
				m.logger.Debug("market cache hit", slog.Int("coins", len(coins)))
				return coins, nil
			}
			m.logger.Warn("market cache entry corrupt, refetching")
		}
	}

	coins, err := m.client.Markets(ctx)
	if err != nil {
		return nil, err
	}

	if m.db != nil {
		if blob, err := json.Marshal(coins); err == nil {
			if err := m.db.SetWithTTL(ctx, []byte(marketCacheKey), blob, m.ttl); err != nil {
				m.logger.Warn("market cache write failed", slog.String("error", err.Error()))
			}
		}
	}
	return coins, nil
}

// VolumeMcapRatio returns the volume/market-cap ratio for a symbol, 0
// when the symbol is not in the snapshot.
func (m *MarketCache) VolumeMcapRatio(ctx context.Context, symbol string) (float64, error) {
	coins, err := m.Markets(ctx)
	if err != nil {
		return 0, err
	}
	want := strings.ToLower(symbol)
	for _, coin := range coins {
		if strings.ToLower(coin.Symbol) == want {
			return coin.Ratio(), nil
		}
	}
	return 0, nil
}

// SimilarRatioTokens returns the symbols (uppercased) whose ratio falls
// within ±threshold of baseRatio.
func (m *MarketCache) SimilarRatioTokens(ctx context.Context, baseRatio, threshold float64) ([]string, error) {
	coins, err := m.Markets(ctx)
	if err != nil {
		return nil, err
	}
	lower := baseRatio * (1 - threshold)
	upper := baseRatio * (1 + threshold)

	var similar []string
	for _, coin := range coins {
		if coin.MarketCap <= 0 {
			continue
		}
		if r := coin.Ratio(); r >= lower && r <= upper {
			similar = append(similar, strings.ToUpper(coin.Symbol))
		}
	}
	return similar, nil
}
