// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the service configuration: YAML
// file, environment overrides on top, struct validation at the end.
// Tunables can be hot-reloaded; endpoints and credentials only change
// on restart.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
//
// Thread Safety: Immutable after Load; safe for concurrent reads. Hot
// reload produces a fresh Config rather than mutating a shared one.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Upstreams UpstreamsConfig `yaml:"upstreams"`
	NATS      NATSConfig      `yaml:"nats"`
	Storage   StorageConfig   `yaml:"storage"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Tunables  Tunables        `yaml:"tunables"`
}

// ServerConfig covers the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// LLMConfig selects the model provider for planning and analysis.
type LLMConfig struct {
	// Provider is "openai" or "anthropic".
	Provider string `yaml:"provider" validate:"oneof=openai anthropic"`
	// Model overrides the provider default when non-empty.
	Model string `yaml:"model"`
}

// UpstreamsConfig holds the third-party API endpoints. Empty values
// select each client's public default.
type UpstreamsConfig struct {
	FarcasterBaseURL   string `yaml:"farcaster_base_url" validate:"omitempty,url"`
	DexscreenerBaseURL string `yaml:"dexscreener_base_url" validate:"omitempty,url"`
	CoinGeckoBaseURL   string `yaml:"coingecko_base_url" validate:"omitempty,url"`
	EVMScanBaseURL     string `yaml:"evmscan_base_url" validate:"omitempty,url"`
	EVMScanAPIKey      string `yaml:"evmscan_api_key"`
	WeaviateHost       string `yaml:"weaviate_host"`
	WeaviateScheme     string `yaml:"weaviate_scheme" validate:"omitempty,oneof=http https"`
}

// NATSConfig covers the message-queue transport.
type NATSConfig struct {
	URL           string `yaml:"url"`
	InputSubject  string `yaml:"input_subject"`
	OutputSubject string `yaml:"output_subject"`
	QueueGroup    string `yaml:"queue_group"`
}

// StorageConfig covers the embedded cache database.
type StorageConfig struct {
	// CacheDir is the BadgerDB directory; empty selects in-memory.
	CacheDir string `yaml:"cache_dir"`
}

// TelemetryConfig covers tracing and the optional metrics sink.
type TelemetryConfig struct {
	// TraceExporter is "stdout", "otlp", or "none".
	TraceExporter string `yaml:"trace_exporter" validate:"omitempty,oneof=stdout otlp none"`
	OTLPEndpoint  string `yaml:"otlp_endpoint"`

	// InfluxDB run-metrics sink; disabled when URL is empty.
	InfluxURL    string `yaml:"influx_url" validate:"omitempty,url"`
	InfluxToken  string `yaml:"influx_token"`
	InfluxOrg    string `yaml:"influx_org"`
	InfluxBucket string `yaml:"influx_bucket"`
}

// Tunables are the hot-reloadable knobs. Everything else requires a
// restart.
type Tunables struct {
	StepTimeout    time.Duration `yaml:"step_timeout" validate:"omitempty,min=1s,max=10m"`
	MarketCacheTTL time.Duration `yaml:"market_cache_ttl" validate:"omitempty,min=10s"`
	RetrievalLimit int           `yaml:"retrieval_limit" validate:"omitempty,min=1,max=20"`
}

// UnmarshalYAML accepts duration strings ("30s", "2m") for the timeout
// fields; yaml.v3 has no native time.Duration decoding. Absent fields
// keep their current (default) values.
func (t *Tunables) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		StepTimeout    string `yaml:"step_timeout"`
		MarketCacheTTL string `yaml:"market_cache_ttl"`
		RetrievalLimit *int   `yaml:"retrieval_limit"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.StepTimeout != "" {
		d, err := time.ParseDuration(raw.StepTimeout)
		if err != nil {
			return fmt.Errorf("step_timeout: %w", err)
		}
		t.StepTimeout = d
	}
	if raw.MarketCacheTTL != "" {
		d, err := time.ParseDuration(raw.MarketCacheTTL)
		if err != nil {
			return fmt.Errorf("market_cache_ttl: %w", err)
		}
		t.MarketCacheTTL = d
	}
	if raw.RetrievalLimit != nil {
		t.RetrievalLimit = *raw.RetrievalLimit
	}
	return nil
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8090"},
		LLM:    LLMConfig{Provider: "openai"},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			InputSubject:  "signals.requests",
			OutputSubject: "signals.recommendations",
			QueueGroup:    "signals",
		},
		Telemetry: TelemetryConfig{TraceExporter: "none"},
		Tunables: Tunables{
			StepTimeout:    90 * time.Second,
			MarketCacheTTL: 10 * time.Minute,
			RetrievalLimit: 3,
		},
	}
}

// Load reads path (optional), applies environment overrides, and
// validates. An empty path loads defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration's structural constraints.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config: validate: %w", err)
	}
	return nil
}

// applyEnvOverrides lets deployment environments override the file
// without templating it. Credentials in particular should arrive via
// environment, never the YAML.
func applyEnvOverrides(cfg *Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&cfg.Server.Addr, "SIGNALS_ADDR")
	setString(&cfg.LLM.Provider, "SIGNALS_LLM_PROVIDER")
	setString(&cfg.LLM.Model, "SIGNALS_LLM_MODEL")
	setString(&cfg.Upstreams.FarcasterBaseURL, "SIGNALS_FARCASTER_URL")
	setString(&cfg.Upstreams.DexscreenerBaseURL, "SIGNALS_DEXSCREENER_URL")
	setString(&cfg.Upstreams.CoinGeckoBaseURL, "SIGNALS_COINGECKO_URL")
	setString(&cfg.Upstreams.EVMScanBaseURL, "SIGNALS_EVMSCAN_URL")
	setString(&cfg.Upstreams.EVMScanAPIKey, "SIGNALS_EVMSCAN_API_KEY")
	setString(&cfg.Upstreams.WeaviateHost, "SIGNALS_WEAVIATE_HOST")
	setString(&cfg.Upstreams.WeaviateScheme, "SIGNALS_WEAVIATE_SCHEME")
	setString(&cfg.NATS.URL, "SIGNALS_NATS_URL")
	setString(&cfg.NATS.InputSubject, "SIGNALS_NATS_INPUT_SUBJECT")
	setString(&cfg.NATS.OutputSubject, "SIGNALS_NATS_OUTPUT_SUBJECT")
	setString(&cfg.Storage.CacheDir, "SIGNALS_CACHE_DIR")
	setString(&cfg.Telemetry.TraceExporter, "SIGNALS_TRACE_EXPORTER")
	setString(&cfg.Telemetry.OTLPEndpoint, "SIGNALS_OTLP_ENDPOINT")
	setString(&cfg.Telemetry.InfluxURL, "SIGNALS_INFLUX_URL")
	setString(&cfg.Telemetry.InfluxToken, "SIGNALS_INFLUX_TOKEN")
	setString(&cfg.Telemetry.InfluxOrg, "SIGNALS_INFLUX_ORG")
	setString(&cfg.Telemetry.InfluxBucket, "SIGNALS_INFLUX_BUCKET")

	if v := os.Getenv("SIGNALS_STEP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Tunables.StepTimeout = d
		}
	}
	if v := os.Getenv("SIGNALS_RETRIEVAL_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Tunables.RetrievalLimit = n
		}
	}
}
