// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command signals starts the Aleutian Signals recommendation server.
//
// Aleutian Signals produces crypto-trading recommendations by running
// LLM-planned tool pipelines over a wallet's on-chain history, social
// sentiment, and market data.
//
// Usage:
//
//	go run ./cmd/signals
//	go run ./cmd/signals -config config.yaml
//	go run ./cmd/signals -debug
//
// Credentials arrive via environment, never the config file:
//
//	OPENAI_API_KEY=sk-... go run ./cmd/signals
//	SIGNALS_LLM_PROVIDER=anthropic ANTHROPIC_API_KEY=... go run ./cmd/signals
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8090/v1/signals/health
//
//	# List registered analysis tools
//	curl http://localhost:8090/v1/signals/tools | jq
//
//	# Run a recommendation
//	curl -X POST http://localhost:8090/v1/signals/recommend \
//	  -H "Content-Type: application/json" \
//	  -d '{"wallet_address": "AVAZvHLR2PcWpDf8BXY4rVxNHYRBytycHkcB5z5QNXYm", "user_preferences": "medium risk"}'
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/AleutianAI/AleutianSignals/services/llm"
	"github.com/AleutianAI/AleutianSignals/services/recommend"
	"github.com/AleutianAI/AleutianSignals/services/recommend/chain"
	"github.com/AleutianAI/AleutianSignals/services/recommend/config"
	"github.com/AleutianAI/AleutianSignals/services/recommend/mq"
	"github.com/AleutianAI/AleutianSignals/services/recommend/orchestrator"
	badgerstore "github.com/AleutianAI/AleutianSignals/services/recommend/storage/badger"
	"github.com/AleutianAI/AleutianSignals/services/recommend/telemetry"
	"github.com/AleutianAI/AleutianSignals/services/recommend/tools"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML config file")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// W3C TraceContext propagation so upstream callers can correlate
	// their traces with ours.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry.TraceExporter, cfg.Telemetry.OTLPEndpoint, logger)
	if err != nil {
		logger.Error("Failed to set up tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Market cache BadgerDB. Graceful degradation: without it the
	// CoinGecko client fetches through on every call.
	var db *badgerstore.DB
	if opened, err := badgerstore.Open(cfg.Storage.CacheDir, logger); err != nil {
		logger.Warn("Market cache BadgerDB unavailable, caching disabled",
			slog.String("dir", cfg.Storage.CacheDir),
			slog.String("error", err.Error()),
		)
	} else {
		db = opened
	}

	model, err := llm.NewClient(cfg.LLM.Provider, cfg.LLM.Model)
	if err != nil {
		logger.Error("Failed to create LLM client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	registry, retriever := buildRegistry(cfg, model, db, logger)
	synthesizer := tools.NewInsightsTool(model)

	orch := orchestrator.NewOrchestrator(registry, model, synthesizer, retriever, cfg.Tunables.StepTimeout, logger)
	orch.SetRetrievalLimit(cfg.Tunables.RetrievalLimit)
	pipeline := chain.NewPipeline(registry, synthesizer, logger)

	watcher := config.NewWatcher(*configPath, cfg.Tunables, logger)
	watcher.OnChange(func(t config.Tunables) {
		orch.SetStepTimeout(t.StepTimeout)
		orch.SetRetrievalLimit(t.RetrievalLimit)
	})
	go func() {
		if err := watcher.Run(ctx); err != nil {
			logger.Warn("Config watcher stopped", slog.String("error", err.Error()))
		}
	}()

	runSink := telemetry.NewRunSink(
		cfg.Telemetry.InfluxURL,
		cfg.Telemetry.InfluxToken,
		cfg.Telemetry.InfluxOrg,
		cfg.Telemetry.InfluxBucket,
		logger,
	)

	service := recommend.NewService(registry, orch, pipeline, runSink, logger)
	handlers := recommend.NewHandlers(service, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("aleutian-signals"))
	if *debug {
		router.Use(gin.Logger())
	}
	recommend.RegisterRoutes(router.Group("/v1"), handlers)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Optional NATS transport next to HTTP: free-form request messages
	// in, recommendation JSON out.
	natsConn := startConsumer(ctx, cfg.NATS, orch, logger)

	server := &http.Server{Addr: cfg.Server.Addr, Handler: router}
	go func() {
		logger.Info("Starting Aleutian Signals server", slog.String("address", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down Aleutian Signals server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server shutdown failed", slog.String("error", err.Error()))
	}
	if natsConn != nil {
		natsConn.Close()
	}
	runSink.Close()
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Warn("Failed to close market cache BadgerDB", slog.String("error", err.Error()))
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("Tracer shutdown failed", slog.String("error", err.Error()))
	}
}

// buildRegistry wires the upstream clients into the tool set the
// planner can draw on. The context retriever is returned separately so
// the orchestrator can also use it for sentiment augmentation.
func buildRegistry(cfg config.Config, model llm.Client, db *badgerstore.DB, logger *slog.Logger) (*orchestrator.Registry, orchestrator.ContextRetriever) {
	farcaster := tools.NewFarcasterClient(cfg.Upstreams.FarcasterBaseURL)
	dexscreener := tools.NewDexscreenerClient(cfg.Upstreams.DexscreenerBaseURL)
	coingecko := tools.NewCoinGeckoClient(cfg.Upstreams.CoinGeckoBaseURL)
	markets := tools.NewMarketCache(coingecko, db, cfg.Tunables.MarketCacheTTL, logger)

	var scan *tools.EVMScanClient
	if cfg.Upstreams.EVMScanAPIKey != "" {
		scan = tools.NewEVMScanClient(cfg.Upstreams.EVMScanBaseURL, cfg.Upstreams.EVMScanAPIKey)
	} else {
		logger.Warn("EVM scan API key not set, EVM wallets use the built-in transaction index")
	}

	registry := orchestrator.NewRegistry()
	registry.MustRegister(tools.NewWalletTool(model, scan, logger))
	registry.MustRegister(tools.NewSentimentTool(model, farcaster, logger))
	registry.MustRegister(tools.NewDexscreenerTool(model, dexscreener, markets, logger))
	registry.MustRegister(tools.NewVolumeTool(markets))
	registry.MustRegister(tools.NewTechnicalTool(model, dexscreener))

	var retriever orchestrator.ContextRetriever
	if cfg.Upstreams.WeaviateHost != "" {
		weav, err := tools.NewWeaviateRetriever(cfg.Upstreams.WeaviateHost, cfg.Upstreams.WeaviateScheme, logger)
		if err != nil {
			logger.Warn("Weaviate unavailable, historical context retrieval disabled",
				slog.String("host", cfg.Upstreams.WeaviateHost),
				slog.String("error", err.Error()),
			)
		} else {
			retriever = weav
			registry.MustRegister(tools.NewRetrieverTool(weav, cfg.Tunables.RetrievalLimit))
		}
	}
	return registry, retriever
}

// startConsumer connects the NATS consumer when a URL is configured.
// Returns the connection for shutdown, or nil when disabled or
// unreachable; the HTTP surface serves either way.
func startConsumer(ctx context.Context, cfg config.NATSConfig, recommender mq.Recommender, logger *slog.Logger) *nats.Conn {
	if cfg.URL == "" {
		return nil
	}
	conn, err := nats.Connect(cfg.URL, nats.Name("aleutian-signals"))
	if err != nil {
		logger.Warn("NATS unavailable, message-queue transport disabled",
			slog.String("url", cfg.URL),
			slog.String("error", err.Error()),
		)
		return nil
	}
	consumer := mq.NewConsumer(conn, recommender, cfg.InputSubject, cfg.OutputSubject, cfg.QueueGroup, logger)
	go func() {
		if err := consumer.Run(ctx); err != nil {
			logger.Warn("NATS consumer stopped", slog.String("error", err.Error()))
		}
	}()
	return conn
}
