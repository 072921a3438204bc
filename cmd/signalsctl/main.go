// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command signalsctl is the operator CLI for Aleutian Signals.
//
// Usage:
//
//	# Request a recommendation over NATS and wait for the reply
//	signalsctl request "AVAZvHLR2PcWpDf8BXY4rVxNHYRBytycHkcB5z5QNXYm medium risk"
//
//	# Fire-and-forget publish; results land on the output subject
//	signalsctl publish "AVAZvHLR2PcWpDf8BXY4rVxNHYRBytycHkcB5z5QNXYm"
//
//	# Tail the recommendation output subject
//	signalsctl watch
//
//	# Call the HTTP API directly, bypassing NATS
//	signalsctl recommend --wallet AVAZvHLR2PcWpDf8BXY4rVxNHYRBytycHkcB5z5QNXYm
//
// SIGNALS_NATS_URL and SIGNALS_URL override the default endpoints.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSignals/services/recommend/mq"
)

// Flag values shared across the NATS subcommands.
var (
	natsURL       string
	inputSubject  string
	outputSubject string
	replyTimeout  time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "signalsctl",
		Short: "Operator CLI for the Aleutian Signals recommendation service",
	}
	rootCmd.PersistentFlags().StringVar(&natsURL, "nats-url", defaultNATSURL(), "NATS server URL")
	rootCmd.PersistentFlags().StringVar(&inputSubject, "subject", "signals.requests", "Request subject")
	rootCmd.PersistentFlags().StringVar(&outputSubject, "output-subject", "signals.recommendations", "Result subject")

	requestCmd := &cobra.Command{
		Use:   "request [message]",
		Short: "Send a request over NATS and wait for the recommendation",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRequestCommand,
	}
	requestCmd.Flags().DurationVar(&replyTimeout, "timeout", 5*time.Minute, "How long to wait for the reply")

	publishCmd := &cobra.Command{
		Use:   "publish [message]",
		Short: "Publish a request without waiting; watch the output subject for the result",
		Args:  cobra.MinimumNArgs(1),
		Run:   runPublishCommand,
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Print recommendations as they arrive on the output subject",
		Run:   runWatchCommand,
	}

	rootCmd.AddCommand(requestCmd, publishCmd, watchCmd, newRecommendCommand())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func defaultNATSURL() string {
	if url := os.Getenv("SIGNALS_NATS_URL"); url != "" {
		return url
	}
	return nats.DefaultURL
}

func connect() *nats.Conn {
	conn, err := nats.Connect(natsURL, nats.Name("signalsctl"))
	if err != nil {
		log.Fatalf("cannot connect to NATS at %s: %v", natsURL, err)
	}
	return conn
}

func runRequestCommand(_ *cobra.Command, args []string) {
	message := strings.Join(args, " ")
	req, err := mq.ParseRequest(message)
	if err != nil {
		log.Fatalf("message must contain a wallet address: %v", err)
	}

	conn := connect()
	defer conn.Close()

	fmt.Printf("Requesting recommendation for %s\n", req.WalletAddress)
	producer := mq.NewProducer(conn, inputSubject)
	reply, err := producer.Request(req.WalletAddress, req.UserPreferences, replyTimeout)
	if err != nil {
		log.Fatalf("request failed: %v", err)
	}
	printResult(reply)
}

func runPublishCommand(_ *cobra.Command, args []string) {
	message := strings.Join(args, " ")
	req, err := mq.ParseRequest(message)
	if err != nil {
		log.Fatalf("message must contain a wallet address: %v", err)
	}

	conn := connect()
	defer conn.Close()

	if err := mq.NewProducer(conn, inputSubject).Publish(req.WalletAddress, req.UserPreferences); err != nil {
		log.Fatalf("publish failed: %v", err)
	}
	fmt.Printf("Published request for %s to %s\n", req.WalletAddress, inputSubject)
}

func runWatchCommand(_ *cobra.Command, _ []string) {
	conn := connect()
	defer conn.Close()

	sub, err := conn.Subscribe(outputSubject, func(msg *nats.Msg) {
		printResult(msg.Data)
	})
	if err != nil {
		log.Fatalf("subscribe failed: %v", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	fmt.Printf("Watching %s (Ctrl-C to stop)\n", outputSubject)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}

// printResult renders a recommendation payload: indented JSON on a
// terminal, raw single-line JSON when piped.
func printResult(payload []byte) {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		fmt.Println(string(payload))
		return
	}
	var pretty map[string]any
	if err := json.Unmarshal(payload, &pretty); err != nil {
		fmt.Println(string(payload))
		return
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		fmt.Println(string(payload))
		return
	}
	fmt.Println(string(out))
}
