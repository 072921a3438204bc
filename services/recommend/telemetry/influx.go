// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxapi "github.com/influxdata/influxdb-client-go/v2/api"
)

// RunRecord is one orchestration run's summary written to the
// time-series sink.
type RunRecord struct {
	Wallet      string
	Outcome     string
	Steps       int
	FailedSteps int
	Elapsed     time.Duration
}

// RunSink records per-run summaries for offline analysis (recommendation
// quality over time, failure clustering by wallet cohort). Prometheus
// keeps the operational counters; this sink keeps the analytical ones.
//
// Thread Safety: Safe for concurrent use; writes are queued on the
// client's non-blocking API.
type RunSink struct {
	client influxdb2.Client
	write  influxapi.WriteAPI
	logger *slog.Logger
}

// NewRunSink connects the sink. Returns nil when url is empty — a nil
// *RunSink is a valid no-op sink.
func NewRunSink(url, token, org, bucket string, logger *slog.Logger) *RunSink {
	if url == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := influxdb2.NewClient(url, token)
	sink := &RunSink{
		client: client,
		write:  client.WriteAPI(org, bucket),
		logger: logger,
	}
	go func() {
		for err := range sink.write.Errors() {
			logger.Warn("influx write failed", slog.String("error", err.Error()))
		}
	}()
	return sink
}

// Record queues one run summary. Never blocks the request path.
func (s *RunSink) Record(rec RunRecord) {
	if s == nil {
		return
	}
	point := influxdb2.NewPointWithMeasurement("recommendation_run").
		AddTag("outcome", rec.Outcome).
		AddField("wallet", rec.Wallet).
		AddField("steps", rec.Steps).
		AddField("failed_steps", rec.FailedSteps).
		AddField("elapsed_ms", rec.Elapsed.Milliseconds()).
		SetTime(time.Now())
	s.write.WritePoint(point)
}

// Close flushes queued points and releases the client.
func (s *RunSink) Close() {
	if s == nil {
		return
	}
	s.write.Flush()
	s.client.Close()
}
