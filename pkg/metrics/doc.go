// Package metrics provides observability primitives for the adaptive
// log-security pipeline.
//
// # Overview
//
// The package offers:
//   - A Collector of pipeline counters and stage latency histograms
//   - Prometheus text-format export
//   - Tracing behind a small Tracer interface, with no-op, in-memory and
//     OpenTelemetry implementations
//   - Structured logging with levels and text or JSON output
//
// Nothing here is global. The pipeline receives its Logger, Tracer and
// Collector explicitly.
//
// # Metrics Collection
//
//	collector := metrics.NewCollector(metrics.Labels{"run_id": id})
//
//	collector.RecordSearchTrial(p)
//	collector.RecordScenario(qber, secureLen)
//	collector.RecordSealed(len(payload))
//
//	done := collector.TimeStage(metrics.StageChannel)
//	// ... run the stage ...
//	done()
//
//	snap := collector.Snapshot()
//
// # Prometheus Export
//
//	exp := metrics.NewPrometheusExporter(collector, "qals")
//	exp.WriteMetrics(f) // textfile collector format
//
// Stage latencies are exported as one histogram family with a stage label:
//
//	qals_stage_duration_milliseconds_bucket{stage="channel",le="10"} 1
//
// # Tracing
//
//	tracer := metrics.NewOTelTracer("qals")
//	ctx, end := tracer.StartSpan(ctx, metrics.SpanChannel,
//		metrics.WithAttributes(metrics.SpanAttributes{RunID: id}.ToMap()))
//	defer func() { end(err) }()
//
// # Logging
//
//	logger := metrics.NewLogger(
//		metrics.WithLevel(metrics.LevelInfo),
//		metrics.WithFormat(metrics.FormatJSON),
//	).Named("pipeline")
//
//	logger.Info("scenario table written", metrics.Fields{"rows": 16})
package metrics
