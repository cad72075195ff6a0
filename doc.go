// Package qals assesses how exposed an anomaly log is to quantum-accelerated
// search and protects it with a key whose strength follows that assessment.
//
// A run has four stages:
//
//  1. Search: simulate amplitude-amplification search for the most
//     anomalous records of the table (ideal and under gate noise), next to
//     a classical linear-scan baseline.
//  2. Channel: simulate an MDI-QKD exchange over a grid of channel noise
//     levels and intercept-resend attack probabilities.
//  3. Secure: classify the mean search success into LOW, MEDIUM or HIGH,
//     pick the channel scenario that level calls for, derive a 256-bit key
//     and seal the table with AES-256-GCM, then read it back and verify it.
//  4. Compare: tabulate the classical scan against the search simulation.
//
// # Quick Start
//
//	qals run --dataset data/ai_detected_logs.csv
//	qals decrypt --level HIGH --key secure_storage/payload.key
//
// Or from Go:
//
//	import (
//		"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/config"
//		"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/pipeline"
//	)
//
//	cfg, _ := config.LoadConfig("qals.yaml")
//	p, _ := pipeline.Open(ctx, cfg, pipeline.WithLogger(cfg.Logger(os.Stderr)))
//	defer p.Close()
//	report, _ := p.Run(ctx)
//
// # Package Structure
//
//   - pkg/dataset: anomaly table reader (CSV, optional score column)
//   - pkg/grover: search cost model, ideal and noisy backends, simulator
//   - pkg/baseline: classical linear scan and percentile detection
//   - pkg/qkd: MDI-QKD exchange and scenario grid
//   - pkg/policy: threat levels, assessment and scenario selection
//   - pkg/keys: key derivation from fresh or channel bits
//   - pkg/crypto: SHA3-256 KDF, AES-256-GCM packages, CSPRNG helpers
//   - pkg/store: package sealing and file, Redis and memory sinks
//   - pkg/report: result tables (CSV)
//   - pkg/config: YAML configuration
//   - pkg/metrics: logging, counters, Prometheus export, tracing
//   - pkg/pipeline: stage orchestration
//   - internal/constants: thresholds, sizes and artifact names
//   - internal/errors: error categories
//
// # Reproducibility
//
// Every simulated random stream is derived from the configured seed, so
// tables do not depend on the worker count. Key material never comes from
// those streams: fresh keys read crypto/rand, and channel keys hash the
// simulated amplified bits and are only as secret as the seed.
//
// # Testing
//
//	go test ./...                                        # All tests
//	go test -fuzz=FuzzOpenBytes ./pkg/crypto/            # Fuzz tests
//	go test -bench=. -benchmem ./pkg/grover ./pkg/qkd    # Benchmarks
//	QALS_REDIS_ADDR=localhost:6379 go test ./pkg/store   # Redis sink
package qals
