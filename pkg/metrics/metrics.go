package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stage names a pipeline stage for latency tracking.
type Stage string

// Pipeline stages.
const (
	StageSearch   Stage = "search"
	StageBaseline Stage = "baseline"
	StageChannel  Stage = "channel"
	StageAssess   Stage = "assess"
	StageSelect   Stage = "select"
	StageDerive   Stage = "derive"
	StageEncrypt  Stage = "encrypt"
	StageDecrypt  Stage = "decrypt"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{
	StageSearch, StageBaseline, StageChannel, StageAssess,
	StageSelect, StageDerive, StageEncrypt, StageDecrypt,
}

// Collector aggregates metrics from one or more pipeline runs.
type Collector struct {
	// Search metrics
	searchTrials atomic.Uint64
	noiseTrials  atomic.Uint64

	// Channel metrics
	scenarios        atomic.Uint64
	zeroKeyScenarios atomic.Uint64
	secureBits       atomic.Uint64

	// Decision metrics
	threatLevels [3]atomic.Uint64

	// Storage metrics
	packagesSealed    atomic.Uint64
	packagesOpened    atomic.Uint64
	integrityFailures atomic.Uint64
	bytesSealed       atomic.Uint64

	// Run metrics
	runsCompleted atomic.Uint64
	runsFailed    atomic.Uint64

	mu            sync.Mutex
	stageLatency  map[Stage]*Histogram
	searchSuccess *Histogram
	channelQBER   *Histogram

	createdAt time.Time
	labels    Labels
}

// Labels represents key-value pairs for metric labeling.
type Labels map[string]string

// Default bucket configurations for histograms.
var (
	// StageLatencyBuckets for stage duration (milliseconds).
	StageLatencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000}

	// ProbabilityBuckets for success probabilities and error rates.
	ProbabilityBuckets = []float64{0.05, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}
)

// NewCollector creates a new metrics collector.
func NewCollector(labels Labels) *Collector {
	if labels == nil {
		labels = make(Labels)
	}

	stageLatency := make(map[Stage]*Histogram, len(Stages))
	for _, s := range Stages {
		stageLatency[s] = NewHistogram(StageLatencyBuckets)
	}

	return &Collector{
		stageLatency:  stageLatency,
		searchSuccess: NewHistogram(ProbabilityBuckets),
		channelQBER:   NewHistogram(ProbabilityBuckets),
		createdAt:     time.Now(),
		labels:        labels,
	}
}

// --- Search Metrics ---

// RecordSearchTrial records one ideal search trial and its success estimate.
func (c *Collector) RecordSearchTrial(success float64) {
	c.searchTrials.Add(1)
	c.searchSuccess.Observe(success)
}

// RecordNoiseTrial records one noisy search trial.
func (c *Collector) RecordNoiseTrial() {
	c.noiseTrials.Add(1)
}

// --- Channel Metrics ---

// RecordScenario records one simulated channel scenario.
func (c *Collector) RecordScenario(qber float64, secureKeyLength int) {
	c.scenarios.Add(1)
	c.channelQBER.Observe(qber)
	if secureKeyLength == 0 {
		c.zeroKeyScenarios.Add(1)
	} else {
		c.secureBits.Add(uint64(secureKeyLength))
	}
}

// --- Decision Metrics ---

// RecordThreatLevel counts an assessed threat level (0 = LOW .. 2 = HIGH).
func (c *Collector) RecordThreatLevel(level int) {
	if level < 0 || level >= len(c.threatLevels) {
		return
	}
	c.threatLevels[level].Add(1)
}

// --- Storage Metrics ---

// RecordSealed records a sealed package of n payload bytes.
func (c *Collector) RecordSealed(n int) {
	c.packagesSealed.Add(1)
	c.bytesSealed.Add(uint64(n))
}

// RecordOpened records a package that passed verification.
func (c *Collector) RecordOpened() {
	c.packagesOpened.Add(1)
}

// RecordIntegrityFailure records a package that failed verification.
func (c *Collector) RecordIntegrityFailure() {
	c.integrityFailures.Add(1)
}

// --- Run Metrics ---

// RecordRun records the outcome of a pipeline run.
func (c *Collector) RecordRun(err error) {
	if err != nil {
		c.runsFailed.Add(1)
		return
	}
	c.runsCompleted.Add(1)
}

// RecordStageLatency records how long a stage took.
func (c *Collector) RecordStageLatency(s Stage, d time.Duration) {
	c.mu.Lock()
	h, ok := c.stageLatency[s]
	if !ok {
		h = NewHistogram(StageLatencyBuckets)
		c.stageLatency[s] = h
	}
	c.mu.Unlock()

	h.Observe(float64(d.Microseconds()) / 1000)
}

// TimeStage returns a function that records the elapsed time for s when called.
func (c *Collector) TimeStage(s Stage) func() {
	start := time.Now()
	return func() {
		c.RecordStageLatency(s, time.Since(start))
	}
}

// --- Snapshot ---

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	Timestamp time.Time
	Uptime    time.Duration

	SearchTrials uint64
	NoiseTrials  uint64

	Scenarios        uint64
	ZeroKeyScenarios uint64
	SecureBits       uint64

	ThreatLow    uint64
	ThreatMedium uint64
	ThreatHigh   uint64

	PackagesSealed    uint64
	PackagesOpened    uint64
	IntegrityFailures uint64
	BytesSealed       uint64

	RunsCompleted uint64
	RunsFailed    uint64

	StageLatency  map[Stage]HistogramSummary
	SearchSuccess HistogramSummary
	ChannelQBER   HistogramSummary

	Labels Labels
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	now := time.Now()

	c.mu.Lock()
	latency := make(map[Stage]HistogramSummary, len(c.stageLatency))
	for s, h := range c.stageLatency {
		latency[s] = h.Summary()
	}
	c.mu.Unlock()

	labels := make(Labels, len(c.labels))
	for k, v := range c.labels {
		labels[k] = v
	}

	return Snapshot{
		Timestamp: now,
		Uptime:    now.Sub(c.createdAt),

		SearchTrials: c.searchTrials.Load(),
		NoiseTrials:  c.noiseTrials.Load(),

		Scenarios:        c.scenarios.Load(),
		ZeroKeyScenarios: c.zeroKeyScenarios.Load(),
		SecureBits:       c.secureBits.Load(),

		ThreatLow:    c.threatLevels[0].Load(),
		ThreatMedium: c.threatLevels[1].Load(),
		ThreatHigh:   c.threatLevels[2].Load(),

		PackagesSealed:    c.packagesSealed.Load(),
		PackagesOpened:    c.packagesOpened.Load(),
		IntegrityFailures: c.integrityFailures.Load(),
		BytesSealed:       c.bytesSealed.Load(),

		RunsCompleted: c.runsCompleted.Load(),
		RunsFailed:    c.runsFailed.Load(),

		StageLatency:  latency,
		SearchSuccess: c.searchSuccess.Summary(),
		ChannelQBER:   c.channelQBER.Summary(),

		Labels: labels,
	}
}
