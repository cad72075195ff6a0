// Package pipeline wires the simulators, the policy and the secure store
// into one run: search → assess, channel → select, derive → encrypt →
// verify. Each stage can also be invoked on its own.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"

	qerrors "github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/errors"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/baseline"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/config"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/dataset"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/grover"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/keys"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/metrics"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/policy"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/qkd"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/store"
)

// targetStream is the PCG stream that draws the random search target. It
// lies outside the per-trial streams of the search simulator.
const targetStream = math.MaxUint64

// Pipeline runs stages under one configuration and run ID.
type Pipeline struct {
	cfg   *config.Config
	runID string

	logger    *metrics.Logger
	collector *metrics.Collector
	tracer    metrics.Tracer
	random    io.Reader
	sink      store.Sink
	store     *store.SecureStore
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the root logger. Stage loggers are named children of it.
func WithLogger(l *metrics.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithCollector records run metrics into c.
func WithCollector(c *metrics.Collector) Option {
	return func(p *Pipeline) {
		p.collector = c
	}
}

// WithTracer sets the tracer. The default follows the tracing config.
func WithTracer(t metrics.Tracer) Option {
	return func(p *Pipeline) {
		p.tracer = t
	}
}

// WithSink stores packages in sink instead of the configured backend.
func WithSink(s store.Sink) Option {
	return func(p *Pipeline) {
		p.sink = s
	}
}

// WithRandom replaces the source of fresh key bits. Intended for tests.
func WithRandom(r io.Reader) Option {
	return func(p *Pipeline) {
		p.random = r
	}
}

// WithRunID fixes the run ID instead of generating one.
func WithRunID(id string) Option {
	return func(p *Pipeline) {
		p.runID = id
	}
}

// Open validates cfg, connects the package sink and returns a pipeline.
// Close releases the sink.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	if p.runID == "" {
		p.runID = uuid.NewString()
	}
	if p.logger == nil {
		p.logger = metrics.NullLogger()
	}
	p.logger = p.logger.With(metrics.Fields{"run_id": p.runID})
	if p.collector == nil {
		p.collector = metrics.NewCollector(nil)
	}
	if p.tracer == nil {
		if cfg.Tracing.Enabled {
			p.tracer = metrics.NewOTelTracer(cfg.Tracing.ServiceName)
		} else {
			p.tracer = metrics.NoOpTracer{}
		}
	}

	if p.sink == nil {
		sink, err := openSink(ctx, cfg)
		if err != nil {
			return nil, err
		}
		p.sink = sink
	}
	p.store = store.New(p.sink,
		store.WithLogger(p.logger.Named("store")),
		store.WithCollector(p.collector),
	)
	return p, nil
}

func openSink(ctx context.Context, cfg *config.Config) (store.Sink, error) {
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		return store.NewRedisSink(ctx, cfg.RedisSinkConfig())
	case config.BackendMemory:
		return store.NewMemorySink(), nil
	default:
		return store.NewFileSink(cfg.Storage.Dir)
	}
}

// RunID returns the run's ID.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Collector returns the metrics collector.
func (p *Pipeline) Collector() *metrics.Collector {
	return p.collector
}

// Close releases the package sink.
func (p *Pipeline) Close() error {
	return p.store.Close()
}

// stage runs fn inside a span and records its latency.
func (p *Pipeline) stage(ctx context.Context, s metrics.Stage, span string, attrs metrics.SpanAttributes, fn func(context.Context) error) error {
	attrs.RunID = p.runID
	ctx, end := p.tracer.StartSpan(ctx, span, metrics.WithAttributes(attrs.ToMap()))
	stop := p.collector.TimeStage(s)
	err := fn(ctx)
	stop()
	end(err)
	return err
}

// Search simulates the search advantage over the first max_records records
// of table.
func (p *Pipeline) Search(ctx context.Context, table *dataset.Table) (*grover.Result, error) {
	scores, n := table.Head(p.cfg.Dataset.MaxRecords)
	log := p.logger.Named("search")

	var res *grover.Result
	err := p.stage(ctx, metrics.StageSearch, metrics.SpanSearch, metrics.SpanAttributes{Records: n}, func(ctx context.Context) error {
		rng := rand.New(rand.NewPCG(p.cfg.Seed, targetStream))
		targets, err := grover.SelectTargets(n, scores, rng)
		if err != nil {
			return err
		}
		if !table.HasScores() {
			log.Warn("no score column, highest-score target falls back to baseline index", metrics.Fields{
				"column": p.cfg.Dataset.ScoreColumn,
			})
		}

		sim, err := grover.NewSimulator(p.cfg.GroverConfig(),
			grover.WithLogger(log),
			grover.WithCollector(p.collector),
		)
		if err != nil {
			return err
		}
		res, err = sim.Run(ctx, n, targets)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info("search simulated", metrics.Fields{
		"targets":      len(res.Trials),
		"mean_success": res.MeanSuccess(),
		"max_depth":    res.MaxDepth(),
	})
	return res, nil
}

// Baseline runs the classical scan over the whole table.
func (p *Pipeline) Baseline(ctx context.Context, table *dataset.Table) (baseline.Result, error) {
	var res baseline.Result
	err := p.stage(ctx, metrics.StageBaseline, metrics.SpanBaseline, metrics.SpanAttributes{Records: table.Rows}, func(context.Context) error {
		var err error
		res, err = baseline.Run(table.Scores, table.Rows)
		return err
	})
	if err != nil {
		return baseline.Result{}, err
	}
	p.logger.Named("baseline").Info("classical scan complete", metrics.Fields{
		"records":        res.TotalRecords,
		"max_index":      res.MaxIndex,
		"detected":       res.Detected,
		"detection_rate": res.DetectionRate,
		"elapsed":        res.Elapsed,
	})
	return res, nil
}

// Channel simulates the configured scenario grid.
func (p *Pipeline) Channel(ctx context.Context) ([]qkd.Scenario, error) {
	var out []qkd.Scenario
	err := p.stage(ctx, metrics.StageChannel, metrics.SpanChannel, metrics.SpanAttributes{}, func(ctx context.Context) error {
		sim, err := qkd.NewSimulator(p.cfg.QKDConfig(),
			qkd.WithLogger(p.logger.Named("channel")),
			qkd.WithCollector(p.collector),
		)
		if err != nil {
			return err
		}
		out, err = sim.Run(ctx)
		return err
	})
	return out, err
}

// Outcome describes a sealed and verified payload.
type Outcome struct {
	Assessment  policy.Assessment
	Scenario    qkd.Scenario
	Provenance  keys.Provenance
	KeyBits     int
	PackageName string
	PackageSize int
	KeyPath     string // set when the key was exported
}

// Secure assesses trials, selects a scenario, derives its key, seals
// payload and verifies the stored package decrypts back to payload.
// The derived key is zeroized before Secure returns.
func (p *Pipeline) Secure(ctx context.Context, trials []grover.SearchTrial, scenarios []qkd.Scenario, payload []byte) (*Outcome, error) {
	out := &Outcome{Provenance: p.cfg.KeyProvenance()}

	err := p.stage(ctx, metrics.StageAssess, metrics.SpanAssess, metrics.SpanAttributes{}, func(context.Context) error {
		a, err := policy.Assess(trials)
		out.Assessment = a
		return err
	})
	if err != nil {
		return nil, err
	}
	level := out.Assessment.Level
	p.collector.RecordThreatLevel(int(level))
	p.logger.Named("policy").Info("threat assessed", metrics.Fields{
		"mean_success": out.Assessment.MeanSuccess,
		"trials":       out.Assessment.Trials,
		"level":        level.String(),
	})

	attrs := metrics.SpanAttributes{ThreatLevel: level.String()}
	err = p.stage(ctx, metrics.StageSelect, metrics.SpanSelect, attrs, func(context.Context) error {
		s, err := policy.Select(scenarios, level)
		out.Scenario = s
		return err
	})
	if err != nil {
		return nil, err
	}
	out.KeyBits = out.Scenario.SecureKeyLength
	p.logger.Named("policy").Info("scenario selected", metrics.Fields{
		"noise":      out.Scenario.NoiseLevel,
		"attack":     out.Scenario.AttackProbability,
		"qber":       out.Scenario.QBER,
		"secure_len": out.Scenario.SecureKeyLength,
	})
	if out.KeyBits == 0 {
		p.logger.Named("keys").Warn("selected scenario left no secure bits, key is the hash of the empty string")
	}

	var mat *keys.Material
	attrs.KeyBits = out.KeyBits
	err = p.stage(ctx, metrics.StageDerive, metrics.SpanDerive, attrs, func(context.Context) error {
		d := keys.NewDeriver(keys.WithProvenance(out.Provenance), keys.WithRandom(p.random))
		var err error
		mat, err = d.Derive(out.Scenario)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer mat.Zeroize()

	attrs.Bytes = len(payload)
	err = p.stage(ctx, metrics.StageEncrypt, metrics.SpanEncrypt, attrs, func(ctx context.Context) error {
		pkg, name, err := p.store.Encrypt(ctx, level, payload, &mat.Key)
		if err != nil {
			return err
		}
		out.PackageName, out.PackageSize = name, pkg.Len()
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, metrics.StageDecrypt, metrics.SpanDecrypt, attrs, func(ctx context.Context) error {
		plain, err := p.store.Load(ctx, level, &mat.Key)
		if err != nil {
			return err
		}
		if !bytes.Equal(plain, payload) {
			return qerrors.NewIntegrityError("pipeline.Secure", qerrors.ErrVerificationMismatch)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.logger.Named("store").Info("package verified", metrics.Fields{"name": out.PackageName})

	if path := p.cfg.Keys.ExportPath; path != "" {
		if err := WriteKeyFile(path, &mat.Key); err != nil {
			return nil, err
		}
		out.KeyPath = path
	}
	return out, nil
}

// Decrypt loads and verifies the package stored for level.
func (p *Pipeline) Decrypt(ctx context.Context, level policy.Level, key *store.Key) ([]byte, error) {
	var plain []byte
	attrs := metrics.SpanAttributes{ThreatLevel: level.String()}
	err := p.stage(ctx, metrics.StageDecrypt, metrics.SpanDecrypt, attrs, func(ctx context.Context) error {
		var err error
		plain, err = p.store.Load(ctx, level, key)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("decrypt %s: %w", store.PackageName(level), err)
	}
	return plain, nil
}
