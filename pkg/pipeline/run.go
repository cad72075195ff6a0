package pipeline

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/constants"
	qerrors "github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/errors"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/baseline"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/crypto"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/dataset"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/grover"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/metrics"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/qkd"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/report"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/store"
)

// ScalabilityFile names the classical scan timing table.
const ScalabilityFile = "classical_scalability.csv"

// Report is the outcome of a full run.
type Report struct {
	RunID      string
	Search     *grover.Result
	Classical  baseline.Result
	Scenarios  []qkd.Scenario
	Secure     *Outcome
	Comparison []report.ComparisonRow
	Files      []string
	Elapsed    time.Duration
}

// LoadDataset reads the configured anomaly table.
func (p *Pipeline) LoadDataset() (*dataset.Table, error) {
	t, err := dataset.Load(p.cfg.Dataset.Path, p.cfg.DatasetOptions())
	if err != nil {
		return nil, err
	}
	p.logger.Named("dataset").Info("table loaded", metrics.Fields{
		"path":    p.cfg.Dataset.Path,
		"records": t.Rows,
		"scores":  t.HasScores(),
		"bytes":   len(t.Payload),
	})
	return t, nil
}

// Run executes every stage against the configured dataset and writes the
// result tables to the output directory.
func (p *Pipeline) Run(ctx context.Context) (rep *Report, err error) {
	start := time.Now()
	ctx, end := p.tracer.StartSpan(ctx, metrics.SpanRun, metrics.WithAttributes(metrics.SpanAttributes{RunID: p.runID}.ToMap()))
	defer func() {
		end(err)
		p.collector.RecordRun(err)
		if err != nil {
			p.logger.Error("run failed", metrics.Fields{"error": err})
		}
	}()

	table, err := p.LoadDataset()
	if err != nil {
		return nil, err
	}

	rep = &Report{RunID: p.runID}
	if rep.Search, err = p.Search(ctx, table); err != nil {
		return nil, err
	}
	if rep.Classical, err = p.Baseline(ctx, table); err != nil {
		return nil, err
	}
	if rep.Scenarios, err = p.Channel(ctx); err != nil {
		return nil, err
	}
	if rep.Secure, err = p.Secure(ctx, rep.Search.Trials, rep.Scenarios, table.Payload); err != nil {
		return nil, err
	}
	if rep.Comparison, err = report.Compare(rep.Classical, rep.Search.Trials); err != nil {
		return nil, err
	}

	if rep.Files, err = p.WriteSearchTables(rep.Search); err != nil {
		return nil, err
	}
	files, err := p.WriteClassicalTables(rep.Classical, table)
	if err != nil {
		return nil, err
	}
	rep.Files = append(rep.Files, files...)
	file, err := p.WriteChannelTable(rep.Scenarios)
	if err != nil {
		return nil, err
	}
	rep.Files = append(rep.Files, file)
	if file, err = p.WriteComparison(rep.Comparison); err != nil {
		return nil, err
	}
	rep.Files = append(rep.Files, file)

	rep.Elapsed = time.Since(start)
	p.logger.Info("run complete", metrics.Fields{
		"level":    rep.Secure.Assessment.Level.String(),
		"package":  rep.Secure.PackageName,
		"key_bits": rep.Secure.KeyBits,
		"elapsed":  rep.Elapsed,
	})
	return rep, nil
}

func (p *Pipeline) write(name string, fn func(io.Writer) error) (string, error) {
	path, err := report.WriteFile(p.cfg.Output.Dir, name, fn)
	if err != nil {
		return "", err
	}
	p.logger.Debug("table written", metrics.Fields{"path": path})
	return path, nil
}

// WriteSearchTables writes the ideal and noisy search tables.
func (p *Pipeline) WriteSearchTables(res *grover.Result) ([]string, error) {
	a, err := p.write(constants.GroverResultsFile, func(w io.Writer) error {
		return report.WriteSearchTrials(w, res.Trials)
	})
	if err != nil {
		return nil, err
	}
	b, err := p.write(constants.GroverNoiseResultsFile, func(w io.Writer) error {
		return report.WriteNoiseTrials(w, res.NoiseTrials)
	})
	if err != nil {
		return nil, err
	}
	return []string{a, b}, nil
}

// WriteClassicalTables writes the classical result and scan timings.
func (p *Pipeline) WriteClassicalTables(res baseline.Result, table *dataset.Table) ([]string, error) {
	a, err := p.write(constants.ClassicalResultsFile, func(w io.Writer) error {
		return report.WriteClassical(w, res)
	})
	if err != nil {
		return nil, err
	}
	if !table.HasScores() {
		return []string{a}, nil
	}
	b, err := p.write(ScalabilityFile, func(w io.Writer) error {
		return report.WriteScalability(w, baseline.Scalability(table.Scores, baseline.DefaultScaleSizes()))
	})
	if err != nil {
		return nil, err
	}
	return []string{a, b}, nil
}

// WriteChannelTable writes the scenario table.
func (p *Pipeline) WriteChannelTable(scenarios []qkd.Scenario) (string, error) {
	return p.write(constants.ChannelResultsFile, func(w io.Writer) error {
		return report.WriteScenarios(w, scenarios)
	})
}

// WriteComparison writes the classical/quantum comparison table.
func (p *Pipeline) WriteComparison(rows []report.ComparisonRow) (string, error) {
	return p.write(constants.ComparisonFile, func(w io.Writer) error {
		return report.WriteComparison(w, rows)
	})
}

// OutputPath returns the path of a result table in the output directory.
func (p *Pipeline) OutputPath(name string) string {
	return filepath.Join(p.cfg.Output.Dir, name)
}

// WriteMetrics writes the Prometheus text dump to the configured path.
// It does nothing when no path is configured.
func (p *Pipeline) WriteMetrics() error {
	path := p.cfg.Metrics.Path
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	metrics.NewPrometheusExporter(p.collector, constants.MetricsNamespace).WriteMetrics(f)
	return f.Close()
}

// WriteKeyFile writes key hex-encoded to path with mode 0600.
func WriteKeyFile(path string, key *store.Key) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create key dir: %w", err)
		}
	}
	enc := []byte(hex.EncodeToString(key[:]) + "\n")
	defer crypto.Zeroize(enc)
	if err := os.WriteFile(path, enc, 0o600); err != nil {
		return fmt.Errorf("write key: %w", err)
	}
	return nil
}

// ReadKeyFile reads a hex-encoded key written by WriteKeyFile.
func ReadKeyFile(path string) (*store.Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}
	defer crypto.Zeroize(data)

	raw, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil || len(raw) != constants.KeySize {
		return nil, qerrors.NewInputError("pipeline.ReadKeyFile", qerrors.ErrInvalidKeySize)
	}
	defer crypto.Zeroize(raw)

	var key store.Key
	copy(key[:], raw)
	return &key, nil
}
