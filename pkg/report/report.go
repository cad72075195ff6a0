// Package report writes and reads the result tables exchanged between
// pipeline stages. Every table is CSV with a fixed header; readers reject a
// header that does not match exactly.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"gonum.org/v1/gonum/stat"

	qerrors "github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/errors"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/baseline"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/grover"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/qkd"
)

// Table headers.
var (
	SearchHeader      = []string{"target", "iterations", "success", "depth"}
	NoiseHeader       = []string{"target", "shots", "success"}
	ChannelHeader     = []string{"noise", "attack_probability", "qber", "key_rate", "secure_key_length"}
	ClassicalHeader   = []string{"total_records", "detected_attacks", "detection_rate", "execution_time_seconds"}
	ScalabilityHeader = []string{"dataset_size", "execution_time"}
	ComparisonHeader  = []string{"Metric", "Classical", "Quantum"}
)

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeTable(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	return nil
}

// readTable validates the header and returns the data rows.
func readTable(r io.Reader, op string, header []string) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)

	got, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, qerrors.NewInputError(op, qerrors.ErrEmptyInput)
	}
	if err != nil {
		return nil, qerrors.NewInputError(op, fmt.Errorf("%w: %v", qerrors.ErrSchemaMismatch, err))
	}
	if !slices.Equal(got, header) {
		return nil, qerrors.NewInputError(op, fmt.Errorf("%w: header %v, want %v", qerrors.ErrSchemaMismatch, got, header))
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, qerrors.NewInputError(op, fmt.Errorf("%w: %v", qerrors.ErrMalformedRecord, err))
	}
	return rows, nil
}

// fieldParser collects the first parse failure of a row.
type fieldParser struct {
	op  string
	row int
	err error
}

func (p *fieldParser) fail(col, v string) {
	if p.err == nil {
		p.err = qerrors.NewInputError(p.op, fmt.Errorf("%w: row %d: %s %q", qerrors.ErrMalformedRecord, p.row, col, v))
	}
}

func (p *fieldParser) parseInt(col, v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(col, v)
	}
	return n
}

func (p *fieldParser) parseFloat(col, v string) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(col, v)
	}
	return f
}

// parseCount parses a non-negative integer.
func (p *fieldParser) parseCount(col, v string) int {
	n := p.parseInt(col, v)
	if n < 0 {
		p.fail(col, v)
	}
	return n
}

// parseProbability parses a value in [0, 1]. NaN is rejected.
func (p *fieldParser) parseProbability(col, v string) float64 {
	f := p.parseFloat(col, v)
	if !(f >= 0 && f <= 1) {
		p.fail(col, v)
	}
	return f
}

func (p *fieldParser) parseTarget(col, v string) int {
	t, err := grover.DecodeTarget(v)
	if err != nil {
		p.fail(col, v)
	}
	return t
}

// --- grover_results.csv ---

// WriteSearchTrials writes ideal search trials.
func WriteSearchTrials(w io.Writer, trials []grover.SearchTrial) error {
	rows := make([][]string, len(trials))
	for i, t := range trials {
		rows[i] = []string{t.Bits, strconv.Itoa(t.Iterations), ftoa(t.Success), strconv.Itoa(t.Depth)}
	}
	return writeTable(w, SearchHeader, rows)
}

// ReadSearchTrials reads ideal search trials.
func ReadSearchTrials(r io.Reader) ([]grover.SearchTrial, error) {
	const op = "report.ReadSearchTrials"
	rows, err := readTable(r, op, SearchHeader)
	if err != nil {
		return nil, err
	}
	out := make([]grover.SearchTrial, len(rows))
	for i, rec := range rows {
		p := fieldParser{op: op, row: i + 1}
		out[i] = grover.SearchTrial{
			Target:     p.parseTarget("target", rec[0]),
			Bits:       rec[0],
			Iterations: p.parseCount("iterations", rec[1]),
			Success:    p.parseProbability("success", rec[2]),
			Depth:      p.parseCount("depth", rec[3]),
		}
		if p.err != nil {
			return nil, p.err
		}
	}
	return out, nil
}

// --- grover_noise_results.csv ---

// WriteNoiseTrials writes noisy search trials.
func WriteNoiseTrials(w io.Writer, trials []grover.NoiseTrial) error {
	rows := make([][]string, len(trials))
	for i, t := range trials {
		rows[i] = []string{t.Bits, strconv.Itoa(t.Shots), ftoa(t.Success)}
	}
	return writeTable(w, NoiseHeader, rows)
}

// ReadNoiseTrials reads noisy search trials.
func ReadNoiseTrials(r io.Reader) ([]grover.NoiseTrial, error) {
	const op = "report.ReadNoiseTrials"
	rows, err := readTable(r, op, NoiseHeader)
	if err != nil {
		return nil, err
	}
	out := make([]grover.NoiseTrial, len(rows))
	for i, rec := range rows {
		p := fieldParser{op: op, row: i + 1}
		out[i] = grover.NoiseTrial{
			Target:  p.parseTarget("target", rec[0]),
			Bits:    rec[0],
			Shots:   p.parseCount("shots", rec[1]),
			Success: p.parseProbability("success", rec[2]),
		}
		if p.err != nil {
			return nil, p.err
		}
	}
	return out, nil
}

// --- mdi_qkd_results.csv ---

// WriteScenarios writes the channel scenario table. Key bits are never
// written.
func WriteScenarios(w io.Writer, scenarios []qkd.Scenario) error {
	rows := make([][]string, len(scenarios))
	for i, s := range scenarios {
		rows[i] = []string{
			ftoa(s.NoiseLevel),
			ftoa(s.AttackProbability),
			ftoa(s.QBER),
			ftoa(s.KeyRate),
			strconv.Itoa(s.SecureKeyLength),
		}
	}
	return writeTable(w, ChannelHeader, rows)
}

// ReadScenarios reads a channel scenario table. The table does not carry
// the exchange size or sifted length, so those fields are zero. Rates and
// probabilities outside [0, 1] (or NaN) are malformed records.
func ReadScenarios(r io.Reader) ([]qkd.Scenario, error) {
	const op = "report.ReadScenarios"
	rows, err := readTable(r, op, ChannelHeader)
	if err != nil {
		return nil, err
	}
	out := make([]qkd.Scenario, len(rows))
	for i, rec := range rows {
		p := fieldParser{op: op, row: i + 1}
		out[i] = qkd.Scenario{
			NoiseLevel:        p.parseProbability("noise", rec[0]),
			AttackProbability: p.parseProbability("attack_probability", rec[1]),
			QBER:              p.parseProbability("qber", rec[2]),
			KeyRate:           p.parseProbability("key_rate", rec[3]),
			SecureKeyLength:   p.parseCount("secure_key_length", rec[4]),
		}
		if p.err != nil {
			return nil, p.err
		}
	}
	return out, nil
}

// --- classical_results.csv ---

// WriteClassical writes the one-row classical baseline table.
func WriteClassical(w io.Writer, r baseline.Result) error {
	return writeTable(w, ClassicalHeader, [][]string{{
		strconv.Itoa(r.TotalRecords),
		strconv.Itoa(r.Detected),
		ftoa(r.DetectionRate),
		ftoa(r.Elapsed.Seconds()),
	}})
}

// ReadClassical reads the classical baseline table.
func ReadClassical(r io.Reader) (baseline.Result, error) {
	const op = "report.ReadClassical"
	rows, err := readTable(r, op, ClassicalHeader)
	if err != nil {
		return baseline.Result{}, err
	}
	if len(rows) != 1 {
		return baseline.Result{}, qerrors.NewInputError(op, qerrors.ErrSchemaMismatch)
	}
	rec := rows[0]
	p := fieldParser{op: op, row: 1}
	res := baseline.Result{
		TotalRecords:  p.parseCount("total_records", rec[0]),
		Detected:      p.parseCount("detected_attacks", rec[1]),
		DetectionRate: p.parseProbability("detection_rate", rec[2]),
		Elapsed:       time.Duration(math.Round(p.parseFloat("execution_time_seconds", rec[3]) * float64(time.Second))),
	}
	return res, p.err
}

// WriteScalability writes classical scan timings.
func WriteScalability(w io.Writer, points []baseline.ScalePoint) error {
	rows := make([][]string, len(points))
	for i, pt := range points {
		rows[i] = []string{strconv.Itoa(pt.Size), ftoa(pt.Elapsed.Seconds())}
	}
	return writeTable(w, ScalabilityHeader, rows)
}

// --- final_comparison.csv ---

// ComparisonRow is one metric of the classical/quantum comparison.
type ComparisonRow struct {
	Metric    string
	Classical string
	Quantum   string
}

// Compare builds the comparison of a classical scan with the ideal search
// trials: detection rate against mean success, scan time, asymptotic
// complexity and mean circuit depth.
func Compare(classical baseline.Result, trials []grover.SearchTrial) ([]ComparisonRow, error) {
	if len(trials) == 0 {
		return nil, qerrors.NewInputError("report.Compare", qerrors.ErrEmptyInput)
	}
	success := make([]float64, len(trials))
	depth := make([]float64, len(trials))
	for i, t := range trials {
		success[i] = t.Success
		depth[i] = float64(t.Depth)
	}

	return []ComparisonRow{
		{"Detection Rate", ftoa(classical.DetectionRate), ftoa(stat.Mean(success, nil))},
		{"Execution Time (sec)", ftoa(classical.Elapsed.Seconds()), "Theoretical O(√N)"},
		{"Complexity", "O(N)", "O(√N)"},
		{"Circuit Depth", "-", ftoa(stat.Mean(depth, nil))},
	}, nil
}

// WriteComparison writes the comparison table.
func WriteComparison(w io.Writer, rows []ComparisonRow) error {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{r.Metric, r.Classical, r.Quantum}
	}
	return writeTable(w, ComparisonHeader, out)
}

// ReadComparison reads the comparison table.
func ReadComparison(r io.Reader) ([]ComparisonRow, error) {
	rows, err := readTable(r, "report.ReadComparison", ComparisonHeader)
	if err != nil {
		return nil, err
	}
	out := make([]ComparisonRow, len(rows))
	for i, rec := range rows {
		out[i] = ComparisonRow{Metric: rec[0], Classical: rec[1], Quantum: rec[2]}
	}
	return out, nil
}

// --- files ---

// WriteFile creates dir if needed and writes one table to dir/name.
func WriteFile(dir, name string, write func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return path, nil
}

// ReadFile opens path and parses it with read.
func ReadFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		if errors.Is(err, os.ErrNotExist) {
			return zero, qerrors.NewInputError("report.ReadFile", fmt.Errorf("%w: %s", qerrors.ErrEmptyInput, path))
		}
		return zero, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return read(f)
}
