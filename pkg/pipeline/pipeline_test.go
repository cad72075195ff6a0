package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	qerrors "github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/errors"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/config"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/grover"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/metrics"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/policy"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/qkd"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/report"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/store"
)

// writeDataset writes an anomaly table of rows records whose highest score
// sits at row top.
func writeDataset(t *testing.T, dir string, rows, top int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("timestamp,user,event,anomaly_score\n")
	for i := range rows {
		score := float64(i%7) / 10
		if i == top {
			score = 0.99
		}
		fmt.Fprintf(&b, "2026-01-01T00:%02d:00Z,user%d,login,%g\n", i%60, i, score)
	}
	path := filepath.Join(dir, "ai_detected_logs.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Dataset.Path = writeDataset(t, dir, 16, 11)
	cfg.Channel.TotalBits = 2000
	cfg.Storage.Backend = config.BackendMemory
	cfg.Output.Dir = filepath.Join(dir, "evaluation")
	return cfg
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	sink := store.NewMemorySink()
	tracer := metrics.NewSimpleTracer()
	collector := metrics.NewCollector(nil)
	var logs bytes.Buffer

	p, err := Open(context.Background(), cfg,
		WithSink(sink),
		WithTracer(tracer),
		WithCollector(collector),
		WithLogger(metrics.TestLogger(&logs).Named("qals")),
		WithRunID("run-1"),
	)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	rep, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// 16 records: 4 qubits, 3 iterations, ideal success about 0.96.
	if rep.Search.SearchSpace != 16 || rep.Search.Qubits != 4 {
		t.Errorf("search space = %d/%d", rep.Search.SearchSpace, rep.Search.Qubits)
	}
	if !slices.ContainsFunc(rep.Search.Trials, func(tr grover.SearchTrial) bool { return tr.Target == 11 }) {
		t.Error("highest-score record should be a target")
	}
	if rep.Secure.Assessment.Level != policy.LevelHigh {
		t.Errorf("level = %v (mean %g)", rep.Secure.Assessment.Level, rep.Secure.Assessment.MeanSuccess)
	}
	if rep.Secure.PackageName != "encrypted_anomalies_HIGH.bin" {
		t.Errorf("package = %q", rep.Secure.PackageName)
	}
	if len(rep.Scenarios) != 16 {
		t.Errorf("scenarios = %d", len(rep.Scenarios))
	}

	// HIGH takes the lowest error rate in the table.
	for _, s := range rep.Scenarios {
		if s.QBER < rep.Secure.Scenario.QBER {
			t.Errorf("selected qber %g but %g exists", rep.Secure.Scenario.QBER, s.QBER)
		}
	}

	data, err := sink.Get(context.Background(), rep.Secure.PackageName)
	if err != nil {
		t.Fatal(err)
	}
	payload, _ := os.ReadFile(cfg.Dataset.Path)
	if len(data) != len(payload)+32 || rep.Secure.PackageSize != len(data) {
		t.Errorf("package is %d bytes for a %d-byte payload", len(data), len(payload))
	}

	for _, name := range []string{"grover_results.csv", "grover_noise_results.csv", "classical_results.csv",
		"classical_scalability.csv", "mdi_qkd_results.csv", "final_comparison.csv"} {
		if _, err := os.Stat(p.OutputPath(name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	back, err := report.ReadFile(p.OutputPath("mdi_qkd_results.csv"), report.ReadScenarios)
	if err != nil || len(back) != 16 {
		t.Errorf("scenario table read back %d rows, %v", len(back), err)
	}

	snap := collector.Snapshot()
	if snap.RunsCompleted != 1 || snap.PackagesSealed != 1 || snap.PackagesOpened != 1 || snap.ThreatHigh != 1 {
		t.Errorf("collector = %+v", snap)
	}
	if snap.SearchTrials != uint64(len(rep.Search.Trials)) || snap.Scenarios != 16 {
		t.Errorf("trials/scenarios = %d/%d", snap.SearchTrials, snap.Scenarios)
	}

	var names []string
	for _, s := range tracer.Spans() {
		names = append(names, s.Name)
		if s.Attributes["run.id"] != "run-1" {
			t.Errorf("span %s missing run id", s.Name)
		}
	}
	for _, want := range []string{metrics.SpanRun, metrics.SpanSearch, metrics.SpanBaseline, metrics.SpanChannel,
		metrics.SpanAssess, metrics.SpanSelect, metrics.SpanDerive, metrics.SpanEncrypt, metrics.SpanDecrypt} {
		if !slices.Contains(names, want) {
			t.Errorf("no %s span in %v", want, names)
		}
	}

	if !strings.Contains(logs.String(), "run_id=run-1") || !strings.Contains(logs.String(), "[qals.channel]") {
		t.Errorf("stage logs should be named and carry the run id:\n%s", logs.String())
	}
}

func TestExportedKeyDecrypts(t *testing.T) {
	cfg := testConfig(t)
	cfg.Keys.ExportPath = filepath.Join(t.TempDir(), "keys", "payload.key")
	sink := store.NewMemorySink()

	p, err := Open(context.Background(), cfg, WithSink(sink))
	if err != nil {
		t.Fatal(err)
	}
	rep, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Secure.KeyPath != cfg.Keys.ExportPath {
		t.Fatalf("key path = %q", rep.Secure.KeyPath)
	}

	info, err := os.Stat(cfg.Keys.ExportPath)
	if err != nil || info.Mode().Perm() != 0o600 {
		t.Fatalf("key file: %v / %v", info, err)
	}

	key, err := ReadKeyFile(cfg.Keys.ExportPath)
	if err != nil {
		t.Fatal(err)
	}

	// A second pipeline over the same sink decrypts with the exported key.
	q, err := Open(context.Background(), cfg, WithSink(sink))
	if err != nil {
		t.Fatal(err)
	}
	plain, err := q.Decrypt(context.Background(), policy.LevelHigh, key)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	payload, _ := os.ReadFile(cfg.Dataset.Path)
	if !bytes.Equal(plain, payload) {
		t.Error("decrypted payload differs")
	}

	if _, err := q.Decrypt(context.Background(), policy.LevelLow, key); !errors.Is(err, qerrors.ErrPackageNotFound) {
		t.Errorf("expected missing package, got %v", err)
	}
}

func TestChannelProvenanceIsReproducible(t *testing.T) {
	cfg := testConfig(t)
	cfg.Keys.Provenance = "channel"

	var keysSeen [][]byte
	for i := range 2 {
		cfg.Keys.ExportPath = filepath.Join(t.TempDir(), fmt.Sprintf("k%d", i))
		p, err := Open(context.Background(), cfg, WithSink(store.NewMemorySink()))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := p.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}
		k, err := os.ReadFile(cfg.Keys.ExportPath)
		if err != nil {
			t.Fatal(err)
		}
		keysSeen = append(keysSeen, k)
	}
	if !bytes.Equal(keysSeen[0], keysSeen[1]) {
		t.Error("channel-derived keys should follow the seed")
	}
}

func TestFreshProvenanceUsesRandom(t *testing.T) {
	cfg := testConfig(t)
	p, err := Open(context.Background(), cfg,
		WithSink(store.NewMemorySink()),
		WithRandom(bytes.NewReader(make([]byte, 4096))),
	)
	if err != nil {
		t.Fatal(err)
	}
	scenarios := []qkd.Scenario{{QBER: 0, SecureKeyLength: 8}}
	trials := []grover.SearchTrial{{Success: 1}}

	out, err := p.Secure(context.Background(), trials, scenarios, []byte("payload"))
	if err != nil {
		t.Fatalf("Secure: %v", err)
	}
	if out.KeyBits != 8 || out.Provenance.String() != "fresh" {
		t.Errorf("outcome = %+v", out)
	}
}

func TestSecureErrors(t *testing.T) {
	cfg := testConfig(t)
	p, err := Open(context.Background(), cfg, WithSink(store.NewMemorySink()))
	if err != nil {
		t.Fatal(err)
	}
	scenarios := []qkd.Scenario{{QBER: 0.1, SecureKeyLength: 100}}
	trials := []grover.SearchTrial{{Success: 0.5}}

	if _, err := p.Secure(context.Background(), nil, scenarios, []byte("x")); !qerrors.IsInput(err) {
		t.Errorf("no trials: expected input error, got %v", err)
	}
	if _, err := p.Secure(context.Background(), trials, nil, []byte("x")); !qerrors.IsConfiguration(err) {
		t.Errorf("no scenarios: expected configuration error, got %v", err)
	}

	cfg.Keys.Provenance = "channel"
	q, _ := Open(context.Background(), cfg, WithSink(store.NewMemorySink()))
	if _, err := q.Secure(context.Background(), trials, scenarios, []byte("x")); !errors.Is(err, qerrors.ErrNoKeyBits) {
		t.Errorf("table rows carry no key bits, got %v", err)
	}
}

// corruptingSink flips a ciphertext bit on the way back.
type corruptingSink struct {
	*store.MemorySink
}

func (s corruptingSink) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := s.MemorySink.Get(ctx, name)
	if err == nil && len(data) > 32 {
		data[len(data)-1] ^= 1
	}
	return data, err
}

func TestSecureDetectsTampering(t *testing.T) {
	cfg := testConfig(t)
	collector := metrics.NewCollector(nil)
	p, err := Open(context.Background(), cfg,
		WithSink(corruptingSink{store.NewMemorySink()}),
		WithCollector(collector),
	)
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.Run(context.Background())
	if !qerrors.IsIntegrity(err) {
		t.Fatalf("expected integrity error, got %v", err)
	}
	snap := collector.Snapshot()
	if snap.RunsFailed != 1 || snap.IntegrityFailures != 1 || snap.PackagesOpened != 0 {
		t.Errorf("collector = %+v", snap)
	}
}

func TestRunMissingDataset(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dataset.Path = filepath.Join(t.TempDir(), "absent.csv")
	p, err := Open(context.Background(), cfg, WithSink(store.NewMemorySink()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Run(context.Background()); !qerrors.IsInput(err) {
		t.Errorf("expected input error, got %v", err)
	}
	if p.Collector().Snapshot().RunsFailed != 1 {
		t.Error("failed run should be counted")
	}
}

func TestRunEmptyDataset(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dataset.Path = writeDataset(t, t.TempDir(), 0, 0)
	p, err := Open(context.Background(), cfg, WithSink(store.NewMemorySink()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Run(context.Background()); !errors.Is(err, qerrors.ErrEmptySearchSpace) {
		t.Errorf("expected empty search space, got %v", err)
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Channel.NoiseLevels = nil
	if _, err := Open(context.Background(), cfg); !qerrors.IsConfiguration(err) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestOpenFileBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = config.BackendFile
	cfg.Storage.Dir = filepath.Join(t.TempDir(), "secure_storage")

	p, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	rep, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Storage.Dir, rep.Secure.PackageName)); err != nil {
		t.Errorf("package file missing: %v", err)
	}
}

func TestWriteMetrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Path = filepath.Join(t.TempDir(), "metrics", "qals.prom")
	p, err := Open(context.Background(), cfg, WithSink(store.NewMemorySink()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := p.WriteMetrics(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(cfg.Metrics.Path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"qals_packages_sealed_total 1", `qals_threat_assessments_total{level="HIGH"} 1`, `stage="encrypt"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k.hex")
	var key store.Key
	for i := range key {
		key[i] = byte(i)
	}
	if err := WriteKeyFile(path, &key); err != nil {
		t.Fatal(err)
	}
	got, err := ReadKeyFile(path)
	if err != nil || *got != key {
		t.Errorf("ReadKeyFile = %x, %v", got, err)
	}

	os.WriteFile(path, []byte("abcd\n"), 0o600)
	if _, err := ReadKeyFile(path); !qerrors.IsInput(err) {
		t.Errorf("short key should be rejected, got %v", err)
	}
}
