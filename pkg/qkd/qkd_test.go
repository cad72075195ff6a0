package qkd

import (
	"context"
	"math"
	"math/rand/v2"
	"reflect"
	"testing"

	qerrors "github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/errors"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/metrics"
)

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0))
}

func TestAmplifiedLength(t *testing.T) {
	tests := []struct {
		sifted int
		qber   float64
		want   int
	}{
		{5000, 0, 5000},
		{5000, 0.1, 4000},
		{5000, 0.25, 2500},
		{4999, 0.3, 1999},
		{5000, 0.5, 0},
		{5000, 0.75, 0},
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := AmplifiedLength(tt.sifted, tt.qber); got != tt.want {
			t.Errorf("AmplifiedLength(%d, %g) = %d, want %d", tt.sifted, tt.qber, got, tt.want)
		}
	}
}

func TestAmplifiedLengthMonotone(t *testing.T) {
	prev := AmplifiedLength(10000, 0)
	for q := 0.0; q <= 1.0; q += 0.001 {
		l := AmplifiedLength(10000, q)
		if l > prev {
			t.Fatalf("length grew from %d to %d at qber %g", prev, l, q)
		}
		if l > 10000 {
			t.Fatalf("length %d exceeds sifted length", l)
		}
		prev = l
	}
}

func TestIdealChannel(t *testing.T) {
	sc, err := SimulateExchange(Params{TotalBits: 10000}, newRNG(42), false)
	if err != nil {
		t.Fatalf("SimulateExchange: %v", err)
	}

	if sc.QBER != 0 {
		t.Errorf("noiseless channel qber = %g, want 0", sc.QBER)
	}
	if math.Abs(sc.KeyRate-0.5) > 0.03 {
		t.Errorf("key rate %g should be close to 0.5", sc.KeyRate)
	}
	if sc.SecureKeyLength != sc.SiftedLength {
		t.Errorf("zero qber should keep the whole sifted key: %d vs %d", sc.SecureKeyLength, sc.SiftedLength)
	}
}

func TestExpectedErrorRate(t *testing.T) {
	tests := []struct {
		noise, attack float64
	}{
		{0, 0.5},
		{0.1, 0},
		{0.1, 0.5},
		{0.05, 0.25},
	}
	for _, tt := range tests {
		sc, err := SimulateExchange(Params{NoiseLevel: tt.noise, AttackProbability: tt.attack, TotalBits: 20000}, newRNG(7), false)
		if err != nil {
			t.Fatal(err)
		}
		// A resent bit is wrong half the time; noise then flips independently.
		want := tt.attack/2*(1-tt.noise) + (1-tt.attack/2)*tt.noise
		if math.Abs(sc.QBER-want) > 0.02 {
			t.Errorf("noise=%g attack=%g: qber %g, want about %g", tt.noise, tt.attack, sc.QBER, want)
		}
	}
}

func TestScenarioInvariants(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NoiseLevels = append(cfg.NoiseLevels, 0.5, 1.0)
	cfg.AttackProbabilities = append(cfg.AttackProbabilities, 1.0)

	table, err := Simulate(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	for _, sc := range table {
		if sc.QBER < 0 || sc.QBER > 1 || sc.KeyRate < 0 || sc.KeyRate > 1 {
			t.Errorf("rates out of range: %+v", sc)
		}
		if sc.SecureKeyLength > sc.SiftedLength || sc.SiftedLength > sc.TotalBits {
			t.Errorf("length ordering violated: %+v", sc)
		}
		if sc.QBER >= 0.5 && sc.SecureKeyLength != 0 {
			t.Errorf("qber %g should leave no key, got %d", sc.QBER, sc.SecureKeyLength)
		}
	}
}

func TestFullyFlippedChannel(t *testing.T) {
	sc, err := SimulateExchange(Params{NoiseLevel: 1, TotalBits: 1000}, newRNG(1), true)
	if err != nil {
		t.Fatal(err)
	}
	if sc.QBER != 1 || sc.SecureKeyLength != 0 || sc.KeyRate != 0 {
		t.Errorf("every bit flipped should abort the key: %+v", sc)
	}
	bits, ok := sc.SecureKeyBits()
	if !ok || len(bits) != 0 {
		t.Errorf("retained key should be empty, got %v/%v", bits, ok)
	}
}

func TestZeroSiftedPositions(t *testing.T) {
	found := false
	for seed := range uint64(64) {
		sc, err := SimulateExchange(Params{TotalBits: 1}, newRNG(seed), true)
		if err != nil {
			t.Fatalf("zero sift must not fail: %v", err)
		}
		if sc.SiftedLength == 0 {
			found = true
			if sc.QBER != 0 || sc.KeyRate != 0 || sc.SecureKeyLength != 0 {
				t.Errorf("empty sift should give a zero scenario: %+v", sc)
			}
		}
	}
	if !found {
		t.Error("expected at least one exchange with no matching bases")
	}
}

func TestSecureKeyBits(t *testing.T) {
	sc, err := SimulateExchange(Params{NoiseLevel: 0.02, TotalBits: 4000}, newRNG(3), true)
	if err != nil {
		t.Fatal(err)
	}

	bits, ok := sc.SecureKeyBits()
	if !ok {
		t.Fatal("key bits should be retained")
	}
	if want := (sc.SecureKeyLength + 7) / 8; len(bits) != want {
		t.Errorf("packed key is %d bytes, want %d", len(bits), want)
	}

	for i := range bits {
		bits[i] ^= 0xFF
	}
	again, _ := sc.SecureKeyBits()
	if reflect.DeepEqual(bits, again) && len(bits) > 0 {
		t.Error("SecureKeyBits should return a copy")
	}

	if _, ok := sc.WithoutKeyBits().SecureKeyBits(); ok {
		t.Error("WithoutKeyBits should drop the key")
	}

	plain, _ := SimulateExchange(Params{TotalBits: 100}, newRNG(3), false)
	if _, ok := plain.SecureKeyBits(); ok {
		t.Error("key bits should not be retained unless requested")
	}
}

func TestParamsValidate(t *testing.T) {
	bad := []Params{
		{NoiseLevel: -0.1, TotalBits: 10},
		{AttackProbability: 1.5, TotalBits: 10},
		{NoiseLevel: math.NaN(), TotalBits: 10},
		{TotalBits: 0},
	}
	for _, p := range bad {
		if _, err := SimulateExchange(p, newRNG(0), false); !qerrors.IsConfiguration(err) {
			t.Errorf("%+v: expected configuration error, got %v", p, err)
		}
	}
}

func TestGridCanonicalOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TotalBits = 2000

	table, err := Simulate(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(table) != 16 {
		t.Fatalf("expected 16 scenarios, got %d", len(table))
	}
	i := 0
	for _, n := range cfg.NoiseLevels {
		for _, a := range cfg.AttackProbabilities {
			if table[i].NoiseLevel != n || table[i].AttackProbability != a {
				t.Errorf("row %d = (%g, %g), want (%g, %g)", i, table[i].NoiseLevel, table[i].AttackProbability, n, a)
			}
			i++
		}
	}
}

func TestGridSortsUnorderedAxes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TotalBits = 1000
	cfg.NoiseLevels = []float64{0.1, 0, 0.05}
	cfg.AttackProbabilities = []float64{0.5, 0, 0.25}

	table, err := Simulate(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(table) != 9 {
		t.Fatalf("expected 9 scenarios, got %d", len(table))
	}
	for i := 1; i < len(table); i++ {
		prev, cur := table[i-1], table[i]
		ordered := prev.NoiseLevel < cur.NoiseLevel ||
			(prev.NoiseLevel == cur.NoiseLevel && prev.AttackProbability < cur.AttackProbability)
		if !ordered {
			t.Errorf("row %d (%g, %g) follows (%g, %g)", i, cur.NoiseLevel, cur.AttackProbability, prev.NoiseLevel, prev.AttackProbability)
		}
	}
	if cfg.NoiseLevels[0] != 0.1 || cfg.AttackProbabilities[0] != 0.5 {
		t.Error("Grid must not reorder the configured axes")
	}

	sorted := cfg
	sorted.NoiseLevels = []float64{0, 0.05, 0.1}
	sorted.AttackProbabilities = []float64{0, 0.25, 0.5}
	want, err := Simulate(context.Background(), sorted)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(table, want) {
		t.Error("axis order in the config should not change the table")
	}
}

func TestGridDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TotalBits = 3000
	cfg.KeepKeyBits = true

	cfg.Workers = 1
	a, err := Simulate(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Workers = 6
	b, err := Simulate(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("scenario table should not depend on worker count")
	}

	cfg.Seed++
	c, _ := Simulate(context.Background(), cfg)
	if reflect.DeepEqual(a, c) {
		t.Error("a different seed should change the table")
	}
}

func TestGridErrorRateGrowsWithAttack(t *testing.T) {
	table, err := Simulate(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	// Row 0 is (0, 0) and row 3 is (0, 0.5).
	if table[0].QBER >= table[3].QBER || table[0].SecureKeyLength <= table[3].SecureKeyLength {
		t.Errorf("attack should raise qber and shrink the key: %+v vs %+v", table[0], table[3])
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NoiseLevels = nil
	if _, err := NewSimulator(cfg); !qerrors.IsConfiguration(err) {
		t.Errorf("empty grid should be a configuration error, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.AttackProbabilities = []float64{0.2, 2}
	if _, err := NewSimulator(cfg); !qerrors.IsConfiguration(err) {
		t.Errorf("bad probability should be a configuration error, got %v", err)
	}
}

func TestSimulatorRecordsMetrics(t *testing.T) {
	c := metrics.NewCollector(nil)
	cfg := DefaultConfig()
	cfg.TotalBits = 500
	cfg.NoiseLevels = []float64{0, 1}
	cfg.AttackProbabilities = []float64{0}

	s, err := NewSimulator(cfg, WithCollector(c), WithLogger(metrics.NullLogger()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	snap := c.Snapshot()
	if snap.Scenarios != 2 || snap.ZeroKeyScenarios != 1 {
		t.Errorf("scenarios/zero = %d/%d, want 2/1", snap.Scenarios, snap.ZeroKeyScenarios)
	}
}

func TestSimulateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Simulate(ctx, DefaultConfig()); err == nil {
		t.Error("cancelled run should fail")
	}
}
