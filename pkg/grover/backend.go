package grover

import (
	"context"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	qerrors "github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/errors"
)

// Counts maps measured bit-strings (qubit order) to how often they occurred.
type Counts map[string]int

// Backend executes a circuit for a number of shots and reports outcome counts.
//
// A circuit-level simulator can be plugged in here; AnalyticBackend is the
// closed-form model used by default.
type Backend interface {
	Execute(ctx context.Context, c *Circuit, shots int, src rand.Source) (Counts, error)
}

// NoiseModel applies depolarizing errors to every elementary gate.
type NoiseModel struct {
	SingleQubitError float64
	TwoQubitError    float64
}

// Validate checks that both error rates are probabilities.
func (m NoiseModel) Validate() error {
	for _, p := range []float64{m.SingleQubitError, m.TwoQubitError} {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return qerrors.NewConfigurationError("grover.NoiseModel", qerrors.ErrInvalidProbability)
		}
	}
	return nil
}

// Fidelity returns the probability that no gate of c suffers an error.
func (m NoiseModel) Fidelity(c *Circuit) float64 {
	f := math.Pow(1-m.SingleQubitError, float64(c.Cost.Single))
	return f * math.Pow(1-m.TwoQubitError, float64(c.Cost.CX))
}

// Success mixes the ideal success probability with the fully depolarized
// (uniform) outcome distribution according to the circuit fidelity.
func (m NoiseModel) Success(c *Circuit) float64 {
	f := m.Fidelity(c)
	return clamp01(f*c.IdealSuccess() + (1-f)/float64(c.States()))
}

// AnalyticBackend samples outcomes from the closed-form success probability.
// A nil Noise means an ideal device.
type AnalyticBackend struct {
	Noise *NoiseModel
}

// SuccessProbability returns the exact probability of the marked outcome.
func (b *AnalyticBackend) SuccessProbability(c *Circuit) float64 {
	if b.Noise == nil {
		return c.IdealSuccess()
	}
	return b.Noise.Success(c)
}

// Execute draws the number of marked-outcome hits from Binomial(shots, p) and
// spreads the misses uniformly over the other states.
func (b *AnalyticBackend) Execute(ctx context.Context, c *Circuit, shots int, src rand.Source) (Counts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c == nil || shots <= 0 {
		return nil, qerrors.NewInputError("grover.Execute", qerrors.ErrInvalidParameter)
	}

	p := b.SuccessProbability(c)
	var hits int
	switch {
	case p <= 0:
	case p >= 1:
		hits = shots
	default:
		d := distuv.Binomial{N: float64(shots), P: p, Src: src}
		hits = int(d.Rand())
	}

	counts := Counts{}
	if hits > 0 {
		counts[c.Bits] = hits
	}

	others := c.States() - 1
	if others == 0 {
		return counts, nil
	}
	rng := rand.New(src)
	for range shots - hits {
		idx := rng.IntN(others)
		if idx >= c.Target {
			idx++
		}
		counts[EncodeTarget(idx, c.Qubits)]++
	}
	return counts, nil
}
