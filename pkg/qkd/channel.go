// Package qkd simulates a measurement-device-independent quantum key
// distribution channel under noise and intercept-resend eavesdropping.
//
// Each grid point of (noise level, attack probability) yields one immutable
// Scenario with its error rate, key rate and the length of the key left after
// privacy amplification.
package qkd

import (
	"math"
	"math/rand/v2"

	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/constants"
	qerrors "github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/errors"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/crypto"
)

// Params describes one exchange.
type Params struct {
	NoiseLevel        float64
	AttackProbability float64
	TotalBits         int
}

// Validate checks that both probabilities lie in [0,1] and that bits are exchanged.
func (p Params) Validate() error {
	if !isProbability(p.NoiseLevel) || !isProbability(p.AttackProbability) {
		return qerrors.NewConfigurationError("qkd.Params", qerrors.ErrInvalidProbability)
	}
	if p.TotalBits <= 0 {
		return qerrors.NewConfigurationError("qkd.Params", qerrors.ErrInvalidParameter)
	}
	return nil
}

func isProbability(p float64) bool {
	return !math.IsNaN(p) && p >= 0 && p <= 1
}

// Scenario is the outcome of one simulated exchange. Scenarios are values;
// the amplified key bits are held privately and only handed out as copies.
type Scenario struct {
	NoiseLevel        float64
	AttackProbability float64
	TotalBits         int
	SiftedLength      int
	QBER              float64
	KeyRate           float64
	SecureKeyLength   int

	keyBits []byte // packed, SecureKeyLength bits; nil when not retained
}

// SecureKeyBits returns a copy of the packed amplified key (most significant
// bit first) and whether the scenario retained it.
func (s Scenario) SecureKeyBits() ([]byte, bool) {
	if s.keyBits == nil {
		return nil, false
	}
	out := make([]byte, len(s.keyBits))
	copy(out, s.keyBits)
	return out, true
}

// WithoutKeyBits returns the scenario with its key bits dropped, as read back
// from a results table.
func (s Scenario) WithoutKeyBits() Scenario {
	s.keyBits = nil
	return s
}

// AmplifiedLength returns floor(sifted · max(0, 1 − 2·qber)): the key length
// left after privacy amplification. It is zero once qber reaches 0.5.
func AmplifiedLength(sifted int, qber float64) int {
	if sifted <= 0 || qber >= constants.QBERAbortThreshold {
		return 0
	}
	factor := math.Max(0, 1-2*qber)
	return int(float64(sifted) * factor)
}

// SimulateExchange runs one exchange with randomness from rng.
//
// Alice draws a bit and a basis per position and Bob draws a basis. Bob's
// reconstructed bit is replaced by a fresh random bit with the attack
// probability and then flipped with the noise level. Positions where the
// bases agree are sifted; the secure key is the leading part of Alice's
// sifted key, shortened according to the observed error rate.
func SimulateExchange(p Params, rng *rand.Rand, keepKeyBits bool) (Scenario, error) {
	if err := p.Validate(); err != nil {
		return Scenario{}, err
	}

	total := p.TotalBits
	aliceBits := randomBits(rng, total)
	aliceBases := randomBits(rng, total)
	bobBases := randomBits(rng, total)

	bobBits := make([]byte, total)
	copy(bobBits, aliceBits)
	for i := range bobBits {
		if rng.Float64() < p.AttackProbability {
			bobBits[i] = byte(rng.Uint32() & 1)
		}
	}
	for i := range bobBits {
		if rng.Float64() < p.NoiseLevel {
			bobBits[i] ^= 1
		}
	}

	sifted := make([]byte, 0, total/2+1)
	mismatches := 0
	for i := 0; i < total; i++ {
		if aliceBases[i] != bobBases[i] {
			continue
		}
		sifted = append(sifted, aliceBits[i])
		if aliceBits[i] != bobBits[i] {
			mismatches++
		}
	}

	s := Scenario{
		NoiseLevel:        p.NoiseLevel,
		AttackProbability: p.AttackProbability,
		TotalBits:         total,
		SiftedLength:      len(sifted),
	}
	if len(sifted) == 0 {
		return s, nil
	}

	s.QBER = float64(mismatches) / float64(len(sifted))
	s.SecureKeyLength = AmplifiedLength(len(sifted), s.QBER)
	s.KeyRate = float64(s.SecureKeyLength) / float64(total)
	if keepKeyBits {
		s.keyBits = crypto.PackBits(sifted[:s.SecureKeyLength])
	}
	crypto.ZeroizeMultiple(aliceBits, bobBits, sifted)
	return s, nil
}

// randomBits draws n unbiased bits, one per byte.
func randomBits(rng *rand.Rand, n int) []byte {
	out := make([]byte, n)
	var word uint64
	for i := range out {
		if i%64 == 0 {
			word = rng.Uint64()
		}
		out[i] = byte(word & 1)
		word >>= 1
	}
	return out
}
