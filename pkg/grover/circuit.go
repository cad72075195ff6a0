// Package grover estimates how well amplitude-amplification search finds a
// marked index, both on an ideal device and under depolarizing gate noise.
//
// Circuits are described by their gate-cost model rather than by a gate list:
// a Backend only needs the register width, the marked bit-string, the
// iteration count and the elementary gate totals to produce outcome counts.
package grover

import (
	"math"
	"math/bits"
	"strconv"
	"strings"

	qerrors "github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/errors"
)

// Width returns the index-encoding width n = ceil(log2 N) for N > 0.
func Width(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// Iterations returns the amplification iteration count floor(π/4·√N).
func Iterations(n int) int {
	if n <= 0 {
		return 0
	}
	return int(math.Floor(math.Pi / 4 * math.Sqrt(float64(n))))
}

// EncodeTarget returns the width-bit encoding of target in qubit order:
// character i is bit i of target, least significant first. A zero width
// still encodes as "0".
func EncodeTarget(target, width int) string {
	if width == 0 {
		return "0"
	}
	var b strings.Builder
	b.Grow(width)
	for i := 0; i < width; i++ {
		if target>>i&1 == 1 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// DecodeTarget parses a qubit-order bit-string back into its index.
func DecodeTarget(s string) (int, error) {
	if s == "" || len(s) >= strconv.IntSize {
		return 0, qerrors.NewInputError("grover.DecodeTarget", qerrors.ErrMalformedRecord)
	}
	target := 0
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case '0':
			target <<= 1
		case '1':
			target = target<<1 | 1
		default:
			return 0, qerrors.NewInputError("grover.DecodeTarget", qerrors.ErrMalformedRecord)
		}
	}
	return target, nil
}

// GateCost is the elementary-gate footprint of a sub-circuit.
type GateCost struct {
	Single int // single-qubit gates (H, X, phase)
	CX     int // two-qubit CNOTs
	Depth  int // layers
}

func (g GateCost) add(o GateCost) GateCost {
	return GateCost{Single: g.Single + o.Single, CX: g.CX + o.CX, Depth: g.Depth + o.Depth}
}

// toffoli is the standard 6-CNOT decomposition of a doubly-controlled X.
var toffoli = GateCost{Single: 9, CX: 6, Depth: 11}

// mcxCost returns the cost of an X gate with c controls. Three or more
// controls use the ancilla ladder of 2c-3 Toffolis.
func mcxCost(c int) GateCost {
	switch {
	case c <= 0:
		return GateCost{Single: 1, Depth: 1}
	case c == 1:
		return GateCost{CX: 1, Depth: 1}
	case c == 2:
		return toffoli
	default:
		m := 2*c - 3
		return GateCost{Single: m * toffoli.Single, CX: m * toffoli.CX, Depth: m * toffoli.Depth}
	}
}

// Circuit is the cost model of one amplitude-amplification search.
type Circuit struct {
	SearchSpace int    // N, number of candidate items
	Qubits      int    // n
	Target      int    // marked index
	Bits        string // marked outcome in qubit order
	Iterations  int
	Cost        GateCost
}

// States returns the size of the register's state space, 2^n.
func (c *Circuit) States() int {
	return 1 << c.Qubits
}

// NewCircuit builds the search circuit for target within a space of size n.
func NewCircuit(n, target int) (*Circuit, error) {
	if n <= 0 {
		return nil, qerrors.NewInputError("grover.NewCircuit", qerrors.ErrEmptySearchSpace)
	}
	if target < 0 || target >= n {
		return nil, qerrors.NewInputError("grover.NewCircuit", qerrors.ErrInvalidParameter)
	}

	width := Width(n)
	c := &Circuit{
		SearchSpace: n,
		Qubits:      width,
		Target:      target,
		Bits:        EncodeTarget(target, width),
		Iterations:  Iterations(n),
	}
	if width == 0 {
		return c, nil
	}

	zeros := strings.Count(c.Bits, "0")
	mcx := mcxCost(width - 1)

	// Oracle: X on zero bits, H-MCX-H on the last qubit, X again.
	oracle := GateCost{Single: 2*zeros + 2, Depth: 2}.add(mcx)
	if zeros > 0 {
		oracle.Depth += 2
	}

	// Diffuser: H and X on every qubit, H-MCX-H, X and H again.
	diffuser := GateCost{Single: 4*width + 2, Depth: 6}.add(mcx)

	iter := oracle.add(diffuser)
	c.Cost = GateCost{
		Single: width + c.Iterations*iter.Single,
		CX:     c.Iterations * iter.CX,
		Depth:  2 + c.Iterations*iter.Depth, // initial H layer and measurement
	}
	return c, nil
}

// IdealSuccess returns the noiseless probability of measuring the marked
// outcome: sin²((2k+1)θ) with sin θ = 1/√(2^n).
func (c *Circuit) IdealSuccess() float64 {
	theta := math.Asin(1 / math.Sqrt(float64(c.States())))
	s := math.Sin(float64(2*c.Iterations+1) * theta)
	return clamp01(s * s)
}

func clamp01(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
