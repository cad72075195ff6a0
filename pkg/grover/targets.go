package grover

import (
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/constants"
	qerrors "github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/errors"
)

// BaselineTarget is the fixed index always included in a target set.
const BaselineTarget = constants.BaselineTarget

// SelectTargets picks the indices to search for in a space of size n: one
// uniformly random index, the index of the highest anomaly score (the first
// one on ties, BaselineTarget when no scores are given) and BaselineTarget.
// The result is deduplicated and sorted ascending.
func SelectTargets(n int, scores []float64, rng *rand.Rand) ([]int, error) {
	if n <= 0 {
		return nil, qerrors.NewInputError("grover.SelectTargets", qerrors.ErrEmptySearchSpace)
	}
	if len(scores) > n {
		return nil, qerrors.NewInputError("grover.SelectTargets", qerrors.ErrInvalidParameter)
	}

	random := rng.IntN(n)

	top := BaselineTarget
	if len(scores) > 0 {
		top = floats.MaxIdx(scores)
	}

	targets := []int{random, top, BaselineTarget}
	slices.Sort(targets)
	return slices.Compact(targets), nil
}
