// Package baseline implements the classical linear scan that the search
// simulation is compared against.
package baseline

import (
	"math"
	"slices"
	"time"

	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/constants"
	qerrors "github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/errors"
)

// Result is the outcome of one classical scan.
type Result struct {
	TotalRecords  int
	MaxIndex      int
	MaxScore      float64
	Detected      int
	DetectionRate float64
	Elapsed       time.Duration
}

// ScalePoint is the scan time for a prefix of the table.
type ScalePoint struct {
	Size    int
	Elapsed time.Duration
}

// DefaultScaleSizes are the prefix sizes timed by Scalability, before the
// full table size is appended.
func DefaultScaleSizes() []int {
	return []int{128, 256, 512, 1024, 2048}
}

// Run scans scores for the highest score and counts the records strictly
// above the 90th percentile. rows is the number of records; scores may be
// nil when the table has no score column, in which case index 0 counts as
// the single detection.
func Run(scores []float64, rows int) (Result, error) {
	if rows <= 0 {
		return Result{}, qerrors.NewInputError("baseline.Run", qerrors.ErrEmptyInput)
	}
	if scores != nil && len(scores) != rows {
		return Result{}, qerrors.NewInputError("baseline.Run", qerrors.ErrSchemaMismatch)
	}

	res := Result{TotalRecords: rows}
	start := time.Now()

	if scores == nil {
		res.MaxScore = 1
		res.Detected = 1
	} else {
		res.MaxIndex, res.MaxScore = linearMax(scores)
		cut := Percentile(scores, constants.DetectionPercentile)
		for _, s := range scores {
			if s > cut {
				res.Detected++
			}
		}
	}

	res.Elapsed = time.Since(start)
	res.DetectionRate = float64(res.Detected) / float64(rows)
	return res, nil
}

// linearMax returns the first index holding the maximum score.
func linearMax(scores []float64) (int, float64) {
	idx, best := 0, scores[0]
	for i := 1; i < len(scores); i++ {
		if scores[i] > best {
			idx, best = i, scores[i]
		}
	}
	return idx, best
}

// Percentile returns the p-th percentile (0..100) of values using linear
// interpolation between closest ranks. values is not modified.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo < 0 {
		return sorted[0]
	}
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}

// Scalability times the linear max scan over prefixes of scores. Sizes
// larger than the table are clamped to it; the full table size is always
// measured last.
func Scalability(scores []float64, sizes []int) []ScalePoint {
	if len(scores) == 0 {
		return nil
	}
	sizes = append(slices.Clone(sizes), len(scores))

	out := make([]ScalePoint, 0, len(sizes))
	for _, size := range sizes {
		n := min(max(size, 1), len(scores))
		start := time.Now()
		linearMax(scores[:n])
		out = append(out, ScalePoint{Size: size, Elapsed: time.Since(start)})
	}
	return out
}
