package metrics

import (
	"math"
	"slices"
	"sort"
	"sync"
)

// SummaryPercentiles are the quantiles reported by Histogram.Summary.
var SummaryPercentiles = []float64{0.5, 0.9, 0.99}

// Histogram tracks the distribution of observations across fixed buckets.
// Safe for concurrent use.
type Histogram struct {
	mu     sync.Mutex
	bounds []float64 // sorted upper bounds
	counts []uint64  // len(bounds)+1, last is the +Inf bucket
	sum    float64
	n      uint64
	lo, hi float64
}

// NewHistogram creates a histogram with the given bucket upper bounds.
func NewHistogram(bounds []float64) *Histogram {
	b := slices.Clone(bounds)
	slices.Sort(b)
	b = slices.Compact(b)

	return &Histogram{
		bounds: b,
		counts: make([]uint64, len(b)+1),
		lo:     math.Inf(1),
		hi:     math.Inf(-1),
	}
}

// Observe records v. NaN observations are ignored.
func (h *Histogram) Observe(v float64) {
	if math.IsNaN(v) {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.counts[sort.SearchFloat64s(h.bounds, v)]++
	h.sum += v
	h.n++
	h.lo = math.Min(h.lo, v)
	h.hi = math.Max(h.hi, v)
}

// HistogramSummary contains summarized histogram data.
type HistogramSummary struct {
	Count       uint64              `json:"count"`
	Sum         float64             `json:"sum"`
	Min         float64             `json:"min"`
	Max         float64             `json:"max"`
	Mean        float64             `json:"mean"`
	Buckets     []BucketCount       `json:"buckets"`
	Percentiles map[float64]float64 `json:"percentiles,omitempty"`
}

// BucketCount is a cumulative bucket count.
type BucketCount struct {
	UpperBound float64 `json:"le"`
	Count      uint64  `json:"count"`
}

// Summary returns a snapshot of the histogram.
func (h *Histogram) Summary() HistogramSummary {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.n == 0 {
		return HistogramSummary{
			Buckets:     []BucketCount{},
			Percentiles: map[float64]float64{},
		}
	}

	buckets := make([]BucketCount, len(h.counts))
	var cum uint64
	for i, c := range h.counts {
		cum += c
		ub := math.Inf(1)
		if i < len(h.bounds) {
			ub = h.bounds[i]
		}
		buckets[i] = BucketCount{UpperBound: ub, Count: cum}
	}

	ps := make(map[float64]float64, len(SummaryPercentiles))
	for _, p := range SummaryPercentiles {
		ps[p] = h.quantile(p)
	}

	return HistogramSummary{
		Count:       h.n,
		Sum:         h.sum,
		Min:         h.lo,
		Max:         h.hi,
		Mean:        h.sum / float64(h.n),
		Buckets:     buckets,
		Percentiles: ps,
	}
}

// quantile estimates the p-quantile by interpolating inside the bucket that
// holds rank p*n, clamped to the observed range. Caller holds h.mu.
func (h *Histogram) quantile(p float64) float64 {
	rank := p * float64(h.n)
	var cum uint64
	for i, c := range h.counts {
		prev := cum
		cum += c
		if c == 0 || float64(cum) < rank {
			continue
		}

		lower := h.lo
		if i > 0 {
			lower = math.Max(lower, h.bounds[i-1])
		}
		upper := h.hi
		if i < len(h.bounds) {
			upper = math.Min(upper, h.bounds[i])
		}
		frac := (rank - float64(prev)) / float64(c)
		return lower + frac*(upper-lower)
	}
	return h.hi
}

// Reset clears all observations.
func (h *Histogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clear(h.counts)
	h.sum = 0
	h.n = 0
	h.lo = math.Inf(1)
	h.hi = math.Inf(-1)
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.n
}

// Mean returns the mean observation, or 0 when empty.
func (h *Histogram) Mean() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.n == 0 {
		return 0
	}
	return h.sum / float64(h.n)
}
