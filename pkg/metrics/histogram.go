package metrics

import (
	"math"
	"slices"
	"sort"
	"sync"
	"time"
)

// summaryQuantiles are the quantiles estimated by Summary.
var summaryQuantiles = []float64{0.5, 0.9, 0.95, 0.99}

// Histogram counts observations into fixed buckets. It is safe for
// concurrent use.
type Histogram struct {
	mu     sync.Mutex
	bounds []float64 // ascending inclusive upper bounds
	counts []uint64  // one per bound, plus the overflow bucket
	n      uint64
	sum    float64
	lo, hi float64
}

// NewHistogram creates a histogram over bounds, which need not be sorted.
func NewHistogram(bounds []float64) *Histogram {
	h := &Histogram{
		bounds: slices.Clone(bounds),
		counts: make([]uint64, len(bounds)+1),
	}
	slices.Sort(h.bounds)
	h.clear()
	return h
}

func (h *Histogram) clear() {
	clear(h.counts)
	h.n, h.sum = 0, 0
	h.lo, h.hi = math.Inf(1), math.Inf(-1)
}

// ObserveDuration records d in microseconds, the unit of every latency
// histogram in this package.
func (h *Histogram) ObserveDuration(d time.Duration) {
	h.Observe(float64(d.Microseconds()))
}

// Observe records v. A value equal to a bound lands in that bound's bucket.
func (h *Histogram) Observe(v float64) {
	i := sort.SearchFloat64s(h.bounds, v)

	h.mu.Lock()
	h.counts[i]++
	h.n++
	h.sum += v
	h.lo = math.Min(h.lo, v)
	h.hi = math.Max(h.hi, v)
	h.mu.Unlock()
}

// HistogramSummary is a point-in-time copy of a histogram.
type HistogramSummary struct {
	Count       uint64              `json:"count"`
	Sum         float64             `json:"sum"`
	Min         float64             `json:"min"`
	Max         float64             `json:"max"`
	Mean        float64             `json:"mean"`
	Buckets     []BucketCount       `json:"buckets"`
	Percentiles map[float64]float64 `json:"percentiles,omitempty"`
}

// P returns the estimated quantile p (0.5, 0.9, 0.95 or 0.99), or 0 if
// it was not computed.
func (s HistogramSummary) P(p float64) float64 {
	return s.Percentiles[p]
}

// BucketCount is one cumulative bucket. The last bucket of a summary has
// an infinite bound and counts every observation.
type BucketCount struct {
	UpperBound float64 `json:"le"`
	Count      uint64  `json:"count"`
}

// Summary returns the cumulative buckets, basic statistics and quantile
// estimates. An empty histogram summarizes to zeros.
func (h *Histogram) Summary() HistogramSummary {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := HistogramSummary{
		Buckets:     make([]BucketCount, 0, len(h.counts)),
		Percentiles: make(map[float64]float64, len(summaryQuantiles)),
	}
	if h.n == 0 {
		return s
	}

	var running uint64
	for i, c := range h.counts {
		running += c
		bound := math.Inf(1)
		if i < len(h.bounds) {
			bound = h.bounds[i]
		}
		s.Buckets = append(s.Buckets, BucketCount{UpperBound: bound, Count: running})
	}

	s.Count, s.Sum = h.n, h.sum
	s.Min, s.Max = h.lo, h.hi
	s.Mean = h.sum / float64(h.n)
	for _, q := range summaryQuantiles {
		s.Percentiles[q] = h.quantile(q)
	}
	return s
}

// quantile interpolates linearly inside the bucket holding rank q*n. The
// observed min and max stand in for the open ends of the first and
// overflow buckets, and the estimate never leaves [min, max].
func (h *Histogram) quantile(q float64) float64 {
	rank := q * float64(h.n)
	var below uint64
	for i, c := range h.counts {
		if c == 0 || float64(below+c) < rank {
			below += c
			continue
		}

		lower := h.lo
		if i > 0 {
			lower = math.Max(h.bounds[i-1], h.lo)
		}
		upper := h.hi
		if i < len(h.bounds) {
			upper = math.Min(h.bounds[i], h.hi)
		}

		est := lower + (rank-float64(below))/float64(c)*(upper-lower)
		return math.Max(h.lo, math.Min(est, h.hi))
	}
	return h.hi
}

// Reset discards every observation.
func (h *Histogram) Reset() {
	h.mu.Lock()
	h.clear()
	h.mu.Unlock()
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
