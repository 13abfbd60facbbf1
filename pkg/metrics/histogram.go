package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// summaryPercentiles are estimated for every summary.
var summaryPercentiles = []float64{0.5, 0.9, 0.95, 0.99}

// Histogram is a fixed-bucket latency distribution. Values are stored in
// the histogram's unit, milliseconds unless built with NewHistogramIn.
type Histogram struct {
	unit   time.Duration
	bounds []float64

	mu    sync.RWMutex
	hits  []uint64 // len(bounds)+1, the last slot counts overflow
	total uint64
	sum   float64
	lo    float64
	hi    float64
}

// NewHistogram returns a millisecond histogram over bounds. Bounds need not
// be sorted.
func NewHistogram(bounds []float64) *Histogram {
	return NewHistogramIn(time.Millisecond, bounds)
}

// NewHistogramIn returns a histogram whose ObserveDuration records values
// as multiples of unit.
func NewHistogramIn(unit time.Duration, bounds []float64) *Histogram {
	if unit <= 0 {
		unit = time.Millisecond
	}
	sorted := append([]float64(nil), bounds...)
	sort.Float64s(sorted)

	h := &Histogram{
		unit:   unit,
		bounds: sorted,
		hits:   make([]uint64, len(sorted)+1),
	}
	h.clear()
	return h
}

func (h *Histogram) clear() {
	for i := range h.hits {
		h.hits[i] = 0
	}
	h.total = 0
	h.sum = 0
	h.lo = math.Inf(1)
	h.hi = math.Inf(-1)
}

// Observe records v, already expressed in the histogram's unit.
func (h *Histogram) Observe(v float64) {
	slot := sort.SearchFloat64s(h.bounds, v)

	h.mu.Lock()
	h.hits[slot]++
	h.total++
	h.sum += v
	h.lo = math.Min(h.lo, v)
	h.hi = math.Max(h.hi, v)
	h.mu.Unlock()
}

// ObserveDuration records d converted to the histogram's unit.
func (h *Histogram) ObserveDuration(d time.Duration) {
	h.Observe(float64(d) / float64(h.unit))
}

// Unit reports the unit values are recorded in.
func (h *Histogram) Unit() time.Duration { return h.unit }

// BucketCount is one cumulative bucket, le-style.
type BucketCount struct {
	UpperBound float64 `json:"le"`
	Count      uint64  `json:"count"`
}

// HistogramSummary is a point-in-time copy of a histogram.
type HistogramSummary struct {
	Count       uint64              `json:"count"`
	Sum         float64             `json:"sum"`
	Min         float64             `json:"min"`
	Max         float64             `json:"max"`
	Mean        float64             `json:"mean"`
	Buckets     []BucketCount       `json:"buckets"`
	Percentiles map[float64]float64 `json:"-"`
}

// Summary returns cumulative buckets and the p50/p90/p95/p99 estimates.
func (h *Histogram) Summary() HistogramSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := HistogramSummary{
		Buckets:     []BucketCount{},
		Percentiles: make(map[float64]float64, len(summaryPercentiles)),
	}
	if h.total == 0 {
		return out
	}

	out.Count, out.Sum = h.total, h.sum
	out.Min, out.Max = h.lo, h.hi
	out.Mean = h.sum / float64(h.total)

	out.Buckets = make([]BucketCount, 0, len(h.hits))
	var running uint64
	for i, n := range h.hits {
		running += n
		out.Buckets = append(out.Buckets, BucketCount{UpperBound: h.upper(i), Count: running})
	}
	for _, q := range summaryPercentiles {
		out.Percentiles[q] = h.quantile(q)
	}
	return out
}

// upper is the upper bound of slot i, +Inf for the overflow slot.
func (h *Histogram) upper(i int) float64 {
	if i < len(h.bounds) {
		return h.bounds[i]
	}
	return math.Inf(1)
}

// quantile interpolates linearly inside the slot holding rank q*total. The
// first slot starts at the observed minimum and the overflow slot resolves
// to the observed maximum. Estimates never leave [min, max].
func (h *Histogram) quantile(q float64) float64 {
	if h.total == 0 {
		return 0
	}
	rank := q * float64(h.total)

	var below uint64
	for i, n := range h.hits {
		if n == 0 || float64(below+n) < rank {
			below += n
			continue
		}
		if i == len(h.bounds) {
			return h.hi
		}
		lower := h.lo
		if i > 0 {
			lower = math.Max(lower, h.bounds[i-1])
		}
		upper := math.Min(h.bounds[i], h.hi)
		est := lower + (rank-float64(below))/float64(n)*(upper-lower)
		return math.Max(h.lo, math.Min(est, h.hi))
	}
	return h.hi
}

// Percentile estimates quantile p in (0, 1]. An empty histogram yields 0.
func (h *Histogram) Percentile(p float64) float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.quantile(p)
}

// Reset drops every observation.
func (h *Histogram) Reset() {
	h.mu.Lock()
	h.clear()
	h.mu.Unlock()
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// Mean returns the average observation, 0 when empty.
func (h *Histogram) Mean() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.total == 0 {
		return 0
	}
	return h.sum / float64(h.total)
}
