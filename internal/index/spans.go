package index

import (
	"math"
	"sort"
	"time"
)

// Span is a gapless time extent covered at a single sample rate.
type Span struct {
	Start time.Time
	End   time.Time
	Rate  float64
}

// defaultRateTolerance is the relative sample-rate tolerance applied when
// the configuration does not set one.
const defaultRateTolerance = 1e-4

// ratesTolerable reports whether two sample rates are equal within the
// relative tolerance. Zero rates only match each other.
func ratesTolerable(a, b, tol float64) bool {
	if tol < 0 {
		tol = defaultRateTolerance
	}
	if a == 0 || b == 0 {
		return a == b
	}
	return math.Abs(1-a/b) < tol
}

// spanTracker merges record extents into an ordered list of gapless spans.
// Records with a zero sample rate are never folded here; they carry no
// time series extent.
type spanTracker struct {
	spans   []Span
	timeTol float64 // seconds; negative selects half a sample period
	rateTol float64
}

// fold merges the extent [start, end] at the given rate into the span
// list. Two extents coalesce when their rates are tolerably equal and the
// gap between them is within the time tolerance of one sample period.
func (st *spanTracker) fold(start, end time.Time, rate float64) {
	st.spans = append(st.spans, Span{Start: start, End: end, Rate: rate})
	sort.Slice(st.spans, func(i, j int) bool {
		if st.spans[i].Start.Equal(st.spans[j].Start) {
			return st.spans[i].End.Before(st.spans[j].End)
		}
		return st.spans[i].Start.Before(st.spans[j].Start)
	})
	st.coalesce()
}

// coalesce walks the sorted span list once, merging neighbors that are
// contiguous within tolerance.
func (st *spanTracker) coalesce() {
	merged := st.spans[:1]
	for _, next := range st.spans[1:] {
		cur := &merged[len(merged)-1]
		if st.contiguous(*cur, next) {
			if next.End.After(cur.End) {
				cur.End = next.End
			}
			continue
		}
		merged = append(merged, next)
	}
	st.spans = merged
}

// contiguous reports whether next attaches to the end of cur: tolerably
// equal rates and next starting no later than one sample period (plus
// tolerance) after cur ends.
func (st *spanTracker) contiguous(cur, next Span) bool {
	if !ratesTolerable(cur.Rate, next.Rate, st.rateTol) {
		return false
	}
	period := 1.0 / cur.Rate
	tol := st.timeTol
	if tol < 0 {
		tol = period / 2
	}
	limit := cur.End.Add(secondsDuration(period + tol))
	return !next.Start.After(limit)
}

func secondsDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
