// Package drift computes whether a sensor's recent readings have drifted
// from a reference window using a two-sample Kolmogorov-Smirnov test.
package drift

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Result is the raw statistical outcome of one two-sample comparison.
type Result struct {
	Statistic        float64
	PValue           float64
	ReferenceCount   int
	CurrentCount     int
	InsufficientData bool
}

// DefaultHardCap is the per-window row ceiling from spec.md §4.7's
// complexity contract: two O(N log N) sorts bounded by min(rows, hard_cap)
// to cap latency regardless of how many rows a caller hands in.
const DefaultHardCap = 100000

// Detector runs the two-sample KS test between a reference and a current
// sample, gated on a minimum sample size per side.
type Detector struct {
	MinSamples int
	HardCap    int
}

// NewDetector constructs a Detector requiring at least minSamples values on
// each side of the comparison, capped at DefaultHardCap rows per window.
func NewDetector(minSamples int) *Detector {
	return &Detector{MinSamples: minSamples, HardCap: DefaultHardCap}
}

// Compare runs the KS test. If either sample is smaller than MinSamples, or
// either sample is empty, it returns InsufficientData=true without computing
// a statistic. An empty window is always insufficient regardless of
// MinSamples, per spec.md §8's min_samples=0 boundary.
func (d *Detector) Compare(reference, current []float64) Result {
	n, m := len(reference), len(current)
	if n < d.MinSamples || m < d.MinSamples || n == 0 || m == 0 {
		return Result{ReferenceCount: n, CurrentCount: m, InsufficientData: true}
	}

	hardCap := d.HardCap
	if hardCap <= 0 {
		hardCap = DefaultHardCap
	}
	if n > hardCap {
		reference = reference[:hardCap]
		n = hardCap
	}
	if m > hardCap {
		current = current[:hardCap]
		m = hardCap
	}

	ref := sortedCopy(reference)
	cur := sortedCopy(current)

	statistic := ksStatistic(ref, cur)
	effectiveN := float64(n*m) / float64(n+m)
	pValue := ksPValue(statistic, effectiveN)

	return Result{
		Statistic:      statistic,
		PValue:         pValue,
		ReferenceCount: n,
		CurrentCount:   m,
	}
}

func sortedCopy(in []float64) []float64 {
	out := append([]float64(nil), in...)
	sort.Float64s(out)
	return out
}

// ksStatistic computes the maximum absolute distance between the two
// samples' empirical CDFs, sampled at every point in either sample.
// gonum does not ship a one-call two-sample KS routine, so this combines
// stat.CDF's empirical-distribution mode with a manual sweep over the
// pooled sample points.
func ksStatistic(ref, cur []float64) float64 {
	pooled := make([]float64, 0, len(ref)+len(cur))
	pooled = append(pooled, ref...)
	pooled = append(pooled, cur...)
	sort.Float64s(pooled)

	var maxDiff float64
	for _, x := range pooled {
		f1 := stat.CDF(x, stat.Empirical, ref, nil)
		f2 := stat.CDF(x, stat.Empirical, cur, nil)
		if diff := math.Abs(f1 - f2); diff > maxDiff {
			maxDiff = diff
		}
	}
	return maxDiff
}

// ksPValue approximates the asymptotic Kolmogorov distribution's tail
// probability for the observed statistic.
func ksPValue(d, effectiveN float64) float64 {
	if d <= 0 {
		return 1
	}
	t := math.Sqrt(effectiveN) * d

	var sum float64
	sign := 1.0
	for k := 1; k <= 100; k++ {
		term := math.Exp(-2 * float64(k*k) * t * t)
		sum += sign * term
		sign = -sign
	}

	p := 2 * sum
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
