package hypothesis

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// GroupStat summarises one level of a categorical factor
type GroupStat struct {
	Name     string  `json:"name"`
	N        int     `json:"n"`
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"` // unbiased; 0 for a single observation
	constant bool
}

// splitGroups partitions values by their group label. Levels come back sorted.
func splitGroups(values []float64, groups []string) ([]string, map[string][]float64) {
	byGroup := make(map[string][]float64)
	for i, v := range values {
		byGroup[groups[i]] = append(byGroup[groups[i]], v)
	}
	levels := make([]string, 0, len(byGroup))
	for k := range byGroup {
		levels = append(levels, k)
	}
	sort.Strings(levels)
	return levels, byGroup
}

// describeGroups computes per-level mean and variance in level order
func describeGroups(levels []string, byGroup map[string][]float64) []GroupStat {
	out := make([]GroupStat, len(levels))
	for i, name := range levels {
		xs := byGroup[name]
		gs := GroupStat{Name: name, N: len(xs)}
		gs.Mean, gs.Variance, gs.constant = moments(xs)
		out[i] = gs
	}
	return out
}

// moments returns the mean and unbiased variance of xs. A sample whose values
// are all equal reports that value as its mean and a variance of exactly zero;
// summing a value such as 0.7 repeatedly would otherwise leave rounding noise
// in both.
func moments(xs []float64) (mean, variance float64, constant bool) {
	if len(xs) == 0 {
		return 0, 0, true
	}
	if allEqual(xs) {
		return xs[0], 0, true
	}
	mean, variance = stat.MeanVariance(xs, nil)
	return mean, variance, false
}

// allEqual reports whether every value in xs equals the first
func allEqual(xs []float64) bool {
	if len(xs) == 0 {
		return true
	}
	for _, v := range xs[1:] {
		if v != xs[0] {
			return false
		}
	}
	return true
}

// allConstant reports whether every group is internally constant
func allConstant(desc []GroupStat) bool {
	for _, g := range desc {
		if !g.constant {
			return false
		}
	}
	return true
}
