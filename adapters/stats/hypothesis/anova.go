package hypothesis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"riskhypo/internal/errors"
)

// ResidualTerm names the residual row of an ANOVA table
const ResidualTerm = "Residual"

// FactorTerm names the row of a categorical factor, e.g. "C(Province)"
func FactorTerm(name string) string {
	return "C(" + name + ")"
}

// ANOVARow is one line of an ANOVA table
type ANOVARow struct {
	Term   string
	SumSq  float64
	DF     float64
	F      float64 // NaN on the residual row
	PValue float64 // NaN on the residual row
}

// ANOVATable is a type-II ANOVA table for a linear model with one categorical
// factor plus intercept
type ANOVATable struct {
	Rows   []ANOVARow
	Groups []GroupStat
	N      int
	MSE    float64 // residual mean square
}

// Row returns the row for term. Callers look the factor up by name so the
// lookup stays correct if more terms are ever added to the model.
func (t *ANOVATable) Row(term string) (ANOVARow, bool) {
	for _, r := range t.Rows {
		if r.Term == term {
			return r, true
		}
	}
	return ANOVARow{}, false
}

// OneWayANOVA fits value ~ C(group) by ordinary least squares with treatment
// coding and returns the type-II table. The design is solved through its
// normal equations, which keeps memory at O(k^2) for k groups regardless of
// the number of rows.
func OneWayANOVA(factor string, values []float64, groups []string) (*ANOVATable, error) {
	if len(values) != len(groups) {
		return nil, errors.InvalidInput(fmt.Sprintf("anova: %d values but %d group labels", len(values), len(groups)))
	}

	levels, byGroup := splitGroups(values, groups)
	n, k := len(values), len(levels)
	if k < 2 {
		return nil, errors.InsufficientData(fmt.Sprintf("anova needs at least 2 groups, got %d", k))
	}
	if n <= k {
		return nil, errors.InsufficientData(fmt.Sprintf("anova needs more rows (%d) than groups (%d)", n, k))
	}

	fitted, err := fitOneWay(levels, byGroup, n)
	if err != nil {
		return nil, errors.ComputationFailure("anova", err)
	}

	desc := describeGroups(levels, byGroup)
	grandMean := stat.Mean(values, nil)
	var ssTotal, rss, ssFactor float64
	for i, v := range values {
		d := v - grandMean
		ssTotal += d * d
		r := v - fitted[groups[i]]
		rss += r * r
	}
	for _, name := range levels {
		d := fitted[name] - grandMean
		ssFactor += float64(len(byGroup[name])) * d * d
	}

	dfFactor := float64(k - 1)
	dfResid := float64(n - k)

	var f, p float64
	switch {
	case allEqual(values):
		// Constant outcome: no group can differ.
		rss, ssFactor = 0, 0
		f, p = math.NaN(), 1
	case allConstant(desc) || rss <= ssTotal*1e-13:
		// Groups are internally constant but differ from each other.
		rss = 0
		f, p = math.Inf(1), 0
	default:
		f = (ssFactor / dfFactor) / (rss / dfResid)
		p = clampProbability(distuv.F{D1: dfFactor, D2: dfResid}.Survival(f))
	}

	return &ANOVATable{
		Rows: []ANOVARow{
			{Term: FactorTerm(factor), SumSq: ssFactor, DF: dfFactor, F: f, PValue: p},
			{Term: ResidualTerm, SumSq: rss, DF: dfResid, F: math.NaN(), PValue: math.NaN()},
		},
		Groups: desc,
		N:      n,
		MSE:    rss / dfResid,
	}, nil
}

// fitOneWay solves (X'X) beta = X'y for an intercept plus k-1 dummy columns,
// the first level being the reference, and returns the fitted value per level.
func fitOneWay(levels []string, byGroup map[string][]float64, n int) (map[string]float64, error) {
	k := len(levels)
	xtx := mat.NewSymDense(k, nil)
	xty := mat.NewVecDense(k, nil)

	xtx.SetSym(0, 0, float64(n))
	for j, name := range levels {
		xs := byGroup[name]
		sum := 0.0
		for _, v := range xs {
			sum += v
		}
		xty.SetVec(0, xty.AtVec(0)+sum)
		if j == 0 {
			continue
		}
		nj := float64(len(xs))
		xtx.SetSym(0, j, nj)
		xtx.SetSym(j, j, nj)
		xty.SetVec(j, sum)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(xtx); !ok {
		return nil, fmt.Errorf("design matrix is singular for %d groups", k)
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, xty); err != nil {
		return nil, fmt.Errorf("solve normal equations: %w", err)
	}

	fitted := make(map[string]float64, k)
	intercept := beta.AtVec(0)
	for j, name := range levels {
		if j == 0 {
			fitted[name] = intercept
			continue
		}
		fitted[name] = intercept + beta.AtVec(j)
	}
	return fitted, nil
}
