package hypothesis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"riskhypo/internal/errors"
)

// TTestResult is the output of a two-sided Welch t-test
type TTestResult struct {
	T      float64
	DF     float64
	PValue float64
	N1, N2 int
	Mean1  float64
	Mean2  float64
	Var1   float64
	Var2   float64
}

// WelchTTest compares the means of two independent samples without assuming
// equal variances. Degrees of freedom follow Welch-Satterthwaite.
func WelchTTest(sample1, sample2 []float64) (*TTestResult, error) {
	n1, n2 := len(sample1), len(sample2)
	if n1 < 2 || n2 < 2 {
		return nil, errors.InsufficientData(fmt.Sprintf("welch t-test needs at least 2 observations per sample, got %d and %d", n1, n2))
	}

	mean1, var1, const1 := moments(sample1)
	mean2, var2, const2 := moments(sample2)

	res := &TTestResult{N1: n1, N2: n2, Mean1: mean1, Mean2: mean2, Var1: var1, Var2: var2}

	a := var1 / float64(n1)
	b := var2 / float64(n2)
	se2 := a + b
	if const1 && const2 {
		// Both samples are constant: the means either coincide or differ exactly.
		res.DF = float64(n1 + n2 - 2)
		if mean1 == mean2 {
			res.T, res.PValue = 0, 1
		} else {
			res.T, res.PValue = math.Copysign(math.Inf(1), mean1-mean2), 0
		}
		return res, nil
	}

	res.T = (mean1 - mean2) / math.Sqrt(se2)
	res.DF = se2 * se2 / (a*a/float64(n1-1) + b*b/float64(n2-1))
	if math.IsNaN(res.T) || math.IsNaN(res.DF) {
		return nil, errors.ComputationFailure("welch t-test", fmt.Errorf("non-finite statistic t=%v df=%v", res.T, res.DF))
	}

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: res.DF}
	res.PValue = clampProbability(2 * tDist.Survival(math.Abs(res.T)))
	return res, nil
}
