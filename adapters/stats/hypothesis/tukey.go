package hypothesis

import (
	"fmt"
	"math"

	"riskhypo/domain/stats"
	"riskhypo/internal/errors"
)

// tabulateAbovePairs switches the studentized range from exact evaluation to
// an interpolated grid once the family is large enough for it to pay off.
const tabulateAbovePairs = 500

// TukeyHSD compares every pair of group means, controlling the family-wise
// error rate at alpha. Groups are ordered lexicographically and each
// comparison reports mean(Group2) - mean(Group1).
func TukeyHSD(values []float64, groups []string, alpha float64) (*stats.PostHocTable, error) {
	if len(values) != len(groups) {
		return nil, errors.InvalidInput(fmt.Sprintf("tukey: %d values but %d group labels", len(values), len(groups)))
	}
	if alpha <= 0 || alpha >= 1 {
		return nil, errors.InvalidInput(fmt.Sprintf("tukey: alpha %v outside (0, 1)", alpha))
	}

	levels, byGroup := splitGroups(values, groups)
	k := len(levels)
	n := len(values)
	if k < 2 || n <= k {
		return nil, errors.InsufficientData(fmt.Sprintf("tukey needs at least 2 groups and more rows than groups, got %d rows in %d groups", n, k))
	}
	desc := describeGroups(levels, byGroup)

	ssWithin := 0.0
	for _, g := range desc {
		ssWithin += g.Variance * float64(g.N-1)
	}
	dfResid := float64(n - k)
	mse := ssWithin / dfResid

	pairs := k * (k - 1) / 2
	qCrit := studentizedRangeQuantile(1-alpha, float64(k), dfResid)
	if math.IsNaN(qCrit) {
		return nil, errors.ComputationFailure("tukey", fmt.Errorf("no critical value for k=%d df=%v", k, dfResid))
	}
	survival := newRangeSurvival(float64(k), dfResid, pairs > tabulateAbovePairs)

	table := &stats.PostHocTable{
		Method:      stats.PostHocMethod,
		Alpha:       alpha,
		Groups:      k,
		DFResidual:  dfResid,
		MSE:         mse,
		QCritical:   qCrit,
		Comparisons: make([]stats.PairwiseComparison, 0, pairs),
	}

	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			g1, g2 := desc[i], desc[j]
			diff := g2.Mean - g1.Mean
			se := math.Sqrt(mse / 2 * (1/float64(g1.N) + 1/float64(g2.N)))

			var pAdj float64
			switch {
			case se > 0:
				pAdj = survival.at(math.Abs(diff) / se)
			case diff == 0:
				pAdj = 1
			default:
				pAdj = 0
			}

			table.Comparisons = append(table.Comparisons, stats.PairwiseComparison{
				Group1:   g1.Name,
				Group2:   g2.Name,
				MeanDiff: diff,
				PAdj:     pAdj,
				Lower:    diff - qCrit*se,
				Upper:    diff + qCrit*se,
				Reject:   stats.IsSignificant(pAdj, alpha),
			})
		}
	}

	return table, nil
}
