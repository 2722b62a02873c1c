package hypothesis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"riskhypo/internal/errors"
)

// ChiSquareResult holds the full output of a test of independence. Callers
// that only need the verdict read PValue.
type ChiSquareResult struct {
	Statistic float64
	DF        int
	PValue    float64
	Expected  [][]float64
	Corrected bool // Yates continuity correction applied
	N         int
}

// ChiSquareIndependence tests rows and columns of the table for independence.
// Tables with one degree of freedom get Yates' continuity correction.
func ChiSquareIndependence(table *ContingencyTable) (*ChiSquareResult, error) {
	rows, cols := table.Shape()
	if rows < 2 || cols < 2 {
		return nil, errors.InsufficientData(fmt.Sprintf("contingency table is %dx%d, need at least 2x2", rows, cols))
	}

	rowTotals := table.RowTotals()
	colTotals := table.ColTotals()
	total := table.Total()

	expected := make([][]float64, rows)
	for i := range expected {
		expected[i] = make([]float64, cols)
		for j := range expected[i] {
			e := float64(rowTotals[i]) * float64(colTotals[j]) / float64(total)
			if e == 0 {
				return nil, errors.ComputationFailure("chi-squared",
					fmt.Errorf("expected frequency is zero at row %q column %q", table.Rows[i], table.Cols[j]))
			}
			expected[i][j] = e
		}
	}

	df := (rows - 1) * (cols - 1)
	corrected := df == 1

	chi2 := 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			observed := float64(table.Counts[i][j])
			diff := expected[i][j] - observed
			if corrected {
				// Move each observation half a unit toward its expectation.
				observed += math.Copysign(math.Min(0.5, math.Abs(diff)), diff)
				diff = expected[i][j] - observed
			}
			chi2 += diff * diff / expected[i][j]
		}
	}

	return &ChiSquareResult{
		Statistic: chi2,
		DF:        df,
		PValue:    chiSquarePValue(chi2, df),
		Expected:  expected,
		Corrected: corrected,
		N:         total,
	}, nil
}

// chiSquarePValue computes the upper-tail probability of the chi-squared distribution
func chiSquarePValue(chiSquare float64, degreesOfFreedom int) float64 {
	if degreesOfFreedom <= 0 {
		return 1.0
	}
	chiDist := distuv.ChiSquared{K: float64(degreesOfFreedom)}
	return clampProbability(chiDist.Survival(chiSquare))
}

func clampProbability(p float64) float64 {
	if math.IsNaN(p) {
		return p
	}
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
