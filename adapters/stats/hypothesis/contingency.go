// Package hypothesis implements the significance tests the segment battery
// uses: chi-squared independence on contingency tables, one-way ANOVA on an
// OLS fit, Welch's two-sample t-test and Tukey's HSD post-hoc comparison.
package hypothesis

import (
	"sort"

	"riskhypo/domain/policy"
)

// Claim-state column labels
const (
	ColumnNoClaim  = "no_claim"
	ColumnHasClaim = "has_claim"
)

// ContingencyTable cross-tabulates a categorical dimension against HasClaim.
// Only categories and claim states actually observed get a row or column.
type ContingencyTable struct {
	Dimension policy.Dimension
	Rows      []string
	Cols      []string
	Counts    [][]int
}

// NewContingencyTable builds the Dimension x HasClaim table for records
func NewContingencyTable(records []policy.Record, dim policy.Dimension) *ContingencyTable {
	rowIndex := make(map[string]int)
	var sawNo, sawYes bool
	for _, r := range records {
		rowIndex[dim.Key(r)] = 0
		if r.HasClaim {
			sawYes = true
		} else {
			sawNo = true
		}
	}

	rows := make([]string, 0, len(rowIndex))
	for k := range rowIndex {
		rows = append(rows, k)
	}
	sort.Strings(rows)
	for i, k := range rows {
		rowIndex[k] = i
	}

	var cols []string
	colIndex := map[bool]int{}
	if sawNo {
		colIndex[false] = len(cols)
		cols = append(cols, ColumnNoClaim)
	}
	if sawYes {
		colIndex[true] = len(cols)
		cols = append(cols, ColumnHasClaim)
	}

	counts := make([][]int, len(rows))
	for i := range counts {
		counts[i] = make([]int, len(cols))
	}
	for _, r := range records {
		counts[rowIndex[dim.Key(r)]][colIndex[r.HasClaim]]++
	}

	return &ContingencyTable{Dimension: dim, Rows: rows, Cols: cols, Counts: counts}
}

// Shape returns the number of rows and columns
func (t *ContingencyTable) Shape() (int, int) {
	return len(t.Rows), len(t.Cols)
}

// RowTotals returns the observation count per category
func (t *ContingencyTable) RowTotals() []int {
	totals := make([]int, len(t.Rows))
	for i, row := range t.Counts {
		for _, c := range row {
			totals[i] += c
		}
	}
	return totals
}

// ColTotals returns the observation count per claim state
func (t *ContingencyTable) ColTotals() []int {
	totals := make([]int, len(t.Cols))
	for _, row := range t.Counts {
		for j, c := range row {
			totals[j] += c
		}
	}
	return totals
}

// Total returns the grand total
func (t *ContingencyTable) Total() int {
	n := 0
	for _, c := range t.RowTotals() {
		n += c
	}
	return n
}

// DropSparseRows keeps categories with at least minObs observations across
// all claim states. With minObs <= 1 on a table built by NewContingencyTable
// this never removes a row, since every row comes from an observed record.
func (t *ContingencyTable) DropSparseRows(minObs int) *ContingencyTable {
	out := &ContingencyTable{Dimension: t.Dimension, Cols: append([]string(nil), t.Cols...)}
	for i, total := range t.RowTotals() {
		if total > 0 && total >= minObs {
			out.Rows = append(out.Rows, t.Rows[i])
			out.Counts = append(out.Counts, append([]int(nil), t.Counts[i]...))
		}
	}
	return out
}
