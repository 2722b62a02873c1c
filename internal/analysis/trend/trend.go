// Package trend aggregates premium and claims by transaction month.
package trend

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/montanaflynn/stats"

	"riskhypo/domain/policy"
	"riskhypo/internal/dataset"
	"riskhypo/internal/errors"
)

// Aggregation reduces a month's values to one number
type Aggregation string

const (
	AggSum  Aggregation = "sum"
	AggMean Aggregation = "mean"
)

// ParseAggregation accepts "sum" or "mean"
func ParseAggregation(s string) (Aggregation, error) {
	switch a := Aggregation(strings.ToLower(strings.TrimSpace(s))); a {
	case AggSum, AggMean:
		return a, nil
	}
	return "", errors.InvalidInput(fmt.Sprintf("unknown aggregation %q (want sum or mean)", s))
}

// monthLayouts are tried in order when parsing TransactionMonth
var monthLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-01",
	time.RFC3339,
}

// ParseMonth returns the first instant of the month s falls in
func ParseMonth(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, errors.InvalidInput(fmt.Sprintf("unrecognised transaction month %q", s))
}

// MonthlyPoint is one month of the trend
type MonthlyPoint struct {
	Month        time.Time `json:"month" yaml:"month"`
	Rows         int       `json:"rows" yaml:"rows"`
	TotalPremium float64   `json:"total_premium" yaml:"total_premium"`
	TotalClaims  float64   `json:"total_claims" yaml:"total_claims"`
}

// Result is the ordered monthly series
type Result struct {
	Aggregation Aggregation    `json:"aggregation" yaml:"aggregation"`
	Points      []MonthlyPoint `json:"points" yaml:"points"`
	Unparsed    int            `json:"unparsed" yaml:"unparsed"` // rows skipped for an unreadable month
}

// requiredColumns are the columns a trend reads
var requiredColumns = []string{
	policy.ColumnTransactionMonth,
	policy.ColumnTotalPremium,
	policy.ColumnTotalClaims,
}

// Aggregate groups raw rows by month and reduces premium and claims with agg.
// It runs before cleaning, so rows the hypothesis tests drop (a blank gender,
// a missing postal code) still count. A cell that does not parse as a number
// is left out of its own column only.
func Aggregate(raw *policy.RawDataset, agg Aggregation) (*Result, error) {
	if agg != AggSum && agg != AggMean {
		return nil, errors.InvalidInput(fmt.Sprintf("unknown aggregation %q", agg))
	}
	if raw == nil {
		return nil, errors.InvalidInput("no dataset to aggregate")
	}
	var missing []string
	for _, col := range requiredColumns {
		if !raw.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, errors.SchemaError(missing)
	}

	type bucket struct {
		rows    int
		premium stats.Float64Data
		claims  stats.Float64Data
	}
	buckets := make(map[time.Time]*bucket)
	res := &Result{Aggregation: agg}
	for _, r := range raw.Records {
		month, err := ParseMonth(r.TransactionMonth)
		if err != nil {
			res.Unparsed++
			continue
		}
		b, ok := buckets[month]
		if !ok {
			b = &bucket{}
			buckets[month] = b
		}
		b.rows++
		if v, ok := dataset.ParseNumeric(r.TotalPremium); ok {
			b.premium = append(b.premium, v)
		}
		if v, ok := dataset.ParseNumeric(r.TotalClaims); ok {
			b.claims = append(b.claims, v)
		}
	}

	months := make([]time.Time, 0, len(buckets))
	for m := range buckets {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	reduce := stats.Float64Data.Sum
	if agg == AggMean {
		reduce = stats.Float64Data.Mean
	}
	for _, m := range months {
		b := buckets[m]
		premium, err := reduceOrZero(reduce, b.premium)
		if err != nil {
			return nil, errors.Wrapf(err, "aggregate premium for %s", m.Format("2006-01"))
		}
		claims, err := reduceOrZero(reduce, b.claims)
		if err != nil {
			return nil, errors.Wrapf(err, "aggregate claims for %s", m.Format("2006-01"))
		}
		res.Points = append(res.Points, MonthlyPoint{Month: m, Rows: b.rows, TotalPremium: premium, TotalClaims: claims})
	}
	return res, nil
}

// reduceOrZero reports 0 for a month with no readable value in the column
func reduceOrZero(reduce func(stats.Float64Data) (float64, error), xs stats.Float64Data) (float64, error) {
	if len(xs) == 0 {
		return 0, nil
	}
	return reduce(xs)
}

// Table renders the series with go-pretty
func Table(res *Result) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle(fmt.Sprintf("Monthly trend (%s)", res.Aggregation))
	tbl.AppendHeader(table.Row{"month", "rows", "TotalPremium", "TotalClaims"})
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	for _, p := range res.Points {
		tbl.AppendRow(table.Row{p.Month.Format("2006-01"), p.Rows, fmt.Sprintf("%.2f", p.TotalPremium), fmt.Sprintf("%.2f", p.TotalClaims)})
	}
	if res.Unparsed > 0 {
		tbl.AppendFooter(table.Row{fmt.Sprintf("%d rows without a readable month", res.Unparsed)})
	}
	return tbl.Render()
}
