package policy

import (
	"fmt"
	"sort"
)

// Dataset is an immutable, cleaned collection of records. The claims subset
// is derived once at construction and always agrees with the records.
type Dataset struct {
	records []Record
	claims  []Record
}

// NewDataset copies records and derives the claims subset
func NewDataset(records []Record) *Dataset {
	owned := make([]Record, len(records))
	copy(owned, records)

	claims := make([]Record, 0)
	for _, r := range owned {
		if r.HasClaim {
			claims = append(claims, r)
		}
	}
	return &Dataset{records: owned, claims: claims}
}

// Records returns all cleaned records. Callers must not modify the slice.
func (d *Dataset) Records() []Record {
	if d == nil {
		return nil
	}
	return d.records
}

// Claims returns the records with HasClaim set
func (d *Dataset) Claims() []Record {
	if d == nil {
		return nil
	}
	return d.claims
}

// Len returns the number of records
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.records)
}

// ClaimCount returns the size of the claims subset
func (d *Dataset) ClaimCount() int {
	if d == nil {
		return 0
	}
	return len(d.claims)
}

// IsEmpty reports whether cleaning left no records
func (d *Dataset) IsEmpty() bool {
	return d.Len() == 0
}

// Dimension is a categorical column records are segmented by
type Dimension string

const (
	DimensionProvince   Dimension = ColumnProvince
	DimensionPostalCode Dimension = ColumnPostalCode
	DimensionGender     Dimension = ColumnGender
)

// Dimensions lists every supported segmentation dimension
var Dimensions = []Dimension{DimensionProvince, DimensionPostalCode, DimensionGender}

// ParseDimension accepts a column name, case-sensitively
func ParseDimension(s string) (Dimension, error) {
	for _, d := range Dimensions {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown dimension %q (want one of %v)", s, Dimensions)
}

// Key returns the record's category for the dimension
func (d Dimension) Key(r Record) string {
	switch d {
	case DimensionProvince:
		return r.Province
	case DimensionPostalCode:
		return r.PostalCode
	case DimensionGender:
		return r.Gender
	}
	return ""
}

// Metric is a numeric outcome measured per record
type Metric string

const (
	MetricHasClaim     Metric = "HasClaim"
	MetricTotalClaims  Metric = ColumnTotalClaims
	MetricTotalPremium Metric = ColumnTotalPremium
	MetricMargin       Metric = "Margin"
)

// Value returns the record's value for the metric; HasClaim maps to 0/1
func (m Metric) Value(r Record) float64 {
	switch m {
	case MetricHasClaim:
		if r.HasClaim {
			return 1
		}
		return 0
	case MetricTotalClaims:
		return r.TotalClaims
	case MetricTotalPremium:
		return r.TotalPremium
	case MetricMargin:
		return r.Margin
	}
	return 0
}

// Categories returns the sorted distinct values of dim across records
func Categories(records []Record, dim Dimension) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		seen[dim.Key(r)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// CountBy returns the number of records per category of dim
func CountBy(records []Record, dim Dimension) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		counts[dim.Key(r)]++
	}
	return counts
}

// Filter returns the records for which keep is true, preserving order
func Filter(records []Record, keep func(Record) bool) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
