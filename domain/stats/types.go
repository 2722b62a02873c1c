package stats

import (
	"encoding/json"
	"math"

	"riskhypo/domain/core"
	"riskhypo/domain/policy"
)

// ============================================================================
// TYPE DEFINITIONS
// ============================================================================

// TestKind defines the statistical test performed
type TestKind string

const (
	TestChiSquare TestKind = "chisquare"   // Chi-squared test of independence
	TestANOVA     TestKind = "anova"       // One-way analysis of variance
	TestWelchT    TestKind = "welch_ttest" // Two-sample t-test, unequal variances
)

// Label returns the human-readable name used in reports
func (k TestKind) Label() string {
	switch k {
	case TestChiSquare:
		return "Chi-squared test"
	case TestANOVA:
		return "ANOVA"
	case TestWelchT:
		return "Independent t-test"
	}
	return string(k)
}

// TestStatus records what happened to a test in a run
type TestStatus string

const (
	StatusExecuted TestStatus = "executed"
	StatusSkipped  TestStatus = "skipped"
	StatusFailed   TestStatus = "failed"
)

// SkipCode represents structured insufficient-data reasons
type SkipCode string

const (
	SkipEmptyPopulation       SkipCode = "EMPTY_POPULATION"       // Nothing left after cleaning/restriction
	SkipInsufficientVariation SkipCode = "INSUFFICIENT_VARIATION" // Fewer than two levels on an axis, or rows <= groups
	SkipInsufficientGroups    SkipCode = "INSUFFICIENT_GROUPS"    // Two-sample test without exactly two groups
	SkipSparseGroups          SkipCode = "SPARSE_GROUPS"          // Minimum-observation filter left too little
)

// PostHocMethod names the multiple-comparison procedure
const PostHocMethod = "Tukey HSD"

// IsSignificant is the single verdict rule: reject H0 when p < alpha.
// NaN never rejects.
func IsSignificant(pValue, alpha float64) bool {
	if math.IsNaN(pValue) {
		return false
	}
	return pValue < alpha
}

// ============================================================================
// RESULTS
// ============================================================================

// PairwiseComparison is one row of a post-hoc table
type PairwiseComparison struct {
	Group1   string  `json:"group1" yaml:"group1"`
	Group2   string  `json:"group2" yaml:"group2"`
	MeanDiff float64 `json:"meandiff" yaml:"meandiff"` // mean(Group2) - mean(Group1)
	PAdj     float64 `json:"p_adj" yaml:"p_adj"`
	Lower    float64 `json:"lower" yaml:"lower"`
	Upper    float64 `json:"upper" yaml:"upper"`
	Reject   bool    `json:"reject" yaml:"reject"`
}

// PostHocTable localises group differences after a significant omnibus test
type PostHocTable struct {
	Method      string               `json:"method" yaml:"method"`
	Alpha       float64              `json:"alpha" yaml:"alpha"`
	Groups      int                  `json:"groups" yaml:"groups"`
	DFResidual  float64              `json:"df_residual" yaml:"df_residual"`
	MSE         float64              `json:"mse" yaml:"mse"`
	QCritical   float64              `json:"q_critical" yaml:"q_critical"`
	Comparisons []PairwiseComparison `json:"comparisons" yaml:"comparisons"`
}

// RejectedPairs counts comparisons flagged significant
func (t *PostHocTable) RejectedPairs() int {
	if t == nil {
		return 0
	}
	n := 0
	for _, c := range t.Comparisons {
		if c.Reject {
			n++
		}
	}
	return n
}

// TestResult is the outcome of one sub-test of a hypothesis.
// INVARIANTS:
// - Significant is only ever true for StatusExecuted and equals PValue < Alpha
// - PostHoc is only set when the test is an executed, significant ANOVA
type TestResult struct {
	Name        string           `json:"name" yaml:"name"`
	Kind        TestKind         `json:"kind" yaml:"kind"`
	Dimension   policy.Dimension `json:"dimension" yaml:"dimension"`
	Metric      policy.Metric    `json:"metric" yaml:"metric"`
	Subject     string           `json:"subject" yaml:"subject"` // e.g. "claim frequency across provinces"
	Status      TestStatus       `json:"status" yaml:"status"`
	Alpha       float64          `json:"alpha" yaml:"alpha"`
	PValue      float64          `json:"p_value" yaml:"p_value"`
	Statistic   float64          `json:"statistic" yaml:"statistic"`
	DF          float64          `json:"df" yaml:"df"`
	DFResidual  float64          `json:"df_residual,omitempty" yaml:"df_residual,omitempty"`
	SampleSize  int              `json:"sample_size" yaml:"sample_size"`
	Groups      int              `json:"groups" yaml:"groups"`
	Significant bool             `json:"significant" yaml:"significant"`
	SkipCode    SkipCode         `json:"skip_code,omitempty" yaml:"skip_code,omitempty"`
	SkipReason  string           `json:"skip_reason,omitempty" yaml:"skip_reason,omitempty"`
	Error       string           `json:"error,omitempty" yaml:"error,omitempty"`
	PostHoc     *PostHocTable    `json:"post_hoc,omitempty" yaml:"post_hoc,omitempty"`
}

// Executed reports whether the test produced a p-value
func (r TestResult) Executed() bool {
	return r.Status == StatusExecuted
}

// MarshalJSON writes non-finite p-values and statistics as null, since JSON
// has no NaN or infinity
func (r TestResult) MarshalJSON() ([]byte, error) {
	type plain TestResult
	return json.Marshal(struct {
		plain
		PValue    *float64 `json:"p_value"`
		Statistic *float64 `json:"statistic"`
	}{plain(r), finite(r.PValue), finite(r.Statistic)})
}

func finite(x float64) *float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return &x
}

// HypothesisResult groups the sub-tests of one business hypothesis
type HypothesisResult struct {
	ID    string       `json:"id" yaml:"id"`
	Title string       `json:"title" yaml:"title"`
	Null  string       `json:"null_hypothesis" yaml:"null_hypothesis"`
	Tests []TestResult `json:"tests" yaml:"tests"`
}

// Report is the structured output of one battery run
type Report struct {
	RunID       core.RunID         `json:"run_id" yaml:"run_id"`
	Alpha       float64            `json:"alpha" yaml:"alpha"`
	Rows        int                `json:"rows" yaml:"rows"`
	ClaimRows   int                `json:"claim_rows" yaml:"claim_rows"`
	GeneratedAt core.Timestamp     `json:"generated_at" yaml:"generated_at"`
	Hypotheses  []HypothesisResult `json:"hypotheses" yaml:"hypotheses"`
}

// Summary counts test outcomes across the report
type Summary struct {
	Executed    int `json:"executed" yaml:"executed"`
	Significant int `json:"significant" yaml:"significant"`
	Skipped     int `json:"skipped" yaml:"skipped"`
	Failed      int `json:"failed" yaml:"failed"`
}

// Summarize tallies test statuses
func (r *Report) Summarize() Summary {
	var s Summary
	for _, h := range r.Hypotheses {
		for _, t := range h.Tests {
			switch t.Status {
			case StatusExecuted:
				s.Executed++
				if t.Significant {
					s.Significant++
				}
			case StatusSkipped:
				s.Skipped++
			case StatusFailed:
				s.Failed++
			}
		}
	}
	return s
}

// Find returns the test with the given name
func (r *Report) Find(name string) (TestResult, bool) {
	for _, h := range r.Hypotheses {
		for _, t := range h.Tests {
			if t.Name == name {
				return t, true
			}
		}
	}
	return TestResult{}, false
}
