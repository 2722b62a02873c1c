package app

import (
	"riskhypo/domain/policy"
	"riskhypo/domain/stats"
)

// Population selects which rows a test runs on
type Population string

const (
	PopulationAll    Population = "all"    // every cleaned record
	PopulationClaims Population = "claims" // the claims subset
)

// SkipMessages are the reasons reported when a guard stops a test
type SkipMessages struct {
	Empty     string // population empty after restriction
	Variation string // structural guard failed before filtering
	Sparse    string // too little left after the minimum-observation filter
	Groups    string // fewer of the allowed categories present than the test compares
}

// groups falls back to the variation message when no group message is set
func (m SkipMessages) groups() string {
	if m.Groups != "" {
		return m.Groups
	}
	return m.Variation
}

// TestSpec declares one sub-test of a hypothesis
type TestSpec struct {
	Name        string
	Kind        stats.TestKind
	Dimension   policy.Dimension
	Metric      policy.Metric
	Population  Population
	Categories  []string // restrict to these categories, in comparison order; nil keeps all
	MinGroupObs int      // groups with fewer rows are dropped before the post-filter guard
	PostHoc     bool     // run Tukey HSD when the omnibus test rejects
	Subject     string   // verdict phrase, e.g. "claim frequency across provinces"
	Messages    SkipMessages
}

// HypothesisSpec is one business hypothesis and its ordered sub-tests
type HypothesisSpec struct {
	ID    string
	Title string
	Null  string
	Tests []TestSpec
}

// DefaultBattery returns the four segment hypotheses. The returned slice is
// freshly built on each call so callers may extend it.
func DefaultBattery() []HypothesisSpec {
	return []HypothesisSpec{
		{
			ID:    "H1",
			Title: "Risk Differences across Provinces",
			Null:  "There are no risk differences across provinces",
			Tests: []TestSpec{
				{
					Name:       "Claim Frequency by Province",
					Kind:       stats.TestChiSquare,
					Dimension:  policy.DimensionProvince,
					Metric:     policy.MetricHasClaim,
					Population: PopulationAll,
					Subject:    "claim frequency across provinces",
					Messages: SkipMessages{
						Empty:     "'Province' column is empty after cleaning.",
						Variation: "Not enough variation in 'Province' or 'HasClaim' to perform Chi-squared test for claim frequency.",
						Sparse:    "Not enough distinct provinces with observations to perform Chi-squared test for claim frequency.",
					},
				},
				{
					Name:       "Claim Severity by Province",
					Kind:       stats.TestANOVA,
					Dimension:  policy.DimensionProvince,
					Metric:     policy.MetricTotalClaims,
					Population: PopulationClaims,
					PostHoc:    true,
					Subject:    "claim severity across provinces",
					Messages: SkipMessages{
						Empty:     "No claims data available for 'Province' after cleaning.",
						Variation: "Not enough variation in 'Province' or data points with claims to perform ANOVA for claim severity.",
						Sparse:    "Not enough distinct provinces with claims to perform ANOVA for claim severity.",
					},
				},
			},
		},
		{
			ID:    "H2",
			Title: "Risk Differences between Zip Codes",
			Null:  "There are no risk differences between zip codes",
			Tests: []TestSpec{
				{
					Name:        "Claim Frequency by Zip Code",
					Kind:        stats.TestChiSquare,
					Dimension:   policy.DimensionPostalCode,
					Metric:      policy.MetricHasClaim,
					Population:  PopulationAll,
					MinGroupObs: 1,
					Subject:     "claim frequency between zip codes",
					Messages: SkipMessages{
						Empty:     "'PostalCode' column is empty after cleaning.",
						Variation: "Not enough variation in 'PostalCode' or 'HasClaim' to perform Chi-squared test for claim frequency.",
						Sparse:    "Not enough distinct postal codes with observations to perform Chi-squared test for claim frequency after filtering sparse groups.",
					},
				},
				{
					Name:        "Claim Severity by Zip Code",
					Kind:        stats.TestANOVA,
					Dimension:   policy.DimensionPostalCode,
					Metric:      policy.MetricTotalClaims,
					Population:  PopulationClaims,
					MinGroupObs: 2,
					PostHoc:     true,
					Subject:     "claim severity between zip codes",
					Messages: SkipMessages{
						Empty:     "No claims data available for 'PostalCode' after cleaning.",
						Variation: "Not enough variation in 'PostalCode' or data points with claims to perform ANOVA for claim severity.",
						Sparse:    "Not enough distinct postal codes with enough claims to perform ANOVA for claim severity after filtering sparse groups.",
					},
				},
			},
		},
		{
			ID:    "H3",
			Title: "Margin Difference between Zip Codes",
			Null:  "There are no significant margin (profit) differences between zip codes",
			Tests: []TestSpec{
				{
					Name:        "Margin by Zip Code",
					Kind:        stats.TestANOVA,
					Dimension:   policy.DimensionPostalCode,
					Metric:      policy.MetricMargin,
					Population:  PopulationAll,
					MinGroupObs: 2,
					PostHoc:     true,
					Subject:     "margin between zip codes",
					Messages: SkipMessages{
						Empty:     "'PostalCode' column is empty after cleaning.",
						Variation: "Not enough variation in 'PostalCode' or data points to perform ANOVA for margin.",
						Sparse:    "Not enough distinct postal codes with enough data to perform ANOVA for margin after filtering sparse groups.",
					},
				},
			},
		},
		{
			ID:    "H4",
			Title: "Risk Differences between Women and Men",
			Null:  "There are no significant risk differences between women and men",
			Tests: []TestSpec{
				{
					Name:       "Claim Frequency by Gender",
					Kind:       stats.TestChiSquare,
					Dimension:  policy.DimensionGender,
					Metric:     policy.MetricHasClaim,
					Population: PopulationAll,
					Categories: []string{policy.GenderMale, policy.GenderFemale},
					Subject:    "claim frequency between Women and Men",
					Messages: SkipMessages{
						Empty:     "Not enough valid 'Gender' data (need at least 'Male' and 'Female') after cleaning for Chi-squared test.",
						Variation: "Not enough variation in 'Gender' or 'HasClaim' for valid Chi-squared test.",
						Sparse:    "Not enough valid 'Gender' data (need at least 'Male' and 'Female') after cleaning for Chi-squared test.",
						Groups:    "Not enough valid 'Gender' data (need at least 'Male' and 'Female') after cleaning for Chi-squared test.",
					},
				},
				{
					Name:        "Claim Severity by Gender",
					Kind:        stats.TestWelchT,
					Dimension:   policy.DimensionGender,
					Metric:      policy.MetricTotalClaims,
					Population:  PopulationClaims,
					Categories:  []string{policy.GenderMale, policy.GenderFemale},
					MinGroupObs: 2,
					Subject:     "claim severity between Women and Men",
					Messages: SkipMessages{
						Empty:     "Not enough valid 'Gender' data (need both 'Male' and 'Female' with claims) after cleaning for t-test.",
						Variation: "Not enough valid 'Gender' data (need both 'Male' and 'Female' with claims) after cleaning for t-test.",
						Groups:    "Not enough valid 'Gender' data (need both 'Male' and 'Female' with claims) after cleaning for t-test.",
						Sparse:    "Not enough claim data for both 'Male' and 'Female' to perform Independent t-test.",
					},
				},
			},
		},
	}
}
